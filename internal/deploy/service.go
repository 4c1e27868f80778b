package deploy

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/arencloud/sitehost/internal/config"
	"github.com/arencloud/sitehost/internal/logging"
	"github.com/arencloud/sitehost/internal/metadata"
	"github.com/arencloud/sitehost/internal/models"
	"github.com/arencloud/sitehost/internal/objectstore"
)

// Result is what a successful deployment reports back to the caller.
type Result struct {
	BucketName string
	SiteURL    string
	HasIndex   bool
}

// Service runs the provisioning transaction: quota check, archive
// validation, bucket creation, per-file upload and metadata commit, with a
// compensating rollback of the bucket when anything fails after creation.
type Service struct {
	store       objectstore.Store
	deployments *metadata.Deployments
	limits      config.Limits
	prefix      string
	publicBase  string // public endpoint, no trailing slash
	namespace   string
	suffix      func() string
	log         logging.Logger
}

func New(store objectstore.Store, deployments *metadata.Deployments, cfg *config.Config, log logging.Logger) *Service {
	return &Service{
		store:       store,
		deployments: deployments,
		limits:      cfg.Limits,
		prefix:      cfg.BucketPrefix,
		publicBase:  strings.TrimRight(cfg.PublicEndpoint, "/"),
		namespace:   cfg.Namespace,
		suffix:      newSuffix,
		log:         log,
	}
}

// WithSuffix overrides the random bucket-name suffix source. Tests use it to
// make generated names deterministic.
func (s *Service) WithSuffix(fn func() string) *Service {
	s.suffix = fn
	return s
}

// Deploy publishes the uploaded ZIP as a new public site for ownerID.
//
// No backend state is touched until the archive has fully validated. After
// bucket creation every failure triggers a best-effort rollback before the
// original error is returned; the error is never replaced by a rollback
// failure.
func (s *Service) Deploy(ctx context.Context, ownerID string, archive []byte) (Result, error) {
	if int64(len(archive)) > s.limits.MaxZipSize {
		return Result{}, validationErrorf("ZIP file too large (max %dMB)", s.limits.MaxZipSize>>20)
	}

	existing, err := s.deployments.ListByOwner(ctx, ownerID)
	if err != nil {
		return Result{}, fmt.Errorf("load deployments: %w", err)
	}
	if len(existing) >= s.limits.MaxSitesPerUser {
		return Result{}, fmt.Errorf("%w: maximum of %d sites allowed per user", ErrQuotaExceeded, s.limits.MaxSitesPerUser)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return Result{}, validationErrorf("file is not a valid ZIP")
	}
	if err := validateArchive(membersFromZip(zr), s.limits); err != nil {
		return Result{}, err
	}

	bucket, err := bucketName(s.prefix, ownerID, s.suffix())
	if err != nil {
		return Result{}, err
	}
	if err := s.store.CreateBucket(ctx, bucket, true); err != nil {
		return Result{}, err
	}
	s.log.Info("site bucket created", "bucket", bucket, "owner", ownerID)

	hasIndex, err := s.uploadMembers(ctx, bucket, zr)
	if err != nil {
		s.rollback(ctx, bucket, err)
		return Result{}, err
	}

	rec := models.Deployment{
		BucketKey:  bucket,
		OwnerID:    ownerID,
		LaunchTime: time.Now().UTC(),
		Status:     models.StatusActive,
		URL:        s.siteURL(bucket, hasIndex),
		HasIndex:   hasIndex,
	}
	if err := s.deployments.Append(ctx, rec); err != nil {
		s.rollback(ctx, bucket, err)
		return Result{}, fmt.Errorf("commit deployment record: %w", err)
	}
	s.log.Info("deployment committed", "bucket", bucket, "owner", ownerID, "hasIndex", hasIndex)
	return Result{BucketName: bucket, SiteURL: rec.URL, HasIndex: hasIndex}, nil
}

// uploadMembers iterates the archive's files in order and uploads each one.
// Returns whether a root-level index.html was seen.
func (s *Service) uploadMembers(ctx context.Context, bucket string, zr *zip.Reader) (hasIndex bool, err error) {
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if err := checkMemberName(f.Name); err != nil {
			return false, err
		}
		if strings.EqualFold(f.Name, "index.html") {
			hasIndex = true
		}
		content, err := readMember(f, s.limits.MaxFileSize)
		if err != nil {
			return false, err
		}
		ct := contentTypeFor(f.Name, content)
		if err := s.store.Put(ctx, bucket, f.Name, bytes.NewReader(content), int64(len(content)), ct); err != nil {
			return false, err
		}
	}
	return hasIndex, nil
}

// readMember extracts one file, capping the actual decompressed bytes at the
// per-file limit in case the archive directory under-reports sizes.
func readMember(f *zip.File, maxSize int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive member %s: %w", f.Name, err)
	}
	defer rc.Close()
	content, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read archive member %s: %w", f.Name, err)
	}
	if int64(len(content)) > maxSize {
		return nil, validationErrorf("file %s exceeds %dMB limit", f.Name, maxSize>>20)
	}
	return content, nil
}

// contentTypeFor infers the object content type from the filename extension,
// sniffing the content when the extension is unknown. mimetype falls back to
// application/octet-stream by itself.
func contentTypeFor(name string, content []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return mimetype.Detect(content).String()
}

func (s *Service) siteURL(bucket string, hasIndex bool) string {
	base := fmt.Sprintf("%s/n/%s/b/%s/o/", s.publicBase, s.namespace, bucket)
	if hasIndex {
		return base + "index.html"
	}
	return base
}

// List returns the caller's deployment records.
func (s *Service) List(ctx context.Context, ownerID string) ([]models.Deployment, error) {
	return s.deployments.ListByOwner(ctx, ownerID)
}

// Delete tears down a site: verify ownership, empty and remove the bucket,
// then drop the record. A missing record and an ownership mismatch are
// reported identically as ErrSiteNotFound.
func (s *Service) Delete(ctx context.Context, ownerID, bucketKey string) error {
	rec, ok, err := s.deployments.Find(ctx, bucketKey)
	if err != nil {
		return fmt.Errorf("load deployments: %w", err)
	}
	if !ok || rec.OwnerID != ownerID {
		return ErrSiteNotFound
	}
	s.emptyBucket(ctx, bucketKey)
	if err := s.store.DeleteBucket(ctx, bucketKey); err != nil && !errIsNotFound(err) {
		return fmt.Errorf("delete bucket %s: %w", bucketKey, err)
	}
	if err := s.deployments.Remove(ctx, bucketKey); err != nil {
		return fmt.Errorf("remove deployment record: %w", err)
	}
	s.log.Info("site deleted", "bucket", bucketKey, "owner", ownerID)
	return nil
}
