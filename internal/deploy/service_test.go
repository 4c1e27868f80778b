package deploy

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arencloud/sitehost/internal/config"
	"github.com/arencloud/sitehost/internal/logging"
	"github.com/arencloud/sitehost/internal/metadata"
	"github.com/arencloud/sitehost/internal/models"
	"github.com/arencloud/sitehost/internal/objectstore"
	"github.com/arencloud/sitehost/internal/objectstore/storetest"
)

const testMetaBucket = "meta"

func testConfig() *config.Config {
	return &config.Config{
		PublicEndpoint: "https://objectstorage.test-region.example.com",
		Namespace:      "testns",
		MetadataBucket: testMetaBucket,
		BucketPrefix:   "site",
		Limits:         testLimits(),
	}
}

type testEnv struct {
	svc         *Service
	fake        *storetest.Fake
	deployments *metadata.Deployments
	cfg         *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fake := storetest.New()
	client := metadata.NewClient(fake, testMetaBucket)
	require.NoError(t, client.EnsureInitialized(context.Background()))
	deployments := metadata.NewDeployments(client)
	cfg := testConfig()
	svc := New(fake, deployments, cfg, logging.NewNop()).
		WithSuffix(func() string { return "1a2b3c4d" })
	return &testEnv{svc: svc, fake: fake, deployments: deployments, cfg: cfg}
}

// zipBytes builds an in-memory ZIP. Keys ending in "/" become directories.
func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		if strings.HasSuffix(name, "/") {
			_, err := zw.Create(name)
			require.NoError(t, err)
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// siteBucketCreates counts CreateBucket calls for site buckets, ignoring the
// metadata bucket bootstrap.
func siteBucketCreates(f *storetest.Fake) int {
	n := 0
	for _, name := range f.CreateCalls {
		if name != testMetaBucket {
			n++
		}
	}
	return n
}

func TestDeployWithIndex(t *testing.T) {
	env := newTestEnv(t)
	archive := zipBytes(t, map[string]string{
		"index.html":   "<html>hi</html>",
		"img/":         "",
		"img/logo.png": "\x89PNG fake",
	})

	res, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.NoError(t, err)

	assert.Equal(t, "site-alice-1a2b3c4d", res.BucketName)
	assert.True(t, res.HasIndex)
	assert.Equal(t,
		"https://objectstorage.test-region.example.com/n/testns/b/site-alice-1a2b3c4d/o/index.html",
		res.SiteURL)

	assert.True(t, env.fake.BucketPublic(res.BucketName))
	assert.Equal(t, 2, env.fake.ObjectCount(res.BucketName))
	idx, ok := env.fake.Object(res.BucketName, "index.html")
	require.True(t, ok)
	assert.Contains(t, idx.ContentType, "text/html")
	png, ok := env.fake.Object(res.BucketName, "img/logo.png")
	require.True(t, ok)
	assert.Contains(t, png.ContentType, "image/png")

	sites, err := env.deployments.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	rec := sites[0]
	assert.Equal(t, res.BucketName, rec.BucketKey)
	assert.Equal(t, "alice", rec.OwnerID)
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.Equal(t, res.SiteURL, rec.URL)
	assert.True(t, rec.HasIndex)
	assert.WithinDuration(t, time.Now().UTC(), rec.LaunchTime, time.Minute)
}

func TestDeployWithoutIndex(t *testing.T) {
	env := newTestEnv(t)
	archive := zipBytes(t, map[string]string{"about.html": "<html>about</html>"})

	res, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.NoError(t, err)
	assert.False(t, res.HasIndex)
	assert.True(t, strings.HasSuffix(res.SiteURL, "/o/"), "URL should point at container root: %s", res.SiteURL)
}

func TestDeployNestedIndexDoesNotCount(t *testing.T) {
	env := newTestEnv(t)
	archive := zipBytes(t, map[string]string{"docs/index.html": "<html></html>"})
	res, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.NoError(t, err)
	assert.False(t, res.HasIndex)
}

func TestDeployRejectsInvalidZip(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Deploy(context.Background(), "alice", []byte("not a zip"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, siteBucketCreates(env.fake))
}

func TestDeployRejectsOversizedMember(t *testing.T) {
	env := newTestEnv(t)
	env.svc.limits.MaxFileSize = 10
	archive := zipBytes(t, map[string]string{"big.bin": strings.Repeat("x", 11)})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	// Rejected on metadata alone: no bucket was ever created.
	assert.Zero(t, siteBucketCreates(env.fake))
}

func TestDeployRejectsTooManyFiles(t *testing.T) {
	env := newTestEnv(t)
	env.svc.limits.MaxFilesInZip = 2
	archive := zipBytes(t, map[string]string{"a.html": "a", "b.html": "b", "c.html": "c"})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, siteBucketCreates(env.fake))
}

func TestDeployRejectsTotalSize(t *testing.T) {
	env := newTestEnv(t)
	env.svc.limits.MaxUncompressed = 10
	archive := zipBytes(t, map[string]string{"a.bin": "123456", "b.bin": "123456"})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, siteBucketCreates(env.fake))
}

func TestDeployRejectsArchiveOverZipCap(t *testing.T) {
	env := newTestEnv(t)
	env.svc.limits.MaxZipSize = 10
	archive := zipBytes(t, map[string]string{"index.html": "<html>hi</html>"})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDeployTraversalMemberRollsBack(t *testing.T) {
	env := newTestEnv(t)
	archive := zipBytes(t, map[string]string{
		"apage.html":      "<html></html>",
		"zz/../../escape": "boom",
	})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// A bucket was provisioned before the bad member surfaced; it must be gone.
	require.Equal(t, 1, siteBucketCreates(env.fake))
	assert.False(t, env.fake.HasBucket("site-alice-1a2b3c4d"))
	assert.Contains(t, env.fake.DeletedBuckets, "site-alice-1a2b3c4d")

	sites, err := env.deployments.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestDeployQuotaExceeded(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < env.cfg.Limits.MaxSitesPerUser; i++ {
		require.NoError(t, env.deployments.Append(context.Background(), models.Deployment{
			BucketKey: fmt.Sprintf("site-alice-%08d", i),
			OwnerID:   "alice",
			Status:    models.StatusActive,
		}))
	}
	archive := zipBytes(t, map[string]string{"index.html": "x"})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Zero(t, siteBucketCreates(env.fake))

	// Another owner is unaffected by alice's quota.
	_, err = env.svc.Deploy(context.Background(), "bob", archive)
	require.NoError(t, err)
}

func TestDeployUploadFailureCleansUp(t *testing.T) {
	env := newTestEnv(t)
	puts := 0
	env.fake.PutErr = func(bucket, key string) error {
		if bucket == testMetaBucket {
			return nil
		}
		puts++
		if puts == 3 {
			return errors.New("backend exploded")
		}
		return nil
	}
	archive := zipBytes(t, map[string]string{
		"a.html": "a",
		"b.html": "b",
		"c.html": "c",
	})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend exploded")

	assert.False(t, env.fake.HasBucket("site-alice-1a2b3c4d"))
	assert.Equal(t, 0, env.fake.ObjectCount("site-alice-1a2b3c4d"))
	sites, err := env.deployments.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestDeployMetadataCommitFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.fake.PutErr = func(bucket, key string) error {
		if bucket == testMetaBucket && key == "buckets.json" {
			return errors.New("metadata write denied")
		}
		return nil
	}
	archive := zipBytes(t, map[string]string{"index.html": "x"})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata write denied")
	assert.False(t, env.fake.HasBucket("site-alice-1a2b3c4d"))
}

func TestDeployBucketCreationDenied(t *testing.T) {
	env := newTestEnv(t)
	env.fake.CreateBucketErr = &objectstore.Error{
		Op: "createBucket", Bucket: "site-alice-1a2b3c4d",
		Err: fmt.Errorf("%w: policy", objectstore.ErrAccessDenied),
	}
	archive := zipBytes(t, map[string]string{"index.html": "x"})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.ErrorIs(t, err, objectstore.ErrAccessDenied)
	assert.False(t, env.fake.HasBucket("site-alice-1a2b3c4d"))
}

func TestRollbackStalledDeletionsLeaveOrphan(t *testing.T) {
	env := newTestEnv(t)
	env.fake.RemoveErr = func(bucket, key string) error {
		if bucket == testMetaBucket {
			return nil
		}
		return errors.New("delete denied")
	}
	archive := zipBytes(t, map[string]string{"a.html": "a", "b.html": "b"})
	// Fail the second file: one object persisted, then rollback can't delete it.
	n := 0
	env.fake.PutErr = func(bucket, key string) error {
		if bucket == testMetaBucket {
			return nil
		}
		n++
		if n == 2 {
			return errors.New("upload failed")
		}
		return nil
	}
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload failed", "rollback failures must not mask the original error")
	// Cleanup stalled: the bucket remains with its orphaned object.
	assert.True(t, env.fake.HasBucket("site-alice-1a2b3c4d"))
	assert.Equal(t, 1, env.fake.ObjectCount("site-alice-1a2b3c4d"))
}

func TestDeleteSite(t *testing.T) {
	env := newTestEnv(t)
	archive := zipBytes(t, map[string]string{"index.html": "x", "a.css": "c"})
	res, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(context.Background(), "alice", res.BucketName))
	assert.False(t, env.fake.HasBucket(res.BucketName))
	sites, err := env.deployments.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, sites)
}

func TestDeleteSiteOwnershipMismatch(t *testing.T) {
	env := newTestEnv(t)
	archive := zipBytes(t, map[string]string{"index.html": "x"})
	res, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.NoError(t, err)

	// Same error for someone else's site and for a missing one.
	err = env.svc.Delete(context.Background(), "mallory", res.BucketName)
	require.ErrorIs(t, err, ErrSiteNotFound)
	err = env.svc.Delete(context.Background(), "alice", "site-alice-deadbeef")
	require.ErrorIs(t, err, ErrSiteNotFound)

	// The site is untouched.
	assert.True(t, env.fake.HasBucket(res.BucketName))
	sites, err := env.deployments.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

// Two deployments from the same owner both passing the quota check before
// either commits is a documented race: the repository has no
// compare-and-swap, so the limit can be exceeded under concurrency. This
// test only pins the sequential behavior.
func TestQuotaIsCheckThenAct(t *testing.T) {
	env := newTestEnv(t)
	env.svc.limits.MaxSitesPerUser = 1
	suffixes := []string{"aaaaaaaa", "bbbbbbbb"}
	i := 0
	env.svc.WithSuffix(func() string { s := suffixes[i]; i++; return s })

	archive := zipBytes(t, map[string]string{"index.html": "x"})
	_, err := env.svc.Deploy(context.Background(), "alice", archive)
	require.NoError(t, err)
	_, err = env.svc.Deploy(context.Background(), "alice", archive)
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestContentTypeFor(t *testing.T) {
	ct := contentTypeFor("site.css", []byte("body{}"))
	assert.Contains(t, ct, "text/css")
	ct = contentTypeFor("mystery", []byte{0x00, 0x01, 0x02, 0x03})
	assert.Equal(t, "application/octet-stream", ct)
}
