package objectstore

import (
	"context"
	"io"
	"net/url"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/arencloud/sitehost/internal/config"
)

// ObjectInfo is the subset of object metadata the service needs.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Info describes the backend connection for the health endpoint.
type Info struct {
	Endpoint string `json:"endpoint"`
	Region   string `json:"region,omitempty"`
	Buckets  int    `json:"buckets"`
}

// Store is the object-storage collaborator. Implementations report failures
// through the package error kinds (ErrNotFound, ErrAccessDenied, ...).
type Store interface {
	Healthcheck(ctx context.Context) (Info, error)
	// CreateBucket provisions a bucket; publicRead attaches an anonymous
	// object-read policy so uploaded files are directly servable.
	CreateBucket(ctx context.Context, name string, publicRead bool) error
	DeleteBucket(ctx context.Context, name string) error
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// List returns up to limit objects with the given prefix. Callers page by
	// deleting what they received and listing again.
	List(ctx context.Context, bucket, prefix string, limit int) ([]ObjectInfo, error)
	Remove(ctx context.Context, bucket, key string) error
}

type Client struct {
	mc     *minio.Client
	region string
}

func normalizeEndpoint(endpoint string, useSSL bool) (host string, secure bool) {
	secure = useSSL
	if endpoint == "" {
		return "", secure
	}
	// If endpoint contains scheme, parse and strip it; prefer scheme over useSSL flag
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		if u, err := url.Parse(endpoint); err == nil {
			if u.Scheme == "https" {
				secure = true
			} else if u.Scheme == "http" {
				secure = false
			}
			return u.Host, secure
		}
	}
	return endpoint, secure
}

func New(sc config.Storage) (*Client, error) {
	endpoint, secure := normalizeEndpoint(sc.Endpoint, sc.UseSSL)
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(sc.AccessKey, sc.SecretKey, ""),
		Secure: secure,
		Region: sc.Region,
	})
	if err != nil {
		return nil, err
	}
	return &Client{mc: mc, region: sc.Region}, nil
}

func (c *Client) Healthcheck(ctx context.Context) (Info, error) {
	buckets, err := c.mc.ListBuckets(ctx)
	if err != nil {
		return Info{}, classify("healthcheck", "", "", err)
	}
	return Info{Endpoint: c.mc.EndpointURL().Host, Region: c.region, Buckets: len(buckets)}, nil
}

func (c *Client) CreateBucket(ctx context.Context, name string, publicRead bool) error {
	if err := c.mc.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: c.region}); err != nil {
		return classify("createBucket", name, "", err)
	}
	if publicRead {
		if err := c.mc.SetBucketPolicy(ctx, name, publicReadPolicy(name)); err != nil {
			return classify("setBucketPolicy", name, "", err)
		}
	}
	return nil
}

func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	if err := c.mc.RemoveBucket(ctx, name); err != nil {
		return classify("deleteBucket", name, "", err)
	}
	return nil
}

func (c *Client) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := c.mc.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return classify("put", bucket, key, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify("get", bucket, key, err)
	}
	// GetObject is lazy; Stat forces the request so missing keys surface here.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, classify("get", bucket, key, err)
	}
	return obj, nil
}

func (c *Client) List(ctx context.Context, bucket, prefix string, limit int) ([]ObjectInfo, error) {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var out []ObjectInfo
	opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true, MaxKeys: limit}
	for obj := range c.mc.ListObjects(lctx, bucket, opts) {
		if obj.Err != nil {
			return nil, classify("list", bucket, "", obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *Client) Remove(ctx context.Context, bucket, key string) error {
	if err := c.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return classify("remove", bucket, key, err)
	}
	return nil
}
