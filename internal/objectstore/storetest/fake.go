// Package storetest provides an in-memory objectstore.Store for tests.
package storetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/arencloud/sitehost/internal/objectstore"
)

type Object struct {
	Data        []byte
	ContentType string
}

type Bucket struct {
	Public  bool
	Objects map[string]Object
}

// Fake is a programmable in-memory object store. Error hooks let tests fail
// specific operations to drive the rollback paths.
type Fake struct {
	mu      sync.Mutex
	buckets map[string]*Bucket

	CreateCalls     []string // bucket names passed to CreateBucket, in order
	DeletedBuckets  []string // bucket names successfully deleted
	CreateBucketErr error
	DeleteBucketErr error
	ListErr         error
	HealthErr       error
	PutErr          func(bucket, key string) error
	RemoveErr       func(bucket, key string) error
}

func New() *Fake {
	return &Fake{buckets: map[string]*Bucket{}}
}

var _ objectstore.Store = (*Fake)(nil)

func notFound(op, bucket, key string) error {
	return &objectstore.Error{Op: op, Bucket: bucket, Key: key,
		Err: fmt.Errorf("%w: fake", objectstore.ErrNotFound)}
}

func (f *Fake) Healthcheck(ctx context.Context) (objectstore.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HealthErr != nil {
		return objectstore.Info{}, f.HealthErr
	}
	return objectstore.Info{Endpoint: "fake.local", Buckets: len(f.buckets)}, nil
}

func (f *Fake) CreateBucket(ctx context.Context, name string, publicRead bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls = append(f.CreateCalls, name)
	if f.CreateBucketErr != nil {
		return f.CreateBucketErr
	}
	if _, ok := f.buckets[name]; ok {
		return &objectstore.Error{Op: "createBucket", Bucket: name,
			Err: fmt.Errorf("%w: fake", objectstore.ErrBucketExists)}
	}
	f.buckets[name] = &Bucket{Public: publicRead, Objects: map[string]Object{}}
	return nil
}

func (f *Fake) DeleteBucket(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteBucketErr != nil {
		return f.DeleteBucketErr
	}
	b, ok := f.buckets[name]
	if !ok {
		return notFound("deleteBucket", name, "")
	}
	if len(b.Objects) > 0 {
		return &objectstore.Error{Op: "deleteBucket", Bucket: name,
			Err: fmt.Errorf("bucket not empty")}
	}
	delete(f.buckets, name)
	f.DeletedBuckets = append(f.DeletedBuckets, name)
	return nil
}

func (f *Fake) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if f.PutErr != nil {
		if err := f.PutErr(bucket, key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[bucket]
	if !ok {
		return notFound("put", bucket, key)
	}
	b.Objects[key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (f *Fake) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[bucket]
	if !ok {
		return nil, notFound("get", bucket, key)
	}
	obj, ok := b.Objects[key]
	if !ok {
		return nil, notFound("get", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (f *Fake) List(ctx context.Context, bucket, prefix string, limit int) ([]objectstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	b, ok := f.buckets[bucket]
	if !ok {
		return nil, notFound("list", bucket, "")
	}
	keys := make([]string, 0, len(b.Objects))
	for k := range b.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []objectstore.ObjectInfo
	for _, k := range keys {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		out = append(out, objectstore.ObjectInfo{Key: k, Size: int64(len(b.Objects[k].Data))})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) Remove(ctx context.Context, bucket, key string) error {
	if f.RemoveErr != nil {
		if err := f.RemoveErr(bucket, key); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[bucket]
	if !ok {
		return notFound("remove", bucket, key)
	}
	if _, ok := b.Objects[key]; !ok {
		return notFound("remove", bucket, key)
	}
	delete(b.Objects, key)
	return nil
}

// HasBucket reports whether the bucket currently exists.
func (f *Fake) HasBucket(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.buckets[name]
	return ok
}

// BucketPublic reports whether the bucket was created with public object read.
func (f *Fake) BucketPublic(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[name]
	return ok && b.Public
}

// ObjectCount returns the number of objects in a bucket, 0 if it is missing.
func (f *Fake) ObjectCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[name]
	if !ok {
		return 0
	}
	return len(b.Objects)
}

// Object returns a stored object and whether it exists.
func (f *Fake) Object(bucket, key string) (Object, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[bucket]
	if !ok {
		return Object{}, false
	}
	obj, ok := b.Objects[key]
	return obj, ok
}

// Seed creates the bucket if needed and stores an object directly.
func (f *Fake) Seed(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[bucket]
	if !ok {
		b = &Bucket{Objects: map[string]Object{}}
		f.buckets[bucket] = b
	}
	b.Objects[key] = Object{Data: data}
}
