// Package metadata persists service state as JSON objects in a private
// metadata bucket: users.json for accounts and buckets.json for deployment
// records. Every mutation is a wholesale read-modify-write of one object, so
// concurrent writers are last-writer-wins.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/arencloud/sitehost/internal/objectstore"
)

const (
	usersObject       = "users.json"
	deploymentsObject = "buckets.json"
)

// Client reads and writes the metadata collections.
type Client struct {
	store  objectstore.Store
	bucket string
}

func NewClient(store objectstore.Store, bucket string) *Client {
	return &Client{store: store, bucket: bucket}
}

// EnsureInitialized creates the metadata bucket and empty collections when
// they are absent. Called once at startup so the request path never has to
// recover from a missing backing object.
func (c *Client) EnsureInitialized(ctx context.Context) error {
	if err := c.store.CreateBucket(ctx, c.bucket, false); err != nil {
		if !errors.Is(err, objectstore.ErrBucketExists) {
			return fmt.Errorf("metadata bucket: %w", err)
		}
	}
	for _, init := range []struct {
		key   string
		empty any
	}{
		{usersObject, map[string]struct{}{}},
		{deploymentsObject, []struct{}{}},
	} {
		var probe json.RawMessage
		err := c.load(ctx, init.key, &probe)
		if err == nil {
			continue
		}
		if !errors.Is(err, objectstore.ErrNotFound) {
			return err
		}
		if err := c.save(ctx, init.key, init.empty); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) load(ctx context.Context, key string, v any) error {
	rc, err := c.store.Get(ctx, c.bucket, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (c *Client) save(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.store.Put(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return err
	}
	return nil
}
