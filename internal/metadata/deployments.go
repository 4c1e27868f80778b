package metadata

import (
	"context"

	"github.com/arencloud/sitehost/internal/models"
)

// Deployments is the deployment-record repository backed by buckets.json.
// The collection is a flat array; lookups are linear scans.
type Deployments struct {
	c *Client
}

func NewDeployments(c *Client) *Deployments {
	return &Deployments{c: c}
}

// ListByOwner returns the records owned by ownerID, in collection order.
func (d *Deployments) ListByOwner(ctx context.Context, ownerID string) ([]models.Deployment, error) {
	all, err := d.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Deployment, 0)
	for _, rec := range all {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Find returns the record with the given bucket key and whether it exists.
func (d *Deployments) Find(ctx context.Context, bucketKey string) (models.Deployment, bool, error) {
	all, err := d.all(ctx)
	if err != nil {
		return models.Deployment{}, false, err
	}
	for _, rec := range all {
		if rec.BucketKey == bucketKey {
			return rec, true, nil
		}
	}
	return models.Deployment{}, false, nil
}

// Append adds a record and rewrites the collection.
func (d *Deployments) Append(ctx context.Context, rec models.Deployment) error {
	all, err := d.all(ctx)
	if err != nil {
		return err
	}
	all = append(all, rec)
	return d.c.save(ctx, deploymentsObject, all)
}

// Remove drops the record with the given bucket key, if present, and
// rewrites the collection.
func (d *Deployments) Remove(ctx context.Context, bucketKey string) error {
	all, err := d.all(ctx)
	if err != nil {
		return err
	}
	kept := all[:0]
	for _, rec := range all {
		if rec.BucketKey != bucketKey {
			kept = append(kept, rec)
		}
	}
	return d.c.save(ctx, deploymentsObject, kept)
}

func (d *Deployments) all(ctx context.Context) ([]models.Deployment, error) {
	all := []models.Deployment{}
	if err := d.c.load(ctx, deploymentsObject, &all); err != nil {
		return nil, err
	}
	return all, nil
}
