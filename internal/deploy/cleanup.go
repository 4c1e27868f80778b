package deploy

import (
	"context"
	"errors"

	"github.com/arencloud/sitehost/internal/objectstore"
)

// rollback is the compensating action for a failed transaction: empty and
// delete the partially provisioned bucket. Best effort only; when rollback
// itself fails the bucket is orphaned and the logs are the only signal, so
// failures here are logged loudly and never returned.
func (s *Service) rollback(ctx context.Context, bucket string, cause error) {
	s.log.Error("deployment failed, rolling back bucket", "bucket", bucket, "cause", cause)
	s.emptyBucket(ctx, bucket)
	if err := s.store.DeleteBucket(ctx, bucket); err != nil && !errIsNotFound(err) {
		s.log.Error("rollback failed, bucket orphaned", "bucket", bucket, "error", err)
	}
}

// emptyBucket deletes every object in the bucket, paging through listings.
// Individual object deletions may fail; they are logged and skipped, since a
// partially emptied bucket beats an abandoned cleanup. A full pass that
// deletes nothing aborts the loop so persistent failures cannot spin forever.
func (s *Service) emptyBucket(ctx context.Context, bucket string) {
	pageSize := s.limits.CleanupPageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	for {
		objs, err := s.store.List(ctx, bucket, "", pageSize)
		if err != nil {
			if !errIsNotFound(err) {
				s.log.Error("cleanup: listing objects failed", "bucket", bucket, "error", err)
			}
			return
		}
		if len(objs) == 0 {
			return
		}
		deleted := 0
		for _, obj := range objs {
			if err := s.store.Remove(ctx, bucket, obj.Key); err != nil {
				s.log.Error("cleanup: failed to delete object", "bucket", bucket, "key", obj.Key, "error", err)
				continue
			}
			deleted++
		}
		if deleted == 0 {
			s.log.Error("cleanup stalled, objects may be orphaned", "bucket", bucket, "remaining", len(objs))
			return
		}
	}
}

func errIsNotFound(err error) bool {
	return errors.Is(err, objectstore.ErrNotFound)
}
