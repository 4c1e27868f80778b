package deploy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxBucketNameLen = 256

// newSuffix returns 8 hex characters of randomness, enough to keep repeated
// deployments by one owner from colliding.
func newSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// bucketName derives a backend-legal bucket name from the owner identity and
// a random suffix. suffix is injectable so tests can pin it.
func bucketName(prefix, ownerID, suffix string) (string, error) {
	return sanitizeBucketName(fmt.Sprintf("%s-%s-%s", prefix, ownerID, suffix))
}

// sanitizeBucketName lowercases the candidate, replaces everything outside
// [a-z0-9-] with a hyphen and strips leading/trailing hyphens. Idempotent:
// sanitizing an already-clean name returns it unchanged.
func sanitizeBucketName(name string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" || len(out) > maxBucketNameLen {
		return "", validationErrorf("invalid bucket name after sanitization")
	}
	return out, nil
}
