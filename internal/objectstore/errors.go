package objectstore

import (
	"errors"
	"fmt"

	minio "github.com/minio/minio-go/v7"
)

// Error kinds surfaced by the store. Callers switch on these with errors.Is
// instead of inspecting backend status codes.
var (
	// ErrNotFound indicates the bucket or object does not exist.
	ErrNotFound = errors.New("objectstore: not found")

	// ErrAccessDenied indicates the backend rejected the call for permission reasons.
	ErrAccessDenied = errors.New("objectstore: access denied")

	// ErrBucketExists indicates the bucket already exists.
	ErrBucketExists = errors.New("objectstore: bucket already exists")
)

// Error wraps a backend failure with the operation and target that produced it.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("objectstore.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("objectstore.%s %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("objectstore.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify converts a minio error into one of the store's error kinds,
// preserving the backend detail in the chain.
func classify(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := err
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey", "NotFound", "NoSuchVersion":
		wrapped = fmt.Errorf("%w: %v", ErrNotFound, err)
	case "AccessDenied", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		wrapped = fmt.Errorf("%w: %v", ErrAccessDenied, err)
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		wrapped = fmt.Errorf("%w: %v", ErrBucketExists, err)
	}
	return &Error{Op: op, Bucket: bucket, Key: key, Err: wrapped}
}
