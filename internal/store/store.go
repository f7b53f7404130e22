// Package store is the contract over the durable blob store that holds a
// project's scene frames and manifest.
package store

import (
	"context"
	"fmt"
)

// Reason classifies why an upload failed.
type Reason string

const (
	ReasonTransportFailure Reason = "transport_failure"
	ReasonPermissionDenied Reason = "permission_denied"
)

// UploadError is a typed upload failure.
type UploadError struct {
	Reason Reason
	Key    string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed (%s): %v", e.Key, e.Reason, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// IsRetryable reports whether a retry could plausibly succeed. Permission
// failures are permanent.
func (e *UploadError) IsRetryable() bool {
	return e.Reason != ReasonPermissionDenied
}

// BlobStore is a durable key-blob store. Put has idempotent overwrite
// semantics: re-uploading a key replaces its content, no versioning.
type BlobStore interface {
	Put(ctx context.Context, key, localPath string) error
}
