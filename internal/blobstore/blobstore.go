// Package blobstore persists the documents this service owns (the identity
// cache, the audit log, and the merge-field mapping) as whole JSON blobs
// under well-known keys. Every read loads the full document and every
// write replaces it; callers that need read-modify-write atomicity must
// serialize themselves.
package blobstore

import (
	"context"
	"errors"
)

// Well-known blob keys.
const (
	KeyCache    = "member_email_cache.json"
	KeyLog      = "webhook_logs.json"
	KeyMergeMap = "merge_map.json"
)

// ErrNotFound is returned by Load when no blob exists under the key. Callers
// generally treat it as "empty document" rather than a failure.
var ErrNotFound = errors.New("blob not found")

// Store is the key-value persistence contract shared by all backends.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}
