package parser

import (
	"context"
	"io"
	"time"
)

// UserSink persists normalized user records.
type UserSink interface {
	AddUserInfo(ctx context.Context, record NormalizedUserRecord) error
}

// Frontier accepts identifiers to crawl next.
type Frontier interface {
	EnqueueTokens(ctx context.Context, entries []FrontierEntry) error
}

// DedupFilter marks tokens that have already been discovered.
type DedupFilter interface {
	Mark(ctx context.Context, token string) error
	Seen(ctx context.Context, token string) (bool, error)
}

// BlobStore writes raw artifacts and returns a URI. Pages that fail to decode
// are quarantined through it for later inspection.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs.
type IDGenerator interface {
	NewID() (string, error)
}
