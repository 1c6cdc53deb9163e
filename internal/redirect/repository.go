package redirect

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Repository lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrCacheMiss is returned by Cache.Get when the key holds no value.
	ErrCacheMiss = errors.New("cache miss")

	// ErrStoreUnavailable wraps record store failures seen while resolving.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrNoDestination means nothing resolved and no fallback link is configured.
	ErrNoDestination = errors.New("no destination resolved and no fallback link configured")
)

// Cache stores opaque payloads with a sliding expiration.
// Get refreshes the expiration of the entry it returns.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Repository is the read side of the record store.
// Every lookup returns ErrNotFound when no row matches.
type Repository interface {
	// GroupIDForDomain returns the group owning the domain.
	GroupIDForDomain(ctx context.Context, domain string) (int64, error)

	// ActiveRecord finds the active record with the slug in the given group scope.
	// A nil groupID selects global records.
	ActiveRecord(ctx context.Context, groupID *int64, slug string) (*ResolvedTarget, error)

	// GroupDefault returns the group id and its default link. A group without a
	// default link is still found and carries an empty Link.
	GroupDefault(ctx context.Context, groupID int64) (*ResolvedTarget, error)

	// SystemDefault returns the group flagged as default, lowest id first.
	SystemDefault(ctx context.Context) (*ResolvedTarget, error)
}

// VisitStore is the write side of the record store. Each call increments the
// subject counter, stamps its latest visit and appends an audit row, atomically.
type VisitStore interface {
	RecordGroupVisit(ctx context.Context, groupID int64, at time.Time) error
	RecordRecordVisit(ctx context.Context, recordID int64, at time.Time) error
}

// VisitRecorder issues visit accounting without waiting for it.
type VisitRecorder interface {
	RecordGroupVisit(ctx context.Context, groupID int64)
	RecordRecordVisit(ctx context.Context, recordID int64)
}
