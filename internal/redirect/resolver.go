package redirect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/go-redirector/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is the sliding expiration applied to resolver cache entries.
const DefaultCacheTTL = 120 * time.Minute

// DefaultLoadTimeout bounds a shared store query on a cache miss.
const DefaultLoadTimeout = 5 * time.Second

const payloadVersion = 1

var errPayloadVersion = errors.New("unsupported cache payload version")

// cachedTarget is the serialized form of a ResolvedTarget.
type cachedTarget struct {
	Version int    `json:"v"`
	ID      int64  `json:"id"`
	Link    string `json:"link"`
}

// Resolver answers the cascade lookups through a read-through cache.
// Only positive results are cached.
type Resolver struct {
	cache  Cache
	repo   Repository
	ttl    time.Duration
	flight singleflight.Group
	logger *zap.Logger

	// loadTimeout bounds store queries, which run detached from the caller.
	loadTimeout time.Duration
}

// NewResolver creates a resolver over the given cache and record store.
func NewResolver(cache Cache, repo Repository, ttl time.Duration, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Resolver{
		cache:       cache,
		repo:        repo,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		logger:      logger,
	}
}

type loader func(ctx context.Context) (*ResolvedTarget, error)

// ResolveGroupSlug finds the active record for slug in the group owning domain.
func (r *Resolver) ResolveGroupSlug(ctx context.Context, domain, slug string) (*ResolvedTarget, error) {
	return r.readThrough(ctx, "group_slug", BuildKey(domain, slug), func(ctx context.Context) (*ResolvedTarget, error) {
		groupID, err := r.repo.GroupIDForDomain(ctx, domain)
		if err != nil {
			return nil, err
		}

		return r.repo.ActiveRecord(ctx, &groupID, slug)
	})
}

// ResolveSlugNoGroup finds the active global record for slug.
func (r *Resolver) ResolveSlugNoGroup(ctx context.Context, slug string) (*ResolvedTarget, error) {
	return r.readThrough(ctx, "slug", BuildKey("", slug), func(ctx context.Context) (*ResolvedTarget, error) {
		return r.repo.ActiveRecord(ctx, nil, slug)
	})
}

// ResolveGroupDefault returns the group owning domain with its default link.
// A group with no default link is returned with an empty Link.
func (r *Resolver) ResolveGroupDefault(ctx context.Context, domain string) (*ResolvedTarget, error) {
	return r.readThrough(ctx, "group_default", BuildKey(domain, ""), func(ctx context.Context) (*ResolvedTarget, error) {
		groupID, err := r.repo.GroupIDForDomain(ctx, domain)
		if err != nil {
			return nil, err
		}

		return r.repo.GroupDefault(ctx, groupID)
	})
}

// ResolveSystemDefault returns the group flagged as the system default.
func (r *Resolver) ResolveSystemDefault(ctx context.Context) (*ResolvedTarget, error) {
	return r.readThrough(ctx, "system_default", DefaultKey, r.repo.SystemDefault)
}

// Purge removes a single key from the cache.
func (r *Resolver) Purge(ctx context.Context, key string) error {
	if err := r.cache.Remove(ctx, key); err != nil {
		metrics.CacheErrors.WithLabelValues("remove").Inc()

		return fmt.Errorf("purge %q: %w", key, err)
	}

	return nil
}

func (r *Resolver) readThrough(ctx context.Context, lookup, key string, load loader) (*ResolvedTarget, error) {
	if target, ok := r.fromCache(ctx, lookup, key); ok {
		return target, nil
	}

	// Concurrent misses for one key share a single store query. The query
	// outlives any one caller so a disconnecting client can not fail the others.
	ch := r.flight.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()

		target, err := load(loadCtx)
		if errors.Is(err, ErrNotFound) || (err == nil && target == nil) {
			return (*ResolvedTarget)(nil), nil
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, lookup, err)
		}

		r.toCache(loadCtx, key, target)

		return target, nil
	})

	var res singleflight.Result

	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.Err != nil {
		metrics.StoreErrors.Inc()

		return nil, res.Err
	}

	target, _ := res.Val.(*ResolvedTarget)
	if target == nil {
		return nil, nil
	}

	out := *target

	return &out, nil
}

func (r *Resolver) fromCache(ctx context.Context, lookup, key string) (*ResolvedTarget, bool) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			metrics.CacheLookups.WithLabelValues(lookup, "miss").Inc()

			return nil, false
		}

		metrics.CacheLookups.WithLabelValues(lookup, "error").Inc()
		metrics.CacheErrors.WithLabelValues("get").Inc()
		r.logger.Warn("cache read failed, falling through to store",
			zap.String("key", key),
			zap.Error(err),
		)

		return nil, false
	}

	target, err := decodeTarget(data)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(lookup, "corrupt").Inc()
		r.logger.Warn("discarding unreadable cache entry",
			zap.String("key", key),
			zap.Error(err),
		)

		if err := r.cache.Remove(ctx, key); err != nil {
			metrics.CacheErrors.WithLabelValues("remove").Inc()
		}

		return nil, false
	}

	metrics.CacheLookups.WithLabelValues(lookup, "hit").Inc()

	return target, true
}

func (r *Resolver) toCache(ctx context.Context, key string, target *ResolvedTarget) {
	data, err := encodeTarget(target)
	if err == nil {
		err = r.cache.Set(ctx, key, data, r.ttl)
	}

	if err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		r.logger.Warn("cache write failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func encodeTarget(target *ResolvedTarget) ([]byte, error) {
	return json.Marshal(cachedTarget{
		Version: payloadVersion,
		ID:      target.ID,
		Link:    target.Link,
	})
}

func decodeTarget(data []byte) (*ResolvedTarget, error) {
	var cached cachedTarget
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	if cached.Version != payloadVersion {
		return nil, fmt.Errorf("%w: %d", errPayloadVersion, cached.Version)
	}

	return &ResolvedTarget{ID: cached.ID, Link: cached.Link}, nil
}
