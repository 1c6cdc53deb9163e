package redirect_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serroba/go-redirector/internal/redirect"
	"github.com/serroba/go-redirector/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedRepository holds ActiveRecord until released or until the query
// context ends, like a slow database would.
type gatedRepository struct {
	*store.MemoryStore
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedRepository() *gatedRepository {
	return &gatedRepository{
		MemoryStore: newFixture(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
}

func (g *gatedRepository) ActiveRecord(ctx context.Context, groupID *int64, slug string) (*redirect.ResolvedTarget, error) {
	g.calls.Add(1)

	select {
	case g.entered <- struct{}{}:
	default:
	}

	select {
	case <-g.release:
		return g.MemoryStore.ActiveRecord(ctx, groupID, slug)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type lookupResult struct {
	target *redirect.ResolvedTarget
	err    error
}

func TestResolver_SharedMiss(t *testing.T) {
	t.Run("a cancelled caller does not fail callers waiting on the same key", func(t *testing.T) {
		repo := newGatedRepository()
		resolver := newTestResolver(repo, store.NewMemoryCache())

		firstCtx, cancelFirst := context.WithCancel(context.Background())
		first := make(chan lookupResult, 1)
		second := make(chan lookupResult, 1)

		go func() {
			target, err := resolver.ResolveSlugNoGroup(firstCtx, "handbook")
			first <- lookupResult{target, err}
		}()

		<-repo.entered

		go func() {
			target, err := resolver.ResolveSlugNoGroup(context.Background(), "handbook")
			second <- lookupResult{target, err}
		}()

		// Let the second caller join the in-flight query.
		time.Sleep(20 * time.Millisecond)
		cancelFirst()

		firstResult := <-first
		require.ErrorIs(t, firstResult.err, context.Canceled)
		assert.NotErrorIs(t, firstResult.err, redirect.ErrStoreUnavailable)

		close(repo.release)

		secondResult := <-second
		require.NoError(t, secondResult.err)
		assert.Equal(t, &redirect.ResolvedTarget{ID: 3, Link: "https://global.example.com/handbook"}, secondResult.target)
	})

	t.Run("the shared query result is cached for later callers", func(t *testing.T) {
		repo := newGatedRepository()
		close(repo.release)

		resolver := newTestResolver(repo, store.NewMemoryCache())

		_, err := resolver.ResolveSlugNoGroup(context.Background(), "handbook")
		require.NoError(t, err)

		target, err := resolver.ResolveSlugNoGroup(context.Background(), "handbook")
		require.NoError(t, err)
		assert.Equal(t, int64(3), target.ID)
		assert.Equal(t, int32(1), repo.calls.Load())
	})
}
