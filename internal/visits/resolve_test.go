package visits_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/go-redirector/internal/redirect"
	"github.com/serroba/go-redirector/internal/store"
	"github.com/serroba/go-redirector/internal/visits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// slowVisitStore holds every visit write until released.
type slowVisitStore struct {
	*store.MemoryStore
	release chan struct{}
}

func (s *slowVisitStore) RecordRecordVisit(ctx context.Context, recordID int64, at time.Time) error {
	<-s.release

	return s.MemoryStore.RecordRecordVisit(ctx, recordID, at)
}

func (s *slowVisitStore) RecordGroupVisit(ctx context.Context, groupID int64, at time.Time) error {
	<-s.release

	return s.MemoryStore.RecordGroupVisit(ctx, groupID, at)
}

func TestResolve_DoesNotWaitForVisitWrite(t *testing.T) {
	link := "https://docs.example.com"
	groupID := int64(7)

	repo := store.NewMemoryStore()
	repo.PutGroup(redirect.Group{ID: groupID})
	repo.PutDomain(redirect.Domain{Name: "go.example", GroupID: groupID})
	repo.PutRecord(redirect.Record{ID: 1, Slug: "docs", IsActive: true, Link: &link, GroupID: &groupID})

	slow := &slowVisitStore{MemoryStore: repo, release: make(chan struct{})}

	worker := visits.NewWorker(visits.NewStoreHandler(slow), visits.WorkerConfig{
		Workers:   1,
		QueueSize: 8,
		Timeout:   5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, worker.Start(context.Background()))

	resolver := redirect.NewResolver(store.NewMemoryCache(), repo, time.Hour, zap.NewNop())
	service := redirect.NewService(
		resolver,
		visits.NewRecorder(worker.Enqueue, zap.NewNop()),
		"https://fallback.example.com",
		redirect.OutageFail,
		zap.NewNop(),
	)

	done := make(chan *redirect.Outcome, 1)

	go func() {
		outcome, err := service.Resolve(context.Background(), "go.example", "docs")
		assert.NoError(t, err)

		done <- outcome
	}()

	select {
	case outcome := <-done:
		require.NotNil(t, outcome)
		assert.Equal(t, link, outcome.Destination)
	case <-time.After(time.Second):
		t.Fatal("redirect waited for the visit write")
	}

	r, _ := repo.Record(1)
	assert.Equal(t, int64(0), r.Visits, "visit applied before the write was released")

	close(slow.release)

	assert.Eventually(t, func() bool {
		r, _ := repo.Record(1)

		return r.Visits == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, worker.Shutdown())
}
