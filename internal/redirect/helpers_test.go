package redirect_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/serroba/go-redirector/internal/redirect"
	"github.com/serroba/go-redirector/internal/store"
)

var errStoreDown = errors.New("connection refused")

func ptr[T any](v T) *T {
	return &v
}

// newFixture mirrors a small dataset: go.example belongs to group 7 which has
// a default link, group 9 is the system default.
func newFixture() *store.MemoryStore {
	s := store.NewMemoryStore()
	s.PutGroup(redirect.Group{ID: 7, DefaultLink: ptr("https://example.com/promo-page")})
	s.PutGroup(redirect.Group{ID: 9, IsDefault: true, DefaultLink: ptr("https://example.com/home")})
	s.PutGroup(redirect.Group{ID: 11})
	s.PutDomain(redirect.Domain{Name: "go.example", GroupID: 7})
	s.PutDomain(redirect.Domain{Name: "blank.example", GroupID: 11})
	s.PutRecord(redirect.Record{ID: 1, Slug: "docs", IsActive: true, Link: ptr("https://docs.example.com"), GroupID: ptr(int64(7))})
	s.PutRecord(redirect.Record{ID: 2, Slug: "docs", IsActive: true, Link: ptr("https://global.example.com/docs")})
	s.PutRecord(redirect.Record{ID: 3, Slug: "handbook", IsActive: true, Link: ptr("https://global.example.com/handbook")})
	s.PutRecord(redirect.Record{ID: 4, Slug: "retired", IsActive: false, Link: ptr("https://old.example.com")})
	s.PutRecord(redirect.Record{ID: 5, Slug: "empty", IsActive: true})

	return s
}

// syncRecorder applies visits inline so tests can read counters right away.
type syncRecorder struct {
	mu    sync.Mutex
	store redirect.VisitStore
	calls []redirect.Visit
}

func (r *syncRecorder) RecordGroupVisit(ctx context.Context, groupID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, redirect.Visit{Subject: redirect.SubjectGroup, SubjectID: groupID})
	_ = r.store.RecordGroupVisit(ctx, groupID, time.Now())
}

func (r *syncRecorder) RecordRecordVisit(ctx context.Context, recordID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, redirect.Visit{Subject: redirect.SubjectRecord, SubjectID: recordID})
	_ = r.store.RecordRecordVisit(ctx, recordID, time.Now())
}

func (r *syncRecorder) Calls() []redirect.Visit {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]redirect.Visit(nil), r.calls...)
}

// failingRepository fails every lookup.
type failingRepository struct{}

func (failingRepository) GroupIDForDomain(context.Context, string) (int64, error) {
	return 0, errStoreDown
}

func (failingRepository) ActiveRecord(context.Context, *int64, string) (*redirect.ResolvedTarget, error) {
	return nil, errStoreDown
}

func (failingRepository) GroupDefault(context.Context, int64) (*redirect.ResolvedTarget, error) {
	return nil, errStoreDown
}

func (failingRepository) SystemDefault(context.Context) (*redirect.ResolvedTarget, error) {
	return nil, errStoreDown
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache unreachable")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache unreachable")
}

func (brokenCache) Remove(context.Context, string) error {
	return errors.New("cache unreachable")
}
