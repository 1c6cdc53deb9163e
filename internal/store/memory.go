package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/serroba/go-redirector/internal/redirect"
)

// MemoryStore is an in-memory record store implementing redirect.Repository
// and redirect.VisitStore.
type MemoryStore struct {
	mu           sync.RWMutex
	domains      map[string]redirect.Domain
	groups       map[int64]*redirect.Group
	records      map[int64]*redirect.Record
	groupVisits  []redirect.Visit
	recordVisits []redirect.Visit
	queries      atomic.Int64
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		domains: make(map[string]redirect.Domain),
		groups:  make(map[int64]*redirect.Group),
		records: make(map[int64]*redirect.Record),
	}
}

// PutDomain adds or replaces a domain.
func (m *MemoryStore) PutDomain(domain redirect.Domain) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.domains[domain.Name] = domain
}

// PutGroup adds or replaces a group.
func (m *MemoryStore) PutGroup(group redirect.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.groups[group.ID] = &group
}

// PutRecord adds or replaces a record.
func (m *MemoryStore) PutRecord(record redirect.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.ID] = &record
}

// Group returns a copy of the group with the given id.
func (m *MemoryStore) Group(id int64) (redirect.Group, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[id]
	if !ok {
		return redirect.Group{}, false
	}

	return *g, true
}

// Record returns a copy of the record with the given id.
func (m *MemoryStore) Record(id int64) (redirect.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return redirect.Record{}, false
	}

	return *r, true
}

// Visits returns the audit rows appended for a subject.
func (m *MemoryStore) Visits(subject redirect.Subject, id int64) []redirect.Visit {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source := m.recordVisits
	if subject == redirect.SubjectGroup {
		source = m.groupVisits
	}

	var out []redirect.Visit

	for _, v := range source {
		if v.SubjectID == id {
			out = append(out, v)
		}
	}

	return out
}

// Queries returns how many read queries have been served.
func (m *MemoryStore) Queries() int64 {
	return m.queries.Load()
}

func (m *MemoryStore) GroupIDForDomain(_ context.Context, domain string) (int64, error) {
	m.queries.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.domains[domain]
	if !ok {
		return 0, redirect.ErrNotFound
	}

	return d.GroupID, nil
}

func (m *MemoryStore) ActiveRecord(_ context.Context, groupID *int64, slug string) (*redirect.ResolvedTarget, error) {
	m.queries.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		r := m.records[id]
		if r.IsActive && r.Slug == slug && sameGroup(r.GroupID, groupID) {
			return &redirect.ResolvedTarget{ID: r.ID, Link: redirect.LinkOf(r.Link)}, nil
		}
	}

	return nil, redirect.ErrNotFound
}

func (m *MemoryStore) GroupDefault(_ context.Context, groupID int64) (*redirect.ResolvedTarget, error) {
	m.queries.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[groupID]
	if !ok {
		return nil, redirect.ErrNotFound
	}

	return &redirect.ResolvedTarget{ID: g.ID, Link: redirect.LinkOf(g.DefaultLink)}, nil
}

func (m *MemoryStore) SystemDefault(_ context.Context) (*redirect.ResolvedTarget, error) {
	m.queries.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *redirect.Group

	for _, g := range m.groups {
		if g.IsDefault && (found == nil || g.ID < found.ID) {
			found = g
		}
	}

	if found == nil {
		return nil, redirect.ErrNotFound
	}

	return &redirect.ResolvedTarget{ID: found.ID, Link: redirect.LinkOf(found.DefaultLink)}, nil
}

func (m *MemoryStore) RecordGroupVisit(_ context.Context, groupID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[groupID]
	if !ok {
		return redirect.ErrNotFound
	}

	g.Visits++
	g.LatestVisit = &at
	m.groupVisits = append(m.groupVisits, redirect.Visit{
		Subject:   redirect.SubjectGroup,
		SubjectID: groupID,
		VisitedAt: at,
	})

	return nil
}

func (m *MemoryStore) RecordRecordVisit(_ context.Context, recordID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[recordID]
	if !ok {
		return redirect.ErrNotFound
	}

	r.Visits++
	r.LatestVisit = &at
	m.recordVisits = append(m.recordVisits, redirect.Visit{
		Subject:   redirect.SubjectRecord,
		SubjectID: recordID,
		VisitedAt: at,
	})

	return nil
}

func sameGroup(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

// Compile-time checks.
var (
	_ redirect.Repository = (*MemoryStore)(nil)
	_ redirect.VisitStore = (*MemoryStore)(nil)
)
