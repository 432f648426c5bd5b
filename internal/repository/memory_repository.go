package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/intranet/internal/domain"
)

type memoryKey struct {
	kind domain.Kind
	id   int64
}

// MemoryStore keeps resources and history in process memory. It backs the
// development server when no Postgres DSN is configured, and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	nextEntry int64
	resources map[memoryKey]domain.Resource
	history   map[memoryKey][]domain.HistoryEntry
	now       func() time.Time
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources: make(map[memoryKey]domain.Resource),
		history:   make(map[memoryKey][]domain.HistoryEntry),
		now:       time.Now,
	}
}

// Resources returns the store as a ResourceRepository.
func (m *MemoryStore) Resources() ResourceRepository {
	return memoryResources{m}
}

// History returns the store as a HistoryRepository.
func (m *MemoryStore) History() HistoryRepository {
	return memoryHistory{m}
}

type memoryResources struct{ m *MemoryStore }

func (r memoryResources) List(_ context.Context, kind domain.Kind) ([]domain.Resource, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	result := []domain.Resource{}
	for key, res := range r.m.resources {
		if key.kind == kind {
			result = append(result, res.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r memoryResources) GetByID(_ context.Context, kind domain.Kind, id int64) (*domain.Resource, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	res, ok := r.m.resources[memoryKey{kind, id}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := res.Clone()
	return &out, nil
}

func (r memoryResources) Create(_ context.Context, kind domain.Kind, res *domain.Resource) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.nextID++
	res.ID = r.m.nextID
	r.m.resources[memoryKey{kind, res.ID}] = res.Clone()
	return nil
}

func (r memoryResources) Update(_ context.Context, kind domain.Kind, res *domain.Resource) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := memoryKey{kind, res.ID}
	if _, ok := r.m.resources[key]; !ok {
		return pgx.ErrNoRows
	}
	r.m.resources[key] = res.Clone()
	return nil
}

func (r memoryResources) Delete(_ context.Context, kind domain.Kind, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := memoryKey{kind, id}
	if _, ok := r.m.resources[key]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.m.resources, key)
	return nil
}

type memoryHistory struct{ m *MemoryStore }

func (h memoryHistory) Create(_ context.Context, kind domain.Kind, entry *domain.HistoryEntry) error {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	key := memoryKey{kind, entry.ResourceID}
	if _, ok := h.m.resources[key]; !ok {
		return pgx.ErrNoRows
	}
	h.m.nextEntry++
	entry.ID = h.m.nextEntry
	if entry.Timestamp.IsZero() {
		entry.Timestamp = h.m.now().UTC()
	}
	h.m.history[key] = append(h.m.history[key], *entry)
	return nil
}

func (h memoryHistory) ListByResource(_ context.Context, kind domain.Kind, resourceID int64) ([]domain.HistoryEntry, error) {
	h.m.mu.RLock()
	defer h.m.mu.RUnlock()
	entries := h.m.history[memoryKey{kind, resourceID}]
	return append([]domain.HistoryEntry{}, entries...), nil
}
