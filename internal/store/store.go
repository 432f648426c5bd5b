// Package store keeps an in-memory snapshot of one remote collection.
//
// Refreshes issued within one generation share a single List request. Every
// issued request carries a sequence number and a response is applied only when
// it is newer than the last applied one, so a slow response for an older
// request can never overwrite fresher data. Local mutations and Invalidate
// start a new generation.
package store

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/intranet/internal/domain"
)

// Status is the request status of a store.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// ErrClosed is returned by Refresh and Load after Close.
var ErrClosed = errors.New("store closed")

// Lister fetches a full collection.
type Lister interface {
	List(ctx context.Context) ([]domain.Resource, error)
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Kind      domain.Kind
	Items     []domain.Resource
	Status    Status
	LastError error
	Loaded    bool
}

// Find returns the item with the given id.
func (s Snapshot) Find(id int64) (domain.Resource, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.Resource{}, false
}

// Store is safe for concurrent use.
type Store struct {
	kind   domain.Kind
	lister Lister
	logger *zap.Logger
	group  singleflight.Group

	mu         sync.RWMutex
	items      []domain.Resource
	lastErr    error
	loaded     bool
	stale      bool
	closed     bool
	generation uint64
	issued     uint64
	applied    uint64
}

// New constructs an empty store.
func New(kind domain.Kind, lister Lister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kind: kind, lister: lister, logger: logger}
}

// Kind of the stored collection.
func (s *Store) Kind() domain.Kind {
	return s.kind
}

// Refresh fetches the collection and replaces the items wholesale. Callers
// arriving while a request of the current generation is in flight join it.
// A caller whose context ends stops waiting; the request itself completes.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	closed, gen := s.closed, s.generation
	s.mu.RUnlock()
	if closed {
		return s.Snapshot(), ErrClosed
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return nil, s.fetch(fetchCtx, gen)
	})

	select {
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	case res := <-ch:
		return s.Snapshot(), res.Err
	}
}

// Load returns the cached snapshot, fetching when the store was never loaded
// or has been invalidated since.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	fresh := s.loaded && !s.stale
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return s.Snapshot(), ErrClosed
	}
	if fresh {
		return s.Snapshot(), nil
	}
	return s.Refresh(ctx)
}

func (s *Store) fetch(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	items, err := s.lister.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if seq <= s.applied {
		s.logger.Debug("discarding superseded list response",
			zap.String("kind", string(s.kind)),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", s.applied),
		)
		return nil
	}
	s.applied = seq
	if err != nil {
		s.lastErr = err
		return err
	}
	s.items = cloneAll(items)
	s.lastErr = nil
	s.loaded = true
	if gen == s.generation {
		s.stale = false
	}
	return nil
}

// Invalidate marks the snapshot stale and starts a new generation.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
	s.generation++
}

// Mutate applies a confirmed server-side change to one item. It reports
// whether the item was present.
func (s *Store) Mutate(id int64, update func(*domain.Resource)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			item := s.items[i].Clone()
			update(&item)
			item.ID = id
			s.items[i] = item
			s.supersedeLocked()
			return true
		}
	}
	return false
}

// Upsert replaces the item with res.ID or appends it.
func (s *Store) Upsert(res domain.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res = res.Clone()
	s.supersedeLocked()
	for i := range s.items {
		if s.items[i].ID == res.ID {
			s.items[i] = res
			return
		}
	}
	s.items = append(s.items, res)
}

// Remove drops the item with the given id.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			s.supersedeLocked()
			return true
		}
	}
	return false
}

// supersedeLocked makes every request issued so far obsolete.
func (s *Store) supersedeLocked() {
	s.applied = s.issued
	s.generation++
}

// Close detaches the store from its consumer. Results of requests still in
// flight are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Kind:      s.kind,
		Items:     cloneAll(s.items),
		Status:    s.statusLocked(),
		LastError: s.lastErr,
		Loaded:    s.loaded,
	}
}

func (s *Store) statusLocked() Status {
	switch {
	case s.issued > s.applied && !s.closed:
		return StatusLoading
	case s.lastErr != nil:
		return StatusError
	default:
		return StatusIdle
	}
}

func cloneAll(items []domain.Resource) []domain.Resource {
	out := make([]domain.Resource, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
