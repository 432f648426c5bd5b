package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/intranet/internal/domain"
)

type listResult struct {
	items []domain.Resource
	err   error
}

// gatedLister blocks each List call until the test releases it.
type gatedLister struct {
	calls   atomic.Int32
	started chan int
	release []chan listResult
}

func newGatedLister(n int) *gatedLister {
	l := &gatedLister{started: make(chan int, n)}
	for i := 0; i < n; i++ {
		l.release = append(l.release, make(chan listResult, 1))
	}
	return l
}

func (l *gatedLister) List(context.Context) ([]domain.Resource, error) {
	n := int(l.calls.Add(1)) - 1
	l.started <- n
	res := <-l.release[n]
	return res.items, res.err
}

type staticLister struct {
	calls atomic.Int32
	items []domain.Resource
	err   error
}

func (l *staticLister) List(context.Context) ([]domain.Resource, error) {
	l.calls.Add(1)
	return l.items, l.err
}

func asset(id int64, name string) domain.Resource {
	return domain.Resource{ID: id, Status: domain.StatusAssetIdle, Fields: domain.Fields{"name": name}}
}

func names(items []domain.Resource) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Fields["name"].(string))
	}
	return out
}

func TestRefreshReplacesItems(t *testing.T) {
	lister := &staticLister{items: []domain.Resource{asset(1, "노트북"), asset(2, "모니터")}}
	s := New(domain.KindAsset, lister, nil)

	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.True(t, snap.Loaded)
	assert.Equal(t, []string{"노트북", "모니터"}, names(snap.Items))

	lister.items = []domain.Resource{asset(3, "프린터")}
	snap, err = s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"프린터"}, names(snap.Items))
}

func TestRefreshErrorKeepsItems(t *testing.T) {
	lister := &staticLister{items: []domain.Resource{asset(1, "노트북")}}
	s := New(domain.KindAsset, lister, nil)
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	lister.err = errors.New("offline")
	snap, err := s.Refresh(context.Background())
	assert.EqualError(t, err, "offline")
	assert.Equal(t, StatusError, snap.Status)
	assert.EqualError(t, snap.LastError, "offline")
	assert.Len(t, snap.Items, 1)

	lister.err = nil
	snap, err = s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.NoError(t, snap.LastError)
}

func TestConcurrentRefreshesAreCoalesced(t *testing.T) {
	lister := newGatedLister(1)
	s := New(domain.KindAsset, lister, nil)

	var wg sync.WaitGroup
	refresh := func() {
		defer wg.Done()
		_, err := s.Refresh(context.Background())
		assert.NoError(t, err)
	}

	wg.Add(1)
	go refresh()
	<-lister.started
	assert.Equal(t, StatusLoading, s.Snapshot().Status)

	wg.Add(2)
	go refresh()
	go refresh()
	time.Sleep(50 * time.Millisecond)

	lister.release[0] <- listResult{items: []domain.Resource{asset(1, "노트북")}}
	wg.Wait()

	assert.Equal(t, int32(1), lister.calls.Load())
	assert.Equal(t, []string{"노트북"}, names(s.Snapshot().Items))
}

func TestLateOlderResponseIsDiscarded(t *testing.T) {
	lister := newGatedLister(2)
	s := New(domain.KindAsset, lister, nil)

	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		_, _ = s.Refresh(context.Background())
	}()
	<-lister.started

	s.Invalidate()

	doneB := make(chan struct{})
	go func() {
		defer close(doneB)
		_, _ = s.Refresh(context.Background())
	}()
	<-lister.started

	lister.release[1] <- listResult{items: []domain.Resource{asset(2, "B")}}
	<-doneB
	lister.release[0] <- listResult{items: []domain.Resource{asset(1, "A")}}
	<-doneA

	snap := s.Snapshot()
	assert.Equal(t, []string{"B"}, names(snap.Items))
	assert.Equal(t, StatusIdle, snap.Status)
}

func TestMutationSupersedesInFlightRefresh(t *testing.T) {
	lister := newGatedLister(1)
	s := New(domain.KindAsset, lister, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Refresh(context.Background())
	}()
	<-lister.started

	s.Upsert(asset(9, "신규"))
	lister.release[0] <- listResult{items: []domain.Resource{asset(1, "old")}}
	<-done

	assert.Equal(t, []string{"신규"}, names(s.Snapshot().Items))
}

func TestMutateUpsertRemove(t *testing.T) {
	lister := &staticLister{items: []domain.Resource{asset(1, "노트북"), asset(2, "모니터")}}
	s := New(domain.KindAsset, lister, nil)
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	ok := s.Mutate(1, func(r *domain.Resource) {
		r.Status = domain.StatusAssetInUse
		r.ID = 100
	})
	require.True(t, ok)
	item, found := s.Snapshot().Find(1)
	require.True(t, found)
	assert.Equal(t, domain.StatusAssetInUse, item.Status)

	assert.False(t, s.Mutate(42, func(*domain.Resource) {}))

	s.Upsert(asset(2, "모니터2"))
	s.Upsert(asset(3, "프린터"))
	assert.Equal(t, []string{"노트북", "모니터2", "프린터"}, names(s.Snapshot().Items))

	assert.True(t, s.Remove(2))
	assert.False(t, s.Remove(2))
	assert.Equal(t, []string{"노트북", "프린터"}, names(s.Snapshot().Items))
}

func TestSnapshotIsACopy(t *testing.T) {
	lister := &staticLister{items: []domain.Resource{asset(1, "노트북")}}
	s := New(domain.KindAsset, lister, nil)
	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)

	snap.Items[0].Fields["name"] = "changed"
	assert.Equal(t, []string{"노트북"}, names(s.Snapshot().Items))
	lister.items[0].Fields["name"] = "changed again"
	assert.Equal(t, []string{"노트북"}, names(s.Snapshot().Items))
}

func TestLoadUsesCacheUntilInvalidated(t *testing.T) {
	lister := &staticLister{items: []domain.Resource{asset(1, "노트북")}}
	s := New(domain.KindAsset, lister, nil)

	_, err := s.Load(context.Background())
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), lister.calls.Load())

	s.Invalidate()
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), lister.calls.Load())
}

func TestCloseIgnoresLateResults(t *testing.T) {
	lister := newGatedLister(1)
	s := New(domain.KindAsset, lister, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Refresh(context.Background())
	}()
	<-lister.started

	s.Close()
	lister.release[0] <- listResult{items: []domain.Resource{asset(1, "late")}}
	<-done

	assert.Empty(t, s.Snapshot().Items)
	_, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCancelledCallerStopsWaiting(t *testing.T) {
	lister := newGatedLister(1)
	s := New(domain.KindAsset, lister, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Refresh(ctx)
		errCh <- err
	}()
	<-lister.started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	lister.release[0] <- listResult{items: []domain.Resource{asset(1, "노트북")}}
	assert.Eventually(t, func() bool {
		return s.Snapshot().Loaded
	}, time.Second, 5*time.Millisecond)
}
