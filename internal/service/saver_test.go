package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rentmatch/internal/model"
)

type blockingSaveStore struct {
	release chan struct{}
	entered chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
	saves     atomic.Int32
	unsaves   atomic.Int32
	err       error

	mu    sync.Mutex
	saved map[string]bool
}

func newBlockingSaveStore(block bool) *blockingSaveStore {
	s := &blockingSaveStore{
		entered: make(chan struct{}, 16),
		saved:   make(map[string]bool),
	}
	if block {
		s.release = make(chan struct{})
	}
	return s
}

func (s *blockingSaveStore) enter() {
	n := s.active.Add(1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case s.entered <- struct{}{}:
	default:
	}
	if s.release != nil {
		<-s.release
	}
	s.active.Add(-1)
}

func (s *blockingSaveStore) SaveProperty(_ context.Context, userID, propertyID string) error {
	s.saves.Add(1)
	s.enter()
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.saved[userID+"/"+propertyID] = true
	s.mu.Unlock()
	return nil
}

func (s *blockingSaveStore) UnsaveProperty(_ context.Context, userID, propertyID string) error {
	s.unsaves.Add(1)
	s.enter()
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	delete(s.saved, userID+"/"+propertyID)
	s.mu.Unlock()
	return nil
}

func (s *blockingSaveStore) IsSaved(_ context.Context, userID, propertyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[userID+"/"+propertyID], nil
}

func (s *blockingSaveStore) ListSaved(_ context.Context, userID string) ([]model.SavedProperty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SavedProperty
	for k := range s.saved {
		out = append(out, model.SavedProperty{UserID: userID, PropertyID: k})
	}
	return out, nil
}

func TestSaveCoordinator_SaveUnsaveLifecycle(t *testing.T) {
	store := newBlockingSaveStore(false)
	c := NewSaveCoordinator(store, nil)
	ctx := context.Background()

	if got := c.State("u1", "p1"); got != StateIdle {
		t.Fatalf("initial state = %s", got)
	}

	state, err := c.Save(ctx, "u1", "p1")
	if err != nil || state != StateSaved {
		t.Fatalf("Save() = %s, %v", state, err)
	}
	if saved, _ := c.IsSaved(ctx, "u1", "p1"); !saved {
		t.Error("IsSaved after Save = false")
	}

	if got := c.State("u1", "p1"); got != StateIdle {
		t.Errorf("settled pair state = %s, want idle", got)
	}

	// Saving an already-saved pair leaves it saved.
	if state, err := c.Save(ctx, "u1", "p1"); err != nil || state != StateSaved {
		t.Errorf("second Save() = %s, %v", state, err)
	}
	if saved, _ := c.IsSaved(ctx, "u1", "p1"); !saved {
		t.Error("IsSaved after second Save = false")
	}

	state, err = c.Unsave(ctx, "u1", "p1")
	if err != nil || state != StateIdle {
		t.Fatalf("Unsave() = %s, %v", state, err)
	}
	if saved, _ := c.IsSaved(ctx, "u1", "p1"); saved {
		t.Error("IsSaved after Unsave = true")
	}
}

func TestSaveCoordinator_StoreFailure(t *testing.T) {
	store := newBlockingSaveStore(false)
	store.err = errors.New("write failed")
	c := NewSaveCoordinator(store, nil)

	state, err := c.Save(context.Background(), "u1", "p1")
	if err == nil || state != StateFailed {
		t.Fatalf("Save() = %s, %v; want failed", state, err)
	}
	if !errors.Is(err, store.err) {
		t.Errorf("error should wrap store error, got %v", err)
	}
	if c.State("u1", "p1") != StateIdle {
		t.Errorf("state after failure = %s, want idle", c.State("u1", "p1"))
	}

	// Failed pairs can be retried.
	store.err = nil
	if state, err := c.Save(context.Background(), "u1", "p1"); err != nil || state != StateSaved {
		t.Errorf("retry Save() = %s, %v", state, err)
	}
}

func TestSaveCoordinator_RequiresIDs(t *testing.T) {
	c := NewSaveCoordinator(newBlockingSaveStore(false), nil)
	if _, err := c.Save(context.Background(), "", "p1"); err == nil {
		t.Error("expected error for empty user id")
	}
	if _, err := c.Unsave(context.Background(), "u1", ""); err == nil {
		t.Error("expected error for empty property id")
	}
}

func TestSaveCoordinator_RapidDoubleClickCoalesces(t *testing.T) {
	store := newBlockingSaveStore(true)
	c := NewSaveCoordinator(store, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]SaveState, 5)
	errs := make([]error, 5)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.Save(ctx, "u1", "p1")
	}()
	<-store.entered

	if got := c.State("u1", "p1"); got != StateSaving {
		t.Fatalf("state while blocked = %s, want saving", got)
	}

	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Save(ctx, "u1", "p1")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	for i := range results {
		if errs[i] != nil || results[i] != StateSaved {
			t.Errorf("caller %d: %s, %v", i, results[i], errs[i])
		}
	}
	if store.maxActive.Load() != 1 {
		t.Errorf("max concurrent writes = %d, want 1", store.maxActive.Load())
	}
	if store.saves.Load() != 1 {
		t.Errorf("store saves = %d, want 1", store.saves.Load())
	}
}

func TestSaveCoordinator_RejectsOppositeMutationInFlight(t *testing.T) {
	store := newBlockingSaveStore(true)
	c := NewSaveCoordinator(store, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Save(ctx, "u1", "p1")
		done <- err
	}()
	<-store.entered

	state, err := c.Unsave(ctx, "u1", "p1")
	if !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("Unsave during save = %v, want ErrMutationInFlight", err)
	}
	if state != StateSaving {
		t.Errorf("reported state = %s, want saving", state)
	}
	if saved, _ := c.IsSaved(ctx, "u1", "p1"); !saved {
		t.Error("in-flight save should read as saved")
	}

	// Other pairs are unaffected.
	other := make(chan error, 1)
	go func() {
		_, err := c.Save(ctx, "u1", "p2")
		other <- err
	}()
	<-store.entered

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := <-other; err != nil {
		t.Fatalf("Save(p2) error = %v", err)
	}
	if store.unsaves.Load() != 0 {
		t.Errorf("rejected unsave reached the store")
	}
}

func TestSaveCoordinator_AlternatingMutationsNeverOverlap(t *testing.T) {
	store := newBlockingSaveStore(false)
	c := NewSaveCoordinator(store, nil)
	ctx := context.Background()

	const workers = 16
	const iterations = 2000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				var err error
				if (w+i)%2 == 0 {
					_, err = c.Save(ctx, "u", "p")
				} else {
					_, err = c.Unsave(ctx, "u", "p")
				}
				if err != nil && !errors.Is(err, ErrMutationInFlight) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if got := store.maxActive.Load(); got != 1 {
		t.Errorf("max concurrent store mutations for one pair = %d, want 1", got)
	}

	c.mu.Lock()
	tracked := len(c.inflight)
	c.mu.Unlock()
	if tracked != 0 {
		t.Errorf("settled pairs still tracked: %d", tracked)
	}
	if got := c.State("u", "p"); got != StateIdle {
		t.Errorf("state after settling = %s, want idle", got)
	}
}

func TestSaveCoordinator_ListSaved(t *testing.T) {
	store := newBlockingSaveStore(false)
	c := NewSaveCoordinator(store, nil)
	ctx := context.Background()

	_, _ = c.Save(ctx, "u1", "p1")
	_, _ = c.Save(ctx, "u1", "p2")

	saved, err := c.ListSaved(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSaved() error = %v", err)
	}
	if len(saved) != 2 {
		t.Errorf("ListSaved() = %d entries, want 2", len(saved))
	}
}

func TestSaveState_String(t *testing.T) {
	if StateUnsaving.String() != "unsaving" || SaveState(42).String() != "SaveState(42)" {
		t.Error("unexpected state names")
	}
}
