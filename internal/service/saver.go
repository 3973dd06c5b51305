package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rentmatch/internal/logger"
	"rentmatch/internal/model"

	"go.uber.org/zap"
)

// ErrMutationInFlight is returned when a save and an unsave race for the same pair
var ErrMutationInFlight = errors.New("saved property: opposite mutation in flight")

// SavedPropertyStore persists (user, property) bookmarks
type SavedPropertyStore interface {
	SaveProperty(ctx context.Context, userID, propertyID string) error
	UnsaveProperty(ctx context.Context, userID, propertyID string) error
	IsSaved(ctx context.Context, userID, propertyID string) (bool, error)
	ListSaved(ctx context.Context, userID string) ([]model.SavedProperty, error)
}

// SaveState is the lifecycle of one (user, property) pair
type SaveState int

const (
	StateIdle SaveState = iota
	StateSaving
	StateSaved
	StateUnsaving
	StateFailed
)

func (s SaveState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSaving:
		return "saving"
	case StateSaved:
		return "saved"
	case StateUnsaving:
		return "unsaving"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("SaveState(%d)", int(s))
	}
}

type saveKey struct {
	userID     string
	propertyID string
}

// saveCall is one store mutation in flight. done closes when err is set.
type saveCall struct {
	state SaveState
	done  chan struct{}
	err   error
}

// SaveCoordinator serializes save and unsave mutations so that at most one is
// in flight per (user, property). Duplicate requests wait on the in-flight call.
// Only in-flight pairs are tracked; settled pairs are answered by the store.
type SaveCoordinator struct {
	store  SavedPropertyStore
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[saveKey]*saveCall
}

// NewSaveCoordinator creates a coordinator over store
func NewSaveCoordinator(store SavedPropertyStore, lg *zap.Logger) *SaveCoordinator {
	return &SaveCoordinator{
		store:    store,
		logger:   logger.OrNop(lg),
		inflight: make(map[saveKey]*saveCall),
	}
}

// State reports Saving or Unsaving while a mutation is in flight, otherwise Idle
func (c *SaveCoordinator) State(userID, propertyID string) SaveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if call, ok := c.inflight[saveKey{userID, propertyID}]; ok {
		return call.state
	}
	return StateIdle
}

// Save moves the pair Idle → Saving → Saved, or to Failed on a store error.
// The store write is idempotent, so saving a saved pair leaves it Saved.
func (c *SaveCoordinator) Save(ctx context.Context, userID, propertyID string) (SaveState, error) {
	return c.mutate(ctx, saveKey{userID, propertyID}, StateSaving, StateSaved)
}

// Unsave moves the pair Saved → Unsaving → Idle, or to Failed on a store error
func (c *SaveCoordinator) Unsave(ctx context.Context, userID, propertyID string) (SaveState, error) {
	return c.mutate(ctx, saveKey{userID, propertyID}, StateUnsaving, StateIdle)
}

func (c *SaveCoordinator) mutate(ctx context.Context, key saveKey, pending, target SaveState) (SaveState, error) {
	if key.userID == "" || key.propertyID == "" {
		return StateFailed, errors.New("saved property: user id and property id are required")
	}

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		if call.state != pending {
			return call.state, ErrMutationInFlight
		}
		c.logger.Debug("coalesced duplicate mutation",
			zap.String("user_id", key.userID),
			zap.String("property_id", key.propertyID),
		)
		select {
		case <-call.done:
		case <-ctx.Done():
			return pending, ctx.Err()
		}
		return settle(key, pending, target, call.err)
	}
	call := &saveCall{state: pending, done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	// The store write outlives any single caller's cancellation.
	callCtx := context.WithoutCancel(ctx)
	var err error
	if pending == StateSaving {
		err = c.store.SaveProperty(callCtx, key.userID, key.propertyID)
	} else {
		err = c.store.UnsaveProperty(callCtx, key.userID, key.propertyID)
	}

	c.mu.Lock()
	delete(c.inflight, key)
	call.err = err
	close(call.done)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("saved property mutation failed",
			zap.String("user_id", key.userID),
			zap.String("property_id", key.propertyID),
			zap.String("op", pending.String()),
			zap.Error(err),
		)
	}
	return settle(key, pending, target, err)
}

func settle(key saveKey, pending, target SaveState, err error) (SaveState, error) {
	if err != nil {
		return StateFailed, fmt.Errorf("%s %s for %s: %w", pending, key.propertyID, key.userID, err)
	}
	return target, nil
}

// IsSaved reports whether the pair is saved. An in-flight save counts as saved.
func (c *SaveCoordinator) IsSaved(ctx context.Context, userID, propertyID string) (bool, error) {
	switch c.State(userID, propertyID) {
	case StateSaving, StateSaved:
		return true, nil
	case StateUnsaving:
		return false, nil
	}
	saved, err := c.store.IsSaved(ctx, userID, propertyID)
	if err != nil {
		return false, fmt.Errorf("check saved property: %w", err)
	}
	return saved, nil
}

// ListSaved returns the user's saved properties, newest first
func (c *SaveCoordinator) ListSaved(ctx context.Context, userID string) ([]model.SavedProperty, error) {
	saved, err := c.store.ListSaved(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved properties: %w", err)
	}
	return saved, nil
}
