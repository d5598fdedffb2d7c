// Package memory provides in-process implementations of the run repository and
// locker, used when Firestore is not configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

// Repository stores runs in a map
type Repository struct {
	mu         sync.RWMutex
	runs       map[types.RunID]*model.Run
	deliveries map[types.DeliveryID]types.RunID
}

// NewRepository creates an empty Repository
func NewRepository() *Repository {
	return &Repository{
		runs:       make(map[types.RunID]*model.Run),
		deliveries: make(map[types.DeliveryID]types.RunID),
	}
}

// PutRun stores a copy of run
func (r *Repository) PutRun(ctx context.Context, run *model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run.Clone()
	return nil
}

// GetRun returns a copy of the run, or nil if not found
func (r *Repository) GetRun(ctx context.Context, id types.RunID) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	return run.Clone(), nil
}

// ListRuns returns the newest runs first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*model.Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run.Clone())
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ClaimDelivery records the delivery unless it was seen before
func (r *Repository) ClaimDelivery(ctx context.Context, id types.DeliveryID, runID types.RunID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deliveries[id]; ok {
		return false, nil
	}
	r.deliveries[id] = runID
	return true, nil
}

// ReleaseDelivery forgets the delivery if runID claimed it
func (r *Repository) ReleaseDelivery(ctx context.Context, id types.DeliveryID, runID types.RunID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.deliveries[id]; ok && cur == runID {
		delete(r.deliveries, id)
	}
	return nil
}

type lockEntry struct {
	holder    types.RunID
	expiresAt time.Time
}

// Locker is a process-local lock table
type Locker struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

// NewLocker creates a Locker
func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

// Acquire takes the lock if it is free, expired, or already held by holder
func (l *Locker) Acquire(ctx context.Context, key string, holder types.RunID, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.locks[key]; ok && cur.holder != holder && now.Before(cur.expiresAt) {
		return false, nil
	}
	l.locks[key] = lockEntry{holder: holder, expiresAt: now.Add(ttl)}
	return true, nil
}

// Release frees the lock if holder owns it
func (l *Locker) Release(ctx context.Context, key string, holder types.RunID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.locks[key]; ok && cur.holder == holder {
		delete(l.locks, key)
	}
	return nil
}
