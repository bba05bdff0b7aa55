package statestore

import (
	"context"
	"sync"
	"time"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

type idemRecord struct {
	result    []byte
	expiresAt time.Time
}

// MemoryStore is the in-process Store used for redis-less runs and tests.
// Hooks let tests inject failures on specific operations.
type MemoryStore struct {
	mu        sync.Mutex
	rotations map[string]*types.RotationState
	idem      map[string]idemRecord
	locks     map[string]*sync.Mutex

	now func() time.Time

	// FailSaveRotation, when set, is consulted before every rotation save.
	FailSaveRotation func(creatorID string) error
	// FailLoadRotation, when set, is consulted before every rotation load.
	FailLoadRotation func(creatorID string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rotations: map[string]*types.RotationState{},
		idem:      map[string]idemRecord{},
		locks:     map[string]*sync.Mutex{},
		now:       time.Now,
	}
}

func (s *MemoryStore) LoadRotation(ctx context.Context, creatorID string) (*types.RotationState, error) {
	s.mu.Lock()
	fail := s.FailLoadRotation
	state, ok := s.rotations[creatorID]
	s.mu.Unlock()
	if fail != nil {
		if err := fail(creatorID); err != nil {
			return nil, err
		}
	}
	// Honor cancellation the way the redis-backed store does.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryStore) SaveRotation(ctx context.Context, state *types.RotationState) error {
	s.mu.Lock()
	fail := s.FailSaveRotation
	s.mu.Unlock()
	if fail != nil {
		if err := fail(state.CreatorID); err != nil {
			return err
		}
	}
	// A save racing a cancelled deadline must never commit.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotations[state.CreatorID] = state.Clone()
	return nil
}

func (s *MemoryStore) GetIdempotency(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.idem[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(rec.expiresAt) {
		// Lazy purge: expired records die on the lookup that finds them.
		delete(s.idem, key)
		return nil, false, nil
	}
	return rec.result, true, nil
}

func (s *MemoryStore) PutIdempotency(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idem[key] = idemRecord{result: result, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) WithExclusive(ctx context.Context, creatorID string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	lock, ok := s.locks[creatorID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[creatorID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// SetClock overrides the time source, used by expiry tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
