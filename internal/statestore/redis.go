package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

const (
	rotationKeyPrefix = "rotation:"
	idemKeyPrefix     = "idem:"
	lockKeyPrefix     = "lock:creator:"

	lockTTL       = 30 * time.Second
	lockRetryWait = 50 * time.Millisecond
)

// releaseScript deletes the lock only if we still own it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

type redisStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisStore(log *logger.Logger, rdb *goredis.Client) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisStore{
		log: log.With("service", "RedisStateStore"),
		rdb: rdb,
	}, nil
}

func (s *redisStore) LoadRotation(ctx context.Context, creatorID string) (*types.RotationState, error) {
	raw, err := s.rdb.Get(ctx, rotationKeyPrefix+creatorID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load rotation state: %w", err)
	}
	var state types.RotationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode rotation state: %w", err)
	}
	return &state, nil
}

func (s *redisStore) SaveRotation(ctx context.Context, state *types.RotationState) error {
	if state == nil || state.CreatorID == "" {
		return fmt.Errorf("rotation state requires a creator id")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode rotation state: %w", err)
	}
	if err := s.rdb.Set(ctx, rotationKeyPrefix+state.CreatorID, raw, 0).Err(); err != nil {
		return fmt.Errorf("save rotation state: %w", err)
	}
	return nil
}

func (s *redisStore) GetIdempotency(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, idemKeyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load idempotency record: %w", err)
	}
	return raw, true, nil
}

func (s *redisStore) PutIdempotency(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, idemKeyPrefix+key, result, ttl).Err(); err != nil {
		return fmt.Errorf("save idempotency record: %w", err)
	}
	return nil
}

// WithExclusive acquires a per-creator lock via SET NX PX, polling until the
// context expires. The token guard means a slow holder whose lease lapsed
// cannot release a lock someone else now owns.
func (s *redisStore) WithExclusive(ctx context.Context, creatorID string, fn func(ctx context.Context) error) error {
	key := lockKeyPrefix + creatorID
	token := uuid.NewString()
	for {
		ok, err := s.rdb.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire creator lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire creator lock: %w", ctx.Err())
		case <-time.After(lockRetryWait):
		}
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, s.rdb, []string{key}, token).Err(); err != nil {
			s.log.Warn("Failed to release creator lock", "creator_id", creatorID, "error", err)
		}
	}()
	return fn(ctx)
}
