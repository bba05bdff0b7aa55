package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/statestore"
)

// Guard deduplicates retried operations: the first execution of a keyed
// operation stores its result, and every duplicate within the TTL gets that
// stored result back verbatim instead of a recompute. Near-simultaneous
// duplicates collapse onto a single in-flight execution.
type Guard struct {
	log   *logger.Logger
	store statestore.Store
	ttl   time.Duration
	group singleflight.Group
}

func NewGuard(baseLog *logger.Logger, store statestore.Store, ttl time.Duration) *Guard {
	return &Guard{
		log:   baseLog.With("component", "IdempotencyGuard"),
		store: store,
		ttl:   ttl,
	}
}

/*
ExecuteOnce runs compute at most once per (operation, params) key within the
record TTL.

Key derivation hashes the operation name plus a canonical serialization of
params: params are marshaled to JSON and re-marshaled through a generic
value, which sorts object keys, so two call sites passing the same fields in
different order agree on the key.

The result is stored and returned as raw JSON so duplicates get the first
caller's bytes, never a recompute.
*/
func (g *Guard) ExecuteOnce(ctx context.Context, operation string, params any, compute func(ctx context.Context) (any, error)) (json.RawMessage, error) {
	key, err := OperationKey(operation, params)
	if err != nil {
		return nil, err
	}

	if stored, ok, err := g.store.GetIdempotency(ctx, key); err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	} else if ok {
		g.log.Debug("Duplicate operation served from record", "operation", operation, "key", key)
		return json.RawMessage(stored), nil
	}

	result, err, _ := g.group.Do(key, func() (any, error) {
		// Double-check inside the flight: another process may have written
		// the record between our lookup and now.
		if stored, ok, err := g.store.GetIdempotency(ctx, key); err == nil && ok {
			return json.RawMessage(stored), nil
		}
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode idempotency result: %w", err)
		}
		if err := g.store.PutIdempotency(ctx, key, raw, g.ttl); err != nil {
			// The operation itself succeeded; a failed record write only
			// weakens dedup, it must not fail the caller.
			g.log.Warn("Failed to store idempotency record", "operation", operation, "error", err)
		}
		return json.RawMessage(raw), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

// OperationKey derives the stable dedup key for an operation + params pair.
func OperationKey(operation string, params any) (string, error) {
	canonical, err := canonicalJSON(params)
	if err != nil {
		return "", fmt.Errorf("canonicalize params: %w", err)
	}
	h := xxhash.New()
	_, _ = h.WriteString(operation)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(canonical)
	return operation + ":" + strconv.FormatUint(h.Sum64(), 16), nil
}

// canonicalJSON produces an order-independent serialization: a round trip
// through a generic value makes encoding/json emit object keys sorted.
func canonicalJSON(params any) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
