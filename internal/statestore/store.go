package statestore

import (
	"context"
	"time"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// Store is the narrow keyed-state interface behind rotation tracking and
// idempotency records. Implementations must be safe for concurrent use; the
// same logic runs whether creators are processed on one machine or many, so
// nothing here may rely on in-process globals.
type Store interface {
	// LoadRotation returns apperr.ErrNotFound when no state exists yet.
	LoadRotation(ctx context.Context, creatorID string) (*types.RotationState, error)
	SaveRotation(ctx context.Context, state *types.RotationState) error

	// GetIdempotency returns (result, true) for a live record, (nil, false)
	// when absent or expired. Expired records are purged on this lookup.
	GetIdempotency(ctx context.Context, key string) ([]byte, bool, error)
	PutIdempotency(ctx context.Context, key string, result []byte, ttl time.Duration) error

	// WithExclusive runs fn while holding the per-creator lock. Two saga runs
	// for the same creator must never interleave rotation writes.
	WithExclusive(ctx context.Context, creatorID string, fn func(ctx context.Context) error) error
}
