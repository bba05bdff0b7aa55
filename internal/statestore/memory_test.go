package statestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// Rotation reads and writes must refuse a cancelled context, so a save that
// outlives its deadline can never commit behind a rollback.
func TestRotationOpsHonorCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	state := &types.RotationState{
		CreatorID: "creator-1",
		Lifecycle: types.LifecyclePatternActive,
		Pattern:   []string{"a", "b"},
		UpdatedAt: time.Now(),
	}
	if err := store.SaveRotation(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	late := *state
	late.UpdatedAt = state.UpdatedAt.Add(time.Hour)
	if err := store.SaveRotation(cancelled, &late); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from save, got %v", err)
	}
	if _, err := store.LoadRotation(cancelled, "creator-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from load, got %v", err)
	}

	got, err := store.LoadRotation(ctx, "creator-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.UpdatedAt.Equal(state.UpdatedAt) {
		t.Fatalf("cancelled save committed: %v vs %v", got.UpdatedAt, state.UpdatedAt)
	}
}
