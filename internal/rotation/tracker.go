package rotation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/statestore"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// Rotation decision day: exactly on day 3 the tracker makes a single seeded
// rotate-or-hold decision; from day 4 on the rotation is forced.
const (
	decisionDay  = 3
	forcedRotate = 4
)

// shuffleAttempts bounds how often a shuffle is re-rolled before falling back
// to a reversal.
const shuffleAttempts = 8

// Tracker owns the per-creator content-style rotation state machine. All
// state lives in the store; the tracker itself is stateless and shared.
type Tracker struct {
	log     *logger.Logger
	store   statestore.Store
	catalog *Catalog
}

func NewTracker(baseLog *logger.Logger, store statestore.Store, catalog *Catalog) *Tracker {
	if catalog == nil {
		catalog = NewDefaultCatalog()
	}
	return &Tracker{
		log:     baseLog.With("component", "RotationTracker"),
		store:   store,
		catalog: catalog,
	}
}

// Load returns the current persisted state, or apperr.ErrNotFound.
func (t *Tracker) Load(ctx context.Context, creatorID string) (*types.RotationState, error) {
	return t.store.LoadRotation(ctx, creatorID)
}

// Restore writes back a previously captured snapshot. Compensation path.
func (t *Tracker) Restore(ctx context.Context, snapshot *types.RotationState) error {
	if snapshot == nil {
		return fmt.Errorf("nil rotation snapshot")
	}
	return t.store.SaveRotation(ctx, snapshot)
}

/*
Advance moves a creator's rotation one day forward.

Behavior by lifecycle:
  - No state yet: seed a fresh pattern and enter PatternActive.
  - Error: rejected with StateError; only Reseed leaves the error state.
  - PatternExhausted: no-op until reseeded.
  - PatternActive, day < 3: only the day counter moves.
  - PatternActive, day == 3: one seeded rotate-or-hold decision, stable for
    the whole day (seeded by creator + pattern start, not wall clock).
  - PatternActive, day >= 4: rotation is forced.

Any persistence failure mid-transition parks the state machine in Error so
the next caller is forced to reseed instead of resuming from an unknown
on-disk state.
*/
func (t *Tracker) Advance(ctx context.Context, creatorID string, now time.Time) (*types.RotationState, error) {
	state, err := t.store.LoadRotation(ctx, creatorID)
	if errors.Is(err, apperr.ErrNotFound) {
		return t.Reseed(ctx, creatorID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("load rotation: %w", err)
	}

	switch state.Lifecycle {
	case types.LifecycleError:
		return nil, &apperr.StateError{CreatorID: creatorID, State: string(state.Lifecycle)}
	case types.LifecyclePatternExhausted:
		t.log.Warn("Rotation pattern pool exhausted, reseed required", "creator_id", creatorID)
		return state, nil
	case types.LifecyclePatternActive:
		// fall through
	default:
		// A non-resting state left behind means a prior run died mid-move.
		return nil, &apperr.StateError{CreatorID: creatorID, State: string(state.Lifecycle)}
	}

	days := daysBetween(state.PatternStartTime, now)
	if days < state.DaysOnPattern {
		days = state.DaysOnPattern
	}

	switch {
	case days < decisionDay:
		state.DaysOnPattern = days
		state.UpdatedAt = now
		return state, t.saveOrError(ctx, state)
	case days >= forcedRotate:
		return t.rotate(ctx, state, now)
	default:
		// Exactly on the decision day.
		r := seededRand(state.CreatorID, state.PatternStartTime, "day3-decision")
		if r.Float64() < 0.5 {
			state.DaysOnPattern = days
			state.UpdatedAt = now
			return state, t.saveOrError(ctx, state)
		}
		return t.rotate(ctx, state, now)
	}
}

// Reseed initializes (or re-initializes) a creator onto a fresh pattern.
// This is the only exit from Error and PatternExhausted.
func (t *Tracker) Reseed(ctx context.Context, creatorID string, now time.Time) (*types.RotationState, error) {
	names := t.catalog.Names()
	r := seededRand(creatorID, now.Truncate(24*time.Hour), "seed")
	name := names[r.Intn(len(names))]
	pattern, _ := t.catalog.Pattern(name)

	state := &types.RotationState{
		CreatorID: creatorID,
		Lifecycle: types.LifecycleInitializing,
	}
	if err := transition(state, types.LifecyclePatternActive); err != nil {
		return nil, err
	}
	state.Pattern = pattern
	state.PatternStartTime = now
	state.DaysOnPattern = 0
	state.UsedPatterns = []string{name}
	state.UpdatedAt = now

	t.log.Info("Seeded rotation pattern", "creator_id", creatorID, "pattern", name)
	return state, t.saveOrError(ctx, state)
}

// rotate runs PatternActive -> RotationPending -> Rotating and lands on a new
// pattern (or PatternExhausted).
func (t *Tracker) rotate(ctx context.Context, state *types.RotationState, now time.Time) (*types.RotationState, error) {
	if err := transition(state, types.LifecycleRotationPending); err != nil {
		return nil, err
	}
	if err := transition(state, types.LifecycleRotating); err != nil {
		return nil, err
	}

	next, sourceName := t.nextPattern(state)
	if next == nil {
		if err := transition(state, types.LifecyclePatternExhausted); err != nil {
			return nil, err
		}
		state.UpdatedAt = now
		t.log.Warn("All standard patterns used in window, marking exhausted", "creator_id", state.CreatorID)
		return state, t.saveOrError(ctx, state)
	}

	if err := transition(state, types.LifecyclePatternActive); err != nil {
		return nil, err
	}
	state.Pattern = next
	state.PatternStartTime = now
	state.DaysOnPattern = 0
	state.UpdatedAt = now
	if sourceName != "" {
		state.UsedPatterns = appendUsed(state.UsedPatterns, sourceName, len(t.catalog.Names()))
	}
	t.log.Info("Rotated onto new pattern", "creator_id", state.CreatorID, "source", sourceName, "pattern", state.Pattern)
	return state, t.saveOrError(ctx, state)
}

/*
nextPattern picks the replacement pattern with one of three methods, chosen
seeded-deterministically so reruns for the same creator and pattern window
agree: reverse the current pattern, shuffle it, or pick an unused standard
pattern. Returns (nil, "") when a fresh pattern was demanded but every
standard pattern has been used inside the trailing window.
*/
func (t *Tracker) nextPattern(state *types.RotationState) ([]string, string) {
	r := seededRand(state.CreatorID, state.PatternStartTime, "rotation-method")
	switch r.Intn(3) {
	case 0:
		return reversed(state.Pattern), ""
	case 1:
		if p := shuffled(state.Pattern, r); p != nil {
			return p, ""
		}
		return reversed(state.Pattern), ""
	default:
		unused := t.unusedNames(state.UsedPatterns)
		if len(unused) == 0 {
			return nil, ""
		}
		name := unused[r.Intn(len(unused))]
		p, _ := t.catalog.Pattern(name)
		return p, name
	}
}

func (t *Tracker) unusedNames(used []string) []string {
	seen := map[string]bool{}
	for _, name := range used {
		seen[name] = true
	}
	var out []string
	for _, name := range t.catalog.Names() {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// saveOrError persists the state; on failure the machine is parked in Error.
func (t *Tracker) saveOrError(ctx context.Context, state *types.RotationState) error {
	if err := t.store.SaveRotation(ctx, state); err != nil {
		t.log.Error("Rotation persistence failed, parking tracker in error state",
			"creator_id", state.CreatorID, "error", err)
		state.Lifecycle = types.LifecycleError
		if saveErr := t.store.SaveRotation(ctx, state); saveErr != nil {
			t.log.Error("Could not persist error state either", "creator_id", state.CreatorID, "error", saveErr)
		}
		return fmt.Errorf("persist rotation state: %w", err)
	}
	return nil
}

// StyleForSlot returns pattern[position mod len(pattern)].
func StyleForSlot(state *types.RotationState, position int) (string, error) {
	if state == nil {
		return "", fmt.Errorf("nil rotation state")
	}
	if state.Lifecycle == types.LifecycleError {
		return "", &apperr.StateError{CreatorID: state.CreatorID, State: string(state.Lifecycle)}
	}
	if len(state.Pattern) == 0 {
		return "", fmt.Errorf("rotation state for %s has no pattern", state.CreatorID)
	}
	if position < 0 {
		position = -position
	}
	return state.Pattern[position%len(state.Pattern)], nil
}

func daysBetween(start, now time.Time) int {
	if now.Before(start) {
		return 0
	}
	return int(now.Sub(start).Hours() / 24)
}

func reversed(p []string) []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[len(p)-1-i] = s
	}
	return out
}

// shuffled re-rolls until the permutation is structurally valid and differs
// from the input, or gives up after a bounded number of attempts.
func shuffled(p []string, r *rand.Rand) []string {
	for attempt := 0; attempt < shuffleAttempts; attempt++ {
		out := append([]string(nil), p...)
		r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		if ValidatePattern(out) == nil && !equal(out, p) {
			return out
		}
	}
	return nil
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func appendUsed(used []string, name string, window int) []string {
	used = append(used, name)
	if len(used) > window {
		used = used[len(used)-window:]
	}
	return used
}
