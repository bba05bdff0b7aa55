package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/resilience"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/rotation"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/statestore"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// Step names in execution order.
const (
	StepRotationUpdate     = "rotation_update"
	StepScheduleValidation = "schedule_validation"
	StepFollowupPlacement  = "followup_placement"
	StepTimingJitter       = "timing_jitter"
)

// Run is the draft a saga execution works on. Steps receive the current
// items and return the mutated set; the coordinator commits the mutation
// only after the step finished inside its deadline. A step that finishes
// late has its side effects undone before the saga reports, so a timed-out
// step never races a compensation.
type Run struct {
	SagaID       uuid.UUID
	CreatorID    string
	WeekStart    time.Time
	Items        []types.ScheduleItem
	Volume       types.VolumeConfig
	AllowNextDay bool
	Now          time.Time

	// Rotation is the advanced state committed by the rotation step; later
	// steps read it for style repair.
	Rotation *types.RotationState
}

// stepOutcome is what one step hands back: the next item set plus an undo
// action covering the step's external side effects (item restoration is the
// coordinator's job, recorded before the commit).
type stepOutcome struct {
	items    []types.ScheduleItem
	rotation *types.RotationState
	undo     func(ctx context.Context) error
}

type step struct {
	name string
	run  func(ctx context.Context, run *Run) (stepOutcome, error)
}

type compensation struct {
	step string
	undo func(ctx context.Context) error
}

// AuditSink receives terminal saga records, best-effort.
type AuditSink interface {
	RecordSaga(ctx context.Context, result types.SagaResult) error
}

// Coordinator executes the fixed step list that turns a draft schedule into
// a final one, as one compensable unit of work. State-store access runs
// behind the shared circuit breaker and idempotency guard; the whole run
// holds the per-creator exclusive scope so overlapping regenerations cannot
// corrupt rotation state.
type Coordinator struct {
	log     *logger.Logger
	tracker *rotation.Tracker
	breaker *resilience.Breaker
	guard   *resilience.Guard
	store   statestore.Store
	audit   AuditSink

	stepTimeout       time.Duration
	compensationGrace time.Duration
	allowNextDay      bool

	// Test seams: failpoint injects a failure before the named step runs;
	// onCompensate observes every compensation invocation.
	failpoint    func(stepName string) error
	onCompensate func(stepName string)
}

type CoordinatorConfig struct {
	StepTimeout time.Duration
	// CompensationGrace bounds how long a timed-out step's goroutine is
	// awaited so its side effects can be unwound.
	CompensationGrace time.Duration
	AllowNextDay      bool
}

func NewCoordinator(baseLog *logger.Logger, tracker *rotation.Tracker, breaker *resilience.Breaker, guard *resilience.Guard, store statestore.Store, audit AuditSink, cfg CoordinatorConfig) *Coordinator {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Second
	}
	if cfg.CompensationGrace <= 0 {
		cfg.CompensationGrace = cfg.StepTimeout
	}
	return &Coordinator{
		log:               baseLog.With("component", "TimingSagaCoordinator"),
		tracker:           tracker,
		breaker:           breaker,
		guard:             guard,
		store:             store,
		audit:             audit,
		stepTimeout:       cfg.StepTimeout,
		compensationGrace: cfg.CompensationGrace,
		allowNextDay:      cfg.AllowNextDay,
	}
}

/*
Execute mutates the draft through the four steps and reports the outcome.

Semantics:
  - Steps run strictly in order, each under the configured step timeout; a
    timeout is failure like any other.
  - A compensation is pushed only after its step succeeded. On any failure
    the stack is popped and run in strict reverse order; an undo that fails
    is recorded as a compensation error and the remaining undos still run.
  - The returned error is non-nil exactly when Status != Completed; the
    SagaResult carries the failed step name and all compensation errors.

On success the returned slice is the fully mutated schedule; on rollback the
caller gets the original draft back untouched.
*/
func (c *Coordinator) Execute(ctx context.Context, creatorID string, weekStart time.Time, draft []types.ScheduleItem, vol types.VolumeConfig) ([]types.ScheduleItem, types.SagaResult, error) {
	result := types.SagaResult{
		SagaID:    uuid.New(),
		CreatorID: creatorID,
		Status:    types.SagaPending,
		StartedAt: time.Now(),
	}
	run := &Run{
		SagaID:       result.SagaID,
		CreatorID:    creatorID,
		WeekStart:    weekStart,
		Items:        copyItems(draft),
		Volume:       vol,
		AllowNextDay: c.allowNextDay,
		Now:          time.Now(),
	}

	var execErr error
	lockErr := c.store.WithExclusive(ctx, creatorID, func(ctx context.Context) error {
		execErr = c.executeLocked(ctx, run, &result)
		return nil
	})
	result.CompletedAt = time.Now()
	if lockErr != nil {
		result.Status = types.SagaFailed
		result.Error = lockErr.Error()
		c.recordAudit(ctx, result)
		return draft, result, &apperr.SagaStepError{Step: "acquire_lock", Err: lockErr}
	}

	c.recordAudit(ctx, result)
	if execErr != nil {
		return draft, result, execErr
	}
	return run.Items, result, nil
}

func (c *Coordinator) executeLocked(ctx context.Context, run *Run, result *types.SagaResult) error {
	result.Status = types.SagaInProgress

	steps := []step{
		{StepRotationUpdate, c.stepRotationUpdate},
		{StepScheduleValidation, c.stepScheduleValidation},
		{StepFollowupPlacement, c.stepFollowupPlacement},
		{StepTimingJitter, c.stepTimingJitter},
	}

	var stack []compensation
	for _, s := range steps {
		outcome, err := c.runStep(ctx, s, run, result)
		if err != nil {
			c.log.Warn("Saga step failed, compensating",
				"saga_id", run.SagaID, "creator_id", run.CreatorID, "step", s.name, "error", err)
			result.FailedStep = s.name
			result.Error = err.Error()
			result.Status = types.SagaCompensating
			result.CompensationErrors = append(result.CompensationErrors, c.compensate(ctx, run, stack)...)
			result.Status = types.SagaRolledBack
			return &apperr.SagaStepError{Step: s.name, Err: err}
		}

		// Commit: record how to restore the pre-step items, then apply.
		prior := run.Items
		restore := func(context.Context) error {
			run.Items = prior
			return nil
		}
		sideEffectUndo := outcome.undo
		stack = append(stack, compensation{step: s.name, undo: func(ctx context.Context) error {
			var undoErr error
			if sideEffectUndo != nil {
				undoErr = sideEffectUndo(ctx)
			}
			_ = restore(ctx)
			return undoErr
		}})
		if outcome.items != nil {
			run.Items = outcome.items
		}
		if outcome.rotation != nil {
			run.Rotation = outcome.rotation
		}
		result.CompletedSteps = append(result.CompletedSteps, s.name)
	}

	result.Status = types.SagaCompleted
	return nil
}

// runStep executes one step inside its deadline and an otel span. If the
// deadline fires the outcome is never committed, so compensation sees a
// consistent draft; the abandoned goroutine is then awaited for the
// compensation grace and a late success has its undo run immediately, so no
// external side effect survives the rollback uncovered.
func (c *Coordinator) runStep(ctx context.Context, s step, run *Run, result *types.SagaResult) (stepOutcome, error) {
	if c.failpoint != nil {
		if err := c.failpoint(s.name); err != nil {
			return stepOutcome{}, err
		}
	}

	ctx, span := otel.Tracer("saga").Start(ctx, "saga."+s.name)
	span.SetAttributes(
		attribute.String("saga.id", run.SagaID.String()),
		attribute.String("creator.id", run.CreatorID),
	)
	defer span.End()

	stepCtx, cancel := context.WithTimeout(ctx, c.stepTimeout)
	defer cancel()

	type stepReturn struct {
		outcome stepOutcome
		err     error
	}
	done := make(chan stepReturn, 1)
	go func() {
		outcome, err := s.run(stepCtx, run)
		done <- stepReturn{outcome, err}
	}()
	select {
	case r := <-done:
		return r.outcome, r.err
	case <-stepCtx.Done():
		timeoutErr := stepCtx.Err()
		grace := time.NewTimer(c.compensationGrace)
		defer grace.Stop()
		select {
		case r := <-done:
			if r.err == nil && r.outcome.undo != nil {
				// The step applied its side effects after the deadline;
				// unwind them before the caller compensates earlier steps.
				if c.onCompensate != nil {
					c.onCompensate(s.name)
				}
				if undoErr := r.outcome.undo(ctx); undoErr != nil {
					c.log.Error("Undo of timed-out step failed",
						"saga_id", run.SagaID, "creator_id", run.CreatorID, "step", s.name, "error", undoErr)
					result.CompensationErrors = append(result.CompensationErrors, fmt.Sprintf("%s: %v", s.name, undoErr))
				}
			}
		case <-grace.C:
			c.log.Error("Timed-out step did not return within the compensation grace",
				"saga_id", run.SagaID, "creator_id", run.CreatorID, "step", s.name)
		}
		return stepOutcome{}, timeoutErr
	}
}

func (c *Coordinator) compensate(ctx context.Context, run *Run, stack []compensation) []string {
	var errs []string
	// Strict reverse order; a failed undo is recorded and skipped, never
	// allowed to block the undos beneath it.
	for i := len(stack) - 1; i >= 0; i-- {
		comp := stack[i]
		if c.onCompensate != nil {
			c.onCompensate(comp.step)
		}
		if err := comp.undo(ctx); err != nil {
			c.log.Error("Compensation failed",
				"saga_id", run.SagaID, "creator_id", run.CreatorID, "step", comp.step, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", comp.step, err))
		}
	}
	return errs
}

func (c *Coordinator) recordAudit(ctx context.Context, result types.SagaResult) {
	if c.audit == nil {
		return
	}
	if err := c.audit.RecordSaga(ctx, result); err != nil {
		c.log.Warn("Failed to record saga audit row", "saga_id", result.SagaID, "error", err)
	}
}

func copyItems(items []types.ScheduleItem) []types.ScheduleItem {
	out := make([]types.ScheduleItem, len(items))
	copy(out, items)
	return out
}
