package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// Task is one creator's pipeline run. Do must honor ctx cancellation; the
// orchestrator enforces the per-creator budget through it.
type Task struct {
	CreatorID string
	Do        func(ctx context.Context) error
}

/*
Orchestrator fans a batch of creator pipelines across a bounded worker pool.

Behavior:
  - At most `parallelism` pipelines run at once; the rest queue.
  - Each task gets a hard wall-clock budget. On expiry its context is
    cancelled, the in-flight saga compensates, and the creator is recorded
    FAILED with code TIMEOUT. Sibling workers are never blocked or aborted.
  - Every requested task produces exactly one result, panics included;
    tasks sharing a creator ID keep their own slots.
  - Results are collected per task index and returned in request order.
*/
type Orchestrator struct {
	log                *logger.Logger
	defaultParallelism int
}

func NewOrchestrator(baseLog *logger.Logger, defaultParallelism int) *Orchestrator {
	if defaultParallelism <= 0 {
		defaultParallelism = 4
	}
	return &Orchestrator{
		log:                baseLog.With("component", "BatchOrchestrator"),
		defaultParallelism: defaultParallelism,
	}
}

func (o *Orchestrator) Run(ctx context.Context, tasks []Task, parallelism int, perCreatorTimeout time.Duration) types.BatchResult {
	if parallelism <= 0 {
		parallelism = o.defaultParallelism
	}
	started := time.Now()
	o.log.Info("Batch started", "creators", len(tasks), "parallelism", parallelism, "per_creator_timeout", perCreatorTimeout)

	results := make([]types.CreatorResult, len(tasks))
	g := &errgroup.Group{}
	g.SetLimit(parallelism)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = o.runOne(ctx, task, perCreatorTimeout)
			return nil
		})
	}
	g.Wait()

	out := types.BatchResult{Total: len(tasks), Results: results}
	for _, res := range results {
		if res.Status == types.CreatorSuccess {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	o.log.Info("Batch finished",
		"total", out.Total,
		"successful", out.Successful,
		"failed", out.Failed,
		"elapsed", time.Since(started))
	return out
}

func (o *Orchestrator) runOne(ctx context.Context, task Task, budget time.Duration) (res types.CreatorResult) {
	started := time.Now()
	res = types.CreatorResult{CreatorID: task.CreatorID, Status: types.CreatorSuccess}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Creator pipeline panicked", "creator_id", task.CreatorID, "panic", r)
			res = types.CreatorResult{
				CreatorID: task.CreatorID,
				Status:    types.CreatorFailed,
				ErrorCode: types.ErrCodeInternal,
				Error:     fmt.Sprintf("panic: %v", r),
			}
		}
		res.Duration = time.Since(started)
	}()

	tctx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	if err := task.Do(tctx); err != nil {
		res.Status = types.CreatorFailed
		res.ErrorCode = Classify(err)
		res.Error = err.Error()
		o.log.Warn("Creator pipeline failed",
			"creator_id", task.CreatorID,
			"error_code", res.ErrorCode,
			"error", err)
	}
	return res
}

// Classify maps a pipeline error to its batch error code.
func Classify(err error) string {
	var (
		valErr  *apperr.ValidationError
		stepErr *apperr.SagaStepError
		perErr  *apperr.PersistenceError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.ErrCodeTimeout
	case errors.Is(err, apperr.ErrCircuitOpen):
		return types.ErrCodeCircuitOpen
	case errors.Is(err, apperr.ErrAnomalyBlocked):
		return types.ErrCodeAnomalyBlocked
	case errors.As(err, &valErr):
		return types.ErrCodeValidation
	case errors.As(err, &perErr):
		return types.ErrCodePersistence
	case errors.As(err, &stepErr):
		return types.ErrCodeSagaFailed
	default:
		return types.ErrCodeInternal
	}
}
