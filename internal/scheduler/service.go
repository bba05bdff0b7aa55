package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/anomaly"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/batch"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/dbctx"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/repos"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/saga"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/volume"
)

// GenerateRequest carries everything one creator's weekly generation needs.
// Caption and price selection happen upstream; draft items arrive filled.
type GenerateRequest struct {
	CreatorID string                    `json:"creator_id"`
	WeekStart time.Time                 `json:"week_start"`
	Profile   types.CreatorProfile      `json:"profile"`
	Signals   types.PerformanceSignals  `json:"signals"`
	Draft     []types.ScheduleItem      `json:"draft"`
	Previous  *volume.PreviousWeek      `json:"previous_week,omitempty"`
}

// ScheduleResult is the full outcome of one generation: the final items,
// the saga trace, the gate verdict and whether anything was persisted.
type ScheduleResult struct {
	Items     []types.ScheduleItem `json:"items"`
	Volume    types.VolumeConfig   `json:"volume"`
	Saga      types.SagaResult     `json:"saga"`
	Report    types.AnomalyReport  `json:"report"`
	Persisted bool                 `json:"persisted"`
}

/*
Service composes the weekly pipeline: quota calculation, the timing saga,
the anomaly gate, then persistence.

Behavior:
  - A blocked schedule is not an error to the direct caller: the report
    comes back as data and nothing is persisted.
  - Saved schedules feed their prices back into the rolling distribution the
    gate scores future weeks against.
*/
type Service struct {
	log        *logger.Logger
	calculator *volume.Calculator
	coord      *saga.Coordinator
	validator  *anomaly.Validator
	orch       *batch.Orchestrator

	schedules repos.ScheduleRepo
	prices    repos.PriceHistoryRepo
}

func NewService(
	baseLog *logger.Logger,
	calculator *volume.Calculator,
	coord *saga.Coordinator,
	validator *anomaly.Validator,
	orch *batch.Orchestrator,
	schedules repos.ScheduleRepo,
	prices repos.PriceHistoryRepo,
) *Service {
	return &Service{
		log:        baseLog.With("service", "SchedulerService"),
		calculator: calculator,
		coord:      coord,
		validator:  validator,
		orch:       orch,
		schedules:  schedules,
		prices:     prices,
	}
}

func (s *Service) CalculateVolume(profile types.CreatorProfile, signals types.PerformanceSignals) types.VolumeConfig {
	return s.calculator.Calculate(profile, signals, nil)
}

func (s *Service) GenerateSchedule(ctx context.Context, req GenerateRequest) (*ScheduleResult, error) {
	if req.CreatorID == "" {
		return nil, &apperr.ValidationError{Field: "creator_id", Reason: "required"}
	}
	if req.WeekStart.IsZero() {
		return nil, &apperr.ValidationError{Field: "week_start", Reason: "required"}
	}

	vol := s.calculator.Calculate(req.Profile, req.Signals, req.Previous)
	result := &ScheduleResult{Volume: vol}

	items, sagaResult, err := s.coord.Execute(ctx, req.CreatorID, req.WeekStart, req.Draft, vol)
	result.Saga = sagaResult
	if err != nil {
		result.Items = items
		return result, err
	}
	result.Items = items

	history, histErr := s.prices.Recent(dbctx.From(ctx), req.CreatorID, req.WeekStart)
	if histErr != nil {
		// The gate degrades to its no-history behavior rather than failing
		// the whole generation.
		s.log.Warn("Price history unavailable", "creator_id", req.CreatorID, "error", histErr)
		history = nil
	}
	result.Report = s.validator.Validate(items, vol, history)
	if result.Report.Status == types.AnomalyBlocked {
		return result, nil
	}

	dbc := dbctx.From(ctx)
	if _, err := s.schedules.Save(dbc, req.CreatorID, req.WeekStart, items, result.Report); err != nil {
		return result, &apperr.PersistenceError{Op: "save schedule", Err: err}
	}
	if err := s.prices.Record(dbc, req.CreatorID, items, req.WeekStart); err != nil {
		s.log.Warn("Failed to record price samples", "creator_id", req.CreatorID, "error", err)
	}
	result.Persisted = true
	return result, nil
}

// RunBatch generates one week per request under bounded concurrency. Blocked
// schedules count as failures with code ANOMALY_BLOCKED in the aggregate.
func (s *Service) RunBatch(ctx context.Context, reqs []GenerateRequest, parallelism int, perCreatorTimeout time.Duration) types.BatchResult {
	tasks := make([]batch.Task, 0, len(reqs))
	for _, req := range reqs {
		tasks = append(tasks, batch.Task{
			CreatorID: req.CreatorID,
			Do: func(ctx context.Context) error {
				result, err := s.GenerateSchedule(ctx, req)
				if err != nil {
					return err
				}
				if result.Report.Status == types.AnomalyBlocked {
					return fmt.Errorf("%d gate errors: %w", len(result.Report.Errors), apperr.ErrAnomalyBlocked)
				}
				return nil
			},
		})
	}
	return s.orch.Run(ctx, tasks, parallelism, perCreatorTimeout)
}
