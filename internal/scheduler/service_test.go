package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/anomaly"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/batch"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/dbctx"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/resilience"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/rotation"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/saga"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/statestore"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/volume"
)

type fakeScheduleRepo struct {
	saved   int
	saveErr error
}

func (f *fakeScheduleRepo) Save(dbc dbctx.Context, creatorID string, weekStart time.Time, items []types.ScheduleItem, report types.AnomalyReport) (*types.ScheduleWeek, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved++
	return &types.ScheduleWeek{ID: uuid.New(), CreatorID: creatorID, WeekStart: weekStart, ItemCount: len(items)}, nil
}

func (f *fakeScheduleRepo) GetWeek(dbc dbctx.Context, creatorID string, weekStart time.Time) (*types.ScheduleWeek, []types.ScheduleRow, error) {
	return nil, nil, apperr.ErrNotFound
}

type fakePriceRepo struct {
	history  []float64
	recorded int
}

func (f *fakePriceRepo) Recent(dbc dbctx.Context, creatorID string, asOf time.Time) ([]float64, error) {
	return f.history, nil
}

func (f *fakePriceRepo) Record(dbc dbctx.Context, creatorID string, items []types.ScheduleItem, observedAt time.Time) error {
	f.recorded++
	return nil
}

func (f *fakePriceRepo) PruneBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newTestService(schedules *fakeScheduleRepo, prices *fakePriceRepo) *Service {
	log := logger.NewNop()
	store := statestore.NewMemoryStore()
	tracker := rotation.NewTracker(log, store, nil)
	breaker := resilience.NewBreaker(log, "state-store", resilience.BreakerConfig{
		FailureThreshold:   100,
		RecoveryTimeout:    time.Minute,
		HalfOpenProbeCount: 1,
	})
	guard := resilience.NewGuard(log, store, time.Hour)
	coord := saga.NewCoordinator(log, tracker, breaker, guard, store, nil, saga.CoordinatorConfig{StepTimeout: 5 * time.Second})
	return NewService(
		log,
		volume.NewCalculator(log),
		coord,
		anomaly.NewValidator(log),
		batch.NewOrchestrator(log, 4),
		schedules,
		prices,
	)
}

func testRequest(creatorID string) GenerateRequest {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	draft := []types.ScheduleItem{}
	for day := 0; day < 2; day++ {
		base := weekStart.AddDate(0, 0, day)
		draft = append(draft,
			types.ScheduleItem{
				ID: uuid.New(), CreatorID: creatorID, Category: types.CategoryRevenue,
				CaptionID: fmt.Sprintf("cap-%d-a", day), Price: 24, SendAt: base.Add(10 * time.Hour),
			},
			types.ScheduleItem{
				ID: uuid.New(), CreatorID: creatorID, Category: types.CategoryRevenue,
				CaptionID: fmt.Sprintf("cap-%d-b", day), Price: 26, SendAt: base.Add(14 * time.Hour),
			},
			types.ScheduleItem{
				ID: uuid.New(), CreatorID: creatorID, Category: types.CategoryEngagement,
				SendAt: base.Add(19 * time.Hour),
			},
		)
	}
	return GenerateRequest{
		CreatorID: creatorID,
		WeekStart: weekStart,
		Profile:   types.CreatorProfile{CreatorID: creatorID, PageType: types.PagePaid, FanCount: 5000, Timezone: "UTC"},
		Draft:     draft,
	}
}

func TestGenerateSchedulePersists(t *testing.T) {
	schedules := &fakeScheduleRepo{}
	prices := &fakePriceRepo{history: []float64{20, 22, 24, 26, 28}}
	svc := newTestService(schedules, prices)

	result, err := svc.GenerateSchedule(context.Background(), testRequest("creator-1"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Saga.Status != types.SagaCompleted {
		t.Fatalf("expected completed saga, got %s", result.Saga.Status)
	}
	if result.Report.Status == types.AnomalyBlocked {
		t.Fatalf("unexpected block: %v", result.Report.Errors)
	}
	if !result.Persisted || schedules.saved != 1 {
		t.Fatalf("expected one persisted schedule, got persisted=%v saved=%d", result.Persisted, schedules.saved)
	}
	if prices.recorded != 1 {
		t.Fatalf("saved schedule must feed price history, recorded=%d", prices.recorded)
	}
}

func TestGenerateScheduleBlockedIsDataNotError(t *testing.T) {
	schedules := &fakeScheduleRepo{}
	prices := &fakePriceRepo{}
	svc := newTestService(schedules, prices)

	req := testRequest("creator-2")
	req.Draft = nil // empty schedule always blocks

	result, err := svc.GenerateSchedule(context.Background(), req)
	if err != nil {
		t.Fatalf("blocked schedule must not surface as error, got %v", err)
	}
	if result.Report.Status != types.AnomalyBlocked {
		t.Fatalf("expected BLOCKED, got %s", result.Report.Status)
	}
	if result.Persisted || schedules.saved != 0 {
		t.Fatalf("blocked schedule must never persist")
	}
}

func TestGenerateScheduleSaveFailure(t *testing.T) {
	schedules := &fakeScheduleRepo{saveErr: errors.New("disk full")}
	prices := &fakePriceRepo{}
	svc := newTestService(schedules, prices)

	_, err := svc.GenerateSchedule(context.Background(), testRequest("creator-3"))
	var perErr *apperr.PersistenceError
	if !errors.As(err, &perErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func TestGenerateScheduleRejectsMissingCreator(t *testing.T) {
	svc := newTestService(&fakeScheduleRepo{}, &fakePriceRepo{})
	req := testRequest("creator-4")
	req.CreatorID = ""
	_, err := svc.GenerateSchedule(context.Background(), req)
	var valErr *apperr.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRunBatchLabelsBlockedCreators(t *testing.T) {
	schedules := &fakeScheduleRepo{}
	prices := &fakePriceRepo{}
	svc := newTestService(schedules, prices)

	good := testRequest("creator-good")
	blocked := testRequest("creator-blocked")
	blocked.Draft = nil

	result := svc.RunBatch(context.Background(), []GenerateRequest{good, blocked}, 2, 5*time.Second)
	if result.Total != 2 || result.Successful != 1 || result.Failed != 1 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if result.Results[0].CreatorID != "creator-good" || result.Results[0].Status != types.CreatorSuccess {
		t.Fatalf("good creator should succeed: %+v", result.Results[0])
	}
	if result.Results[1].ErrorCode != types.ErrCodeAnomalyBlocked {
		t.Fatalf("blocked creator must carry ANOMALY_BLOCKED, got %+v", result.Results[1])
	}
}
