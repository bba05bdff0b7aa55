package repos

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// SagaLogRepo persists terminal saga outcomes as audit rows. It satisfies
// the coordinator's AuditSink; failures are the caller's to swallow.
type SagaLogRepo interface {
	RecordSaga(ctx context.Context, result types.SagaResult) error
	ListByCreator(ctx context.Context, creatorID string, limit int) ([]types.SagaExecutionRow, error)
}

type sagaLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSagaLogRepo(db *gorm.DB, baseLog *logger.Logger) SagaLogRepo {
	return &sagaLogRepo{db: db, log: baseLog.With("repo", "SagaLogRepo")}
}

func (r *sagaLogRepo) RecordSaga(ctx context.Context, result types.SagaResult) error {
	steps, err := json.Marshal(result.CompletedSteps)
	if err != nil {
		return err
	}
	compErrs, err := json.Marshal(result.CompensationErrors)
	if err != nil {
		return err
	}
	completedAt := result.CompletedAt
	row := types.SagaExecutionRow{
		ID:                 result.SagaID,
		CreatorID:          result.CreatorID,
		Status:             string(result.Status),
		CompletedSteps:     steps,
		FailedStep:         result.FailedStep,
		Error:              result.Error,
		CompensationErrors: compErrs,
		StartedAt:          result.StartedAt,
		CompletedAt:        &completedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *sagaLogRepo) ListByCreator(ctx context.Context, creatorID string, limit int) ([]types.SagaExecutionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []types.SagaExecutionRow
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
