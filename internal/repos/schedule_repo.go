package repos

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/dbctx"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

/*
ScheduleRepo is the single persistence boundary for finished schedules.

Behavior:
  - Save is append-only: a new week header plus one row per item, written in
    one transaction. Nothing is updated or deleted.
  - Save is only ever called for schedules the anomaly gate did not block;
    the caller enforces that rule, the repo does not re-check it.
*/
type ScheduleRepo interface {
	Save(dbc dbctx.Context, creatorID string, weekStart time.Time, items []types.ScheduleItem, report types.AnomalyReport) (*types.ScheduleWeek, error)
	GetWeek(dbc dbctx.Context, creatorID string, weekStart time.Time) (*types.ScheduleWeek, []types.ScheduleRow, error)
}

type scheduleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScheduleRepo(db *gorm.DB, baseLog *logger.Logger) ScheduleRepo {
	return &scheduleRepo{db: db, log: baseLog.With("repo", "ScheduleRepo")}
}

func (r *scheduleRepo) Save(dbc dbctx.Context, creatorID string, weekStart time.Time, items []types.ScheduleItem, report types.AnomalyReport) (*types.ScheduleWeek, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	week := &types.ScheduleWeek{
		ID:        uuid.New(),
		CreatorID: creatorID,
		WeekStart: weekStart,
		ItemCount: len(items),
		Report:    reportJSON,
		CreatedAt: now,
	}
	rows := make([]types.ScheduleRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, types.ScheduleRow{
			ID:         it.ID,
			WeekID:     week.ID,
			CreatorID:  it.CreatorID,
			Category:   string(it.Category),
			Style:      it.Style,
			CaptionID:  it.CaptionID,
			Price:      it.Price,
			SendAt:     it.SendAt,
			IsFollowup: it.IsFollowup,
			ParentID:   it.ParentID,
			CreatedAt:  now,
		})
	}
	err = r.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(week).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	r.log.Info("Saved schedule week",
		"creator_id", creatorID,
		"week_start", weekStart.Format("2006-01-02"),
		"items", len(rows))
	return week, nil
}

func (r *scheduleRepo) GetWeek(dbc dbctx.Context, creatorID string, weekStart time.Time) (*types.ScheduleWeek, []types.ScheduleRow, error) {
	db := dbc.DB(r.db)
	var week types.ScheduleWeek
	err := db.
		Where("creator_id = ? AND week_start = ?", creatorID, weekStart).
		Order("created_at DESC").
		First(&week).Error
	if err != nil {
		return nil, nil, err
	}
	var rows []types.ScheduleRow
	if err := db.Where("week_id = ?", week.ID).Order("send_at ASC").Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	return &week, rows, nil
}
