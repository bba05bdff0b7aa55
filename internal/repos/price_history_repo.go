package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/dbctx"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// rollingWindowDays bounds the price distribution the anomaly gate sees.
const rollingWindowDays = 30

// PriceHistoryRepo keeps the rolling per-creator price distribution. Saved
// schedules feed it, so the gate's baseline tracks what was actually planned.
type PriceHistoryRepo interface {
	Recent(dbc dbctx.Context, creatorID string, asOf time.Time) ([]float64, error)
	Record(dbc dbctx.Context, creatorID string, items []types.ScheduleItem, observedAt time.Time) error
	PruneBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type priceHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPriceHistoryRepo(db *gorm.DB, baseLog *logger.Logger) PriceHistoryRepo {
	return &priceHistoryRepo{db: db, log: baseLog.With("repo", "PriceHistoryRepo")}
}

func (r *priceHistoryRepo) Recent(dbc dbctx.Context, creatorID string, asOf time.Time) ([]float64, error) {
	cutoff := asOf.AddDate(0, 0, -rollingWindowDays)
	var prices []float64
	err := dbc.DB(r.db).
		Model(&types.PriceSample{}).
		Where("creator_id = ? AND observed_at >= ?", creatorID, cutoff).
		Order("observed_at ASC").
		Pluck("price", &prices).Error
	if err != nil {
		return nil, err
	}
	return prices, nil
}

// Record stores one sample per priced revenue item. Engagement and retention
// sends carry no price and are skipped.
func (r *priceHistoryRepo) Record(dbc dbctx.Context, creatorID string, items []types.ScheduleItem, observedAt time.Time) error {
	samples := make([]types.PriceSample, 0, len(items))
	for _, it := range items {
		if it.Category != types.CategoryRevenue || it.Price <= 0 {
			continue
		}
		samples = append(samples, types.PriceSample{
			ID:         uuid.New(),
			CreatorID:  creatorID,
			Price:      it.Price,
			ObservedAt: observedAt,
		})
	}
	if len(samples) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&samples).Error
}

func (r *priceHistoryRepo) PruneBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Where("observed_at < ?", cutoff).
		Delete(&types.PriceSample{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Debug("Pruned price samples", "rows", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
