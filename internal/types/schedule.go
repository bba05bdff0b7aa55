package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ItemCategory is the send-volume category a schedule item counts against.
type ItemCategory string

const (
	CategoryRevenue    ItemCategory = "revenue"
	CategoryEngagement ItemCategory = "engagement"
	CategoryRetention  ItemCategory = "retention"
)

// ScheduleItem is one planned send on a draft or finished schedule. Caption
// and price are filled upstream before the saga's validation step runs.
type ScheduleItem struct {
	ID        uuid.UUID    `json:"id"`
	CreatorID string       `json:"creator_id"`
	Category  ItemCategory `json:"category"`
	Style     string       `json:"style"`
	CaptionID string       `json:"caption_id"`
	Price     float64      `json:"price"`
	SendAt    time.Time    `json:"send_at"`

	IsFollowup bool       `json:"is_followup"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
}

// ScheduleWeek is the persisted header row for one saved weekly schedule.
type ScheduleWeek struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID string         `gorm:"column:creator_id;not null;index" json:"creator_id"`
	WeekStart time.Time      `gorm:"column:week_start;not null;index" json:"week_start"`
	ItemCount int            `gorm:"column:item_count;not null" json:"item_count"`
	Report    datatypes.JSON `gorm:"column:report" json:"report"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (ScheduleWeek) TableName() string { return "schedule_week" }

// ScheduleRow is the persisted form of one schedule item, append-only.
type ScheduleRow struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WeekID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"week_id"`
	CreatorID  string     `gorm:"column:creator_id;not null;index" json:"creator_id"`
	Category   string     `gorm:"column:category;not null" json:"category"`
	Style      string     `gorm:"column:style" json:"style"`
	CaptionID  string     `gorm:"column:caption_id" json:"caption_id"`
	Price      float64    `gorm:"column:price" json:"price"`
	SendAt     time.Time  `gorm:"column:send_at;not null" json:"send_at"`
	IsFollowup bool       `gorm:"column:is_followup;not null;default:false" json:"is_followup"`
	ParentID   *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
}

func (ScheduleRow) TableName() string { return "schedule_row" }

// PriceSample is one observed revenue-item price, kept as the rolling
// distribution the anomaly gate scores against.
type PriceSample struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID  string    `gorm:"column:creator_id;not null;index" json:"creator_id"`
	Price      float64   `gorm:"column:price;not null" json:"price"`
	ObservedAt time.Time `gorm:"column:observed_at;not null;index" json:"observed_at"`
}

func (PriceSample) TableName() string { return "price_sample" }
