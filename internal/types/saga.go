package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SagaStatus is the lifecycle of one schedule-mutation attempt.
type SagaStatus string

const (
	SagaPending      SagaStatus = "Pending"
	SagaInProgress   SagaStatus = "InProgress"
	SagaCompleted    SagaStatus = "Completed"
	SagaCompensating SagaStatus = "Compensating"
	SagaFailed       SagaStatus = "Failed"
	SagaRolledBack   SagaStatus = "RolledBack"
)

// SagaResult is the terminal outcome handed back to callers.
type SagaResult struct {
	SagaID             uuid.UUID  `json:"saga_id"`
	CreatorID          string     `json:"creator_id"`
	Status             SagaStatus `json:"status"`
	CompletedSteps     []string   `json:"completed_steps"`
	FailedStep         string     `json:"failed_step,omitempty"`
	Error              string     `json:"error,omitempty"`
	CompensationErrors []string   `json:"compensation_errors,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        time.Time  `json:"completed_at"`
}

// SagaExecutionRow is the persisted audit record of a saga run. Written
// best-effort on terminal states; the in-memory execution is the source of
// truth while a run is live.
type SagaExecutionRow struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID          string         `gorm:"column:creator_id;not null;index" json:"creator_id"`
	Status             string         `gorm:"column:status;not null" json:"status"`
	CompletedSteps     datatypes.JSON `gorm:"column:completed_steps" json:"completed_steps"`
	FailedStep         string         `gorm:"column:failed_step" json:"failed_step"`
	Error              string         `gorm:"column:error" json:"error"`
	CompensationErrors datatypes.JSON `gorm:"column:compensation_errors" json:"compensation_errors"`
	StartedAt          time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt        *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (SagaExecutionRow) TableName() string { return "saga_execution" }
