package types

import "time"

// CreatorStatus is the terminal per-creator outcome within a batch.
type CreatorStatus string

const (
	CreatorSuccess CreatorStatus = "SUCCESS"
	CreatorFailed  CreatorStatus = "FAILED"
)

// Batch error codes.
const (
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeSagaFailed     = "SAGA_FAILED"
	ErrCodeAnomalyBlocked = "ANOMALY_BLOCKED"
	ErrCodeValidation     = "VALIDATION"
	ErrCodeCircuitOpen    = "CIRCUIT_OPEN"
	ErrCodePersistence    = "PERSISTENCE"
	ErrCodeInternal       = "INTERNAL"
)

// CreatorResult is one per-creator entry in a batch result. Every requested
// creator gets exactly one, even on total failure.
type CreatorResult struct {
	CreatorID string        `json:"creator_id"`
	Status    CreatorStatus `json:"status"`
	ErrorCode string        `json:"error_code,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// BatchResult aggregates one batch run.
type BatchResult struct {
	Total      int             `json:"total"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Results    []CreatorResult `json:"results"`
}
