package types

import "time"

// LifecycleState is the closed set of rotation tracker states.
type LifecycleState string

const (
	LifecycleInitializing     LifecycleState = "Initializing"
	LifecyclePatternActive    LifecycleState = "PatternActive"
	LifecycleRotationPending  LifecycleState = "RotationPending"
	LifecycleRotating         LifecycleState = "Rotating"
	LifecyclePatternExhausted LifecycleState = "PatternExhausted"
	LifecycleError            LifecycleState = "Error"
)

// RotationState is the per-creator content-style rotation record. Owned
// exclusively by the rotation tracker and persisted keyed by creator id;
// concurrent mutation for one creator must be serialized by the caller.
type RotationState struct {
	CreatorID        string         `json:"creator_id"`
	Pattern          []string       `json:"pattern"`
	PatternStartTime time.Time      `json:"pattern_start_time"`
	DaysOnPattern    int            `json:"days_on_pattern"`
	Lifecycle        LifecycleState `json:"lifecycle_state"`

	// UsedPatterns holds the catalog keys consumed within the trailing
	// exhaustion window, newest last.
	UsedPatterns []string  `json:"used_patterns,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a deep copy, used for compensation snapshots.
func (s *RotationState) Clone() *RotationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Pattern = append([]string(nil), s.Pattern...)
	out.UsedPatterns = append([]string(nil), s.UsedPatterns...)
	return &out
}
