package types

// Tier is the coarse volume bucket derived from audience size.
type Tier string

const (
	TierLow   Tier = "low"
	TierMid   Tier = "mid"
	TierHigh  Tier = "high"
	TierUltra Tier = "ultra"
)

// ConfidenceTier buckets the [0,1] confidence score into operating bands.
type ConfidenceTier string

const (
	ConfidenceVeryLow  ConfidenceTier = "VERY_LOW"
	ConfidenceLow      ConfidenceTier = "LOW"
	ConfidenceModerate ConfidenceTier = "MODERATE"
	ConfidenceHigh     ConfidenceTier = "HIGH"
)

// VolumeConfig is the per-creator daily quota set. Produced fresh per
// calculation, immutable once returned.
type VolumeConfig struct {
	Tier             Tier           `json:"tier"`
	RevenuePerDay    float64        `json:"revenue_per_day"`
	EngagementPerDay float64        `json:"engagement_per_day"`
	RetentionPerDay  float64        `json:"retention_per_day"`
	Confidence       float64        `json:"confidence"`
	ConfidenceTier   ConfidenceTier `json:"confidence_tier"`
	DOWMultipliers   [7]float64     `json:"dow_multipliers"`
	ElasticityCapped bool           `json:"elasticity_capped"`

	// FreshnessDays is the floor on caption reuse age for this confidence band.
	FreshnessDays int `json:"freshness_days"`
	// FollowupMultiplier scales how aggressively follow-ups are placed.
	FollowupMultiplier float64 `json:"followup_multiplier"`
	// DivergenceDetected is set when the 7d and 30d horizons disagree beyond
	// tolerance; it feeds the confidence penalty.
	DivergenceDetected bool `json:"divergence_detected"`
}
