package volume

import "github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"

// Audience tier thresholds on fan count.
const (
	tierMidMin   = 1_000
	tierHighMin  = 10_000
	tierUltraMin = 100_000
)

// baseVolumes are per-day category defaults before signal adjustment. These
// are also the fallback when signals are missing entirely.
type baseVolumes struct {
	Revenue    float64
	Engagement float64
	Retention  float64
}

var tierBaseVolumes = map[types.Tier]baseVolumes{
	types.TierLow:   {Revenue: 2, Engagement: 1, Retention: 1},
	types.TierMid:   {Revenue: 3, Engagement: 2, Retention: 1},
	types.TierHigh:  {Revenue: 4, Engagement: 3, Retention: 2},
	types.TierUltra: {Revenue: 5, Engagement: 4, Retention: 2},
}

// TierForFanCount maps audience size to a volume tier.
func TierForFanCount(fanCount int) types.Tier {
	switch {
	case fanCount >= tierUltraMin:
		return types.TierUltra
	case fanCount >= tierHighMin:
		return types.TierHigh
	case fanCount >= tierMidMin:
		return types.TierMid
	default:
		return types.TierLow
	}
}

// confidenceTierParams are the operating knobs attached to a confidence band.
type confidenceTierParams struct {
	VolumeMultiplier   float64
	FreshnessDays      int
	FollowupMultiplier float64
}

var confidenceTiers = map[types.ConfidenceTier]confidenceTierParams{
	types.ConfidenceVeryLow:  {VolumeMultiplier: 0.70, FreshnessDays: 15, FollowupMultiplier: 0.3},
	types.ConfidenceLow:      {VolumeMultiplier: 0.85, FreshnessDays: 10, FollowupMultiplier: 0.5},
	types.ConfidenceModerate: {VolumeMultiplier: 1.00, FreshnessDays: 7, FollowupMultiplier: 0.8},
	types.ConfidenceHigh:     {VolumeMultiplier: 1.15, FreshnessDays: 5, FollowupMultiplier: 1.0},
}

// ConfidenceTierFor buckets a [0,1] confidence score. Total over the whole
// interval: every score lands in exactly one band.
func ConfidenceTierFor(confidence float64) types.ConfidenceTier {
	switch {
	case confidence < 0.4:
		return types.ConfidenceVeryLow
	case confidence < 0.6:
		return types.ConfidenceLow
	case confidence < 0.8:
		return types.ConfidenceModerate
	default:
		return types.ConfidenceHigh
	}
}

// defaultDOWMultipliers index by time.Weekday (Sunday = 0). Weekends and
// Friday evenings run hotter than midweek.
var defaultDOWMultipliers = [7]float64{1.10, 0.95, 0.90, 0.95, 1.00, 1.10, 1.15}
