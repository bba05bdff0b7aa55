package volume

import "github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"

// Confidence sub-score weights. They sum to 1 so the fused score stays in
// [0,1] without renormalization.
const (
	weightMessageCount = 0.35
	weightRecency      = 0.25
	weightDivergence   = 0.20
	weightCaptionPool  = 0.20
)

// Message counts at or above this are fully adequate for estimation.
const adequateMessageCount = 200

// Signals older than this many days score zero on recency.
const staleAfterDays = 30

// clamp01 bounds a score into [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// messageCountScore scales linearly up to the adequate count.
func messageCountScore(count int) float64 {
	if count <= 0 {
		return 0
	}
	return clamp01(float64(count) / adequateMessageCount)
}

// recencyScore decays linearly with days since the last message.
func recencyScore(daysSinceLast int) float64 {
	if daysSinceLast < 0 {
		return 0
	}
	return clamp01(1 - float64(daysSinceLast)/staleAfterDays)
}

// divergenceScore penalizes disagreement between the 7d and 30d horizons.
// Full agreement scores 1; a flagged divergence caps the score at 0.3.
func divergenceScore(gap float64, diverged bool) float64 {
	score := clamp01(1 - gap)
	if diverged && score > 0.3 {
		return 0.3
	}
	return score
}

// captionPoolScore measures pool depth against what the week needs.
func captionPoolScore(available, required int) float64 {
	if required <= 0 {
		// Nothing required: the pool cannot be the limiting factor.
		return 1
	}
	if available <= 0 {
		return 0
	}
	return clamp01(float64(available) / float64(required))
}

// confidenceScore fuses the four sub-scores into one [0,1] confidence value.
func confidenceScore(signals types.PerformanceSignals, horizonGap float64, diverged bool) float64 {
	score := weightMessageCount*messageCountScore(signals.MessageCount) +
		weightRecency*recencyScore(signals.DaysSinceLastMessage) +
		weightDivergence*divergenceScore(horizonGap, diverged) +
		weightCaptionPool*captionPoolScore(signals.AvailableCaptionCount, signals.RequiredCaptionCount)
	return clamp01(score)
}
