package volume

import (
	"math"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// Horizon fusion weights: recent data dominates but the month anchors.
const (
	weight7d  = 0.50
	weight14d = 0.30
	weight30d = 0.20
)

// divergenceTolerance is how far the 7d and 30d horizons may disagree before
// the divergence flag trips.
const divergenceTolerance = 0.30

// elasticityBound caps any category's week-over-week increase at +30%.
const elasticityBound = 1.30

// How strongly the opportunity-vs-saturation balance moves volume.
const signalSwing = 0.25

// PreviousWeek carries last week's realized daily averages per category,
// used only for the elasticity cap. Nil means no history, no cap.
type PreviousWeek struct {
	RevenuePerDay    float64
	EngagementPerDay float64
	RetentionPerDay  float64
}

// Calculator turns historical signals into per-category daily quotas. It is
// stateless; one instance serves all creators.
type Calculator struct {
	log *logger.Logger
}

func NewCalculator(baseLog *logger.Logger) *Calculator {
	return &Calculator{log: baseLog.With("component", "VolumeCalculator")}
}

/*
Calculate produces a best-effort VolumeConfig and never fails.

Behavior:
  - Missing signals fall back to tier base volumes with confidence forced
    into the VERY_LOW band.
  - The three saturation/opportunity horizons fuse into single scores; a 7d
    vs 30d gap beyond tolerance sets DivergenceDetected and feeds the
    confidence penalty.
  - The selected confidence band's volume multiplier, freshness floor and
    follow-up multiplier apply to the tier base volumes.
  - Any category growing more than the elasticity bound over last week is
    clamped, with ElasticityCapped set and the clamp logged.
*/
func (c *Calculator) Calculate(profile types.CreatorProfile, signals types.PerformanceSignals, prev *PreviousWeek) types.VolumeConfig {
	tier := TierForFanCount(profile.FanCount)
	base := tierBaseVolumes[tier]

	cfg := types.VolumeConfig{
		Tier:           tier,
		DOWMultipliers: defaultDOWMultipliers,
	}

	if !signals.HasSignals() {
		c.log.Warn("No performance signals, falling back to tier defaults",
			"creator_id", profile.CreatorID, "tier", tier)
		cfg.Confidence = 0
		cfg.ConfidenceTier = types.ConfidenceVeryLow
		params := confidenceTiers[types.ConfidenceVeryLow]
		cfg.RevenuePerDay = base.Revenue * params.VolumeMultiplier
		cfg.EngagementPerDay = base.Engagement * params.VolumeMultiplier
		cfg.RetentionPerDay = base.Retention * params.VolumeMultiplier
		cfg.FreshnessDays = params.FreshnessDays
		cfg.FollowupMultiplier = params.FollowupMultiplier
		c.applyElasticityCap(&cfg, profile.CreatorID, prev)
		return cfg
	}

	saturation := fuseHorizons(signals.Saturation7d, signals.Saturation14d, signals.Saturation30d)
	opportunity := fuseHorizons(signals.Opportunity7d, signals.Opportunity14d, signals.Opportunity30d)
	horizonGap := math.Max(
		math.Abs(signals.Saturation7d-signals.Saturation30d),
		math.Abs(signals.Opportunity7d-signals.Opportunity30d),
	)
	cfg.DivergenceDetected = horizonGap > divergenceTolerance

	cfg.Confidence = confidenceScore(signals, horizonGap, cfg.DivergenceDetected)
	cfg.ConfidenceTier = ConfidenceTierFor(cfg.Confidence)
	params := confidenceTiers[cfg.ConfidenceTier]
	cfg.FreshnessDays = params.FreshnessDays
	cfg.FollowupMultiplier = params.FollowupMultiplier

	// A saturated audience pulls volume down, open opportunity pushes it up.
	signalAdj := 1 + signalSwing*(opportunity-saturation)
	mult := params.VolumeMultiplier * signalAdj

	cfg.RevenuePerDay = round2(base.Revenue * mult)
	cfg.EngagementPerDay = round2(base.Engagement * mult)
	cfg.RetentionPerDay = round2(base.Retention * mult)

	c.applyElasticityCap(&cfg, profile.CreatorID, prev)
	return cfg
}

// applyElasticityCap clamps week-over-week growth per category.
func (c *Calculator) applyElasticityCap(cfg *types.VolumeConfig, creatorID string, prev *PreviousWeek) {
	if prev == nil {
		return
	}
	clamp := func(name string, current float64, previous float64) float64 {
		if previous <= 0 {
			return current
		}
		ceiling := previous * elasticityBound
		if current <= ceiling {
			return current
		}
		cfg.ElasticityCapped = true
		c.log.Info("Elasticity cap applied",
			"creator_id", creatorID, "category", name,
			"requested", current, "capped", ceiling)
		return round2(ceiling)
	}
	cfg.RevenuePerDay = clamp("revenue", cfg.RevenuePerDay, prev.RevenuePerDay)
	cfg.EngagementPerDay = clamp("engagement", cfg.EngagementPerDay, prev.EngagementPerDay)
	cfg.RetentionPerDay = clamp("retention", cfg.RetentionPerDay, prev.RetentionPerDay)
}

func fuseHorizons(d7, d14, d30 float64) float64 {
	return weight7d*d7 + weight14d*d14 + weight30d*d30
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
