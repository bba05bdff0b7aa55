package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

const (
	// Z-score bands against the rolling price distribution.
	zErrorThreshold = 3.0
	zWarnThreshold  = 2.0
	// Fewer samples than this and the distribution is too thin to score.
	minPriceSamples = 5

	// Daily volume ratio bands against the expected quota.
	volumeErrorRatio = 2.0
	volumeWarnHigh   = 1.5
	volumeWarnLow    = 0.5

	// Clustering: this many items inside a sliding 2-hour window.
	clusterWindow = 2 * time.Hour
	clusterCount  = 4

	// Weekly distribution warnings.
	revenueConcentration = 0.70
	contentTypeShare     = 0.40
	// Style-share is meaningless on tiny weeks.
	contentTypeMinItems = 8

	// PASS_WITH_WARNINGS kicks in above this many warnings.
	warningBudget = 5

	peakStartHour = 19
	peakEndHour   = 22
)

/*
Validator is the statistical gate that inspects a fully assembled weekly
schedule before persistence.

Behavior:
  - Produces an AnomalyReport, never an error: a blocked schedule is a
    business outcome, carried as data.
  - Price z-scores are computed against the creator's rolling price
    distribution; with fewer than 5 samples the z-checks are skipped and
    noted in the report statistics.
  - Any error blocks the schedule; more than 5 warnings downgrades the
    verdict to PASS_WITH_WARNINGS; an empty schedule always blocks.
*/
type Validator struct {
	log *logger.Logger
}

func NewValidator(baseLog *logger.Logger) *Validator {
	return &Validator{log: baseLog.With("component", "anomaly_validator")}
}

// Validate scores items against the daily quotas in vol and the creator's
// rolling price samples. priceHistory may be empty.
func (v *Validator) Validate(items []types.ScheduleItem, vol types.VolumeConfig, priceHistory []float64) types.AnomalyReport {
	report := types.AnomalyReport{
		Errors:        []types.AnomalyIssue{},
		Warnings:      []types.AnomalyIssue{},
		Opportunities: []string{},
		Statistics:    map[string]any{},
	}

	if len(items) == 0 {
		report.Status = types.AnomalyBlocked
		report.Errors = append(report.Errors, types.AnomalyIssue{
			Type:    types.IssueEmptySchedule,
			Message: "schedule contains no items",
		})
		return report
	}

	sorted := make([]types.ScheduleItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SendAt.Before(sorted[j].SendAt) })

	v.checkPrices(&report, sorted, priceHistory)
	v.checkDailyVolume(&report, sorted, vol)
	v.checkDuplicates(&report, sorted)
	v.checkClustering(&report, sorted)
	v.checkWeeklyShape(&report, sorted)
	v.findOpportunities(&report, sorted, priceHistory)

	report.Statistics["item_count"] = len(sorted)
	report.Statistics["error_count"] = len(report.Errors)
	report.Statistics["warning_count"] = len(report.Warnings)

	switch {
	case len(report.Errors) > 0:
		report.Status = types.AnomalyBlocked
	case len(report.Warnings) > warningBudget:
		report.Status = types.AnomalyPassWarnings
	default:
		report.Status = types.AnomalyPass
	}
	if report.Status != types.AnomalyPass {
		v.log.Warn("schedule flagged by anomaly gate",
			"creator_id", sorted[0].CreatorID,
			"status", report.Status,
			"errors", len(report.Errors),
			"warnings", len(report.Warnings))
	}
	return report
}

func (v *Validator) checkPrices(report *types.AnomalyReport, items []types.ScheduleItem, history []float64) {
	if len(history) < minPriceSamples {
		report.Statistics["price_checks_skipped"] = true
		report.Statistics["price_sample_count"] = len(history)
		return
	}
	mean, std := meanStd(history)
	report.Statistics["price_mean"] = mean
	report.Statistics["price_std"] = std
	if std == 0 {
		report.Statistics["price_checks_skipped"] = true
		return
	}
	for _, it := range items {
		if it.Category != types.CategoryRevenue || it.Price <= 0 {
			continue
		}
		z := (it.Price - mean) / std
		issue := types.AnomalyIssue{
			Type:    types.IssuePriceOutlier,
			Message: fmt.Sprintf("price %.2f is %.1f standard deviations from the 30d mean %.2f", it.Price, z, mean),
			ItemID:  it.ID.String(),
		}
		switch {
		case math.Abs(z) > zErrorThreshold:
			report.Errors = append(report.Errors, issue)
		case math.Abs(z) > zWarnThreshold:
			report.Warnings = append(report.Warnings, issue)
		}
	}
}

func (v *Validator) checkDailyVolume(report *types.AnomalyReport, items []types.ScheduleItem, vol types.VolumeConfig) {
	base := vol.RevenuePerDay + vol.EngagementPerDay + vol.RetentionPerDay
	if base <= 0 {
		return
	}
	perDay := map[string]int{}
	weekday := map[string]time.Weekday{}
	for _, it := range items {
		day := it.SendAt.Format("2006-01-02")
		perDay[day]++
		weekday[day] = it.SendAt.Weekday()
	}
	for day, count := range perDay {
		expected := base
		if m := vol.DOWMultipliers[weekday[day]]; m > 0 {
			expected = base * m
		}
		ratio := float64(count) / expected
		issue := types.AnomalyIssue{
			Type:    types.IssueVolumeRatio,
			Message: fmt.Sprintf("%d items scheduled against an expected %.1f (ratio %.2f)", count, expected, ratio),
			Day:     day,
		}
		switch {
		case ratio > volumeErrorRatio:
			report.Errors = append(report.Errors, issue)
		case ratio >= volumeWarnHigh || ratio < volumeWarnLow:
			report.Warnings = append(report.Warnings, issue)
		}
	}
}

func (v *Validator) checkDuplicates(report *types.AnomalyReport, items []types.ScheduleItem) {
	type dayKey struct {
		day     string
		caption string
	}
	captions := map[dayKey]bool{}
	stamps := map[string]bool{}
	for _, it := range items {
		day := it.SendAt.Format("2006-01-02")
		if it.CaptionID != "" {
			k := dayKey{day: day, caption: it.CaptionID}
			if captions[k] {
				report.Errors = append(report.Errors, types.AnomalyIssue{
					Type:    types.IssueDuplicateCaption,
					Message: fmt.Sprintf("caption %s scheduled twice on the same day", it.CaptionID),
					ItemID:  it.ID.String(),
					Day:     day,
				})
			}
			captions[k] = true
		}
		stamp := it.SendAt.Format(time.RFC3339)
		if stamps[stamp] {
			report.Errors = append(report.Errors, types.AnomalyIssue{
				Type:    types.IssueDuplicateTimestamp,
				Message: fmt.Sprintf("two items share send time %s", stamp),
				ItemID:  it.ID.String(),
				Day:     day,
			})
		}
		stamps[stamp] = true
	}
}

func (v *Validator) checkClustering(report *types.AnomalyReport, items []types.ScheduleItem) {
	flaggedDays := map[string]bool{}
	for i := range items {
		end := i
		for end < len(items) && items[end].SendAt.Sub(items[i].SendAt) <= clusterWindow {
			end++
		}
		if end-i >= clusterCount {
			day := items[i].SendAt.Format("2006-01-02")
			if flaggedDays[day] {
				continue
			}
			flaggedDays[day] = true
			report.Warnings = append(report.Warnings, types.AnomalyIssue{
				Type:    types.IssueClustering,
				Message: fmt.Sprintf("%d items inside a 2h window starting %s", end-i, items[i].SendAt.Format("15:04")),
				Day:     day,
			})
		}
	}
}

func (v *Validator) checkWeeklyShape(report *types.AnomalyReport, items []types.ScheduleItem) {
	revenueByDay := map[string]int{}
	styleCount := map[string]int{}
	revenueTotal := 0
	for _, it := range items {
		if it.Category != types.CategoryRevenue {
			continue
		}
		revenueTotal++
		revenueByDay[it.SendAt.Format("2006-01-02")]++
		if it.Style != "" {
			styleCount[it.Style]++
		}
	}
	if revenueTotal == 0 {
		return
	}
	for day, count := range revenueByDay {
		if share := float64(count) / float64(revenueTotal); share > revenueConcentration {
			report.Warnings = append(report.Warnings, types.AnomalyIssue{
				Type:    types.IssueRevenueConcentration,
				Message: fmt.Sprintf("%.0f%% of the week's revenue sends fall on one day", share*100),
				Day:     day,
			})
		}
	}
	if revenueTotal >= contentTypeMinItems {
		for style, count := range styleCount {
			if share := float64(count) / float64(revenueTotal); share > contentTypeShare {
				report.Warnings = append(report.Warnings, types.AnomalyIssue{
					Type:    types.IssueContentTypeShare,
					Message: fmt.Sprintf("style %q carries %.0f%% of the week's revenue sends", style, share*100),
				})
			}
		}
	}
}

func (v *Validator) findOpportunities(report *types.AnomalyReport, items []types.ScheduleItem, history []float64) {
	days := map[string]bool{}
	peakDays := map[string]bool{}
	weekendItems := 0
	maxPrice := 0.0
	for _, it := range items {
		day := it.SendAt.Format("2006-01-02")
		days[day] = true
		if h := it.SendAt.Hour(); h >= peakStartHour && h < peakEndHour {
			peakDays[day] = true
		}
		if wd := it.SendAt.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekendItems++
		}
		if it.Price > maxPrice {
			maxPrice = it.Price
		}
	}
	emptyPeak := 0
	for day := range days {
		if !peakDays[day] {
			emptyPeak++
		}
	}
	if emptyPeak > 0 {
		report.Opportunities = append(report.Opportunities,
			fmt.Sprintf("%d day(s) have nothing in the 19:00-22:00 peak window", emptyPeak))
	}
	if len(days) >= 6 && float64(weekendItems)/float64(len(items)) < 0.2 {
		report.Opportunities = append(report.Opportunities,
			"weekend volume is light relative to the rest of the week")
	}
	if len(history) >= minPriceSamples {
		if p75 := percentile(history, 0.75); maxPrice > 0 && maxPrice < p75 {
			report.Opportunities = append(report.Opportunities,
				fmt.Sprintf("no item priced above the creator's 75th percentile (%.2f)", p75))
		}
	}
}

func meanStd(samples []float64) (float64, float64) {
	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))
	variance := 0.0
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	return mean, math.Sqrt(variance)
}

func percentile(samples []float64, p float64) float64 {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
