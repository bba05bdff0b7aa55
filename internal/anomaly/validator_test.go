package anomaly

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// mean 24, std ~2.83
var history = []float64{20, 22, 24, 26, 28}

func revenueItem(day int, hour, minute int, caption string, price float64) types.ScheduleItem {
	return types.ScheduleItem{
		ID:        uuid.New(),
		CreatorID: "creator-1",
		Category:  types.CategoryRevenue,
		CaptionID: caption,
		Price:     price,
		SendAt:    monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
	}
}

func hasIssue(issues []types.AnomalyIssue, typ string) bool {
	for _, is := range issues {
		if is.Type == typ {
			return true
		}
	}
	return false
}

func TestEmptyScheduleBlocked(t *testing.T) {
	v := NewValidator(logger.NewNop())
	report := v.Validate(nil, types.VolumeConfig{}, nil)
	if report.Status != types.AnomalyBlocked {
		t.Fatalf("empty schedule must be BLOCKED, got %s", report.Status)
	}
	if !hasIssue(report.Errors, types.IssueEmptySchedule) {
		t.Fatalf("expected empty_schedule error, got %v", report.Errors)
	}
}

func TestPriceOutlierBlocks(t *testing.T) {
	v := NewValidator(logger.NewNop())
	items := []types.ScheduleItem{
		revenueItem(0, 10, 7, "cap-a", 24),
		revenueItem(1, 11, 7, "cap-b", 36), // z ≈ +4.2
	}
	report := v.Validate(items, types.VolumeConfig{}, history)
	if report.Status != types.AnomalyBlocked {
		t.Fatalf("4-sigma price must block, got %s", report.Status)
	}
	if !hasIssue(report.Errors, types.IssuePriceOutlier) {
		t.Fatalf("expected price_outlier error, got %v", report.Errors)
	}
}

func TestPriceTwoSigmaWarnsOnly(t *testing.T) {
	v := NewValidator(logger.NewNop())
	items := []types.ScheduleItem{
		revenueItem(0, 10, 7, "cap-a", 24),
		revenueItem(1, 11, 7, "cap-b", 31), // z ≈ +2.5
	}
	report := v.Validate(items, types.VolumeConfig{}, history)
	if report.Status != types.AnomalyPass {
		t.Fatalf("2.5-sigma price should only warn, got %s (%v)", report.Status, report.Errors)
	}
	if !hasIssue(report.Warnings, types.IssuePriceOutlier) {
		t.Fatalf("expected price_outlier warning, got %v", report.Warnings)
	}
}

func TestThinPriceHistorySkipsZChecks(t *testing.T) {
	v := NewValidator(logger.NewNop())
	items := []types.ScheduleItem{
		revenueItem(0, 10, 7, "cap-a", 500), // absurd, but unscoreable
	}
	report := v.Validate(items, types.VolumeConfig{}, []float64{20, 22, 24, 26})
	if report.Status != types.AnomalyPass {
		t.Fatalf("thin history must not block, got %s", report.Status)
	}
	if skipped, _ := report.Statistics["price_checks_skipped"].(bool); !skipped {
		t.Fatalf("expected price_checks_skipped in statistics, got %v", report.Statistics)
	}
}

func TestDailyVolumeRatioBands(t *testing.T) {
	v := NewValidator(logger.NewNop())
	vol := types.VolumeConfig{RevenuePerDay: 2, EngagementPerDay: 1, RetentionPerDay: 1}
	for i := range vol.DOWMultipliers {
		vol.DOWMultipliers[i] = 1.0
	}

	// 9 items on one day against an expected 4 is ratio 2.25, an error.
	over := make([]types.ScheduleItem, 0, 9)
	for i := 0; i < 9; i++ {
		over = append(over, revenueItem(0, 8+i, 7, "", 0))
	}
	report := v.Validate(over, vol, nil)
	if report.Status != types.AnomalyBlocked || !hasIssue(report.Errors, types.IssueVolumeRatio) {
		t.Fatalf("ratio 2.25 must block with volume_ratio, got %s %v", report.Status, report.Errors)
	}

	// 1 item against an expected 4 is ratio 0.25, a warning.
	report = v.Validate([]types.ScheduleItem{revenueItem(0, 10, 7, "", 0)}, vol, nil)
	if report.Status != types.AnomalyPass || !hasIssue(report.Warnings, types.IssueVolumeRatio) {
		t.Fatalf("ratio 0.25 must warn, got %s %v", report.Status, report.Warnings)
	}
}

func TestDuplicateCaptionAndTimestampBlock(t *testing.T) {
	v := NewValidator(logger.NewNop())

	dupCaption := []types.ScheduleItem{
		revenueItem(0, 10, 7, "cap-a", 20),
		revenueItem(0, 14, 7, "cap-a", 22),
	}
	report := v.Validate(dupCaption, types.VolumeConfig{}, nil)
	if report.Status != types.AnomalyBlocked || !hasIssue(report.Errors, types.IssueDuplicateCaption) {
		t.Fatalf("same-day duplicate caption must block, got %s %v", report.Status, report.Errors)
	}

	// Same caption on different days is fine.
	report = v.Validate([]types.ScheduleItem{
		revenueItem(0, 10, 7, "cap-a", 20),
		revenueItem(1, 10, 7, "cap-a", 22),
	}, types.VolumeConfig{}, nil)
	if report.Status != types.AnomalyPass {
		t.Fatalf("cross-day caption reuse must pass, got %s %v", report.Status, report.Errors)
	}

	a := revenueItem(0, 10, 7, "cap-a", 20)
	b := revenueItem(0, 10, 7, "cap-b", 22)
	report = v.Validate([]types.ScheduleItem{a, b}, types.VolumeConfig{}, nil)
	if report.Status != types.AnomalyBlocked || !hasIssue(report.Errors, types.IssueDuplicateTimestamp) {
		t.Fatalf("duplicate send time must block, got %s %v", report.Status, report.Errors)
	}
}

func TestClusteringWarns(t *testing.T) {
	v := NewValidator(logger.NewNop())
	items := []types.ScheduleItem{
		revenueItem(0, 10, 7, "cap-a", 0),
		revenueItem(0, 10, 37, "cap-b", 0),
		revenueItem(0, 11, 12, "cap-c", 0),
		revenueItem(0, 11, 52, "cap-d", 0),
		revenueItem(0, 18, 7, "cap-e", 0),
	}
	report := v.Validate(items, types.VolumeConfig{}, nil)
	if !hasIssue(report.Warnings, types.IssueClustering) {
		t.Fatalf("4 items in 2h must warn, got %v", report.Warnings)
	}

	spread := []types.ScheduleItem{
		revenueItem(0, 9, 7, "cap-a", 0),
		revenueItem(0, 12, 7, "cap-b", 0),
		revenueItem(0, 15, 7, "cap-c", 0),
		revenueItem(0, 18, 7, "cap-d", 0),
	}
	report = v.Validate(spread, types.VolumeConfig{}, nil)
	if hasIssue(report.Warnings, types.IssueClustering) {
		t.Fatalf("spread items must not warn, got %v", report.Warnings)
	}
}

func TestRevenueConcentrationWarns(t *testing.T) {
	v := NewValidator(logger.NewNop())
	items := []types.ScheduleItem{
		revenueItem(0, 9, 7, "cap-a", 0),
		revenueItem(0, 12, 7, "cap-b", 0),
		revenueItem(0, 15, 7, "cap-c", 0),
		revenueItem(1, 10, 7, "cap-d", 0),
	}
	report := v.Validate(items, types.VolumeConfig{}, nil)
	if !hasIssue(report.Warnings, types.IssueRevenueConcentration) {
		t.Fatalf("75%% revenue on one day must warn, got %v", report.Warnings)
	}
}

func TestContentTypeShareWarns(t *testing.T) {
	v := NewValidator(logger.NewNop())
	items := make([]types.ScheduleItem, 0, 8)
	styles := []string{"tease", "tease", "tease", "tease", "direct", "bundle", "personal", "urgency"}
	for i, style := range styles {
		it := revenueItem(i%4, 9+i, 7, "", 0)
		it.CaptionID = "cap-" + style + string(rune('0'+i))
		it.Style = style
		items = append(items, it)
	}
	report := v.Validate(items, types.VolumeConfig{}, nil)
	if !hasIssue(report.Warnings, types.IssueContentTypeShare) {
		t.Fatalf("50%% style share across 8 sends must warn, got %v", report.Warnings)
	}
}

// Exactly 6 warnings with no errors crosses the warning budget.
func TestSixWarningsPassWithWarnings(t *testing.T) {
	v := NewValidator(logger.NewNop())
	vol := types.VolumeConfig{RevenuePerDay: 2, EngagementPerDay: 1, RetentionPerDay: 1}
	for i := range vol.DOWMultipliers {
		vol.DOWMultipliers[i] = 1.0
	}
	// One item per day over 6 days: six ratio-0.25 warnings, nothing else.
	items := make([]types.ScheduleItem, 0, 6)
	for day := 0; day < 6; day++ {
		items = append(items, revenueItem(day, 10, 7, "", 0))
	}
	report := v.Validate(items, vol, nil)
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	if len(report.Warnings) != 6 {
		t.Fatalf("expected exactly 6 warnings, got %d: %v", len(report.Warnings), report.Warnings)
	}
	if report.Status != types.AnomalyPassWarnings {
		t.Fatalf("6 warnings must yield PASS_WITH_WARNINGS, got %s", report.Status)
	}
}

func TestCleanSchedulePasses(t *testing.T) {
	v := NewValidator(logger.NewNop())
	vol := types.VolumeConfig{RevenuePerDay: 2, EngagementPerDay: 1, RetentionPerDay: 1}
	for i := range vol.DOWMultipliers {
		vol.DOWMultipliers[i] = 1.0
	}
	items := []types.ScheduleItem{}
	for day := 0; day < 3; day++ {
		items = append(items,
			revenueItem(day, 9, 7, "cap-a-"+string(rune('0'+day)), 24),
			revenueItem(day, 13, 22, "cap-b-"+string(rune('0'+day)), 26),
			revenueItem(day, 17, 41, "", 0),
			revenueItem(day, 20, 11, "", 0),
		)
	}
	report := v.Validate(items, vol, history)
	if report.Status != types.AnomalyPass {
		t.Fatalf("clean schedule must pass, got %s errors=%v warnings=%v", report.Status, report.Errors, report.Warnings)
	}
}

func TestOpportunities(t *testing.T) {
	v := NewValidator(logger.NewNop())
	// Nothing in the evening peak window.
	items := []types.ScheduleItem{
		revenueItem(0, 9, 7, "cap-a", 20),
		revenueItem(0, 13, 7, "cap-b", 21),
	}
	report := v.Validate(items, types.VolumeConfig{}, history)
	if len(report.Opportunities) == 0 {
		t.Fatalf("expected peak-window opportunity, got none")
	}
}
