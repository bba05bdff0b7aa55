package types

// AnomalyStatus is the gate verdict for a finished schedule.
type AnomalyStatus string

const (
	AnomalyPass         AnomalyStatus = "PASS"
	AnomalyBlocked      AnomalyStatus = "BLOCKED"
	AnomalyPassWarnings AnomalyStatus = "PASS_WITH_WARNINGS"
)

// Issue types surfaced by the anomaly gate.
const (
	IssueEmptySchedule      = "empty_schedule"
	IssuePriceOutlier       = "price_outlier"
	IssueVolumeRatio        = "volume_ratio"
	IssueDuplicateCaption   = "duplicate_caption"
	IssueDuplicateTimestamp = "duplicate_timestamp"
	IssueClustering         = "clustering"
	IssueRevenueConcentration = "revenue_concentration"
	IssueContentTypeShare     = "content_type_share"
)

// AnomalyIssue is one error or warning produced by the gate.
type AnomalyIssue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	ItemID  string `json:"item_id,omitempty"`
	Day     string `json:"day,omitempty"`
}

// AnomalyReport is the immutable gate output attached to the saga's result.
// Blocked schedules are a business outcome, not a defect: the report travels
// as data, never as an error.
type AnomalyReport struct {
	Status        AnomalyStatus  `json:"status"`
	Errors        []AnomalyIssue `json:"errors"`
	Warnings      []AnomalyIssue `json:"warnings"`
	Opportunities []string       `json:"opportunities"`
	Statistics    map[string]any `json:"statistics"`
}
