package types

// PageType distinguishes paid-subscription pages from free pages.
type PageType string

const (
	PagePaid PageType = "paid"
	PageFree PageType = "free"
)

// CreatorProfile is the upstream contract describing one creator.
type CreatorProfile struct {
	CreatorID string   `json:"creator_id"`
	PageType  PageType `json:"page_type"`
	FanCount  int      `json:"fan_count"`
	Timezone  string   `json:"timezone"`
}

// PerformanceSignals carries the noisy historical inputs that feed volume
// calculation. Zero values mean "signal missing" and push confidence down.
type PerformanceSignals struct {
	Saturation7d  float64 `json:"saturation_7d"`
	Saturation14d float64 `json:"saturation_14d"`
	Saturation30d float64 `json:"saturation_30d"`

	Opportunity7d  float64 `json:"opportunity_7d"`
	Opportunity14d float64 `json:"opportunity_14d"`
	Opportunity30d float64 `json:"opportunity_30d"`

	MessageCount         int `json:"message_count"`
	DaysSinceLastMessage int `json:"days_since_last_message"`
	AvailableCaptionCount int `json:"available_caption_count"`
	RequiredCaptionCount  int `json:"required_caption_count"`
}

// HasSignals reports whether any horizon signal was actually observed.
func (s PerformanceSignals) HasSignals() bool {
	return s.Saturation7d != 0 || s.Saturation14d != 0 || s.Saturation30d != 0 ||
		s.Opportunity7d != 0 || s.Opportunity14d != 0 || s.Opportunity30d != 0
}
