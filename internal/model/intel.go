package model

import "time"

// FieldMethodReward is the rolling, decayed reward for one (root_domain,
// method, field_key) triple: how often that combination's candidates have
// ended up accepted, discounted by recency.
type FieldMethodReward struct {
	RootDomain string  `json:"root_domain"`
	Method     string  `json:"method"`
	FieldKey   string  `json:"field_key"`
	Category   string  `json:"category"`

	Value       float64   `json:"value"` // exponentially decayed reward
	SampleCount int       `json:"sample_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DomainStats is the per-(category, root_domain) rolling aggregate the
// intel aggregator maintains: how many assertions this domain has made,
// how many were accepted, and its per-field reward breakdown.
type DomainStats struct {
	Category    string              `json:"category"`
	RootDomain  string              `json:"root_domain"`
	Assertions  int                 `json:"assertions"`
	Accepted    int                 `json:"accepted"`
	Rewards     []FieldMethodReward `json:"rewards"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// AcceptanceRate returns Accepted/Assertions, or 0 when no assertions exist.
func (d DomainStats) AcceptanceRate() float64 {
	if d.Assertions == 0 {
		return 0
	}
	return float64(d.Accepted) / float64(d.Assertions)
}

// PromotionSuggestion is the emitted recommendation to re-tier a source once
// its rolling stats cross the promotion/demotion thresholds.
type PromotionSuggestion struct {
	RootDomain   string  `json:"root_domain"`
	CurrentTier  int     `json:"current_tier"`
	SuggestedTier int    `json:"suggested_tier"`
	Reason       string  `json:"reason"`
	Confidence   float64 `json:"confidence"`
}
