package model

import "time"

// SourceRegistry is a known root domain and the tier/trust level it is
// currently assigned. Tiers feed both candidate ranking and the NeedSet
// engine's tier_deficit term.
type SourceRegistry struct {
	RootDomain string `json:"root_domain"`
	Tier       int    `json:"tier"`
	Label      string `json:"label,omitempty"` // "manufacturer", "retailer", "forum", ...
}

// SourceAssertion records one (root_domain, method) pair having produced a
// candidate for a slot, independent of whether it was ultimately accepted.
// Aggregated by internal/intel into DomainStats.
type SourceAssertion struct {
	ID         string    `json:"id"`
	RootDomain string    `json:"root_domain"`
	Method     string    `json:"method"`
	FieldKey   string    `json:"field_key"`
	Category   string    `json:"category"`
	Accepted   bool      `json:"accepted"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}
