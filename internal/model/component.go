package model

import "time"

// ComponentIdentity is a canonical shared-component row (e.g. a specific
// sensor or switch part) that multiple items can link against.
type ComponentIdentity struct {
	ID            string   `json:"id"`
	ComponentType string   `json:"component_type"`
	CanonicalName string   `json:"canonical_name"`
	Maker         string   `json:"maker,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComponentValue is a single property on a ComponentIdentity, e.g. a sensor's
// "max_cpi" property. Review actions against a component_key slot mutate
// these rows; linked items' resolved field state is rewritten as well only
// when the property's effective variance policy is authoritative.
type ComponentValue struct {
	ID            string `json:"id"`
	ComponentID   string `json:"component_id"`
	ComponentType string `json:"component_type"`
	PropertyKey   string `json:"property_key"`

	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`

	AcceptedCandidateID string `json:"accepted_candidate_id,omitempty"`

	Overridden    bool `json:"overridden"`
	NeedsAIReview bool `json:"needs_ai_review"`

	// VariancePolicyOverride, when non-empty, overrides the governing
	// field rule's variance_policy for this one component property (spec
	// §4.4.2's "component-level override").
	VariancePolicyOverride VariancePolicy `json:"variance_policy_override,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// ItemComponentLink joins an item to the component it resolves a
// component-backed field through, plus how confidently that match was made.
type ItemComponentLink struct {
	ID          string  `json:"id"`
	ItemID      string  `json:"item_id"`
	FieldKey    string  `json:"field_key"`
	ComponentID string  `json:"component_id"`
	MatchScore  float64 `json:"match_score"`
	MatchMethod string  `json:"match_method"` // how the link was made; ingest seeding writes "pipeline"
}
