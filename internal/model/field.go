package model

// FieldContract describes the type/unit/shape of a field's value.
type FieldContract struct {
	Type  string `json:"type"` // e.g. "number", "string", "enum"
	Unit  string `json:"unit,omitempty"`
	Shape Shape  `json:"shape"`
}

// Constraint is a single cross-validation rule attached to a field, e.g.
// a numeric range or a regex. Evaluated by internal/conflicts.Detector.
type Constraint struct {
	Kind  string   `json:"kind"` // "range", "regex", "one_of", "max_of_field", ...
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Expr  string   `json:"expr,omitempty"`
	OneOf []string `json:"one_of,omitempty"`
	// RefField names a sibling field this constraint compares against
	// (e.g. "max_of_field" constraints on a component property).
	RefField string `json:"ref_field,omitempty"`
}

// FieldRule is the governance record for a typed slot on an item.
type FieldRule struct {
	FieldKey       string         `json:"field_key"`
	Category       string         `json:"category"`
	RequiredLevel  RequiredLevel  `json:"required_level"`
	Contract       FieldContract  `json:"contract"`
	Component      string         `json:"component,omitempty"` // component_type when this field resolves via a component
	Enum           string         `json:"enum,omitempty"`      // enum list name when this field is a closed/open list
	VariancePolicy VariancePolicy `json:"variance_policy"`
	Constraints    []Constraint   `json:"constraints,omitempty"`

	// Scoring parameters consumed by the NeedSet engine.
	PassTarget      float64 `json:"pass_target"`
	TierPreference  []int   `json:"tier_preference,omitempty"` // acceptable source tiers, ascending preference
	MinEvidenceRefs int     `json:"min_evidence_refs"`
}

// IsComponentField reports whether the field resolves through a component.
func (r FieldRule) IsComponentField() bool { return r.Component != "" }

// IsEnumField reports whether the field resolves through a list/enum.
func (r FieldRule) IsEnumField() bool { return r.Enum != "" }
