package model

import "time"

// ListValue is a single entry in an enum/list catalog (e.g. one connector
// type in a "connector_types" list). enum_key review targets mutate these
// rows directly; renaming one cascades to every ItemListLink pointing at it.
type ListValue struct {
	ID               string `json:"id"`
	EnumName         string `json:"enum_name"`
	Value            string `json:"value"`
	NormalizedValue  string `json:"normalized_value"`

	EnumPolicy EnumPolicy `json:"enum_policy"`

	AcceptedCandidateID string `json:"accepted_candidate_id,omitempty"`

	Overridden    bool `json:"overridden"`
	NeedsAIReview bool `json:"needs_ai_review"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemListLink joins an item's list-shaped field to one member value. A field
// with Shape == ShapeList has zero or more of these per item.
type ItemListLink struct {
	ID          string `json:"id"`
	ItemID      string `json:"item_id"`
	FieldKey    string `json:"field_key"`
	ListValueID string `json:"list_value_id"`
}
