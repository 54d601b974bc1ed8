package model

import "time"

// ItemFieldState is the resolved, currently-visible value for a scalar
// (non-component, non-list) field on an item. It is a projection cache: the
// true source of truth is the accepted/confirmed Candidate, but the state row
// lets readers get the current value without re-running resolution.
type ItemFieldState struct {
	ID         string `json:"id"`
	ItemID     string `json:"item_id"`
	FieldKey   string `json:"field_key"`

	Value      string      `json:"value"`
	Confidence float64     `json:"confidence"`
	Source     StateSource `json:"source"`

	AcceptedCandidateID string `json:"accepted_candidate_id,omitempty"`

	Overridden     bool `json:"overridden"`
	NeedsAIReview  bool `json:"needs_ai_review"`
	AIReviewComplete bool `json:"ai_review_complete"`

	UpdatedAt time.Time `json:"updated_at"`
}
