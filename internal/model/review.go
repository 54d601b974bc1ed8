package model

import "time"

// LaneState is the status of a single lane (primary or shared) within one of
// the two independent acceptance dimensions (ai_confirm, user_accept).
type LaneState struct {
	Status      LaneStatus `json:"status"`
	At          *time.Time `json:"at,omitempty"`
	CandidateID string     `json:"candidate_id,omitempty"`
}

// IsSet reports whether this lane has ever been actioned.
func (s LaneState) IsSet() bool { return s.Status != LaneStatusNull }

// KeyReviewState is the row governing one review slot. Exactly one group of
// slot-identity fields is populated, selected by TargetKind:
//
//   - TargetGridKey:      ItemID + FieldKey
//   - TargetComponentKey: ComponentID + PropertyKey
//   - TargetEnumKey:      EnumName + ListValueID
//
// Each slot carries two fully independent dimensions (ai_confirm, user_accept),
// each itself split into a primary and a shared lane. Actioning one lane of
// one dimension never touches any other lane or dimension on the same slot.
type KeyReviewState struct {
	ID         string     `json:"id"`
	TargetKind TargetKind `json:"target_kind"`
	Category   string     `json:"category"`

	ItemID      string `json:"item_id,omitempty"`
	FieldKey    string `json:"field_key,omitempty"`
	ComponentID string `json:"component_id,omitempty"`
	PropertyKey string `json:"property_key,omitempty"`
	EnumName    string `json:"enum_name,omitempty"`
	ListValueID string `json:"list_value_id,omitempty"`

	AIConfirmPrimary LaneState `json:"ai_confirm_primary"`
	AIConfirmShared  LaneState `json:"ai_confirm_shared"`
	UserAcceptPrimary LaneState `json:"user_accept_primary"`
	UserAcceptShared  LaneState `json:"user_accept_shared"`

	// SelectedValue/SelectedCandidateID is the value+candidate both lanes
	// currently point at. A lane action naming a different pair triggers the
	// selection-regression reset before applying.
	SelectedValue       string `json:"selected_value,omitempty"`
	SelectedCandidateID string `json:"selected_candidate_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// MatchesSelection reports whether (value, candidateID) is the pair this row
// currently has selected. An empty current selection (a freshly seeded row)
// always matches, since there is nothing yet to regress away from.
func (s KeyReviewState) MatchesSelection(value, candidateID string) bool {
	if s.SelectedCandidateID == "" && s.SelectedValue == "" {
		return true
	}
	return s.SelectedValue == value && s.SelectedCandidateID == candidateID
}

// ResetLanesToPending clears every lane back to its pending baseline, used
// when a selection-regression (spec invariant 7) fires.
func (s *KeyReviewState) ResetLanesToPending() {
	for _, lane := range []*LaneState{&s.AIConfirmPrimary, &s.AIConfirmShared, &s.UserAcceptPrimary, &s.UserAcceptShared} {
		lane.Status = LaneStatusPending
		lane.At = nil
		lane.CandidateID = ""
	}
}

// ReviewDimension is which of the two independent acceptance tracks an
// action applies to.
type ReviewDimension string

const (
	DimensionAIConfirm  ReviewDimension = "ai_confirm"
	DimensionUserAccept ReviewDimension = "user_accept"
)

// Lane returns the LaneState an action on (dimension, lane) would read/write.
func (s *KeyReviewState) Lane(dim ReviewDimension, lane Lane) *LaneState {
	switch {
	case dim == DimensionAIConfirm && lane == LanePrimary:
		return &s.AIConfirmPrimary
	case dim == DimensionAIConfirm && lane == LaneShared:
		return &s.AIConfirmShared
	case dim == DimensionUserAccept && lane == LanePrimary:
		return &s.UserAcceptPrimary
	case dim == DimensionUserAccept && lane == LaneShared:
		return &s.UserAcceptShared
	default:
		return nil
	}
}

// ReviewAction is the verb recorded on a KeyReviewAudit row.
type ReviewAction string

const (
	ActionAccept  ReviewAction = "accept"  // user_accept dimension
	ActionConfirm ReviewAction = "confirm" // ai_confirm dimension
	ActionOverride ReviewAction = "override"
	ActionReset   ReviewAction = "reset" // selection-regression reset
)

// KeyReviewAudit is an immutable record of a single lane transition. Rows are
// append-only; the current state is the fold of all audit rows for a slot,
// though KeyReviewState caches the result for fast reads.
type KeyReviewAudit struct {
	ID         string          `json:"id"`
	RequestID  string          `json:"request_id"`
	TargetKind TargetKind      `json:"target_kind"`
	Category   string          `json:"category"`

	ItemID      string `json:"item_id,omitempty"`
	FieldKey    string `json:"field_key,omitempty"`
	ComponentID string `json:"component_id,omitempty"`
	PropertyKey string `json:"property_key,omitempty"`
	EnumName    string `json:"enum_name,omitempty"`
	ListValueID string `json:"list_value_id,omitempty"`

	Dimension ReviewDimension `json:"dimension"`
	Lane      Lane            `json:"lane"`
	Action    ReviewAction    `json:"action"`

	CandidateID   string `json:"candidate_id,omitempty"`
	PreviousStatus LaneStatus `json:"previous_status"`
	NewStatus      LaneStatus `json:"new_status"`

	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"` // "user", "ai"
	CreatedAt time.Time `json:"created_at"`
}

// CandidateReviewStatus is the terminal disposition of a single candidate
// within a slot's ai_confirm dimension.
type CandidateReviewStatus string

const (
	CandidateReviewAccepted CandidateReviewStatus = "accepted"
	CandidateReviewRejected CandidateReviewStatus = "rejected"
)

// CandidateReview is a per-candidate review record backing the ai_confirm
// dimension's candidate-level granularity: a slot's ai_confirm_{lane}_status
// only advances from pending to confirmed once every candidate the slot
// currently has carries a terminal CandidateReview row.
type CandidateReview struct {
	ID         string     `json:"id"`
	TargetKind TargetKind `json:"target_kind"`
	Category   string     `json:"category"`

	ItemID      string `json:"item_id,omitempty"`
	FieldKey    string `json:"field_key,omitempty"`
	ComponentID string `json:"component_id,omitempty"`
	PropertyKey string `json:"property_key,omitempty"`
	EnumName    string `json:"enum_name,omitempty"`
	ListValueID string `json:"list_value_id,omitempty"`

	Lane        Lane                   `json:"lane"`
	CandidateID string                 `json:"candidate_id"`
	Status      CandidateReviewStatus  `json:"status"`
	ActorID     string                 `json:"actor_id,omitempty"`
	ActorRole   string                 `json:"actor_role,omitempty"`
	ReviewedAt  time.Time              `json:"reviewed_at"`
}
