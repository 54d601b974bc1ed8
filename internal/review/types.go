// Package review implements the three-lane review state machine: grid_key,
// component_key, and enum_key slots, each carrying independent ai_confirm and
// user_accept dimensions split into primary/shared lanes. Engine is the
// transactional boundary every accept/confirm request passes through, and the
// one place propagation (authoritative component cascade, enum rename
// cascade) gets triggered.
package review

import (
	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/storage"
)

// GridRequest actions a grid_key slot (one item's own field).
type GridRequest struct {
	Category    string
	ItemID      string
	FieldKey    string
	Lane        model.Lane
	Value       string
	CandidateID string

	ActorID   string
	ActorRole string
	RequestID string
}

// ComponentRequest actions a component_key slot's shared lane (the endpoints
// component-override and component-key-review-confirm never touch primary).
type ComponentRequest struct {
	Category    string
	ComponentID string
	PropertyKey string
	Value       string
	CandidateID string

	ActorID   string
	ActorRole string
	RequestID string
}

// EnumRequest actions an enum_key slot's shared lane. NewValue is the value
// being accepted/confirmed; when it differs from the list entry's current
// Value, the action also performs an enum rename cascade.
type EnumRequest struct {
	Category    string
	EnumName    string
	ListValueID string
	Dimension   model.ReviewDimension // ai_confirm or user_accept, from the request's "action" field
	NewValue    string
	CandidateID string

	ActorID   string
	ActorRole string
	RequestID string
}

// actionParams is the engine-internal, dimension-agnostic view of a single
// lane action, built by each exported Request's entry point.
type actionParams struct {
	targetKind  model.TargetKind
	dimension   model.ReviewDimension
	slot        storage.ReviewSlot
	lane        model.Lane
	value       string
	candidateID string

	actorID   string
	actorRole string
	requestID string
}
