// Package reviewapi translates the eight review HTTP endpoint contracts (spec
// §6: three payload reads, five lane-action writes) into typed request/
// response structs over internal/review.Engine and internal/payload.Builder.
// No net/http surface is built here — the API shell is out of scope (spec
// §1) — but a future handler has a 1:1 mapping from these structs to wire
// shapes, the same division of labor the teacher's internal/service
// packages keep from internal/server.
package reviewapi

import (
	"context"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/payload"
	"github.com/curationlabs/core/internal/review"
)

// API is the single entry point a handler layer wires against: it pairs the
// write-side Engine with the read-side Builder, mirroring how both are
// always constructed together in this program.
type API struct {
	engine  *review.Engine
	builder *payload.Builder
}

// New wires an API to an already-constructed Engine and Builder.
func New(engine *review.Engine, builder *payload.Builder) *API {
	return &API{engine: engine, builder: builder}
}

// GridPayloadRequest is GET /review/{category}/{item_id}.
type GridPayloadRequest struct {
	Category string
	ItemID   string
}

// GridPayload runs the grid_key read endpoint.
func (a *API) GridPayload(ctx context.Context, req GridPayloadRequest) (payload.GridPayload, error) {
	return a.builder.BuildGridPayload(ctx, req.Category, req.ItemID)
}

// ComponentPayloadRequest is GET /review-components/{category}/{component_type}.
type ComponentPayloadRequest struct {
	Category      string
	ComponentType string
}

// ComponentPayload runs the component_key read endpoint.
func (a *API) ComponentPayload(ctx context.Context, req ComponentPayloadRequest) (payload.ComponentPayload, error) {
	return a.builder.BuildComponentPayload(ctx, req.Category, req.ComponentType)
}

// EnumPayloadRequest is GET /review-enums/{category}/{enum_name}.
type EnumPayloadRequest struct {
	Category string
	EnumName string
}

// EnumPayload runs the enum_key read endpoint.
func (a *API) EnumPayload(ctx context.Context, req EnumPayloadRequest) ([]payload.EnumFieldPayload, error) {
	return a.builder.BuildEnumPayload(ctx, req.Category, req.EnumName)
}

// KeyReviewAcceptRequest is POST /review/{category}/key-review-accept.
type KeyReviewAcceptRequest struct {
	Category    string `json:"category"`
	ItemID      string `json:"item_id"`
	FieldKey    string `json:"field_key"`
	Lane        model.Lane `json:"lane"`
	Value       string `json:"value"`
	CandidateID string `json:"candidate_id"`
	ActorID     string `json:"actor_id"`
	ActorRole   string `json:"actor_role"`
	RequestID   string `json:"request_id"`
}

// KeyReviewResponse is the post-write KeyReviewState row every write
// endpoint returns on 200, per spec §6.
type KeyReviewResponse struct {
	State model.KeyReviewState `json:"state"`
}

// KeyReviewAccept runs POST /review/{category}/key-review-accept.
func (a *API) KeyReviewAccept(ctx context.Context, req KeyReviewAcceptRequest) (KeyReviewResponse, error) {
	state, err := a.engine.AcceptGrid(ctx, review.GridRequest{
		Category: req.Category, ItemID: req.ItemID, FieldKey: req.FieldKey,
		Lane: req.Lane, Value: req.Value, CandidateID: req.CandidateID,
		ActorID: req.ActorID, ActorRole: req.ActorRole, RequestID: req.RequestID,
	})
	return KeyReviewResponse{State: state}, err
}

// KeyReviewConfirmRequest is POST /review/{category}/key-review-confirm.
type KeyReviewConfirmRequest = KeyReviewAcceptRequest

// KeyReviewConfirm runs POST /review/{category}/key-review-confirm.
func (a *API) KeyReviewConfirm(ctx context.Context, req KeyReviewConfirmRequest) (KeyReviewResponse, error) {
	state, err := a.engine.ConfirmGrid(ctx, review.GridRequest{
		Category: req.Category, ItemID: req.ItemID, FieldKey: req.FieldKey,
		Lane: req.Lane, Value: req.Value, CandidateID: req.CandidateID,
		ActorID: req.ActorID, ActorRole: req.ActorRole, RequestID: req.RequestID,
	})
	return KeyReviewResponse{State: state}, err
}

// ComponentOverrideRequest is POST
// /review-components/{category}/component-override.
type ComponentOverrideRequest struct {
	Category    string `json:"category"`
	ComponentID string `json:"component_identity_id"`
	PropertyKey string `json:"property_key"`
	Value       string `json:"value"`
	CandidateID string `json:"candidate_id"`
	ActorID     string `json:"actor_id"`
	ActorRole   string `json:"actor_role"`
	RequestID   string `json:"request_id"`
}

// ComponentOverride runs POST /review-components/{category}/component-override.
func (a *API) ComponentOverride(ctx context.Context, req ComponentOverrideRequest) (KeyReviewResponse, error) {
	state, err := a.engine.AcceptComponent(ctx, review.ComponentRequest{
		Category: req.Category, ComponentID: req.ComponentID, PropertyKey: req.PropertyKey,
		Value: req.Value, CandidateID: req.CandidateID,
		ActorID: req.ActorID, ActorRole: req.ActorRole, RequestID: req.RequestID,
	})
	return KeyReviewResponse{State: state}, err
}

// ComponentKeyReviewConfirmRequest is POST
// /review-components/{category}/component-key-review-confirm.
type ComponentKeyReviewConfirmRequest = ComponentOverrideRequest

// ComponentKeyReviewConfirm runs POST
// /review-components/{category}/component-key-review-confirm.
func (a *API) ComponentKeyReviewConfirm(ctx context.Context, req ComponentKeyReviewConfirmRequest) (KeyReviewResponse, error) {
	state, err := a.engine.ConfirmComponent(ctx, review.ComponentRequest{
		Category: req.Category, ComponentID: req.ComponentID, PropertyKey: req.PropertyKey,
		Value: req.Value, CandidateID: req.CandidateID,
		ActorID: req.ActorID, ActorRole: req.ActorRole, RequestID: req.RequestID,
	})
	return KeyReviewResponse{State: state}, err
}

// EnumOverrideRequest is POST /review-components/{category}/enum-override.
// Action picks ai_confirm vs. user_accept; the endpoint is shared between
// both per spec §6's "via `action` field".
type EnumOverrideRequest struct {
	Category    string                `json:"category"`
	EnumName    string                `json:"enum_name"`
	ListValueID string                `json:"list_value_id"`
	Action      model.ReviewDimension `json:"action"`
	NewValue    string                `json:"new_value"`
	CandidateID string                `json:"candidate_id"`
	ActorID     string                `json:"actor_id"`
	ActorRole   string                `json:"actor_role"`
	RequestID   string                `json:"request_id"`
}

// EnumOverride runs POST /review-components/{category}/enum-override.
func (a *API) EnumOverride(ctx context.Context, req EnumOverrideRequest) (KeyReviewResponse, error) {
	state, err := a.engine.ActionEnum(ctx, review.EnumRequest{
		Category: req.Category, EnumName: req.EnumName, ListValueID: req.ListValueID,
		Dimension: req.Action, NewValue: req.NewValue, CandidateID: req.CandidateID,
		ActorID: req.ActorID, ActorRole: req.ActorRole, RequestID: req.RequestID,
	})
	return KeyReviewResponse{State: state}, err
}
