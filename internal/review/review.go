package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curationlabs/core/internal/curationerr"
	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/storage"
)

// Engine applies accept/confirm actions against the three-lane review state
// machine and carries out the propagation that follows from them
// (authoritative component cascade, enum rename cascade).
type Engine struct {
	db    *storage.DB
	rules *rules.Cache
}

// NewEngine builds a review engine over an already-open store and rules
// cache. Both are owned by the caller and shared with the rest of the
// program; the engine holds no state of its own beyond these handles.
func NewEngine(db *storage.DB, rulesCache *rules.Cache) *Engine {
	return &Engine{db: db, rules: rulesCache}
}

// AcceptGrid runs the grid_key user_accept action (key-review-accept on
// either lane).
func (e *Engine) AcceptGrid(ctx context.Context, req GridRequest) (model.KeyReviewState, error) {
	return e.apply(ctx, actionParams{
		targetKind: model.TargetGridKey,
		dimension:  model.DimensionUserAccept,
		slot: storage.ReviewSlot{
			TargetKind: model.TargetGridKey, Category: req.Category, ItemID: req.ItemID, FieldKey: req.FieldKey,
		},
		lane: req.Lane, value: req.Value, candidateID: req.CandidateID,
		actorID: req.ActorID, actorRole: req.ActorRole, requestID: req.RequestID,
	})
}

// ConfirmGrid runs the grid_key ai_confirm action (key-review-confirm on
// either lane).
func (e *Engine) ConfirmGrid(ctx context.Context, req GridRequest) (model.KeyReviewState, error) {
	return e.apply(ctx, actionParams{
		targetKind: model.TargetGridKey,
		dimension:  model.DimensionAIConfirm,
		slot: storage.ReviewSlot{
			TargetKind: model.TargetGridKey, Category: req.Category, ItemID: req.ItemID, FieldKey: req.FieldKey,
		},
		lane: req.Lane, value: req.Value, candidateID: req.CandidateID,
		actorID: req.ActorID, actorRole: req.ActorRole, requestID: req.RequestID,
	})
}

// AcceptComponent runs component-override: user_accept on a component_key
// slot's shared lane.
func (e *Engine) AcceptComponent(ctx context.Context, req ComponentRequest) (model.KeyReviewState, error) {
	return e.apply(ctx, actionParams{
		targetKind: model.TargetComponentKey,
		dimension:  model.DimensionUserAccept,
		slot: storage.ReviewSlot{
			TargetKind: model.TargetComponentKey, Category: req.Category, ComponentID: req.ComponentID, PropertyKey: req.PropertyKey,
		},
		lane: model.LaneShared, value: req.Value, candidateID: req.CandidateID,
		actorID: req.ActorID, actorRole: req.ActorRole, requestID: req.RequestID,
	})
}

// ConfirmComponent runs component-key-review-confirm: ai_confirm on a
// component_key slot's shared lane.
func (e *Engine) ConfirmComponent(ctx context.Context, req ComponentRequest) (model.KeyReviewState, error) {
	return e.apply(ctx, actionParams{
		targetKind: model.TargetComponentKey,
		dimension:  model.DimensionAIConfirm,
		slot: storage.ReviewSlot{
			TargetKind: model.TargetComponentKey, Category: req.Category, ComponentID: req.ComponentID, PropertyKey: req.PropertyKey,
		},
		lane: model.LaneShared, value: req.Value, candidateID: req.CandidateID,
		actorID: req.ActorID, actorRole: req.ActorRole, requestID: req.RequestID,
	})
}

// ActionEnum runs enum-override: req.Dimension picks whether this is an
// ai_confirm or a user_accept action on an enum_key slot's shared lane. When
// NewValue differs from the list entry's current value, applying it also
// triggers the enum rename cascade.
func (e *Engine) ActionEnum(ctx context.Context, req EnumRequest) (model.KeyReviewState, error) {
	return e.apply(ctx, actionParams{
		targetKind: model.TargetEnumKey,
		dimension:  req.Dimension,
		slot: storage.ReviewSlot{
			TargetKind: model.TargetEnumKey, Category: req.Category, EnumName: req.EnumName, ListValueID: req.ListValueID,
		},
		lane: model.LaneShared, value: req.NewValue, candidateID: req.CandidateID,
		actorID: req.ActorID, actorRole: req.ActorRole, requestID: req.RequestID,
	})
}

// apply is the single funnel every accept/confirm action passes through: it
// enforces the candidate-id guard, the unknown-value guard, target-kind
// integrity, selection-regression, the lane transition itself, and finally
// triggers propagation for the slots that need it.
func (e *Engine) apply(ctx context.Context, p actionParams) (model.KeyReviewState, error) {
	if p.candidateID == "" {
		return model.KeyReviewState{}, &curationerr.ValidationError{
			Code: curationerr.CodeCandidateIDRequired, Message: "candidate_id is required",
		}
	}
	if model.IsUnknown(p.value) {
		return model.KeyReviewState{}, &curationerr.ValidationError{
			Code: curationerr.CodeUnknownValueNotActionable, Message: fmt.Sprintf("value %q is not actionable", p.value),
		}
	}

	state, err := e.db.GetKeyReviewState(ctx, p.slot)
	if errors.Is(err, storage.ErrNotFound) {
		if err := e.db.SeedKeyReviewState(ctx, p.slot); err != nil {
			return model.KeyReviewState{}, err
		}
		state, err = e.db.GetKeyReviewState(ctx, p.slot)
	}
	if err != nil {
		return model.KeyReviewState{}, err
	}
	if state.TargetKind != p.targetKind {
		return model.KeyReviewState{}, &curationerr.ValidationError{
			Code: curationerr.CodeLaneContextMismatch, Message: "slot target kind does not match this action's endpoint",
		}
	}

	var resetAudit *model.KeyReviewAudit
	if !state.MatchesSelection(p.value, p.candidateID) {
		reset := baseAudit(p)
		reset.Action = model.ActionReset
		reset.PreviousStatus, reset.NewStatus = model.LaneStatusPending, model.LaneStatusPending
		resetAudit = &reset

		state.ResetLanesToPending()
	}
	state.SelectedValue, state.SelectedCandidateID = p.value, p.candidateID

	lane := state.Lane(p.dimension, p.lane)
	previous := lane.Status
	now := time.Now().UTC()
	lane.CandidateID = p.candidateID
	lane.At = &now

	audit := baseAudit(p)
	audit.CandidateID = p.candidateID
	audit.PreviousStatus = previous

	switch p.dimension {
	case model.DimensionUserAccept:
		audit.Action = model.ActionAccept
		lane.Status = model.LaneStatusAccepted

	case model.DimensionAIConfirm:
		audit.Action = model.ActionConfirm
		if _, err := e.db.UpsertCandidateReview(ctx, model.CandidateReview{
			TargetKind: p.slot.TargetKind, Category: p.slot.Category,
			ItemID: p.slot.ItemID, FieldKey: p.slot.FieldKey, ComponentID: p.slot.ComponentID, PropertyKey: p.slot.PropertyKey,
			EnumName: p.slot.EnumName, ListValueID: p.slot.ListValueID,
			Lane: p.lane, CandidateID: p.candidateID, Status: model.CandidateReviewAccepted,
			ActorID: p.actorID, ActorRole: p.actorRole, ReviewedAt: now,
		}); err != nil {
			return model.KeyReviewState{}, err
		}

		complete, err := e.allCandidatesReviewed(ctx, p.slot, p.lane)
		if err != nil {
			return model.KeyReviewState{}, err
		}
		if complete {
			lane.Status = model.LaneStatusConfirmed
		} else {
			lane.Status = model.LaneStatusPending
		}
	}
	audit.NewStatus = lane.Status

	saved, err := e.db.ApplyLaneTransitionWithReset(ctx, state, resetAudit, audit)
	if err != nil {
		return model.KeyReviewState{}, err
	}

	if p.targetKind == model.TargetGridKey {
		if err := e.syncGridFieldState(ctx, p, saved); err != nil {
			return model.KeyReviewState{}, err
		}
	}
	if err := e.propagate(ctx, p, saved); err != nil {
		return model.KeyReviewState{}, err
	}

	return saved, nil
}

func baseAudit(p actionParams) model.KeyReviewAudit {
	return model.KeyReviewAudit{
		RequestID: p.requestID, TargetKind: p.slot.TargetKind, Category: p.slot.Category,
		ItemID: p.slot.ItemID, FieldKey: p.slot.FieldKey, ComponentID: p.slot.ComponentID, PropertyKey: p.slot.PropertyKey,
		EnumName: p.slot.EnumName, ListValueID: p.slot.ListValueID,
		Dimension: p.dimension, Lane: p.lane,
		ActorID: p.actorID, ActorRole: p.actorRole,
	}
}

// allCandidatesReviewed reports whether every candidate currently backing a
// slot has a terminal (accepted) CandidateReview row for this lane. A slot
// with no candidates at all (a purely manual entry) is vacuously complete.
func (e *Engine) allCandidatesReviewed(ctx context.Context, slot storage.ReviewSlot, lane model.Lane) (bool, error) {
	universe, err := e.candidateUniverse(ctx, slot)
	if err != nil {
		return false, err
	}
	if len(universe) == 0 {
		return true, nil
	}

	reviews, err := e.db.ListCandidateReviews(ctx, slot, lane)
	if err != nil {
		return false, err
	}
	accepted := make(map[string]bool, len(reviews))
	for _, r := range reviews {
		if r.Status == model.CandidateReviewAccepted {
			accepted[r.CandidateID] = true
		}
	}
	for _, id := range universe {
		if !accepted[id] {
			return false, nil
		}
	}
	return true, nil
}

// candidateUniverse collects every distinct candidate_id backing a slot.
// grid_key reads the item's own field candidates directly; component_key and
// enum_key union candidates across every linked item's corresponding field,
// since a shared slot's candidates are whatever evidence any linked item
// surfaced for it.
func (e *Engine) candidateUniverse(ctx context.Context, slot storage.ReviewSlot) ([]string, error) {
	switch slot.TargetKind {
	case model.TargetGridKey:
		cands, err := e.db.ListCandidatesForField(ctx, slot.Category, slot.ItemID, slot.FieldKey)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(cands))
		for i, c := range cands {
			ids[i] = c.CandidateID
		}
		return ids, nil

	case model.TargetComponentKey:
		links, err := e.db.ListItemsLinkedToComponent(ctx, slot.ComponentID)
		if err != nil {
			return nil, err
		}
		return e.unionCandidates(ctx, slot.Category, links, slot.PropertyKey)

	case model.TargetEnumKey:
		links, err := e.db.ListLinksForListValue(ctx, slot.ListValueID)
		if err != nil {
			return nil, err
		}
		return e.unionListCandidates(ctx, slot.Category, links)

	default:
		return nil, nil
	}
}

func (e *Engine) unionCandidates(ctx context.Context, category string, links []model.ItemComponentLink, propertyKey string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, l := range links {
		if l.FieldKey != propertyKey {
			continue
		}
		cands, err := e.db.ListCandidatesForField(ctx, category, l.ItemID, l.FieldKey)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			if !seen[c.CandidateID] {
				seen[c.CandidateID] = true
				out = append(out, c.CandidateID)
			}
		}
	}
	return out, nil
}

func (e *Engine) unionListCandidates(ctx context.Context, category string, links []model.ItemListLink) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, l := range links {
		cands, err := e.db.ListCandidatesForField(ctx, category, l.ItemID, l.FieldKey)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			if !seen[c.CandidateID] {
				seen[c.CandidateID] = true
				out = append(out, c.CandidateID)
			}
		}
	}
	return out, nil
}

// syncGridFieldState keeps item_field_state in step with a grid_key slot's
// own lane action. This is slot-local bookkeeping, not propagation: nothing
// here touches any other item.
func (e *Engine) syncGridFieldState(ctx context.Context, p actionParams, state model.KeyReviewState) error {
	cur, err := e.db.GetItemFieldState(ctx, p.slot.ItemID, p.slot.FieldKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	cur.ItemID, cur.FieldKey = p.slot.ItemID, p.slot.FieldKey

	switch p.dimension {
	case model.DimensionUserAccept:
		cur.Value = p.value
		cur.AcceptedCandidateID = p.candidateID
		cur.Overridden = true
		cur.Source = model.SourceUser
	case model.DimensionAIConfirm:
		confirmed := state.Lane(model.DimensionAIConfirm, p.lane).Status == model.LaneStatusConfirmed
		cur.AIReviewComplete = confirmed
		cur.NeedsAIReview = !confirmed
	}

	_, err = e.db.UpsertItemFieldState(ctx, cur)
	return err
}

// propagate dispatches the cross-row effects that follow from a terminal
// lane transition. grid_key never propagates (a shared grid accept still
// only touches its own row); component_key cascades to every linked item
// when the property is authoritative; enum_key cascades a rename to every
// item holding the old value.
func (e *Engine) propagate(ctx context.Context, p actionParams, state model.KeyReviewState) error {
	lane := state.Lane(p.dimension, p.lane)
	if lane.Status != model.LaneStatusAccepted && lane.Status != model.LaneStatusConfirmed {
		return nil
	}

	switch p.targetKind {
	case model.TargetComponentKey:
		return e.propagateComponentAccept(ctx, p)
	case model.TargetEnumKey:
		return e.propagateEnumAccept(ctx, p)
	default:
		return nil
	}
}

// propagateComponentAccept rewrites the component's own property value and,
// when the property's variance policy (its component-level override, else
// the field rule's) is authoritative, every linked item's resolved field
// state.
func (e *Engine) propagateComponentAccept(ctx context.Context, p actionParams) error {
	componentValues, err := e.db.ListComponentValues(ctx, p.slot.ComponentID)
	if err != nil {
		return err
	}
	var componentType string
	var variancePolicyOverride model.VariancePolicy
	for _, cv := range componentValues {
		if cv.PropertyKey == p.slot.PropertyKey {
			componentType = cv.ComponentType
			variancePolicyOverride = cv.VariancePolicyOverride
			break
		}
	}

	rs, haveRules := e.rules.Get(p.slot.Category)
	var fr model.FieldRule
	var haveRule bool
	if haveRules {
		fr, haveRule = rs.FieldRule(p.slot.PropertyKey)
		if haveRule && componentType == "" {
			componentType = fr.Component
		}
	}

	if _, err := e.db.UpsertComponentValue(ctx, model.ComponentValue{
		ComponentID: p.slot.ComponentID, ComponentType: componentType, PropertyKey: p.slot.PropertyKey,
		Value: p.value, AcceptedCandidateID: p.candidateID, Overridden: p.dimension == model.DimensionUserAccept,
		VariancePolicyOverride: variancePolicyOverride,
	}); err != nil {
		return err
	}

	policy := variancePolicyOverride
	if policy == "" && haveRule {
		policy = fr.VariancePolicy
	}
	if policy != model.VarianceAuthoritative {
		return nil
	}

	links, err := e.db.ListItemsLinkedToComponent(ctx, p.slot.ComponentID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if link.FieldKey != p.slot.PropertyKey {
			continue
		}
		ifs, err := e.db.GetItemFieldState(ctx, link.ItemID, link.FieldKey)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		ifs.ItemID, ifs.FieldKey = link.ItemID, link.FieldKey
		ifs.Value = p.value
		ifs.Source = model.SourceComponentDB
		ifs.NeedsAIReview = true
		if _, err := e.db.UpsertItemFieldState(ctx, ifs); err != nil {
			return err
		}
	}
	return nil
}

// propagateEnumAccept detects whether an enum action renamed the list entry
// (the accepted/confirmed value differs from what the row currently holds)
// and, if so, cascades the rename.
func (e *Engine) propagateEnumAccept(ctx context.Context, p actionParams) error {
	lv, err := e.db.GetListValue(ctx, p.slot.ListValueID)
	if err != nil {
		return err
	}
	if model.NormalizeEnumValue(lv.Value) == model.NormalizeEnumValue(p.value) {
		return nil
	}
	return e.renameEnumValue(ctx, p.slot.Category, lv, p.value)
}

// renameEnumValue implements the rename cascade. When the target value has
// no existing row, the source row is renamed in place: this satisfies every
// observable property the spec's delete+recreate wording calls for (the old
// value becomes absent, the new value becomes present) while preserving the
// row id, so every ItemListLink and the slot's own KeyReviewState keep
// working without needing to be rewired or recreated. When the target value
// already exists as its own row (a merge), links are rewired onto it and the
// source row is deleted.
func (e *Engine) renameEnumValue(ctx context.Context, category string, oldRow model.ListValue, newValue string) error {
	normNew := model.NormalizeEnumValue(newValue)

	target, err := e.db.GetListValueByNormalized(ctx, oldRow.EnumName, normNew)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := e.db.RenameListValue(ctx, oldRow.ID, newValue); err != nil {
			return err
		}
		target = oldRow
		target.Value, target.NormalizedValue = newValue, normNew

	case err != nil:
		return err

	default:
		links, err := e.db.ListLinksForListValue(ctx, oldRow.ID)
		if err != nil {
			return err
		}
		for _, l := range links {
			if err := e.db.RewireItemListLink(ctx, l.ItemID, l.FieldKey, oldRow.ID, target.ID); err != nil {
				return err
			}
		}
		if err := e.db.DeleteListValue(ctx, oldRow.ID); err != nil {
			return err
		}
	}

	links, err := e.db.ListLinksForListValue(ctx, target.ID)
	if err != nil {
		return err
	}
	for _, l := range links {
		ifs, err := e.db.GetItemFieldState(ctx, l.ItemID, l.FieldKey)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		ifs.ItemID, ifs.FieldKey = l.ItemID, l.FieldKey
		ifs.Value = newValue
		ifs.NeedsAIReview = true
		if _, err := e.db.UpsertItemFieldState(ctx, ifs); err != nil {
			return err
		}
	}

	return e.db.SeedKeyReviewState(ctx, storage.ReviewSlot{
		TargetKind: model.TargetEnumKey, Category: category, EnumName: target.EnumName, ListValueID: target.ID,
	})
}
