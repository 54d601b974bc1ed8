package payload

import (
	"context"
	"errors"
	"sort"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/storage"
)

// namePropertyKey and makerPropertyKey are the synthetic property_key values
// a component's identity fields are tracked under, so "name" and "maker"
// reuse the same component_key review machinery as every other property
// instead of needing a parallel code path.
const (
	namePropertyKey  = "name"
	makerPropertyKey = "maker"
)

// PropertySlot is one property's payload entry, whether it's a declared
// ComponentValue property or the synthetic name/maker slot.
type PropertySlot struct {
	PropertyKey        string               `json:"property_key"`
	Value              string               `json:"value"`
	Confidence         float64              `json:"confidence,omitempty"`
	VariancePolicy     model.VariancePolicy `json:"variance_policy,omitempty"`
	Constraints        []model.Constraint   `json:"constraints,omitempty"`
	EnumValues         []string             `json:"enum_values,omitempty"`
	EnumPolicy         model.EnumPolicy     `json:"enum_policy,omitempty"`
	Candidates         []CandidateSummary   `json:"candidates"`
	CandidateCount     int                  `json:"candidate_count"`
	NeedsReview        bool                 `json:"needs_review"`
	Overridden         bool                 `json:"overridden"`
	VarianceViolations []string             `json:"variance_violations,omitempty"`
	ReasonCodes        []string             `json:"reason_codes,omitempty"`
}

// ComponentRow is one component identity's full payload entry (spec §4.4.2).
type ComponentRow struct {
	ComponentID  string                  `json:"component_id"`
	Name         PropertySlot            `json:"name"`
	Maker        PropertySlot            `json:"maker"`
	Aliases      []string                `json:"aliases"`
	Links        []string                `json:"links"`
	NameTracked  bool                    `json:"name_tracked"`
	MakerTracked bool                    `json:"maker_tracked"`
	Properties   map[string]PropertySlot `json:"properties"`
}

// ComponentPayload is every component identity of one component_type within
// a category.
type ComponentPayload []ComponentRow

// BuildComponentPayload projects every ComponentIdentity of componentType.
// Maker isolation falls out for free: ComponentIdentity rows are already
// distinct per (component_type, canonical_name, maker), so iterating them
// and joining on component_id never lets two makers' candidates mix.
func (b *Builder) BuildComponentPayload(ctx context.Context, category, componentType string) (ComponentPayload, error) {
	identities, err := b.db.ListComponentIdentitiesByType(ctx, componentType)
	if err != nil {
		return nil, err
	}

	out := make(ComponentPayload, 0, len(identities))
	for _, id := range identities {
		row, err := b.buildComponentRow(ctx, category, id)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (b *Builder) buildComponentRow(ctx context.Context, category string, id model.ComponentIdentity) (ComponentRow, error) {
	links, err := b.db.ListItemsLinkedToComponent(ctx, id.ID)
	if err != nil {
		return ComponentRow{}, err
	}

	linkedItems := map[string]bool{}
	for _, l := range links {
		linkedItems[l.ItemID] = true
	}
	itemIDs := make([]string, 0, len(linkedItems))
	for itemID := range linkedItems {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)

	values, err := b.db.ListComponentValues(ctx, id.ID)
	if err != nil {
		return ComponentRow{}, err
	}
	byProperty := make(map[string]model.ComponentValue, len(values))
	for _, v := range values {
		byProperty[v.PropertyKey] = v
	}

	row := ComponentRow{
		ComponentID: id.ID,
		Aliases:     id.Aliases,
		Links:       itemIDs,
		Properties:  map[string]PropertySlot{},
	}

	nameVal := byProperty[namePropertyKey]
	if nameVal.Value == "" {
		nameVal.Value = id.CanonicalName
	}
	name, nameTracked, err := b.buildPropertySlot(ctx, category, id.ID, namePropertyKey, nameVal, links)
	if err != nil {
		return ComponentRow{}, err
	}
	row.Name, row.NameTracked = name, nameTracked

	makerVal := byProperty[makerPropertyKey]
	if makerVal.Value == "" {
		makerVal.Value = id.Maker
	}
	maker, makerTracked, err := b.buildPropertySlot(ctx, category, id.ID, makerPropertyKey, makerVal, links)
	if err != nil {
		return ComponentRow{}, err
	}
	row.Maker, row.MakerTracked = maker, makerTracked

	for propertyKey, v := range byProperty {
		if propertyKey == namePropertyKey || propertyKey == makerPropertyKey {
			continue
		}
		slot, _, err := b.buildPropertySlot(ctx, category, id.ID, propertyKey, v, links)
		if err != nil {
			return ComponentRow{}, err
		}
		row.Properties[propertyKey] = slot
	}

	return row, nil
}

func (b *Builder) buildPropertySlot(ctx context.Context, category, componentID, propertyKey string, v model.ComponentValue, links []model.ItemComponentLink) (PropertySlot, bool, error) {
	cands, err := b.aggregatePropertyCandidates(ctx, category, propertyKey, links)
	if err != nil {
		return PropertySlot{}, false, err
	}

	slot := storage.ReviewSlot{TargetKind: model.TargetComponentKey, Category: category, ComponentID: componentID, PropertyKey: propertyKey}
	reviewState, err := b.db.GetKeyReviewState(ctx, slot)
	tracked := true
	needsReview := true
	var reasonCodes []string
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return PropertySlot{}, false, err
		}
		tracked = false
	} else {
		// spec §4.4.2: needs_review tracks ai_confirm_shared alone, the
		// user_accept lane's status is irrelevant here.
		needsReview = reviewState.AIConfirmShared.Status != model.LaneStatusConfirmed
		if reviewState.AIConfirmShared.Status == model.LaneStatusPending {
			reasonCodes = append(reasonCodes, "pending_ai")
		}
	}

	out := PropertySlot{
		PropertyKey:    propertyKey,
		Value:          v.Value,
		Confidence:     v.Confidence,
		VariancePolicy: v.VariancePolicyOverride,
		Candidates:     cands,
		CandidateCount: len(cands),
		NeedsReview:    needsReview,
		Overridden:     v.Overridden,
		ReasonCodes:    reasonCodes,
	}

	rs, haveRules := b.rules.Get(category)
	var fr model.FieldRule
	var haveRule bool
	if haveRules {
		fr, haveRule = rs.FieldRule(propertyKey)
	}
	if out.VariancePolicy == "" {
		if haveRule {
			out.VariancePolicy = fr.VariancePolicy
		} else {
			out.VariancePolicy = model.VarianceNone
		}
	}
	if haveRule {
		out.Constraints = fr.Constraints
		if fr.Enum != "" {
			if def, ok := rs.KnownValues.Enums[fr.Enum]; ok {
				out.EnumValues = def.Values
				out.EnumPolicy = def.Policy
			}
		}
	}

	if out.VariancePolicy != model.VarianceOverrideAllowed {
		out.VarianceViolations = b.varianceViolations(ctx, propertyKey, v.Value, links)
	}

	return out, tracked, nil
}

// varianceViolations lists the item ids whose own ItemFieldState diverges
// from the component's canonical value for this property, skipped entirely
// when the property's policy is override_allowed (spec §4.4.2).
func (b *Builder) varianceViolations(ctx context.Context, propertyKey, canonicalValue string, links []model.ItemComponentLink) []string {
	var violating []string
	for _, l := range links {
		if l.FieldKey != propertyKey {
			continue
		}
		ifs, err := b.db.GetItemFieldState(ctx, l.ItemID, l.FieldKey)
		if err != nil {
			continue
		}
		if ifs.Value != canonicalValue {
			violating = append(violating, l.ItemID)
		}
	}
	sort.Strings(violating)
	return violating
}

func (b *Builder) aggregatePropertyCandidates(ctx context.Context, category, propertyKey string, links []model.ItemComponentLink) ([]CandidateSummary, error) {
	seen := map[string]bool{}
	var out []CandidateSummary
	for _, l := range links {
		if l.FieldKey != propertyKey {
			continue
		}
		raw, err := b.db.ListCandidatesForField(ctx, category, l.ItemID, l.FieldKey)
		if err != nil {
			return nil, err
		}
		for _, cs := range candidatesFromModel(raw) {
			if seen[cs.CandidateID] {
				continue
			}
			seen[cs.CandidateID] = true
			out = append(out, cs)
		}
	}
	candidateOrder(out)
	return out, nil
}
