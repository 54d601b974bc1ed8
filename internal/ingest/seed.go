package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/curationlabs/core/internal/curationerr"
	"github.com/curationlabs/core/internal/integrity"
	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/storage"
)

const defaultReviewConfidenceThreshold = 0.8

// Seeder populates the relational store from per-product extraction
// artifacts. One Seeder is reused across a whole category's import run; the
// rules it consults come from a shared rules.Cache so a reload mid-run is
// visible to the next product.
type Seeder struct {
	db    *storage.DB
	rules *rules.Cache
}

// NewSeeder builds a Seeder over db, resolving field governance through
// rulesCache.
func NewSeeder(db *storage.DB, rulesCache *rules.Cache) *Seeder {
	return &Seeder{db: db, rules: rulesCache}
}

// SeedProduct ingests one product's candidates, idempotently: calling this
// twice with the same ProductSeed leaves storage.Counts unchanged on the
// second call.
func (s *Seeder) SeedProduct(ctx context.Context, category string, seed ProductSeed) (Report, error) {
	rs, ok := s.rules.Get(category)
	if !ok {
		return Report{}, fmt.Errorf("ingest: no rules loaded for category %q", category)
	}

	item, err := s.resolveItem(ctx, category, seed)
	if err != nil {
		return Report{}, err
	}
	report := Report{ItemID: item.ID}

	finalIDs := disambiguateIDs(seed.Candidates)

	byField := map[string][]int{}
	var fieldOrder []string
	for i, c := range seed.Candidates {
		if _, ok := byField[c.FieldKey]; !ok {
			fieldOrder = append(fieldOrder, c.FieldKey)
		}
		byField[c.FieldKey] = append(byField[c.FieldKey], i)
	}

	componentIDByType := map[string]string{}

	// Anchor fields (field_key == rule.Component) resolve their component
	// identity first, so property fields processed afterward can look it up.
	sort.Slice(fieldOrder, func(i, j int) bool {
		ri, _ := rs.FieldRule(fieldOrder[i])
		rj, _ := rs.FieldRule(fieldOrder[j])
		iAnchor := ri.IsComponentField() && ri.Component == fieldOrder[i]
		jAnchor := rj.IsComponentField() && rj.Component == fieldOrder[j]
		if iAnchor != jAnchor {
			return iAnchor
		}
		return fieldOrder[i] < fieldOrder[j]
	})

	for _, fieldKey := range fieldOrder {
		idxs := byField[fieldKey]
		rule, hasRule := rs.FieldRule(fieldKey)

		top := idxs[0]
		for _, i := range idxs[1:] {
			if betterCandidate(seed.Candidates[i], seed.Candidates[top]) {
				top = i
			}
		}
		topValue := seed.Candidates[top].Value
		topScore := seed.Candidates[top].Score

		for _, i := range idxs {
			c := seed.Candidates[i]
			candidateID := finalIDs[i]

			exists, err := s.db.CandidateIDExists(ctx, category, seed.ProductID, fieldKey, candidateID)
			if err != nil {
				return report, err
			}
			if exists {
				report.CandidatesSkipped++
				continue
			}

			_, err = s.db.InsertCandidate(ctx, model.Candidate{
				Category:         category,
				ProductID:        seed.ProductID,
				FieldKey:         fieldKey,
				CandidateID:      candidateID,
				RawCandidateID:   c.CandidateID,
				Value:            c.Value,
				NormalizedValue:  model.NormalizeEnumValue(c.Value),
				Score:            c.Score,
				Rank:             c.Rank,
				Source:           c.Source,
				Evidence:         c.Evidence,
				IsComponentField: hasRule && rule.IsComponentField(),
				IsListField:      hasRule && rule.IsEnumField() && rule.Contract.Shape == model.ShapeList,
				ComponentType:    rule.Component,
				ContentHash: integrity.ComputeCandidateHash(
					category, seed.ProductID, fieldKey, candidateID, c.Value, c.Evidence.RetrievedAt,
				),
			})
			if err != nil {
				return report, err
			}
			report.CandidatesInserted++
		}

		if !hasRule {
			continue
		}

		if rule.IsComponentField() {
			componentID, err := s.resolveComponentField(ctx, category, rs, rule, fieldKey, topValue, topScore, componentIDByType)
			if err != nil {
				return report, err
			}
			if componentID != "" {
				report.ComponentsUpserted++
				if _, err := s.db.LinkItemComponent(ctx, model.ItemComponentLink{
					ItemID:      item.ID,
					FieldKey:    fieldKey,
					ComponentID: componentID,
					MatchScore:  topScore,
					MatchMethod: "pipeline",
				}); err != nil {
					return report, err
				}
			}
		}

		if rule.IsEnumField() {
			n, err := s.seedEnumValues(ctx, rule, item.ID, fieldKey, idxs, seed.Candidates)
			if err != nil {
				return report, err
			}
			report.ListValuesUpserted += n
		}

		needsReview := topScore < defaultReviewConfidenceThreshold
		if _, err := s.db.UpsertItemFieldState(ctx, model.ItemFieldState{
			ItemID:        item.ID,
			FieldKey:      fieldKey,
			Value:         topValue,
			Confidence:    topScore,
			Source:        model.SourcePipeline,
			NeedsAIReview: needsReview,
		}); err != nil {
			return report, err
		}
		report.FieldStatesWritten++

		if err := s.db.SeedKeyReviewState(ctx, storage.ReviewSlot{
			TargetKind: model.TargetGridKey,
			Category:   category,
			ItemID:     item.ID,
			FieldKey:   fieldKey,
		}); err != nil {
			return report, err
		}
		report.ReviewSlotsSeeded++
	}

	if err := s.backfillReviews(ctx, category, item.ID, seed, finalIDs, byField); err != nil {
		return report, err
	}

	return report, nil
}

func (s *Seeder) resolveItem(ctx context.Context, category string, seed ProductSeed) (model.Item, error) {
	item, err := s.db.GetItemByProductID(ctx, category, seed.ProductID)
	if err == storage.ErrNotFound {
		return s.db.CreateItem(ctx, model.Item{
			Category:  category,
			ProductID: seed.ProductID,
			Identity:  seed.Identity,
			Lifecycle: model.ItemActive,
		})
	}
	return item, err
}

// resolveComponentField finds or creates the ComponentIdentity a field's
// value resolves to. Anchor fields (field_key == rule.Component) name the
// component itself and are resolved by alias lookup against the rules'
// component catalog. Property fields reuse whichever component the anchor
// field for the same rule.Component already resolved this pass.
func (s *Seeder) resolveComponentField(
	ctx context.Context,
	category string,
	rs *rules.Rules,
	rule model.FieldRule,
	fieldKey, topValue string,
	topScore float64,
	componentIDByType map[string]string,
) (string, error) {
	if fieldKey != rule.Component {
		return componentIDByType[rule.Component], nil
	}

	if entry, ok := rs.ResolveComponentAlias(rule.Component, topValue); ok {
		comp, err := s.db.UpsertComponentIdentity(ctx, model.ComponentIdentity{
			ComponentType: rule.Component,
			CanonicalName: entry.CanonicalName,
			Maker:         entry.Maker,
			Aliases:       entry.Aliases,
		})
		if err != nil {
			return "", err
		}
		componentIDByType[rule.Component] = comp.ID
		return comp.ID, nil
	}

	comp, err := s.db.UpsertComponentIdentity(ctx, model.ComponentIdentity{
		ComponentType: rule.Component,
		CanonicalName: topValue,
	})
	if err != nil {
		return "", err
	}
	componentIDByType[rule.Component] = comp.ID

	if _, err := s.db.UpsertComponentValue(ctx, model.ComponentValue{
		ComponentID:   comp.ID,
		ComponentType: rule.Component,
		PropertyKey:   fieldKey,
		Value:         topValue,
		Confidence:    topScore,
		NeedsAIReview: topScore < defaultReviewConfidenceThreshold,
	}); err != nil {
		return "", err
	}
	if err := s.db.SeedKeyReviewState(ctx, storage.ReviewSlot{
		TargetKind:  model.TargetComponentKey,
		Category:    category,
		ComponentID: comp.ID,
		PropertyKey: fieldKey,
	}); err != nil {
		return "", err
	}
	return comp.ID, nil
}

func (s *Seeder) seedEnumValues(ctx context.Context, rule model.FieldRule, itemID, fieldKey string, idxs []int, all []CandidateInput) (int, error) {
	seen := map[string]bool{}
	n := 0
	for _, i := range idxs {
		c := all[i]
		norm := model.NormalizeEnumValue(c.Value)
		if seen[norm] {
			continue
		}
		seen[norm] = true

		lv, err := s.db.UpsertListValue(ctx, model.ListValue{
			EnumName:      rule.Enum,
			Value:         c.Value,
			EnumPolicy:    model.EnumClosed,
			NeedsAIReview: c.Score < defaultReviewConfidenceThreshold,
		})
		if err != nil {
			return n, err
		}
		n++

		if _, err := s.db.LinkItemList(ctx, model.ItemListLink{
			ItemID:      itemID,
			FieldKey:    fieldKey,
			ListValueID: lv.ID,
		}); err != nil {
			return n, err
		}

		if err := s.db.SeedKeyReviewState(ctx, storage.ReviewSlot{
			TargetKind:  model.TargetEnumKey,
			Category:    rule.Category,
			EnumName:    rule.Enum,
			ListValueID: lv.ID,
		}); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *Seeder) backfillReviews(ctx context.Context, category, itemID string, seed ProductSeed, finalIDs []string, byField map[string][]int) error {
	for _, pr := range seed.PreexistingReviews {
		candidateID := pr.CandidateID
		for _, i := range byField[pr.FieldKey] {
			if seed.Candidates[i].CandidateID == pr.CandidateID {
				candidateID = finalIDs[i]
				break
			}
		}

		slot := storage.ReviewSlot{
			TargetKind: model.TargetGridKey,
			Category:   category,
			ItemID:     itemID,
			FieldKey:   pr.FieldKey,
		}
		state, err := s.db.GetKeyReviewState(ctx, slot)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}

		lane := state.Lane(pr.Dimension, pr.Lane)
		if lane == nil {
			return &curationerr.ValidationError{Code: curationerr.CodeLaneContextMismatch, Message: "unknown dimension/lane"}
		}
		now := time.Now().UTC()
		previous := lane.Status
		lane.CandidateID = candidateID
		lane.At = &now
		switch pr.Dimension {
		case model.DimensionUserAccept:
			lane.Status = model.LaneStatusAccepted
		case model.DimensionAIConfirm:
			lane.Status = model.LaneStatusConfirmed
		}

		if _, err := s.db.ApplyLaneTransition(ctx, state, model.KeyReviewAudit{
			RequestID:      "seed-backfill",
			TargetKind:     model.TargetGridKey,
			Category:       category,
			ItemID:         itemID,
			FieldKey:       pr.FieldKey,
			Dimension:      pr.Dimension,
			Lane:           pr.Lane,
			Action:         pr.Action,
			CandidateID:    candidateID,
			PreviousStatus: previous,
			NewStatus:      lane.Status,
			ActorID:        pr.ActorID,
			ActorRole:      pr.ActorRole,
		}); err != nil {
			return err
		}
	}
	return nil
}

func betterCandidate(a, b CandidateInput) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Score > b.Score
}
