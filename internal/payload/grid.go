package payload

import (
	"context"
	"errors"
	"sort"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/storage"
)

// confirmNeedsAIReview is the default confidence threshold below which
// ingestion marks a field as needing AI review (spec §4.2 step 5).
const confirmNeedsAIReview = 0.8

// Selected is the grid payload's resolved-value summary for one field.
type Selected struct {
	Value      string           `json:"value"`
	Confidence float64          `json:"confidence"`
	Color      model.FieldColor `json:"color"`
}

// FieldState is one field's full grid payload entry (spec §4.4.1).
type FieldState struct {
	Selected        Selected           `json:"selected"`
	Source          model.StateSource  `json:"source"`
	Method          string             `json:"method,omitempty"`
	Tier            int                `json:"tier,omitempty"`
	EvidenceURL     string             `json:"evidence_url,omitempty"`
	EvidenceQuote   string             `json:"evidence_quote,omitempty"`
	SourceTimestamp *string            `json:"source_timestamp,omitempty"`
	CandidateCount  int                `json:"candidate_count"`
	Candidates      []CandidateSummary `json:"candidates"`
	NeedsReview     bool               `json:"needs_review"`
	ReasonCodes     []string           `json:"reason_codes,omitempty"`
	Overridden      bool               `json:"overridden"`
}

// GridPayload is field_key -> FieldState for one (category, item).
type GridPayload map[string]FieldState

// BuildGridPayload projects every field on itemID into the grid shape. When
// the category's rules are not loaded, it degrades to the set of fields
// that already have a resolved ItemFieldState row, per spec §7's
// "read endpoints return 200 with partial payloads when helper files are
// missing".
func (b *Builder) BuildGridPayload(ctx context.Context, category, itemID string) (GridPayload, error) {
	fieldKeys, fieldRules, err := b.gridFieldSet(ctx, category, itemID)
	if err != nil {
		return nil, err
	}

	out := make(GridPayload, len(fieldKeys))
	for _, fieldKey := range fieldKeys {
		fs, err := b.buildFieldState(ctx, category, itemID, fieldKey, fieldRules[fieldKey])
		if err != nil {
			return nil, err
		}
		out[fieldKey] = fs
	}
	return out, nil
}

// gridFieldSet resolves the fields to project: every field_key the
// category's rules declare, union'd with any field already carrying a
// resolved ItemFieldState (covers fields ingested before a rules reload).
func (b *Builder) gridFieldSet(ctx context.Context, category, itemID string) ([]string, map[string]model.FieldRule, error) {
	fieldRules := map[string]model.FieldRule{}
	seen := map[string]bool{}
	var keys []string

	if rs, ok := b.rules.Get(category); ok {
		for key, fr := range rs.Fields {
			fieldRules[key] = fr
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}

	states, err := b.db.ListItemFieldStates(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	for _, s := range states {
		if !seen[s.FieldKey] {
			seen[s.FieldKey] = true
			keys = append(keys, s.FieldKey)
		}
	}

	sort.Strings(keys)
	return keys, fieldRules, nil
}

func (b *Builder) buildFieldState(ctx context.Context, category, itemID, fieldKey string, fr model.FieldRule) (FieldState, error) {
	ifs, err := b.db.GetItemFieldState(ctx, itemID, fieldKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return FieldState{}, err
	}
	hasState := err == nil

	rawCands, err := b.db.ListCandidatesForField(ctx, category, itemID, fieldKey)
	if err != nil {
		return FieldState{}, err
	}
	cands := candidatesFromModel(rawCands)
	candidateOrder(cands)

	slot := storage.ReviewSlot{TargetKind: model.TargetGridKey, Category: category, ItemID: itemID, FieldKey: fieldKey}
	reviewState, err := b.db.GetKeyReviewState(ctx, slot)
	hasReviewState := true
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return FieldState{}, err
		}
		hasReviewState = false
	}

	cands = synthesizeSelectedCandidate(cands, hasReviewState, reviewState)

	fs := FieldState{
		Source:         model.SourceUnknown,
		CandidateCount: len(cands),
		Candidates:     cands,
	}
	if hasState {
		fs.Selected = Selected{Value: ifs.Value, Confidence: ifs.Confidence, Color: model.ColorForConfidence(ifs.Confidence)}
		fs.Source = ifs.Source
		fs.Overridden = ifs.Overridden
	}

	backing := backingCandidate(rawCands, ifs, hasState)
	if backing != nil {
		fs.Method = backing.Source.Method
		fs.Tier = backing.Source.Tier
		fs.EvidenceURL = backing.Evidence.URL
		fs.EvidenceQuote = backing.Evidence.Quote
		if !backing.Evidence.RetrievedAt.IsZero() {
			ts := backing.Evidence.RetrievedAt.Format("2006-01-02T15:04:05.999999999Z07:00")
			fs.SourceTimestamp = &ts
		}
	}

	if hasReviewState {
		fs.NeedsReview = reviewState.AIConfirmPrimary.Status != model.LaneStatusConfirmed ||
			reviewState.AIConfirmShared.Status != model.LaneStatusConfirmed
	} else {
		fs.NeedsReview = true
	}

	if fr.FieldKey != "" && fr.PassTarget > 0 && fs.Selected.Confidence < fr.PassTarget {
		fs.Selected.Color = model.ColorRed
		fs.ReasonCodes = append(fs.ReasonCodes, "below_pass_target")
	}

	return fs, nil
}

// backingCandidate picks the candidate that should drive method/tier/
// evidence display: the one the slot actually accepted, falling back to the
// top-ordered (by source_tier asc, score desc) candidate when nothing is
// accepted yet.
func backingCandidate(raw []model.Candidate, ifs model.ItemFieldState, hasState bool) *model.Candidate {
	if hasState && ifs.AcceptedCandidateID != "" {
		for i := range raw {
			if raw[i].CandidateID == ifs.AcceptedCandidateID {
				return &raw[i]
			}
		}
	}
	if len(raw) == 0 {
		return nil
	}
	best := raw[0]
	for _, c := range raw[1:] {
		if c.Source.Tier < best.Source.Tier || (c.Source.Tier == best.Source.Tier && c.Score > best.Score) {
			best = c
		}
	}
	return &best
}

// synthesizeSelectedCandidate implements spec §4.4.1's synthesis rule: a
// selected_candidate_id with no matching row gets a pseudo-candidate so the
// payload stays coherent even after the real candidate was superseded or
// deleted out from under a stale selection.
func synthesizeSelectedCandidate(cands []CandidateSummary, hasReviewState bool, state model.KeyReviewState) []CandidateSummary {
	if !hasReviewState || state.SelectedCandidateID == "" {
		return cands
	}
	for _, c := range cands {
		if c.CandidateID == state.SelectedCandidateID {
			return cands
		}
	}
	return append(cands, CandidateSummary{
		CandidateID: state.SelectedCandidateID,
		Value:       state.SelectedValue,
		Synthesized: true,
	})
}
