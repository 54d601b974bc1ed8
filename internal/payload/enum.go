package payload

import (
	"context"
	"errors"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/storage"
)

// EnumValueSource classifies where an enum member's current value came from,
// the three-way taxonomy spec §4.4.3 defines for enum payloads (distinct
// from model.StateSource's wider grid/component vocabulary).
type EnumValueSource string

const (
	EnumSourceWorkbook EnumValueSource = "workbook"
	EnumSourcePipeline EnumValueSource = "pipeline"
	EnumSourceManual   EnumValueSource = "manual"
)

// EnumValuePayload is one list entry's full payload row.
type EnumValuePayload struct {
	Value               string             `json:"value"`
	Source              EnumValueSource    `json:"source"`
	Color               model.FieldColor   `json:"color"`
	Confidence          float64            `json:"confidence"`
	NeedsReview         bool               `json:"needs_review"`
	Candidates          []CandidateSummary `json:"candidates"`
	SourceTimestamp     *string            `json:"source_timestamp,omitempty"`
	AcceptedCandidateID string             `json:"accepted_candidate_id,omitempty"`
}

// EnumMetrics summarizes one field's enum list for quick dashboard display.
type EnumMetrics struct {
	TotalValues      int `json:"total_values"`
	VisibleValues    int `json:"visible_values"`
	NeedsReviewCount int `json:"needs_review_count"`
}

// EnumFieldPayload is one enum-governed field's full payload row.
type EnumFieldPayload struct {
	Field   string             `json:"field"`
	Metrics EnumMetrics        `json:"metrics"`
	Values  []EnumValuePayload `json:"values"`
}

// BuildEnumPayload projects every enum-governed field in category. A field
// qualifies by carrying FieldRule.Enum == enumName; when rules aren't
// loaded, enumName itself is used as the lone field label (degraded mode,
// spec §7).
func (b *Builder) BuildEnumPayload(ctx context.Context, category, enumName string) ([]EnumFieldPayload, error) {
	fields := b.fieldsForEnum(category, enumName)
	if len(fields) == 0 {
		fields = []string{enumName}
	}

	listValues, err := b.db.ListEnumValues(ctx, enumName)
	if err != nil {
		return nil, err
	}

	rs, haveRules := b.rules.Get(category)

	out := make([]EnumFieldPayload, 0, len(fields))
	for _, field := range fields {
		values, metrics, err := b.buildEnumValues(ctx, category, enumName, field, listValues, rs, haveRules)
		if err != nil {
			return nil, err
		}
		out = append(out, EnumFieldPayload{Field: field, Metrics: metrics, Values: values})
	}
	return out, nil
}

func (b *Builder) fieldsForEnum(category, enumName string) []string {
	rs, ok := b.rules.Get(category)
	if !ok {
		return nil
	}
	var fields []string
	for key, fr := range rs.Fields {
		if fr.Enum == enumName {
			fields = append(fields, key)
		}
	}
	return fields
}

func (b *Builder) buildEnumValues(ctx context.Context, category, enumName, field string, listValues []model.ListValue, rs *rules.Rules, haveRules bool) ([]EnumValuePayload, EnumMetrics, error) {
	metrics := EnumMetrics{TotalValues: len(listValues)}

	var out []EnumValuePayload
	for _, lv := range listValues {
		if haveRules && rs.EnumPolicy(enumName) == model.EnumClosed && !rs.IsKnownEnumValue(enumName, lv.Value) {
			// Closed-enum policy violations are held at the candidate
			// level, never surfaced as their own list row.
			continue
		}

		links, err := b.db.ListLinksForListValue(ctx, lv.ID)
		if err != nil {
			return nil, EnumMetrics{}, err
		}

		if !lv.Overridden && len(links) == 0 {
			continue
		}

		cands, err := b.aggregateListValueCandidates(ctx, category, field, links)
		if err != nil {
			return nil, EnumMetrics{}, err
		}
		source := enumValueSource(lv, cands)

		slot := storage.ReviewSlot{TargetKind: model.TargetEnumKey, Category: category, EnumName: enumName, ListValueID: lv.ID}
		reviewState, err := b.db.GetKeyReviewState(ctx, slot)
		needsReview := true
		if err == nil {
			needsReview = reviewState.AIConfirmShared.Status != model.LaneStatusConfirmed
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, EnumMetrics{}, err
		}
		if needsReview {
			metrics.NeedsReviewCount++
		}

		confidence := 0.0
		if best := bestCandidate(cands); best != nil {
			confidence = best.Score
		}

		var ts *string
		if best := bestCandidate(cands); best != nil && best.RetrievedAt != nil {
			s := best.RetrievedAt.Format("2006-01-02T15:04:05.999999999Z07:00")
			ts = &s
		}

		out = append(out, EnumValuePayload{
			Value:               lv.Value,
			Source:              source,
			Color:               model.ColorForConfidence(confidence),
			Confidence:          confidence,
			NeedsReview:         needsReview,
			Candidates:          cands,
			SourceTimestamp:     ts,
			AcceptedCandidateID: lv.AcceptedCandidateID,
		})
		metrics.VisibleValues++
	}

	return out, metrics, nil
}

// enumValueSource classifies a list value's source per spec §4.4.3's
// three-way taxonomy. A user override/rename is manual. Otherwise, a value
// backed only by workbook-method candidates is workbook-sourced; a value
// backed by any non-workbook candidate (or none at all, e.g. a closed-enum
// seed row) is pipeline-sourced.
func enumValueSource(lv model.ListValue, cands []CandidateSummary) EnumValueSource {
	if lv.Overridden {
		return EnumSourceManual
	}
	if len(cands) == 0 {
		return EnumSourcePipeline
	}
	for _, c := range cands {
		if c.Method != "workbook" {
			return EnumSourcePipeline
		}
	}
	return EnumSourceWorkbook
}

func (b *Builder) aggregateListValueCandidates(ctx context.Context, category, field string, links []model.ItemListLink) ([]CandidateSummary, error) {
	seen := map[string]bool{}
	var out []CandidateSummary
	for _, l := range links {
		if l.FieldKey != field {
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

func bestCandidate(cands []CandidateSummary) *CandidateSummary {
	if len(cands) == 0 {
		return nil
	}
	return &cands[0]
}
