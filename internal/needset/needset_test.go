package needset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/model"
)

func TestCompute_ExcludesFieldsMeetingAllThresholds(t *testing.T) {
	in := Input{
		FieldOrder: []string{"weight", "dpi"},
		FieldRules: map[string]model.FieldRule{
			"weight": {FieldKey: "weight", RequiredLevel: model.RequiredRequired, PassTarget: 0.8, MinEvidenceRefs: 1},
			"dpi":    {FieldKey: "dpi", RequiredLevel: model.RequiredCritical, PassTarget: 0.8, MinEvidenceRefs: 1},
		},
		Provenance: map[string]FieldProvenance{
			"weight": {Value: "63g", Confidence: 0.95, EvidenceCount: 2},
			"dpi":    {Value: "", Confidence: 0},
		},
	}

	res := Compute(in)

	require.Len(t, res.Needs, 1)
	assert.Equal(t, "dpi", res.Needs[0].FieldKey)
	assert.Contains(t, res.Needs[0].Reasons, ReasonMissing)
	assert.Equal(t, 2, res.TotalFields)
}

func TestCompute_MissingDoublesScoreAndRequiredWeightDominates(t *testing.T) {
	in := Input{
		FieldOrder: []string{"optional_field", "identity_field"},
		FieldRules: map[string]model.FieldRule{
			"optional_field": {FieldKey: "optional_field", RequiredLevel: model.RequiredOptional, PassTarget: 0.8},
			"identity_field": {FieldKey: "identity_field", RequiredLevel: model.RequiredIdentity, PassTarget: 0.8},
		},
		Provenance: map[string]FieldProvenance{
			"optional_field": {Value: ""},
			"identity_field": {Value: ""},
		},
	}

	res := Compute(in)
	require.Len(t, res.Needs, 2)
	// Identity-weighted field must sort first: required_weight 5 vs 1.
	assert.Equal(t, "identity_field", res.Needs[0].FieldKey)
}

func TestCompute_TieBreaksOnFieldKey(t *testing.T) {
	in := Input{
		FieldOrder: []string{"zeta", "alpha"},
		FieldRules: map[string]model.FieldRule{
			"zeta":  {FieldKey: "zeta", RequiredLevel: model.RequiredExpected, PassTarget: 0.8},
			"alpha": {FieldKey: "alpha", RequiredLevel: model.RequiredExpected, PassTarget: 0.8},
		},
		Provenance: map[string]FieldProvenance{
			"zeta":  {Value: ""},
			"alpha": {Value: ""},
		},
	}

	res := Compute(in)
	require.Len(t, res.Needs, 2)
	assert.Equal(t, "alpha", res.Needs[0].FieldKey)
	assert.Equal(t, "zeta", res.Needs[1].FieldKey)
}

func TestCompute_ConflictDoublesScoreAndCounts(t *testing.T) {
	in := Input{
		FieldOrder: []string{"sensor"},
		FieldRules: map[string]model.FieldRule{
			"sensor": {FieldKey: "sensor", RequiredLevel: model.RequiredRequired, PassTarget: 0.8, MinEvidenceRefs: 1},
		},
		Provenance: map[string]FieldProvenance{
			"sensor": {Value: "PAW3950", Confidence: 0.5, EvidenceCount: 1, ConstraintConflict: true},
		},
	}

	res := Compute(in)
	require.Len(t, res.Needs, 1)
	assert.Contains(t, res.Needs[0].Reasons, ReasonConflict)
	assert.Equal(t, 1, res.ReasonCounts[ReasonConflict])
}

func TestCompute_TierPreferenceUnmetAndMinRefsDeficit(t *testing.T) {
	in := Input{
		FieldOrder: []string{"switch_type"},
		FieldRules: map[string]model.FieldRule{
			"switch_type": {
				FieldKey: "switch_type", RequiredLevel: model.RequiredRequired,
				PassTarget: 0.5, TierPreference: []int{1}, MinEvidenceRefs: 3,
			},
		},
		Provenance: map[string]FieldProvenance{
			"switch_type": {Value: "optical", Confidence: 0.9, BestEvidenceTier: 2, EvidenceCount: 1},
		},
	}

	res := Compute(in)
	require.Len(t, res.Needs, 1)
	n := res.Needs[0]
	assert.Contains(t, n.Reasons, ReasonTierPrefUnmet)
	assert.Contains(t, n.Reasons, ReasonMinRefsFail)
	// tier_deficit=2, min_refs_deficit=1+2*0.5=2 -> need_score = 1*0.1*2*2*2*1 = 0.8
	assert.InDelta(t, 0.8, n.NeedScore, 1e-9)
}

func TestCompute_IdentityGatingCapsConfidenceAndAddsReason(t *testing.T) {
	in := Input{
		FieldOrder: []string{"brand"},
		FieldRules: map[string]model.FieldRule{
			"brand": {FieldKey: "brand", RequiredLevel: model.RequiredIdentity, PassTarget: 0.8},
		},
		Provenance: map[string]FieldProvenance{
			"brand": {Value: "Logitech", Confidence: 0.99},
		},
		IdentityContext: model.IdentityContext{Status: model.IdentityUnlocked},
	}

	res := Compute(in)
	require.Len(t, res.Needs, 1)
	n := res.Needs[0]
	assert.Contains(t, n.Reasons, ReasonBlockedByIdentity)
	assert.LessOrEqual(t, n.EffectiveConfidence, 0.75)
	assert.Equal(t, 1, res.ReasonCounts[ReasonBlockedByIdentity])
}

func TestCompute_DecayReducesEffectiveConfidence(t *testing.T) {
	in := Input{
		FieldOrder: []string{"dpi"},
		FieldRules: map[string]model.FieldRule{
			"dpi": {FieldKey: "dpi", RequiredLevel: model.RequiredRequired, PassTarget: 0.5},
		},
		Provenance: map[string]FieldProvenance{
			"dpi": {Value: "26000", Confidence: 0.9, AgeDays: 365},
		},
		DecayConfig: &DecayConfig{DecayDays: 30},
	}

	res := Compute(in)
	require.Len(t, res.Needs, 1)
	assert.Less(t, res.Needs[0].EffectiveConfidence, 0.9)
	assert.GreaterOrEqual(t, res.Needs[0].EffectiveConfidence, 0.9*decayFloor-1e-9)
}
