package conflicts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/model"
)

func floatPtr(f float64) *float64 { return &f }

func TestEvaluate_Range(t *testing.T) {
	fr := model.FieldRule{
		FieldKey: "battery_mah",
		Constraints: []model.Constraint{
			{Kind: "range", Min: floatPtr(100), Max: floatPtr(10000)},
		},
	}

	d := New()
	assert.Empty(t, d.Evaluate(fr, "5000", nil))

	violations := d.Evaluate(fr, "50", nil)
	require.Len(t, violations, 1)
	assert.Equal(t, "range", violations[0].Kind)

	violations = d.Evaluate(fr, "99999", nil)
	require.Len(t, violations, 1)

	// non-numeric values are out of scope for a range check
	assert.Empty(t, d.Evaluate(fr, "not-a-number", nil))
}

func TestEvaluate_Regex(t *testing.T) {
	fr := model.FieldRule{
		FieldKey:    "sku",
		Constraints: []model.Constraint{{Kind: "regex", Expr: `^[A-Z]{2}\d{4}$`}},
	}

	d := New()
	assert.Empty(t, d.Evaluate(fr, "AB1234", nil))

	violations := d.Evaluate(fr, "ab1234", nil)
	require.Len(t, violations, 1)
	assert.Equal(t, "regex", violations[0].Kind)
}

func TestEvaluate_OneOf(t *testing.T) {
	fr := model.FieldRule{
		FieldKey:    "shape",
		Constraints: []model.Constraint{{Kind: "one_of", OneOf: []string{"round", "square", "oval"}}},
	}

	d := New()
	assert.Empty(t, d.Evaluate(fr, "square", nil))

	violations := d.Evaluate(fr, "triangle", nil)
	require.Len(t, violations, 1)
	assert.Equal(t, "one_of", violations[0].Kind)
}

func TestEvaluate_MaxOfField(t *testing.T) {
	fr := model.FieldRule{
		FieldKey:    "min_order_qty",
		Constraints: []model.Constraint{{Kind: "max_of_field", RefField: "max_order_qty"}},
	}

	d := New()
	siblings := map[string]string{"max_order_qty": "10"}

	assert.Empty(t, d.Evaluate(fr, "5", siblings))

	violations := d.Evaluate(fr, "20", siblings)
	require.Len(t, violations, 1)
	assert.Equal(t, "max_of_field", violations[0].Kind)

	// sibling not yet resolved: nothing to compare against
	assert.Empty(t, d.Evaluate(fr, "20", nil))
}

func TestEvaluate_UnknownConstraintKindIgnored(t *testing.T) {
	fr := model.FieldRule{
		FieldKey:    "weird",
		Constraints: []model.Constraint{{Kind: "not_a_real_kind"}},
	}
	assert.Empty(t, New().Evaluate(fr, "anything", nil))
}

func TestHasConflict(t *testing.T) {
	fr := model.FieldRule{
		FieldKey:    "shape",
		Constraints: []model.Constraint{{Kind: "one_of", OneOf: []string{"round"}}},
	}
	d := New()
	assert.False(t, d.HasConflict(fr, "round", nil))
	assert.True(t, d.HasConflict(fr, "square", nil))
}

func TestScorePair(t *testing.T) {
	fr := model.FieldRule{
		FieldKey:    "shape",
		Constraints: []model.Constraint{{Kind: "one_of", OneOf: []string{"round"}}},
	}
	d := New()

	conflict, explanation := d.ScorePair("shape", "round", "square", fr)
	assert.True(t, conflict)
	assert.NotEmpty(t, explanation)

	conflict, _ = d.ScorePair("shape", "round", "round", fr)
	assert.False(t, conflict)

	// baseline already nonconformant: b is never flagged as conflicting
	conflict, _ = d.ScorePair("shape", "square", "round", fr)
	assert.False(t, conflict)
}

func TestDecayReward(t *testing.T) {
	assert.Equal(t, 1.0, DecayReward(1.0, 0, 30))
	assert.Equal(t, 1.0, DecayReward(1.0, 10, 0))
	assert.Equal(t, 1.0, DecayReward(1.0, -5, 30))

	decayed := DecayReward(1.0, 30, 30)
	assert.InDelta(t, 0.3679, decayed, 0.001)

	assert.Greater(t, DecayReward(1.0, 1, 30), DecayReward(1.0, 10, 30))
}
