// Package conflicts detects constraint violations and cross-field
// contradictions deterministically, feeding the NeedSet engine's
// conflict_mult term and internal/intel's contradiction-decremented reward
// update. It replaces the teacher's embedding-candidate + LLM-validator
// pipeline (internal/conflicts.Scorer/Validator): there is no free-text
// outcome here to embed, only typed field values checked against declared
// constraints, so the two-stage "cheap candidate filter, precise
// confirmation" shape collapses into a single deterministic pass. The
// PairwiseScorer interface shape and exponential-decay reward update
// survive the transplant; the embedding/LLM machinery does not.
package conflicts

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/curationlabs/core/internal/model"
)

// Violation is one constraint a field's current value fails.
type Violation struct {
	FieldKey string `json:"field_key"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// PairwiseScorer classifies whether two field values conflict, mirroring the
// teacher's decision-pair scorer shape (ScorePair(a, b) (score, explanation,
// err)) generalized from embedding similarity to constraint evaluation. An
// external implementation may replace the built-in Detector the same way the
// teacher's akashi.ConflictScorer option replaced its Scorer.
type PairwiseScorer interface {
	ScorePair(fieldKey, valueA, valueB string, fr model.FieldRule) (conflict bool, explanation string)
}

// Detector evaluates field values against their declared constraints and
// against sibling field values for cross-field rules (e.g. max_of_field).
// It is the default PairwiseScorer and the sole decision-maker behind the
// NeedSet engine's conflict_mult term.
type Detector struct{}

// New returns a ready-to-use Detector. Detector carries no state — every
// evaluation is a pure function of its arguments — so the zero value also
// works, but New mirrors the teacher's constructor-everywhere convention.
func New() *Detector {
	return &Detector{}
}

// Evaluate checks value against every constraint fr declares, consulting
// siblings for any max_of_field constraint's reference field. It returns
// every violation found; an empty slice means the value is clean.
func (d *Detector) Evaluate(fr model.FieldRule, value string, siblings map[string]string) []Violation {
	var violations []Violation
	for _, c := range fr.Constraints {
		if v, ok := evaluateConstraint(fr.FieldKey, c, value, siblings); ok {
			violations = append(violations, v)
		}
	}
	return violations
}

// HasConflict reports whether value violates any of fr's constraints — the
// boolean the NeedSet engine's FieldProvenance.ConstraintConflict and spec
// §4.5's conflict_mult term are driven by.
func (d *Detector) HasConflict(fr model.FieldRule, value string, siblings map[string]string) bool {
	return len(d.Evaluate(fr, value, siblings)) > 0
}

// ScorePair implements PairwiseScorer: a and b conflict when evaluating b in
// place of the already-accepted a against fr's constraints surfaces a
// violation that a itself didn't already carry (so an already-nonconformant
// field does not flag every candidate as conflicting with it).
func (d *Detector) ScorePair(fieldKey, a, b string, fr model.FieldRule) (bool, string) {
	baseline := d.HasConflict(fr, a, nil)
	if baseline {
		return false, ""
	}
	violations := d.Evaluate(fr, b, nil)
	if len(violations) == 0 {
		return false, ""
	}
	return true, violations[0].Message
}

func evaluateConstraint(fieldKey string, c model.Constraint, value string, siblings map[string]string) (Violation, bool) {
	switch c.Kind {
	case "range":
		return evaluateRange(fieldKey, c, value)
	case "regex":
		return evaluateRegex(fieldKey, c, value)
	case "one_of":
		return evaluateOneOf(fieldKey, c, value)
	case "max_of_field":
		return evaluateMaxOfField(fieldKey, c, value, siblings)
	default:
		return Violation{}, false
	}
}

func evaluateRange(fieldKey string, c model.Constraint, value string) (Violation, bool) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Violation{}, false // non-numeric values are out of scope for a range check
	}
	if c.Min != nil && n < *c.Min {
		return Violation{FieldKey: fieldKey, Kind: c.Kind, Message: fmt.Sprintf("%s=%s below minimum %v", fieldKey, value, *c.Min)}, true
	}
	if c.Max != nil && n > *c.Max {
		return Violation{FieldKey: fieldKey, Kind: c.Kind, Message: fmt.Sprintf("%s=%s above maximum %v", fieldKey, value, *c.Max)}, true
	}
	return Violation{}, false
}

func evaluateRegex(fieldKey string, c model.Constraint, value string) (Violation, bool) {
	if c.Expr == "" {
		return Violation{}, false
	}
	re, err := regexp.Compile(c.Expr)
	if err != nil {
		return Violation{}, false // malformed rule data, not a value-side conflict
	}
	if !re.MatchString(value) {
		return Violation{FieldKey: fieldKey, Kind: c.Kind, Message: fmt.Sprintf("%s=%q does not match %s", fieldKey, value, c.Expr)}, true
	}
	return Violation{}, false
}

func evaluateOneOf(fieldKey string, c model.Constraint, value string) (Violation, bool) {
	if len(c.OneOf) == 0 {
		return Violation{}, false
	}
	for _, allowed := range c.OneOf {
		if allowed == value {
			return Violation{}, false
		}
	}
	return Violation{FieldKey: fieldKey, Kind: c.Kind, Message: fmt.Sprintf("%s=%q is not one of %v", fieldKey, value, c.OneOf)}, true
}

func evaluateMaxOfField(fieldKey string, c model.Constraint, value string, siblings map[string]string) (Violation, bool) {
	if c.RefField == "" {
		return Violation{}, false
	}
	refValue, ok := siblings[c.RefField]
	if !ok {
		return Violation{}, false // sibling not yet resolved; nothing to compare against
	}
	n, err1 := strconv.ParseFloat(value, 64)
	ref, err2 := strconv.ParseFloat(refValue, 64)
	if err1 != nil || err2 != nil {
		return Violation{}, false
	}
	if n > ref {
		return Violation{FieldKey: fieldKey, Kind: c.Kind, Message: fmt.Sprintf("%s=%v exceeds %s=%v", fieldKey, n, c.RefField, ref)}, true
	}
	return Violation{}, false
}

// DecayReward applies exponential decay over deltaDays with the given
// half-life, the same formula internal/intel's per-(domain, method, field)
// reward update folds in after this package's contradiction signal
// decrements it.
func DecayReward(value, deltaDays, halfLifeDays float64) float64 {
	if deltaDays <= 0 || halfLifeDays <= 0 {
		return value
	}
	return value * math.Exp(-deltaDays/halfLifeDays)
}
