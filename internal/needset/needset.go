// Package needset computes the ranked set of fields still requiring work on
// an item. The scoring formula is fixed (spec §4.5): this package is a pure
// function over its inputs, grounded on internal/service/quality's
// factor-additive scoring style, generalized from a single completeness
// score to a multiplicative need-score with several independent terms.
package needset

import (
	"math"
	"sort"

	"github.com/curationlabs/core/internal/model"
)

// decayFloor is the minimum multiplier decay can apply to confidence, so an
// arbitrarily old candidate never decays all the way to zero effective
// confidence.
const decayFloor = 0.05

// defaultDecayFloor is used when a DecayConfig is supplied without its own
// floor (zero value).
const defaultDecayFloor = decayFloor

// DecayConfig parameterizes confidence decay by evidence age. Omit (pass
// nil) to disable decay entirely, per spec §4.5 ("else confidence").
type DecayConfig struct {
	DecayDays float64 // e-folding time, in days
	Floor     float64 // minimum multiplier; 0 uses defaultDecayFloor
}

func (d *DecayConfig) floor() float64 {
	if d == nil || d.Floor <= 0 {
		return defaultDecayFloor
	}
	return d.Floor
}

// FieldProvenance is the per-field observed state the engine scores against:
// the resolved value (if any), its confidence, the best evidence tier seen,
// how many evidence references back it, its age, and whether a conflicting
// constraint was detected for it.
type FieldProvenance struct {
	FieldKey          string
	Value             string
	Confidence        float64
	BestEvidenceTier  int
	EvidenceCount     int
	AgeDays           float64
	ConstraintConflict bool
}

// Input bundles every argument computeNeedSet (spec §4.5) takes.
type Input struct {
	FieldOrder      []string // field keys to consider; equal scores are ordered by field_key
	Provenance      map[string]FieldProvenance
	FieldRules      map[string]model.FieldRule
	IdentityContext model.IdentityContext
	DecayConfig     *DecayConfig
}

// ReasonCode is one of the fixed set of reasons a field can appear in a
// NeedSet, or be excluded from one.
type ReasonCode string

const (
	ReasonMissing         ReasonCode = "missing"
	ReasonLowConfidence   ReasonCode = "low_conf"
	ReasonTierPrefUnmet   ReasonCode = "tier_pref_unmet"
	ReasonMinRefsFail     ReasonCode = "min_refs_fail"
	ReasonConflict        ReasonCode = "conflict"
	ReasonBlockedByIdentity ReasonCode = "blocked_by_identity"
)

// Need is one field's entry in the ranked NeedSet.
type Need struct {
	FieldKey         string       `json:"field_key"`
	NeedScore        float64      `json:"need_score"`
	RequiredLevel    model.RequiredLevel `json:"required_level"`
	Reasons          []ReasonCode `json:"reasons"`
	EffectiveConfidence float64   `json:"effective_confidence"`
}

// Result is computeNeedSet's full return value.
type Result struct {
	Needs                []Need             `json:"needs"`
	ReasonCounts         map[ReasonCode]int  `json:"reason_counts"`
	RequiredLevelCounts  map[model.RequiredLevel]int `json:"required_level_counts"`
	NeedSetSize          int                 `json:"needset_size"`
	TotalFields          int                 `json:"total_fields"`
	IdentityLockState    model.IdentityLockStatus `json:"identity_lock_state"`
	IdentityAuditRows    []string            `json:"identity_audit_rows,omitempty"`
}

// Compute is the pure function described by spec §4.5.
func Compute(in Input) Result {
	res := Result{
		ReasonCounts:        map[ReasonCode]int{},
		RequiredLevelCounts: map[model.RequiredLevel]int{},
		IdentityLockState:   in.IdentityContext.Status,
		TotalFields:         len(in.FieldOrder),
	}

	for _, fieldKey := range in.FieldOrder {
		rule := in.FieldRules[fieldKey]
		prov := in.Provenance[fieldKey]

		res.RequiredLevelCounts[rule.RequiredLevel]++

		need, included := scoreField(fieldKey, rule, prov, in.IdentityContext, in.DecayConfig)
		if !included {
			continue
		}
		for _, r := range need.Reasons {
			res.ReasonCounts[r]++
		}
		res.Needs = append(res.Needs, need)
	}

	sort.SliceStable(res.Needs, func(i, j int) bool {
		if res.Needs[i].NeedScore != res.Needs[j].NeedScore {
			return res.Needs[i].NeedScore > res.Needs[j].NeedScore
		}
		return res.Needs[i].FieldKey < res.Needs[j].FieldKey
	})
	res.NeedSetSize = len(res.Needs)
	return res
}

// scoreField scores one field, returning (need, false) when the field is
// excluded from the NeedSet outright (spec §4.5: "excluded iff non-missing,
// meets pass_target, satisfies tier preference, and meets min_evidence_refs").
func scoreField(fieldKey string, rule model.FieldRule, prov FieldProvenance, identity model.IdentityContext, decay *DecayConfig) (Need, bool) {
	missing := isMissing(prov.Value)
	effectiveConf := effectiveConfidence(prov.Confidence, prov.AgeDays, decay)

	var reasons []ReasonCode

	identityGated := rule.RequiredLevel == model.RequiredIdentity
	if identity.Status == model.IdentityUnlocked && identityGated {
		cap := rule.PassTarget - 0.05
		if cap < 0 {
			cap = 0
		}
		if effectiveConf > cap {
			effectiveConf = cap
		}
		reasons = append(reasons, ReasonBlockedByIdentity)
	}

	meetsPassTarget := !missing && effectiveConf >= rule.PassTarget
	meetsTierPref := tierAcceptable(prov.BestEvidenceTier, rule.TierPreference)
	meetsMinRefs := prov.EvidenceCount >= rule.MinEvidenceRefs

	excluded := meetsPassTarget && meetsTierPref && meetsMinRefs && len(reasons) == 0
	if excluded {
		return Need{}, false
	}

	if missing {
		reasons = append(reasons, ReasonMissing)
	} else if effectiveConf < rule.PassTarget {
		reasons = append(reasons, ReasonLowConfidence)
	}
	if !meetsTierPref {
		reasons = append(reasons, ReasonTierPrefUnmet)
	}
	if !meetsMinRefs {
		reasons = append(reasons, ReasonMinRefsFail)
	}
	if prov.ConstraintConflict {
		reasons = append(reasons, ReasonConflict)
	}

	score := needScore(missing, effectiveConf, rule, prov, meetsTierPref)

	return Need{
		FieldKey:            fieldKey,
		NeedScore:           score,
		RequiredLevel:       rule.RequiredLevel,
		Reasons:             reasons,
		EffectiveConfidence: effectiveConf,
	}, true
}

// needScore implements the spec §4.5 product formula:
//
//	need_score = missing_mult × conf_term × required_weight × tier_deficit × min_refs_deficit × conflict_mult
func needScore(missing bool, effectiveConf float64, rule model.FieldRule, prov FieldProvenance, meetsTierPref bool) float64 {
	missingMult := 1.0
	if missing {
		missingMult = 2.0
	}

	confTerm := 1 - effectiveConf

	requiredWeight := rule.RequiredLevel.RequiredWeight()

	tierDeficit := 1.0
	if !meetsTierPref {
		tierDeficit = 2.0
	}

	minRefsDeficit := 1.0
	if deficit := rule.MinEvidenceRefs - prov.EvidenceCount; deficit > 0 {
		minRefsDeficit = 1 + float64(deficit)*0.5
	}

	conflictMult := 1.0
	if prov.ConstraintConflict {
		conflictMult = 2.0
	}

	return missingMult * confTerm * requiredWeight * tierDeficit * minRefsDeficit * conflictMult
}

// effectiveConfidence applies exponential age decay when decay is configured,
// per spec §4.5: effective_confidence = confidence × max(decay_floor, exp(-age_days/decay_days)).
func effectiveConfidence(confidence, ageDays float64, decay *DecayConfig) float64 {
	if decay == nil || decay.DecayDays <= 0 {
		return confidence
	}
	factor := math.Exp(-ageDays / decay.DecayDays)
	if f := decay.floor(); factor < f {
		factor = f
	}
	return confidence * factor
}

// tierAcceptable reports whether tier is within the field's preferred tier
// set. An empty preference list accepts any tier.
func tierAcceptable(tier int, preference []int) bool {
	if len(preference) == 0 {
		return true
	}
	for _, t := range preference {
		if t == tier {
			return true
		}
	}
	return false
}

func isMissing(value string) bool {
	return value == "" || model.IsUnknown(value)
}
