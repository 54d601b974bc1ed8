// Package orchestrator implements Aggressive Mode (spec §4.8): a sequence of
// awaited async stages, each producing a typed report written to the trace
// ring buffer before the next stage starts (spec §9), grounded on
// internal/service/trace's buffered-stage shape.
package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/storage"
	"github.com/curationlabs/core/internal/telemetry"
	"github.com/curationlabs/core/internal/toolclient"
	"github.com/curationlabs/core/internal/trace"
)

var tracer = telemetry.Tracer("github.com/curationlabs/core/internal/orchestrator")

// Mode is the orchestration mode a run was invoked with. Only ModeAggressive
// runs the escalation loop; every other mode short-circuits (spec §4.8).
type Mode string

const (
	ModeAggressive Mode = "aggressive"
	ModeStandard   Mode = "standard"
)

// FieldCandidate is one field's best current candidate value/score pair, the
// input the audit/apply stages work from.
type FieldCandidate struct {
	FieldKey string
	Value    string
	Score    float64
	Critical bool
}

// RunRequest is one product's Aggressive Mode invocation.
type RunRequest struct {
	Category  string
	ProductID string
	ItemID    string
	RunID     string
	Mode      Mode
	Fields    []FieldCandidate
	TraceRingSize int
}

// Escalation reports the deep-task dispatch decision, if any.
type Escalation struct {
	DeepTriggered bool `json:"deep_triggered"`
	DeepTaskCap   int  `json:"deep_task_cap"`
	DeepTaskCount int  `json:"deep_task_count"`
}

// SearchTracker records this run's search activity (spec §4.8 step 4).
type SearchTracker struct {
	QueryCount       int `json:"query_count"`
	VisitedURLCount  int `json:"visited_url_count"`
}

// Report is Aggressive Mode's full typed return value (spec §4.8 step 5).
type Report struct {
	Enabled       bool          `json:"enabled"`
	Stage         string        `json:"stage"`
	Escalation    Escalation    `json:"escalation"`
	SearchTracker SearchTracker `json:"search_tracker"`
}

// Config bounds Aggressive Mode's resource use, sourced from
// CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT / CORTEX_ENABLED (spec §6).
type Config struct {
	Enabled                 bool
	MaxDeepFieldsPerProduct int
}

// Orchestrator runs Aggressive Mode for one product at a time.
type Orchestrator struct {
	db       *storage.DB
	rules    *rules.Cache
	auditor  toolclient.EvidenceAuditor
	dom      toolclient.DOMExtractor
	resolver toolclient.ReasoningResolver
	cortex   toolclient.CortexClient
	tracer   *trace.Writer
	cfg      Config
}

// New wires an Orchestrator to its storage, rules cache, external
// collaborators, trace writer, and resource bounds.
func New(db *storage.DB, rulesCache *rules.Cache, auditor toolclient.EvidenceAuditor, dom toolclient.DOMExtractor, resolver toolclient.ReasoningResolver, cortex toolclient.CortexClient, tracer *trace.Writer, cfg Config) *Orchestrator {
	return &Orchestrator{db: db, rules: rulesCache, auditor: auditor, dom: dom, resolver: resolver, cortex: cortex, tracer: tracer, cfg: cfg}
}

// Run executes Aggressive Mode for one product, or short-circuits
// immediately for any other mode (spec §4.8: "Non-aggressive modes
// short-circuit with {enabled:false, stage:'disabled'}").
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (Report, error) {
	if !o.cfg.Enabled || req.Mode != ModeAggressive {
		return Report{Enabled: false, Stage: "disabled"}, nil
	}

	ctx, span := tracer.Start(ctx, "orchestrator.Run",
		oteltrace.WithAttributes(attribute.String("category", req.Category), attribute.String("product_id", req.ProductID)))
	defer span.End()

	tracker := SearchTracker{}
	ringSize := req.TraceRingSize
	if ringSize <= 0 {
		ringSize = 20
	}

	// Stage 1: audit, and DOM-rescue any critical field the audit rejects.
	fields, err := o.auditStage(ctx, req, ringSize)
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: audit stage: %w", err)
	}

	// Stage 2: apply every field's current candidate (rescued values
	// included) that isn't already at target; audit verdicts are not
	// consulted here, so a candidate the auditor rejected is applied too.
	if err := o.applyStage(ctx, req, fields, ringSize); err != nil {
		return Report{}, fmt.Errorf("orchestrator: apply stage: %w", err)
	}

	// Stage 3: bounded deep-field escalation for whatever critical fields
	// remain below target.
	escalation, err := o.escalationStage(ctx, req, fields, &tracker, ringSize)
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: escalation stage: %w", err)
	}

	if o.tracer != nil {
		if err := o.tracer.WriteSection(ctx, req.RunID, req.ProductID, "search_tracker", ringSize, tracker); err != nil {
			return Report{}, fmt.Errorf("orchestrator: write search_tracker: %w", err)
		}
	}

	return Report{Enabled: true, Stage: "complete", Escalation: escalation, SearchTracker: tracker}, nil
}

// auditStage audits every field's current candidate, and for any critical
// field the auditor rejects, invokes the DOM rescue lane and re-audits just
// that field (spec §4.8 step 1).
func (o *Orchestrator) auditStage(ctx context.Context, req RunRequest, ringSize int) ([]FieldCandidate, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.auditStage")
	defer span.End()

	keys := fieldKeys(req.Fields)
	verdicts, err := o.auditor.AuditCandidates(ctx, req.Category, req.ProductID, keys)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	if o.tracer != nil {
		if err := o.tracer.WriteSection(ctx, req.RunID, req.ProductID, "audit", ringSize, verdicts); err != nil {
			return nil, err
		}
	}

	rejected := map[string]bool{}
	for _, v := range verdicts {
		if !v.Accepted {
			rejected[v.FieldKey] = true
		}
	}

	var rescueTargets []string
	for _, f := range req.Fields {
		if f.Critical && rejected[f.FieldKey] {
			rescueTargets = append(rescueTargets, f.FieldKey)
		}
	}
	if len(rescueTargets) == 0 {
		return req.Fields, nil
	}

	rescued, err := o.dom.RescueFields(ctx, req.Category, req.ProductID, rescueTargets)
	if err != nil {
		return nil, fmt.Errorf("dom rescue: %w", err)
	}
	if o.tracer != nil {
		if err := o.tracer.WriteSection(ctx, req.RunID, req.ProductID, "dom_rescue", ringSize, rescued); err != nil {
			return nil, err
		}
	}

	byField := map[string]toolclient.RescuedField{}
	for _, r := range rescued {
		byField[r.FieldKey] = r
	}

	out := make([]FieldCandidate, len(req.Fields))
	copy(out, req.Fields)
	for i, f := range out {
		if r, ok := byField[f.FieldKey]; ok {
			out[i].Value, out[i].Score = r.Value, r.Score
		}
	}

	reaudited, err := o.auditor.AuditCandidates(ctx, req.Category, req.ProductID, rescueTargets)
	if err != nil {
		return nil, fmt.Errorf("re-audit: %w", err)
	}
	if o.tracer != nil {
		if err := o.tracer.WriteSection(ctx, req.RunID, req.ProductID, "audit_rescue", ringSize, reaudited); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// applyStage writes every field's current value into ItemFieldState,
// skipping fields already at or above their pass target (spec §4.8 step 2).
func (o *Orchestrator) applyStage(ctx context.Context, req RunRequest, fields []FieldCandidate, ringSize int) error {
	ctx, span := tracer.Start(ctx, "orchestrator.applyStage")
	defer span.End()

	rs, haveRules := o.rules.Get(req.Category)
	var applied []FieldCandidate

	for _, f := range fields {
		passTarget := confirmNeedsAIReview
		if haveRules {
			if fr, ok := rs.FieldRule(f.FieldKey); ok {
				passTarget = fr.PassTarget
			}
		}

		current, err := o.db.GetItemFieldState(ctx, req.ItemID, f.FieldKey)
		if err == nil && current.Confidence >= passTarget && !model.IsUnknown(current.Value) {
			continue
		}

		_, err = o.db.UpsertItemFieldState(ctx, model.ItemFieldState{
			ItemID: req.ItemID, FieldKey: f.FieldKey, Value: f.Value, Confidence: f.Score,
			Source: model.SourcePipeline, NeedsAIReview: f.Score < confirmNeedsAIReview,
		})
		if err != nil {
			return err
		}
		applied = append(applied, f)
	}

	if o.tracer != nil && len(applied) > 0 {
		return o.tracer.WriteSection(ctx, req.RunID, req.ProductID, "apply", ringSize, applied)
	}
	return nil
}

const confirmNeedsAIReview = 0.8

// escalationStage dispatches a bounded set of deep tasks for critical
// fields still below target, when the deep-field cap allows it (spec §4.8
// step 3).
func (o *Orchestrator) escalationStage(ctx context.Context, req RunRequest, fields []FieldCandidate, tracker *SearchTracker, ringSize int) (Escalation, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.escalationStage")
	defer span.End()

	rs, haveRules := o.rules.Get(req.Category)

	var remaining []toolclient.DeepTask
	for _, f := range fields {
		if !f.Critical {
			continue
		}
		passTarget := confirmNeedsAIReview
		if haveRules {
			if fr, ok := rs.FieldRule(f.FieldKey); ok {
				passTarget = fr.PassTarget
			}
		}
		if f.Score < passTarget {
			remaining = append(remaining, toolclient.DeepTask{FieldKey: f.FieldKey, ProductID: req.ProductID})
		}
	}

	if len(remaining) == 0 || o.cfg.MaxDeepFieldsPerProduct <= 0 {
		return Escalation{DeepTaskCap: o.cfg.MaxDeepFieldsPerProduct}, nil
	}

	plan, err := o.cortex.RoutePlan(ctx, remaining, o.cfg.MaxDeepFieldsPerProduct)
	if err != nil {
		return Escalation{}, fmt.Errorf("route plan: %w", err)
	}
	tracker.QueryCount += len(plan.Tasks)

	results, err := o.cortex.RunPass(ctx, plan)
	if err != nil {
		return Escalation{}, fmt.Errorf("run pass: %w", err)
	}
	tracker.VisitedURLCount += len(results)

	if o.tracer != nil {
		if err := o.tracer.WriteSection(ctx, req.RunID, req.ProductID, "escalation", ringSize, results); err != nil {
			return Escalation{}, err
		}
	}

	return Escalation{
		DeepTriggered: len(plan.Tasks) > 0,
		DeepTaskCap:   o.cfg.MaxDeepFieldsPerProduct,
		DeepTaskCount: len(plan.Tasks),
	}, nil
}

func fieldKeys(fields []FieldCandidate) []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.FieldKey
	}
	return keys
}
