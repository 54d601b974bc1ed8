// Package toolclient defines the Curation Core's external collaborators —
// the evidence auditor, DOM rescue extractor, reasoning resolver, and cortex
// client referenced only by interface in spec §1/§9 — and a thin MCP-backed
// implementation of each, inverting the teacher's internal/mcp server
// (which exposes akashi's own tools) into a client that calls someone
// else's tools.
package toolclient

import "context"

// AuditVerdict is one field's evidence-audit outcome.
type AuditVerdict struct {
	FieldKey string `json:"field_key"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// EvidenceAuditor checks whether a candidate's evidence actually supports
// its claimed value, per spec §4.8 step 1.
type EvidenceAuditor interface {
	AuditCandidates(ctx context.Context, category, productID string, fieldKeys []string) ([]AuditVerdict, error)
}

// RescuedField is one field's DOM-rescued replacement candidate.
type RescuedField struct {
	FieldKey string  `json:"field_key"`
	Value    string  `json:"value"`
	Score    float64 `json:"score"`
	URL      string  `json:"url,omitempty"`
	Quote    string  `json:"quote,omitempty"`
}

// DOMExtractor re-fetches and re-extracts a bounded set of rejected fields
// directly from the page DOM (spec §4.8 step 1's "DOM rescue lane").
type DOMExtractor interface {
	RescueFields(ctx context.Context, category, productID string, fieldKeys []string) ([]RescuedField, error)
}

// Resolution is a reasoning resolver's verdict for one still-ambiguous field.
type Resolution struct {
	FieldKey   string  `json:"field_key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ReasoningResolver arbitrates remaining ambiguity with an LLM-backed
// reasoning pass, consumed only through this interface — prompting details
// are out of scope (spec §1).
type ReasoningResolver interface {
	Resolve(ctx context.Context, category, productID string, fieldKeys []string) ([]Resolution, error)
}

// DeepTask is one bounded deep-research unit dispatched during escalation
// (spec §4.8 step 3).
type DeepTask struct {
	FieldKey  string `json:"field_key"`
	ProductID string `json:"product_id"`
}

// RoutePlan is the cortex client's dispatch decision for a batch of tasks.
type RoutePlan struct {
	Tasks []DeepTask `json:"tasks"`
}

// RunResult is the outcome of executing a previously planned deep task.
type RunResult struct {
	FieldKey string  `json:"field_key"`
	Value    string  `json:"value"`
	Score    float64 `json:"score"`
}

// CortexClient plans and executes bounded deep-field research tasks (spec
// §4.8 step 3, and the `cortex-route-plan`/`cortex-run-pass` CLI
// subcommands in spec §6).
type CortexClient interface {
	RoutePlan(ctx context.Context, candidates []DeepTask, maxTasks int) (RoutePlan, error)
	RunPass(ctx context.Context, plan RoutePlan) ([]RunResult, error)
}
