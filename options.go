package curation

import (
	"io"
	"log/slog"
	"time"

	"github.com/curationlabs/core/internal/toolclient"
)

// Option configures New's resolvedOptions. The pattern is the teacher's:
// a functional-options App built from a zero-value options struct with
// sensible defaults, generalized from akashi.Option's HTTP-server knobs
// (port, notify URL, route registrars) to this library's storage-path and
// external-collaborator knobs.
type Option func(*resolvedOptions)

type resolvedOptions struct {
	specDBPath string
	outputRoot string
	helperRoot string

	logger *slog.Logger

	otelEnabled bool
	otelWriter  io.Writer

	jwtPrivateKeyPath string
	jwtPublicKeyPath  string
	jwtExpiration     time.Duration
	tokenCacheTTL     time.Duration

	traceRingSize int

	cortexEnabled                 bool
	cortexMaxDeepFieldsPerProduct int

	evidenceAuditor   toolclient.EvidenceAuditor
	domExtractor      toolclient.DOMExtractor
	reasoningResolver toolclient.ReasoningResolver
	cortexClient      toolclient.CortexClient
}

func defaultOptions() resolvedOptions {
	return resolvedOptions{
		specDBPath:        "./data/spec-db/curation.sqlite",
		outputRoot:        "./data/output",
		helperRoot:        "./data/helpers",
		logger:            slog.Default(),
		jwtExpiration:     24 * time.Hour,
		tokenCacheTTL:     5 * time.Minute,
		traceRingSize:     20,
		cortexMaxDeepFieldsPerProduct: 3,
	}
}

// WithSpecDB sets the embedded SQLite database file path (spec §6
// "{specDbDir}/{category}.sqlite" collapsed to one database, per DESIGN.md).
func WithSpecDB(path string) Option {
	return func(o *resolvedOptions) { o.specDBPath = path }
}

// WithOutputRoot sets the root directory of the output store. Source-intel
// reports are written under "_source_intel/{category}/" and orchestrator
// traces under "_runtime/traces/runs/"; no per-item artifact files are
// written there.
func WithOutputRoot(path string) Option {
	return func(o *resolvedOptions) { o.outputRoot = path }
}

// WithHelperRoot sets the directory field rules and component/enum
// reference data load from ("{helperRoot}/{category}/_generated/*.json").
func WithHelperRoot(path string) Option {
	return func(o *resolvedOptions) { o.helperRoot = path }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithOTEL enables stdout-exported tracing/metrics, writing to w.
func WithOTEL(w io.Writer) Option {
	return func(o *resolvedOptions) {
		o.otelEnabled = true
		o.otelWriter = w
	}
}

// WithReviewerKeys points the reviewer-identity JWT manager at an Ed25519
// keypair on disk; omit to generate an ephemeral keypair per process.
func WithReviewerKeys(privateKeyPath, publicKeyPath string, expiration time.Duration) Option {
	return func(o *resolvedOptions) {
		o.jwtPrivateKeyPath = privateKeyPath
		o.jwtPublicKeyPath = publicKeyPath
		o.jwtExpiration = expiration
	}
}

// WithTokenCacheTTL overrides how long a verified reviewer token is cached.
func WithTokenCacheTTL(ttl time.Duration) Option {
	return func(o *resolvedOptions) { o.tokenCacheTTL = ttl }
}

// WithTraceRingSize overrides the trace writer's default ring size
// (CURATION_TRACE_RING_SIZE).
func WithTraceRingSize(n int) Option {
	return func(o *resolvedOptions) { o.traceRingSize = n }
}

// WithAggressiveMode enables Aggressive Mode and bounds its deep-task
// dispatch (CORTEX_ENABLED / CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT).
func WithAggressiveMode(maxDeepFieldsPerProduct int) Option {
	return func(o *resolvedOptions) {
		o.cortexEnabled = true
		o.cortexMaxDeepFieldsPerProduct = maxDeepFieldsPerProduct
	}
}

// WithEvidenceAuditor supplies the external evidence-audit collaborator
// Aggressive Mode's audit stage calls (spec §4.8 step 1). Required only
// when Aggressive Mode is enabled.
func WithEvidenceAuditor(a toolclient.EvidenceAuditor) Option {
	return func(o *resolvedOptions) { o.evidenceAuditor = a }
}

// WithDOMExtractor supplies the DOM-rescue collaborator the audit stage
// falls back to for rejected critical fields.
func WithDOMExtractor(d toolclient.DOMExtractor) Option {
	return func(o *resolvedOptions) { o.domExtractor = d }
}

// WithReasoningResolver supplies the reasoning-resolution collaborator. The
// orchestrator holds it, but none of its stages calls it: escalation goes
// straight to the cortex client.
func WithReasoningResolver(r toolclient.ReasoningResolver) Option {
	return func(o *resolvedOptions) { o.reasoningResolver = r }
}

// WithCortexClient supplies the deep-task planner/runner the escalation
// stage dispatches to, and that backs the cortex-route-plan/cortex-run-pass
// CLI subcommands.
func WithCortexClient(c toolclient.CortexClient) Option {
	return func(o *resolvedOptions) { o.cortexClient = c }
}
