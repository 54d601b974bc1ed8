// Package curation wires the Curation Core's storage, rules cache, ingest,
// review, payload, conflict-detection, intel, and Aggressive Mode packages
// into a single entry point. It generalizes akashi.App's functional-options
// lifecycle (New(opts ...Option), background loops, graceful Shutdown) from
// an HTTP-serving decision-audit service to a library an embedder calls
// directly — the HTTP API shell, prompting, and DOM fetching are all out of
// scope here, so App exposes the same operations a handler layer would call
// rather than serving them itself.
package curation

import (
	"context"
	"fmt"
	"time"

	"github.com/curationlabs/core/internal/authz"
	"github.com/curationlabs/core/internal/conflicts"
	"github.com/curationlabs/core/internal/ingest"
	"github.com/curationlabs/core/internal/intel"
	"github.com/curationlabs/core/internal/needset"
	"github.com/curationlabs/core/internal/orchestrator"
	"github.com/curationlabs/core/internal/outputstore"
	"github.com/curationlabs/core/internal/payload"
	"github.com/curationlabs/core/internal/review"
	"github.com/curationlabs/core/internal/reviewapi"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/storage"
	"github.com/curationlabs/core/internal/telemetry"
	"github.com/curationlabs/core/internal/trace"
	"github.com/curationlabs/core/migrations"
)

// App is the wired Curation Core: one embedded database, one rules cache,
// and the operations layered on top of them.
type App struct {
	opts resolvedOptions

	db         *storage.DB
	rulesCache *rules.Cache
	store      outputstore.Store

	authzMgr   *authz.Manager
	tokenCache *authz.TokenCache

	seeder       *ingest.Seeder
	engine       *review.Engine
	builder      *payload.Builder
	detector     *conflicts.Detector
	intelAgg     *intel.Aggregator
	tracer       *trace.Writer
	orchestrator *orchestrator.Orchestrator
	reviewAPI    *reviewapi.API

	otelShutdown telemetry.Shutdown
}

// New builds an App from options, opening (and migrating) its database,
// creating an empty rules cache (categories are loaded explicitly through
// RulesCache().Load), and wiring
// every downstream package. The caller owns the returned App's lifetime and
// must call Close when done with it.
func New(ctx context.Context, opts ...Option) (*App, error) {
	ro := defaultOptions()
	for _, opt := range opts {
		opt(&ro)
	}

	db, err := storage.Open(ctx, ro.specDBPath, ro.logger)
	if err != nil {
		return nil, fmt.Errorf("curation: open storage: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("curation: run migrations: %w", err)
	}

	var otelShutdown telemetry.Shutdown
	if ro.otelEnabled {
		otelShutdown, err = telemetry.Init(ctx, "curation-core", "", true, ro.otelWriter)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("curation: init telemetry: %w", err)
		}
	} else {
		otelShutdown = func(context.Context) error { return nil }
	}

	authzMgr, err := authz.NewManager(ro.jwtPrivateKeyPath, ro.jwtPublicKeyPath, ro.jwtExpiration)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("curation: init reviewer identity manager: %w", err)
	}

	rulesCache := rules.NewCache(ro.helperRoot)
	store := outputstore.NewFileStore(ro.outputRoot)

	seeder := ingest.NewSeeder(db, rulesCache)
	engine := review.NewEngine(db, rulesCache)
	builder := payload.NewBuilder(db, rulesCache)
	detector := conflicts.New()
	intelAgg := intel.New(db, store)
	tracer := trace.New(store)

	orchCfg := orchestrator.Config{
		Enabled:                 ro.cortexEnabled,
		MaxDeepFieldsPerProduct: ro.cortexMaxDeepFieldsPerProduct,
	}
	orch := orchestrator.New(db, rulesCache, ro.evidenceAuditor, ro.domExtractor, ro.reasoningResolver, ro.cortexClient, tracer, orchCfg)

	return &App{
		opts:         ro,
		db:           db,
		rulesCache:   rulesCache,
		store:        store,
		authzMgr:     authzMgr,
		tokenCache:   authz.NewTokenCache(ro.tokenCacheTTL),
		seeder:       seeder,
		engine:       engine,
		builder:      builder,
		detector:     detector,
		intelAgg:     intelAgg,
		tracer:       tracer,
		orchestrator: orch,
		reviewAPI:    reviewapi.New(engine, builder),
		otelShutdown: otelShutdown,
	}, nil
}

// Close releases the token cache's eviction loop, flushes telemetry, and
// closes the underlying database. Safe to call once per App.
func (a *App) Close(ctx context.Context) error {
	a.tokenCache.Close()
	if err := a.otelShutdown(ctx); err != nil {
		return fmt.Errorf("curation: shutdown telemetry: %w", err)
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("curation: close storage: %w", err)
	}
	return nil
}

// IngestProduct seeds one product's extracted candidates into items,
// candidates, components, enums, field state, and review slots.
func (a *App) IngestProduct(ctx context.Context, category string, seed ingest.ProductSeed) (ingest.Report, error) {
	return a.seeder.SeedProduct(ctx, category, seed)
}

// Review exposes the three-lane review state machine's transactional
// boundary for accept/confirm actions on grid, component, and enum slots.
func (a *App) Review() *review.Engine {
	return a.engine
}

// Payloads exposes the grid/component/enum payload builders and the review
// actions layered over them, bundled the way a request handler would call
// them.
func (a *App) Payloads() *reviewapi.API {
	return a.reviewAPI
}

// Conflicts exposes the deterministic constraint detector backing both the
// NeedSet engine's conflict_mult term and ad hoc field validation.
func (a *App) Conflicts() *conflicts.Detector {
	return a.detector
}

// ComputeNeedSet is a pure function over in; App only forwards to it so
// callers that already hold an App don't need a second import for the one
// call they make.
func (a *App) ComputeNeedSet(in needset.Input) needset.Result {
	return needset.Compute(in)
}

// RunAggressiveMode runs the audit/apply/escalation pipeline for one
// product, or short-circuits immediately when Aggressive Mode is disabled.
func (a *App) RunAggressiveMode(ctx context.Context, req orchestrator.RunRequest) (orchestrator.Report, error) {
	if req.TraceRingSize <= 0 {
		req.TraceRingSize = a.opts.traceRingSize
	}
	return a.orchestrator.Run(ctx, req)
}

// RecordIntelRound rolls one round's assertions into the per-domain reward
// and promotion-suggestion report.
func (a *App) RecordIntelRound(ctx context.Context, in intel.RoundInput) (*intel.DomainStatsReport, error) {
	return a.intelAgg.RecordRound(ctx, in)
}

// IssueReviewerToken mints a signed identity token for a human reviewer or
// an automated confirmer, to be presented on subsequent review actions.
func (a *App) IssueReviewerToken(actorID string, role authz.Role) (string, time.Time, error) {
	return a.authzMgr.IssueToken(actorID, role)
}

// VerifyReviewerToken verifies a reviewer identity token, consulting the
// short-TTL verification cache before re-checking the signature.
func (a *App) VerifyReviewerToken(token string) (*authz.Claims, error) {
	return authz.VerifyTokenCached(a.authzMgr, a.tokenCache, token)
}

// RulesCache exposes the category field-rule cache directly, for callers
// that need a FieldRule lookup outside the ingest/review/payload flows
// (e.g. to build a needset.Input's FieldRules map).
func (a *App) RulesCache() *rules.Cache {
	return a.rulesCache
}

// Store exposes the output store every payload and report is written
// through, for callers that need to read a previously-written artifact
// directly.
func (a *App) Store() outputstore.Store {
	return a.store
}
