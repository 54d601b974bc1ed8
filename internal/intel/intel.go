// Package intel aggregates per-domain rolling statistics with reward decay
// for ranking future extraction work (spec §4.7). It layers a richer
// per-round report (sub-aggregates by path and brand, parser health,
// promotion suggestions) on top of the DB-backed DomainStats/
// FieldMethodReward rows internal/storage already persists, and emits that
// report as JSON via internal/outputstore, reusing internal/conflicts'
// exponential-decay helper for the reward update.
package intel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/curationlabs/core/internal/conflicts"
	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/outputstore"
	"github.com/curationlabs/core/internal/storage"
)

// halfLifeDays is the default exponential-decay half-life applied to
// per-field-method rewards: new_value = old_value * exp(-Δt/halfLife).
const halfLifeDays = 14.0

// promoteThreshold / demoteThreshold are the acceptance-rate cutoffs a
// domain's rolling stats must cross before a tier change is suggested.
const (
	promoteThreshold = 0.75
	demoteThreshold  = 0.25
	minSamplesForSuggestion = 5
)

// Assertion is one (root_domain, method) pair having produced a candidate
// for a field, within one extraction round, plus the signal needed to roll
// it into both the DB-backed aggregate and the richer JSON report.
type Assertion struct {
	RootDomain string
	Method     string
	FieldKey   string
	Category   string
	Path       string // URL path, for per-path sub-aggregates
	Brand      string
	ProductID  string

	Accepted          bool
	AcceptedCritical  bool
	Confidence        float64
	HTTPOK            bool
	IdentityMatch     bool
	MajorAnchorConflict bool
	Contradiction     bool
	Approved          bool // reviewer-approved vs. merely-candidate
	Fingerprint       string
	EndpointSignal    *float64
}

// RoundInput is one extraction round's full set of observed assertions.
type RoundInput struct {
	Category   string
	Assertions []Assertion
	Now        time.Time
}

// Aggregator records rounds and emits reports.
type Aggregator struct {
	db    *storage.DB
	store outputstore.Store
}

// New wires an Aggregator to its storage and output store.
func New(db *storage.DB, store outputstore.Store) *Aggregator {
	return &Aggregator{db: db, store: store}
}

// RecordRound folds one round's assertions into the DB-backed DomainStats
// and FieldMethodReward rows, then regenerates and persists the JSON
// domain-stats report and any promotion suggestions this round triggers.
func (a *Aggregator) RecordRound(ctx context.Context, in RoundInput) (*DomainStatsReport, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	byDomain := map[string][]Assertion{}
	for _, asrt := range in.Assertions {
		byDomain[asrt.RootDomain] = append(byDomain[asrt.RootDomain], asrt)
	}

	// Each domain's rollup is independent; run them concurrently and let
	// the storage layer's writer mutex serialize the actual DB writes
	// (spec §5: "writes serialize through a database-wide mutex").
	reports := make([]*DomainReport, len(byDomain))
	domains := make([]string, 0, len(byDomain))
	for domain := range byDomain {
		domains = append(domains, domain)
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, domain := range domains {
		i, domain := i, domain
		g.Go(func() error {
			rep, err := a.recordDomain(gctx, in.Category, domain, byDomain[domain], now)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].RootDomain < reports[j].RootDomain })

	report := &DomainStatsReport{Category: in.Category, GeneratedAt: now, Domains: reports}
	if a.store != nil {
		key := a.store.ResolveOutputKey("_source_intel", in.Category, "domain_stats.json")
		if err := outputstore.WriteJSON(ctx, a.store, key, report); err != nil {
			return nil, fmt.Errorf("intel: write domain_stats.json: %w", err)
		}
		if err := a.writePromotionSuggestions(ctx, in.Category, reports, now); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (a *Aggregator) recordDomain(ctx context.Context, category, domain string, assertions []Assertion, now time.Time) (*DomainReport, error) {
	stats, err := a.db.GetDomainStats(ctx, category, domain)
	if err != nil {
		stats = model.DomainStats{Category: category, RootDomain: domain}
	}

	rep := &DomainReport{RootDomain: domain, ByPath: map[string]*SubAggregate{}, ByBrand: map[string]*SubAggregate{}}
	var signalSum float64
	var signalCount int
	fingerprints := map[string]bool{}

	for _, asrt := range assertions {
		stats.Assertions++
		if asrt.Accepted {
			stats.Accepted++
		}

		if err := a.db.InsertSourceAssertion(ctx, model.SourceAssertion{
			ID: newAssertionID(domain, asrt.FieldKey, now), RootDomain: domain, Method: asrt.Method,
			FieldKey: asrt.FieldKey, Category: category, Accepted: asrt.Accepted,
			Confidence: asrt.Confidence, CreatedAt: now,
		}); err != nil {
			return nil, err
		}

		if err := a.updateReward(ctx, domain, asrt.Method, asrt.FieldKey, category, asrt, now); err != nil {
			return nil, err
		}

		rep.Attempts++
		if asrt.HTTPOK {
			rep.HTTPOKCount++
		}
		if asrt.IdentityMatch {
			rep.IdentityMatchCount++
		}
		if asrt.MajorAnchorConflict {
			rep.MajorAnchorConflictCount++
		}
		rep.FieldsContributedCount++
		if asrt.Accepted {
			rep.FieldsAcceptedCount++
		}
		if asrt.AcceptedCritical {
			rep.AcceptedCriticalFieldsCount++
		}
		if asrt.Approved {
			rep.ApprovedAttempts++
		} else {
			rep.CandidateAttempts++
		}
		if asrt.Fingerprint != "" {
			fingerprints[asrt.Fingerprint] = true
		}
		if asrt.EndpointSignal != nil {
			signalSum += *asrt.EndpointSignal
			signalCount++
		}
		if asrt.ProductID != "" {
			rep.addProduct(asrt.ProductID)
		}

		subAggregate(rep.ByPath, asrt.Path).record(asrt)
		subAggregate(rep.ByBrand, asrt.Brand).record(asrt)
	}

	rep.UniqueFingerprints = len(fingerprints)
	if signalCount > 0 {
		rep.EndpointSignalSamples = signalCount
		rep.EndpointSignalAvg = signalSum / float64(signalCount)
	}
	if rep.Attempts > 0 {
		rep.ParserHealthScore = float64(rep.HTTPOKCount) / float64(rep.Attempts)
	}

	stats.UpdatedAt = now
	if err := a.db.UpsertDomainStats(ctx, stats); err != nil {
		return nil, err
	}
	rep.Assertions = stats.Assertions
	rep.Accepted = stats.Accepted
	rep.AcceptanceRate = stats.AcceptanceRate()

	return rep, nil
}

// updateReward applies exponential decay to the existing per-(domain,
// method, field) reward, then folds in this assertion's outcome. Matches
// spec §4.7: "new_value = old_value × exp(-Δt / half_life)", with
// contradictions decrementing reward.
func (a *Aggregator) updateReward(ctx context.Context, domain, method, fieldKey, category string, asrt Assertion, now time.Time) error {
	reward, err := a.db.GetFieldMethodReward(ctx, domain, method, fieldKey, category)
	if err != nil {
		reward = model.FieldMethodReward{RootDomain: domain, Method: method, FieldKey: fieldKey, Category: category}
	}

	if !reward.UpdatedAt.IsZero() {
		deltaDays := now.Sub(reward.UpdatedAt).Hours() / 24
		reward.Value = conflicts.DecayReward(reward.Value, deltaDays, halfLifeDays)
	}

	switch {
	case asrt.Contradiction:
		reward.Value -= 1
	case asrt.Accepted:
		reward.Value += 1
	default:
		reward.Value -= 0.5
	}
	reward.SampleCount++
	reward.UpdatedAt = now

	return a.db.UpsertFieldMethodReward(ctx, reward)
}

// writePromotionSuggestions emits a per-domain re-tiering recommendation
// once rolling stats cross the promotion/demotion thresholds (spec §4.7).
func (a *Aggregator) writePromotionSuggestions(ctx context.Context, category string, reports []*DomainReport, now time.Time) error {
	for _, rep := range reports {
		if rep.Assertions < minSamplesForSuggestion {
			continue
		}
		suggestion, ok := promotionSuggestion(ctx, a.db, category, rep)
		if !ok {
			continue
		}
		key := a.store.ResolveOutputKey("_source_intel", category, "promotion_suggestions", rep.RootDomain+".json")
		if err := outputstore.WriteJSON(ctx, a.store, key, suggestion); err != nil {
			return fmt.Errorf("intel: write promotion suggestion for %s: %w", rep.RootDomain, err)
		}
	}
	return nil
}

func promotionSuggestion(ctx context.Context, db *storage.DB, category string, rep *DomainReport) (model.PromotionSuggestion, bool) {
	reg, err := db.GetSourceTier(ctx, rep.RootDomain)
	currentTier := 3 // unregistered domains default to the lowest-trust tier
	if err == nil {
		currentTier = reg.Tier
	}

	switch {
	case rep.AcceptanceRate >= promoteThreshold && currentTier > 1:
		return model.PromotionSuggestion{
			RootDomain: rep.RootDomain, CurrentTier: currentTier, SuggestedTier: currentTier - 1,
			Reason:     fmt.Sprintf("acceptance rate %.2f over %d samples exceeds promotion threshold", rep.AcceptanceRate, rep.Assertions),
			Confidence: rep.AcceptanceRate,
		}, true
	case rep.AcceptanceRate <= demoteThreshold:
		return model.PromotionSuggestion{
			RootDomain: rep.RootDomain, CurrentTier: currentTier, SuggestedTier: currentTier + 1,
			Reason:     fmt.Sprintf("acceptance rate %.2f over %d samples falls below demotion threshold", rep.AcceptanceRate, rep.Assertions),
			Confidence: 1 - rep.AcceptanceRate,
		}, true
	default:
		return model.PromotionSuggestion{}, false
	}
}

func newAssertionID(domain, fieldKey string, now time.Time) string {
	return fmt.Sprintf("%s::%s::%d", domain, fieldKey, now.UnixNano())
}
