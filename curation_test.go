package curation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/authz"
	"github.com/curationlabs/core/internal/ingest"
	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/needset"
	"github.com/curationlabs/core/internal/orchestrator"
	"github.com/curationlabs/core/internal/reviewapi"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()
	app, err := New(ctx,
		WithSpecDB(t.TempDir()+"/curation_test.sqlite"),
		WithOutputRoot(t.TempDir()),
		WithHelperRoot(t.TempDir()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

// writeFieldRules writes a minimal _generated/field_rules.json for category
// under app's helper root, in the shape internal/rules expects, then loads
// it into the rules cache so ingest's "rules loaded for category" guard
// passes.
func writeFieldRules(t *testing.T, app *App, category string, fields map[string]any) {
	t.Helper()
	dir := filepath.Join(app.opts.helperRoot, category, "_generated")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	doc := map[string]any{"fields": fields}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "field_rules.json"), b, 0o644))

	_, err = app.RulesCache().Load(category)
	require.NoError(t, err)
}

func TestNew_OpensAndMigrates(t *testing.T) {
	app := newTestApp(t)
	assert.NotNil(t, app.Review())
	assert.NotNil(t, app.Payloads())
	assert.NotNil(t, app.Conflicts())
	assert.NotNil(t, app.RulesCache())
	assert.NotNil(t, app.Store())
}

func TestIngestProduct_ThenReview(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	writeFieldRules(t, app, "widgets", map[string]any{
		"color": map[string]any{
			"required_level":    "required",
			"pass_target":       0.8,
			"min_evidence_refs": 1,
		},
	})

	seed := ingest.ProductSeed{
		ProductID: "widget-1",
		Identity:  model.ItemIdentity{Brand: "Acme", Model: "Widget"},
		Candidates: []ingest.CandidateInput{
			{
				FieldKey:    "color",
				CandidateID: "c1",
				Value:       "red",
				Score:       0.9,
				Rank:        1,
				Source:      model.CandidateSource{Host: "acme.com", RootDomain: "acme.com", Method: "listing", Tier: 1},
				Evidence:    model.CandidateEvidence{URL: "https://acme.com/widget-1", RetrievedAt: time.Unix(0, 0).UTC()},
			},
		},
	}

	report, err := app.IngestProduct(ctx, "widgets", seed)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CandidatesInserted)

	grid, err := app.Payloads().GridPayload(ctx, reviewapi.GridPayloadRequest{
		Category: "widgets",
		ItemID:   report.ItemID,
	})
	require.NoError(t, err)
	state, ok := grid["color"]
	require.True(t, ok)
	assert.Equal(t, "red", state.Selected.Value)
}

func TestIssueAndVerifyReviewerToken(t *testing.T) {
	app := newTestApp(t)

	token, _, err := app.IssueReviewerToken("reviewer-1", authz.RoleUser)
	require.NoError(t, err)

	claims, err := app.VerifyReviewerToken(token)
	require.NoError(t, err)
	assert.Equal(t, "reviewer-1", claims.ActorID)
}

func TestComputeNeedSet_EmptyInput(t *testing.T) {
	app := newTestApp(t)

	result := app.ComputeNeedSet(needset.Input{})
	assert.Empty(t, result.Needs)
}

func TestRunAggressiveMode_DisabledShortCircuits(t *testing.T) {
	app := newTestApp(t) // Aggressive Mode is off by default (no WithAggressiveMode option)

	report, err := app.RunAggressiveMode(context.Background(), orchestrator.RunRequest{
		Category:  "widgets",
		ProductID: "widget-1",
		ItemID:    "item-1",
		RunID:     "run-1",
		Mode:      orchestrator.ModeAggressive,
	})
	require.NoError(t, err)
	assert.False(t, report.Enabled)
	assert.Equal(t, "disabled", report.Stage)
}
