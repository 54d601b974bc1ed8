package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/integrity"
	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/testutil"
)

func loadFieldRules(t *testing.T, category string, fields map[string]any) *rules.Cache {
	t.Helper()
	helperRoot := t.TempDir()
	dir := filepath.Join(helperRoot, category, "_generated")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	doc := map[string]any{"fields": fields}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "field_rules.json"), b, 0o644))

	cache := rules.NewCache(helperRoot)
	_, err = cache.Load(category)
	require.NoError(t, err)
	return cache
}

func TestSeedProduct_DerivesContentHashFromCandidateIdentity(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	cache := loadFieldRules(t, "mice", map[string]any{
		"dpi": map[string]any{"required_level": "required", "pass_target": 0.8, "min_evidence_refs": 1},
	})
	seeder := NewSeeder(db, cache)

	retrievedAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	seed := ProductSeed{
		ProductID: "mouse-1",
		Identity:  model.ItemIdentity{Brand: "Acme", Model: "Dart"},
		Candidates: []CandidateInput{
			{
				FieldKey: "dpi", CandidateID: "c1", Value: "8000", Score: 0.9, Rank: 1,
				Source:   model.CandidateSource{Host: "acme.com", RootDomain: "acme.com", Method: "listing", Tier: 1},
				Evidence: model.CandidateEvidence{URL: "https://acme.com/dart", RetrievedAt: retrievedAt},
			},
		},
	}

	report, err := seeder.SeedProduct(ctx, "mice", seed)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CandidatesInserted)

	cands, err := db.ListCandidatesForField(ctx, "mice", "mouse-1", "dpi")
	require.NoError(t, err)
	require.Len(t, cands, 1)

	want := integrity.ComputeCandidateHash("mice", "mouse-1", "dpi", cands[0].CandidateID, "8000", retrievedAt)
	assert.Equal(t, want, cands[0].ContentHash)
	assert.NotEmpty(t, cands[0].ContentHash)

	// Re-seeding the identical artifact is idempotent: the candidate is
	// recognized as already present and never re-hashed into a new row.
	report2, err := seeder.SeedProduct(ctx, "mice", seed)
	require.NoError(t, err)
	assert.Equal(t, 0, report2.CandidatesInserted)
	assert.Equal(t, 1, report2.CandidatesSkipped)
}
