package intel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/outputstore"
	"github.com/curationlabs/core/internal/testutil"
)

func TestRecordRound_AggregatesAndPersistsDomainStats(t *testing.T) {
	db := testutil.OpenTestDB(t)
	store := outputstore.NewFileStore(t.TempDir())
	agg := New(db, store)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	report, err := agg.RecordRound(context.Background(), RoundInput{
		Category: "mice",
		Now:      now,
		Assertions: []Assertion{
			{RootDomain: "example.com", Method: "dom", FieldKey: "weight", Category: "mice", Accepted: true, HTTPOK: true, Path: "/p/1", Brand: "Acme", ProductID: "p1"},
			{RootDomain: "example.com", Method: "dom", FieldKey: "dpi", Category: "mice", Accepted: false, HTTPOK: true, Path: "/p/1", Brand: "Acme", ProductID: "p1"},
		},
	})
	require.NoError(t, err)
	require.Len(t, report.Domains, 1)

	d := report.Domains[0]
	assert.Equal(t, "example.com", d.RootDomain)
	assert.Equal(t, 2, d.Assertions)
	assert.Equal(t, 1, d.Accepted)
	assert.InDelta(t, 0.5, d.AcceptanceRate, 1e-9)
	assert.Equal(t, 2, d.Attempts)
	assert.Equal(t, 2, d.HTTPOKCount)
	assert.Equal(t, []string{"p1"}, d.ProductsSeen)

	// Second round, later in time: reward should decay before the new
	// sample is folded in, and the running DomainStats should accumulate.
	later := now.Add(48 * time.Hour)
	report2, err := agg.RecordRound(context.Background(), RoundInput{
		Category: "mice",
		Now:      later,
		Assertions: []Assertion{
			{RootDomain: "example.com", Method: "dom", FieldKey: "weight", Category: "mice", Accepted: true, HTTPOK: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, report2.Domains, 1)
	assert.Equal(t, 3, report2.Domains[0].Assertions)
	assert.Equal(t, 2, report2.Domains[0].Accepted)

	reward, err := db.GetFieldMethodReward(context.Background(), "example.com", "dom", "weight", "mice")
	require.NoError(t, err)
	assert.Equal(t, 2, reward.SampleCount)
}

func TestRecordRound_EmitsPromotionSuggestionOnStrongAcceptance(t *testing.T) {
	db := testutil.OpenTestDB(t)
	store := outputstore.NewFileStore(t.TempDir())
	agg := New(db, store)

	var assertions []Assertion
	for i := 0; i < 6; i++ {
		assertions = append(assertions, Assertion{RootDomain: "trusted.example", Method: "dom", FieldKey: "weight", Category: "mice", Accepted: true, HTTPOK: true})
	}

	_, err := agg.RecordRound(context.Background(), RoundInput{Category: "mice", Assertions: assertions, Now: time.Now()})
	require.NoError(t, err)

	var suggestion map[string]any
	key := store.ResolveOutputKey("_source_intel", "mice", "promotion_suggestions", "trusted.example.json")
	ok, err := store.ReadJSONOrNil(context.Background(), key, &suggestion)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "trusted.example", suggestion["root_domain"])
}
