package reviewapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/payload"
	"github.com/curationlabs/core/internal/review"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/storage"
	"github.com/curationlabs/core/internal/testutil"
)

func newAPI(db *storage.DB, rulesCache *rules.Cache) *API {
	return New(review.NewEngine(db, rulesCache), payload.NewBuilder(db, rulesCache))
}

func TestKeyReviewAccept_ReflectsInGridPayload(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()

	item, err := db.CreateItem(ctx, model.Item{Category: "mice", ProductID: "p1"})
	require.NoError(t, err)

	_, err = db.InsertCandidate(ctx, model.Candidate{
		Category: "mice", ProductID: item.ID, FieldKey: "dpi", CandidateID: "cand-1",
		Value: "16000", NormalizedValue: "16000", Score: 0.9, Rank: 1,
	})
	require.NoError(t, err)

	a := newAPI(db, rules.NewCache(t.TempDir()))

	resp, err := a.KeyReviewAccept(ctx, KeyReviewAcceptRequest{
		Category: "mice", ItemID: item.ID, FieldKey: "dpi",
		Lane: model.LanePrimary, Value: "16000", CandidateID: "cand-1",
		ActorID: "reviewer-1", ActorRole: "human", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TargetGridKey, resp.State.TargetKind)
	assert.Equal(t, "16000", resp.State.SelectedValue)

	grid, err := a.GridPayload(ctx, GridPayloadRequest{Category: "mice", ItemID: item.ID})
	require.NoError(t, err)
	field, ok := grid["dpi"]
	require.True(t, ok)
	assert.Equal(t, "16000", field.Selected.Value)
	assert.True(t, field.Overridden)
}

func TestKeyReviewAccept_MissingCandidateIDReturnsValidationError(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()

	item, err := db.CreateItem(ctx, model.Item{Category: "mice", ProductID: "p1"})
	require.NoError(t, err)

	a := newAPI(db, rules.NewCache(t.TempDir()))

	_, err = a.KeyReviewAccept(ctx, KeyReviewAcceptRequest{
		Category: "mice", ItemID: item.ID, FieldKey: "dpi",
		Lane: model.LanePrimary, Value: "16000",
	})
	require.Error(t, err)
}
