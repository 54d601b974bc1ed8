package payload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/storage"
	"github.com/curationlabs/core/internal/testutil"
)

func emptyRules(t *testing.T) *rules.Cache {
	t.Helper()
	return rules.NewCache(t.TempDir())
}

func TestBuildComponentPayload_ReasonCodesFlagPendingAI(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	b := NewBuilder(db, emptyRules(t))

	comp, err := db.UpsertComponentIdentity(ctx, model.ComponentIdentity{ComponentType: "sensor", CanonicalName: "PAW3395"})
	require.NoError(t, err)
	_, err = db.UpsertComponentValue(ctx, model.ComponentValue{
		ComponentID: comp.ID, ComponentType: "sensor", PropertyKey: "dpi", Value: "26000", Confidence: 0.9,
	})
	require.NoError(t, err)
	slot := storage.ReviewSlot{TargetKind: model.TargetComponentKey, Category: "mice", ComponentID: comp.ID, PropertyKey: "dpi"}
	require.NoError(t, db.SeedKeyReviewState(ctx, slot))

	rows, err := b.BuildComponentPayload(ctx, "mice", "sensor")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	dpi := rows[0].Properties["dpi"]
	assert.True(t, dpi.NeedsReview)
	assert.Contains(t, dpi.ReasonCodes, "pending_ai")

	state, err := db.GetKeyReviewState(ctx, slot)
	require.NoError(t, err)
	state.AIConfirmShared.Status = model.LaneStatusConfirmed
	_, err = db.ApplyLaneTransition(ctx, state, model.KeyReviewAudit{
		TargetKind: model.TargetComponentKey, Category: "mice", ComponentID: comp.ID, PropertyKey: "dpi",
		Dimension: model.DimensionAIConfirm, Lane: model.LaneShared, Action: model.ActionConfirm,
		PreviousStatus: model.LaneStatusPending, NewStatus: model.LaneStatusConfirmed,
	})
	require.NoError(t, err)

	rows, err = b.BuildComponentPayload(ctx, "mice", "sensor")
	require.NoError(t, err)
	dpi = rows[0].Properties["dpi"]
	assert.False(t, dpi.NeedsReview)
	assert.NotContains(t, dpi.ReasonCodes, "pending_ai")
}

func TestEnumValueSource_WorkbookOnlyCandidatesClassifyAsWorkbook(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	b := NewBuilder(db, emptyRules(t))

	lv, err := db.UpsertListValue(ctx, model.ListValue{EnumName: "connection", Value: "2.4GHz"})
	require.NoError(t, err)
	_, err = db.LinkItemList(ctx, model.ItemListLink{ItemID: "item-1", FieldKey: "connection", ListValueID: lv.ID})
	require.NoError(t, err)
	_, err = db.InsertCandidate(ctx, model.Candidate{
		Category: "mice", ProductID: "item-1", FieldKey: "connection", CandidateID: "cand-1",
		Value: "2.4GHz", NormalizedValue: model.NormalizeEnumValue("2.4GHz"), Score: 0.9, Rank: 1,
		Source: model.CandidateSource{Method: "workbook"},
	})
	require.NoError(t, err)

	fields, err := b.BuildEnumPayload(ctx, "mice", "connection")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	require.Len(t, fields[0].Values, 1)
	assert.Equal(t, EnumSourceWorkbook, fields[0].Values[0].Source)
}

func TestEnumValueSource_PipelineCandidateClassifiesAsPipeline(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	b := NewBuilder(db, emptyRules(t))

	lv, err := db.UpsertListValue(ctx, model.ListValue{EnumName: "connection", Value: "Wireless"})
	require.NoError(t, err)
	_, err = db.LinkItemList(ctx, model.ItemListLink{ItemID: "item-1", FieldKey: "connection", ListValueID: lv.ID})
	require.NoError(t, err)
	_, err = db.InsertCandidate(ctx, model.Candidate{
		Category: "mice", ProductID: "item-1", FieldKey: "connection", CandidateID: "cand-1",
		Value: "Wireless", NormalizedValue: model.NormalizeEnumValue("Wireless"), Score: 0.9, Rank: 1,
		Source: model.CandidateSource{Method: "listing"},
	})
	require.NoError(t, err)

	fields, err := b.BuildEnumPayload(ctx, "mice", "connection")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	require.Len(t, fields[0].Values, 1)
	assert.Equal(t, EnumSourcePipeline, fields[0].Values[0].Source)
}
