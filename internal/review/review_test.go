package review

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/storage"
	"github.com/curationlabs/core/migrations"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "review_test.sqlite")

	db, err := storage.Open(ctx, dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// gridRules builds an empty rules cache: grid_key and enum_key actions never
// consult VariancePolicy, so no category needs to be loaded for those tests.
func gridRules(t *testing.T) *rules.Cache {
	t.Helper()
	return rules.NewCache(t.TempDir())
}

// writeFieldRules writes a minimal _generated/field_rules.json for category
// under helperRoot, in the shape internal/rules expects.
func writeFieldRules(t *testing.T, helperRoot, category string, fields map[string]any) {
	t.Helper()
	dir := filepath.Join(helperRoot, category, "_generated")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	doc := map[string]any{"fields": fields}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "field_rules.json"), b, 0o644))
}

func seedCandidate(t *testing.T, db *storage.DB, category, itemID, fieldKey, candidateID, value string) model.Candidate {
	t.Helper()
	c, err := db.InsertCandidate(context.Background(), model.Candidate{
		Category: category, ProductID: itemID, FieldKey: fieldKey, CandidateID: candidateID,
		Value: value, NormalizedValue: model.NormalizeEnumValue(value), Score: 0.9, Rank: 1,
	})
	require.NoError(t, err)
	return c
}

func TestAcceptGrid_RequiresCandidateID(t *testing.T) {
	db := openTestDB(t)
	e := NewEngine(db, gridRules(t))

	_, err := e.AcceptGrid(context.Background(), GridRequest{
		Category: "mice", ItemID: "item-1", FieldKey: "dpi", Lane: model.LanePrimary, Value: "8000",
	})
	require.Error(t, err)
	assertCode(t, err, "candidate_id_required")
}

func TestAcceptGrid_RejectsUnknownValue(t *testing.T) {
	db := openTestDB(t)
	e := NewEngine(db, gridRules(t))
	seedCandidate(t, db, "mice", "item-1", "dpi", "cand-1", "unk")

	_, err := e.AcceptGrid(context.Background(), GridRequest{
		Category: "mice", ItemID: "item-1", FieldKey: "dpi", Lane: model.LanePrimary,
		Value: "unk", CandidateID: "cand-1",
	})
	require.Error(t, err)
	assertCode(t, err, "unknown_value_not_actionable")
}

func TestAcceptGrid_TransitionsLaneAndSyncsFieldState(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	e := NewEngine(db, gridRules(t))
	seedCandidate(t, db, "mice", "item-1", "dpi", "cand-1", "8000")

	state, err := e.AcceptGrid(ctx, GridRequest{
		Category: "mice", ItemID: "item-1", FieldKey: "dpi", Lane: model.LanePrimary,
		Value: "8000", CandidateID: "cand-1", ActorID: "user-1", ActorRole: "user",
	})
	require.NoError(t, err)
	assert.Equal(t, model.LaneStatusAccepted, state.UserAcceptPrimary.Status)
	assert.Equal(t, model.LaneStatusPending, state.UserAcceptShared.Status)
	assert.Equal(t, model.LaneStatusPending, state.AIConfirmPrimary.Status)

	ifs, err := db.GetItemFieldState(ctx, "item-1", "dpi")
	require.NoError(t, err)
	assert.Equal(t, "8000", ifs.Value)
	assert.True(t, ifs.Overridden)
	assert.Equal(t, "cand-1", ifs.AcceptedCandidateID)
}

func TestConfirmGrid_StaysPendingUntilEveryCandidateReviewed(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	e := NewEngine(db, gridRules(t))
	seedCandidate(t, db, "mice", "item-1", "dpi", "cand-1", "8000")
	seedCandidate(t, db, "mice", "item-1", "dpi", "cand-2", "8000")

	state, err := e.ConfirmGrid(ctx, GridRequest{
		Category: "mice", ItemID: "item-1", FieldKey: "dpi", Lane: model.LaneShared,
		Value: "8000", CandidateID: "cand-1", ActorID: "reviewer", ActorRole: "user",
	})
	require.NoError(t, err)
	assert.Equal(t, model.LaneStatusPending, state.AIConfirmShared.Status, "one of two candidates reviewed")

	state, err = e.ConfirmGrid(ctx, GridRequest{
		Category: "mice", ItemID: "item-1", FieldKey: "dpi", Lane: model.LaneShared,
		Value: "8000", CandidateID: "cand-2", ActorID: "reviewer", ActorRole: "user",
	})
	require.NoError(t, err)
	assert.Equal(t, model.LaneStatusConfirmed, state.AIConfirmShared.Status, "every candidate now reviewed")
}

func TestSelectionRegression_ResetsBothLanes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	e := NewEngine(db, gridRules(t))
	seedCandidate(t, db, "mice", "item-1", "dpi", "cand-1", "8000")
	seedCandidate(t, db, "mice", "item-1", "dpi", "cand-2", "16000")

	_, err := e.AcceptGrid(ctx, GridRequest{
		Category: "mice", ItemID: "item-1", FieldKey: "dpi", Lane: model.LanePrimary,
		Value: "8000", CandidateID: "cand-1",
	})
	require.NoError(t, err)
	_, err = e.ConfirmGrid(ctx, GridRequest{
		Category: "mice", ItemID: "item-1", FieldKey: "dpi", Lane: model.LanePrimary,
		Value: "8000", CandidateID: "cand-1",
	})
	require.NoError(t, err)

	// A new selection (different value+candidate) must reset both lanes back
	// to pending before applying its own transition.
	state, err := e.AcceptGrid(ctx, GridRequest{
		Category: "mice", ItemID: "item-1", FieldKey: "dpi", Lane: model.LaneShared,
		Value: "16000", CandidateID: "cand-2",
	})
	require.NoError(t, err)
	assert.Equal(t, model.LaneStatusPending, state.AIConfirmPrimary.Status, "prior confirm reset by regression")
	assert.Equal(t, model.LaneStatusAccepted, state.UserAcceptShared.Status, "the action itself still applies")
}

func TestComponentAccept_AuthoritativeCascadesToLinkedItems(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	helperRoot := t.TempDir()
	writeFieldRules(t, helperRoot, "mice", map[string]any{
		"sensor_cpi": map[string]any{
			"required_level":  "critical",
			"contract":        map[string]any{"type": "number", "shape": "scalar"},
			"component":       "sensor",
			"variance_policy": "authoritative",
		},
	})
	cache := rules.NewCache(helperRoot)
	_, err := cache.Load("mice")
	require.NoError(t, err)

	e := NewEngine(db, cache)

	comp, err := db.UpsertComponentIdentity(ctx, model.ComponentIdentity{ComponentType: "sensor", CanonicalName: "PAW3395"})
	require.NoError(t, err)
	_, err = db.LinkItemComponent(ctx, model.ItemComponentLink{ItemID: "item-1", FieldKey: "sensor_cpi", ComponentID: comp.ID})
	require.NoError(t, err)
	_, err = db.LinkItemComponent(ctx, model.ItemComponentLink{ItemID: "item-2", FieldKey: "sensor_cpi", ComponentID: comp.ID})
	require.NoError(t, err)
	seedCandidate(t, db, "mice", "item-1", "sensor_cpi", "cand-1", "26000")

	_, err = e.AcceptComponent(ctx, ComponentRequest{
		Category: "mice", ComponentID: comp.ID, PropertyKey: "sensor_cpi", Value: "26000", CandidateID: "cand-1",
	})
	require.NoError(t, err)

	ifs1, err := db.GetItemFieldState(ctx, "item-1", "sensor_cpi")
	require.NoError(t, err)
	assert.Equal(t, "26000", ifs1.Value)
	assert.True(t, ifs1.NeedsAIReview)

	ifs2, err := db.GetItemFieldState(ctx, "item-2", "sensor_cpi")
	require.NoError(t, err)
	assert.Equal(t, "26000", ifs2.Value, "authoritative cascade reaches every linked item")
}

func TestEnumRename_RewritesLinkedItemsAndRetiresOldValue(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	e := NewEngine(db, gridRules(t))

	lv, err := db.UpsertListValue(ctx, model.ListValue{EnumName: "connection", Value: "2.4GHz"})
	require.NoError(t, err)
	_, err = db.LinkItemList(ctx, model.ItemListLink{ItemID: "item-1", FieldKey: "connection", ListValueID: lv.ID})
	require.NoError(t, err)
	seedCandidate(t, db, "mice", "item-1", "connection", "cand-1", "Wireless")

	_, err = e.ActionEnum(ctx, EnumRequest{
		Category: "mice", EnumName: "connection", ListValueID: lv.ID,
		Dimension: model.DimensionUserAccept, NewValue: "Wireless", CandidateID: "cand-1",
	})
	require.NoError(t, err)

	_, err = db.GetListValueByNormalized(ctx, "connection", "2.4ghz")
	assert.ErrorIs(t, err, storage.ErrNotFound, "old value retired")

	renamed, err := db.GetListValueByNormalized(ctx, "connection", "wireless")
	require.NoError(t, err)
	assert.Equal(t, lv.ID, renamed.ID, "in-place rename preserves the row id")

	ifs, err := db.GetItemFieldState(ctx, "item-1", "connection")
	require.NoError(t, err)
	assert.Equal(t, "Wireless", ifs.Value)
}

func assertCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	assert.Contains(t, err.Error(), wantCode)
}
