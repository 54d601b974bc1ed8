package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/model"
	"github.com/curationlabs/core/internal/outputstore"
	"github.com/curationlabs/core/internal/rules"
	"github.com/curationlabs/core/internal/testutil"
	"github.com/curationlabs/core/internal/toolclient"
	"github.com/curationlabs/core/internal/trace"
)

type fakeAuditor struct {
	rejectFields map[string]bool
}

func (f *fakeAuditor) AuditCandidates(_ context.Context, _, _ string, fieldKeys []string) ([]toolclient.AuditVerdict, error) {
	var out []toolclient.AuditVerdict
	for _, k := range fieldKeys {
		out = append(out, toolclient.AuditVerdict{FieldKey: k, Accepted: !f.rejectFields[k]})
	}
	return out, nil
}

type fakeDOM struct{}

func (fakeDOM) RescueFields(_ context.Context, _, _ string, fieldKeys []string) ([]toolclient.RescuedField, error) {
	var out []toolclient.RescuedField
	for _, k := range fieldKeys {
		out = append(out, toolclient.RescuedField{FieldKey: k, Value: "rescued-" + k, Score: 0.92})
	}
	return out, nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(context.Context, string, string, []string) ([]toolclient.Resolution, error) {
	return nil, nil
}

type fakeCortex struct{}

func (fakeCortex) RoutePlan(_ context.Context, candidates []toolclient.DeepTask, maxTasks int) (toolclient.RoutePlan, error) {
	if len(candidates) > maxTasks {
		candidates = candidates[:maxTasks]
	}
	return toolclient.RoutePlan{Tasks: candidates}, nil
}

func (fakeCortex) RunPass(_ context.Context, plan toolclient.RoutePlan) ([]toolclient.RunResult, error) {
	var out []toolclient.RunResult
	for _, t := range plan.Tasks {
		out = append(out, toolclient.RunResult{FieldKey: t.FieldKey, Value: "deep-value", Score: 0.95})
	}
	return out, nil
}

func TestRun_NonAggressiveModeShortCircuits(t *testing.T) {
	db := testutil.OpenTestDB(t)
	o := New(db, rules.NewCache(t.TempDir()), &fakeAuditor{}, fakeDOM{}, fakeResolver{}, fakeCortex{}, nil, Config{Enabled: true, MaxDeepFieldsPerProduct: 2})

	report, err := o.Run(context.Background(), RunRequest{Category: "mice", ProductID: "p1", ItemID: "item1", Mode: ModeStandard})
	require.NoError(t, err)
	assert.False(t, report.Enabled)
	assert.Equal(t, "disabled", report.Stage)
}

func TestRun_AggressiveMode_RescuesRejectedCriticalFieldAndApplies(t *testing.T) {
	db := testutil.OpenTestDB(t)
	item, err := db.CreateItem(context.Background(), model.Item{Category: "mice", ProductID: "p1"})
	require.NoError(t, err)

	store := outputstore.NewFileStore(t.TempDir())
	tracer := trace.New(store)

	o := New(db, rules.NewCache(t.TempDir()), &fakeAuditor{rejectFields: map[string]bool{"dpi": true}}, fakeDOM{}, fakeResolver{}, fakeCortex{}, tracer,
		Config{Enabled: true, MaxDeepFieldsPerProduct: 2})

	report, err := o.Run(context.Background(), RunRequest{
		Category: "mice", ProductID: "p1", ItemID: item.ID, RunID: "run1", Mode: ModeAggressive,
		Fields: []FieldCandidate{
			{FieldKey: "dpi", Value: "20000", Score: 0.4, Critical: true},
			{FieldKey: "weight", Value: "63g", Score: 0.9},
		},
	})
	require.NoError(t, err)
	assert.True(t, report.Enabled)
	assert.Equal(t, "complete", report.Stage)

	state, err := db.GetItemFieldState(context.Background(), item.ID, "dpi")
	require.NoError(t, err)
	assert.Equal(t, "rescued-dpi", state.Value)
}

func TestRun_Escalation_RespectsDeepFieldCap(t *testing.T) {
	db := testutil.OpenTestDB(t)
	item, err := db.CreateItem(context.Background(), model.Item{Category: "mice", ProductID: "p1"})
	require.NoError(t, err)

	o := New(db, rules.NewCache(t.TempDir()), &fakeAuditor{}, fakeDOM{}, fakeResolver{}, fakeCortex{}, nil, Config{Enabled: true, MaxDeepFieldsPerProduct: 1})

	report, err := o.Run(context.Background(), RunRequest{
		Category: "mice", ProductID: "p1", ItemID: item.ID, RunID: "run2", Mode: ModeAggressive,
		Fields: []FieldCandidate{
			{FieldKey: "dpi", Value: "1", Score: 0.1, Critical: true},
			{FieldKey: "sensor", Value: "1", Score: 0.1, Critical: true},
		},
	})
	require.NoError(t, err)
	assert.True(t, report.Escalation.DeepTriggered)
	assert.Equal(t, 1, report.Escalation.DeepTaskCount)
	assert.Equal(t, 1, report.Escalation.DeepTaskCap)
}
