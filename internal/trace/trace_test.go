package trace

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curationlabs/core/internal/outputstore"
)

func TestWriteSection_TrimsToRingSize(t *testing.T) {
	store := outputstore.NewFileStore(t.TempDir())
	w := New(store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, w.WriteSection(ctx, "run1", "p1", "audit", 3, map[string]int{"i": i}))
	}

	var r ring
	ok, err := store.ReadJSONOrNil(ctx, store.ResolveOutputKey("_runtime", "traces", "runs", "run1", "p1", "audit.json"), &r)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, r.Records, 3)

	var last map[string]int
	require.NoError(t, json.Unmarshal(r.Records[2], &last))
	assert.Equal(t, 4, last["i"])
}

func TestAppendFieldTimeline_AppendsJSONLLines(t *testing.T) {
	store := outputstore.NewFileStore(t.TempDir())
	w := New(store)
	ctx := context.Background()

	require.NoError(t, w.AppendFieldTimeline(ctx, "run1", "p1", FieldTimelineEntry{FieldKey: "dpi", Event: "audit_rejected"}))
	require.NoError(t, w.AppendFieldTimeline(ctx, "run1", "p1", FieldTimelineEntry{FieldKey: "dpi", Event: "dom_rescue_applied"}))

	text, ok, err := store.ReadTextOrEmpty(ctx, store.ResolveOutputKey("_runtime", "traces", "runs", "run1", "p1", "field_timeline.jsonl"))
	require.NoError(t, err)
	require.True(t, ok)

	lines := 0
	for _, b := range text {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 2, lines)
}
