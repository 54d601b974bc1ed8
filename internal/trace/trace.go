// Package trace writes the Orchestrator's per-stage trace records: a
// ring-buffered JSON file per (run, product, section) plus an append-only
// JSONL field timeline (spec §6), grounded on
// internal/service/trace/buffer.go's ring/capacity model, simplified from a
// DB-flushing event buffer to direct file writes since the trace writer
// here is an external-collaborator-facing surface, not the hot ingestion
// path the teacher's buffer protects.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/curationlabs/core/internal/outputstore"
)

// Writer persists trace records through a Store (spec §6's consumed
// storage interface).
type Writer struct {
	store outputstore.Store
}

// New wires a Writer to its output store.
func New(store outputstore.Store) *Writer {
	return &Writer{store: store}
}

// ring is the on-disk shape of a ring-buffered section file: the most
// recent RingSize records, oldest first.
type ring struct {
	RingSize int               `json:"ring_size"`
	Records  []json.RawMessage `json:"records"`
}

// WriteSection appends record to the named run/product/section ring buffer,
// trimming to the most recent ringSize entries. Each call is a full
// read-modify-write of the section file; callers on the same section from
// concurrent goroutines must serialize their own calls (the Orchestrator's
// stages are sequential, so this is not a concern in practice).
func (w *Writer) WriteSection(ctx context.Context, runID, productID, section string, ringSize int, record any) error {
	if ringSize <= 0 {
		ringSize = 1
	}
	key := w.sectionKey(runID, productID, section)

	var r ring
	if _, err := w.store.ReadJSONOrNil(ctx, key, &r); err != nil {
		return fmt.Errorf("trace: read section %s: %w", key, err)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("trace: marshal record: %w", err)
	}

	r.RingSize = ringSize
	r.Records = append(r.Records, raw)
	if len(r.Records) > ringSize {
		r.Records = r.Records[len(r.Records)-ringSize:]
	}

	return outputstore.WriteJSON(ctx, w.store, key, r)
}

func (w *Writer) sectionKey(runID, productID, section string) string {
	return w.store.ResolveOutputKey("_runtime", "traces", "runs", runID, productID, section+".json")
}

// FieldTimelineEntry is one JSONL line in a field's append-only timeline.
type FieldTimelineEntry struct {
	FieldKey  string    `json:"field_key"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AppendFieldTimeline appends one entry to the run/product's field timeline
// JSONL file. Timelines are append-only: unlike section rings, nothing is
// ever trimmed, since they're the durable history of what happened to a
// field across every stage of a run.
func (w *Writer) AppendFieldTimeline(ctx context.Context, runID, productID string, entry FieldTimelineEntry) error {
	key := w.store.ResolveOutputKey("_runtime", "traces", "runs", runID, productID, "field_timeline.jsonl")
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("trace: marshal timeline entry: %w", err)
	}
	return w.store.AppendText(ctx, key, string(line)+"\n")
}
