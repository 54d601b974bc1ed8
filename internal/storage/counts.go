package storage

import (
	"context"
	"fmt"
)

// countedTables lists every table participating in Counts, kept in sync with
// migrations/0001_init.sql.
var countedTables = []string{
	"items",
	"field_rules",
	"candidates",
	"item_field_state",
	"component_identities",
	"component_values",
	"item_component_links",
	"list_values",
	"item_list_links",
	"key_review_states",
	"key_review_audits",
	"candidate_reviews",
	"source_registry",
	"source_assertions",
	"field_method_rewards",
	"domain_stats",
	"mutation_audit",
}

// Counts returns a row count per table. Comparing two snapshots taken
// around a re-seed of the same input shows whether seeding added duplicate
// rows.
func (db *DB) Counts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(countedTables))
	for _, table := range countedTables {
		var n int
		if err := db.reader.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(1) FROM %s", table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("storage: count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}
