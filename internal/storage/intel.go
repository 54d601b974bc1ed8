package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curationlabs/core/internal/model"
)

// UpsertSourceRegistry sets a root domain's current tier/label.
func (db *DB) UpsertSourceRegistry(ctx context.Context, r model.SourceRegistry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO source_registry (root_domain, tier, label) VALUES (?, ?, ?)
			 ON CONFLICT (root_domain) DO UPDATE SET tier = excluded.tier, label = excluded.label`,
			r.RootDomain, r.Tier, r.Label,
		)
		if err != nil {
			return fmt.Errorf("storage: upsert source registry: %w", err)
		}
		return nil
	})
}

// GetSourceTier returns the tier registered for a root domain, or ErrNotFound.
func (db *DB) GetSourceTier(ctx context.Context, rootDomain string) (model.SourceRegistry, error) {
	var r model.SourceRegistry
	err := db.reader.QueryRowContext(ctx, `SELECT root_domain, tier, label FROM source_registry WHERE root_domain = ?`, rootDomain).
		Scan(&r.RootDomain, &r.Tier, &r.Label)
	if err == sql.ErrNoRows {
		return model.SourceRegistry{}, ErrNotFound
	}
	if err != nil {
		return model.SourceRegistry{}, fmt.Errorf("storage: get source tier: %w", err)
	}
	return r, nil
}

// InsertSourceAssertion records a single candidate-producing assertion for
// later rollup into DomainStats.
func (db *DB) InsertSourceAssertion(ctx context.Context, a model.SourceAssertion) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO source_assertions (id, root_domain, method, field_key, category, accepted, confidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.RootDomain, a.Method, a.FieldKey, a.Category, boolToInt(a.Accepted), a.Confidence, a.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("storage: insert source assertion: %w", err)
		}
		return nil
	})
}

// ListAssertionsSince returns every assertion for a category at or after
// since, used by the intel aggregator's rollup pass.
func (db *DB) ListAssertionsSince(ctx context.Context, category string, since time.Time) ([]model.SourceAssertion, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, root_domain, method, field_key, category, accepted, confidence, created_at
		 FROM source_assertions WHERE category = ? AND created_at >= ? ORDER BY created_at`,
		category, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("storage: list assertions since: %w", err)
	}
	defer rows.Close()

	var out []model.SourceAssertion
	for rows.Next() {
		var a model.SourceAssertion
		var accepted int
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RootDomain, &a.Method, &a.FieldKey, &a.Category, &accepted, &a.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan source assertion: %w", err)
		}
		a.Accepted = accepted != 0
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertFieldMethodReward writes the rolling decayed reward for one
// (root_domain, method, field_key, category) tuple.
func (db *DB) UpsertFieldMethodReward(ctx context.Context, r model.FieldMethodReward) error {
	r.UpdatedAt = time.Now().UTC()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO field_method_rewards (root_domain, method, field_key, category, value, sample_count, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (root_domain, method, field_key, category) DO UPDATE SET
			   value = excluded.value, sample_count = excluded.sample_count, updated_at = excluded.updated_at`,
			r.RootDomain, r.Method, r.FieldKey, r.Category, r.Value, r.SampleCount, r.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("storage: upsert field method reward: %w", err)
		}
		return nil
	})
}

// GetFieldMethodReward fetches the current reward row, or a zero-value row
// with SampleCount 0 when the tuple has never been observed.
func (db *DB) GetFieldMethodReward(ctx context.Context, rootDomain, method, fieldKey, category string) (model.FieldMethodReward, error) {
	var r model.FieldMethodReward
	var updatedAt string
	err := db.reader.QueryRowContext(ctx,
		`SELECT root_domain, method, field_key, category, value, sample_count, updated_at
		 FROM field_method_rewards WHERE root_domain = ? AND method = ? AND field_key = ? AND category = ?`,
		rootDomain, method, fieldKey, category,
	).Scan(&r.RootDomain, &r.Method, &r.FieldKey, &r.Category, &r.Value, &r.SampleCount, &updatedAt)
	if err == sql.ErrNoRows {
		return model.FieldMethodReward{RootDomain: rootDomain, Method: method, FieldKey: fieldKey, Category: category}, nil
	}
	if err != nil {
		return model.FieldMethodReward{}, fmt.Errorf("storage: get field method reward: %w", err)
	}
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return r, nil
}

// UpsertDomainStats writes the rolling per-(category, root_domain) aggregate.
func (db *DB) UpsertDomainStats(ctx context.Context, d model.DomainStats) error {
	d.UpdatedAt = time.Now().UTC()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO domain_stats (category, root_domain, assertions, accepted, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (category, root_domain) DO UPDATE SET
			   assertions = excluded.assertions, accepted = excluded.accepted, updated_at = excluded.updated_at`,
			d.Category, d.RootDomain, d.Assertions, d.Accepted, d.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("storage: upsert domain stats: %w", err)
		}
		return nil
	})
}

// GetDomainStats fetches the rolling aggregate for (category, root_domain),
// returning a zero-value row if it has never been written.
func (db *DB) GetDomainStats(ctx context.Context, category, rootDomain string) (model.DomainStats, error) {
	var d model.DomainStats
	var updatedAt string
	err := db.reader.QueryRowContext(ctx,
		`SELECT category, root_domain, assertions, accepted, updated_at FROM domain_stats WHERE category = ? AND root_domain = ?`,
		category, rootDomain,
	).Scan(&d.Category, &d.RootDomain, &d.Assertions, &d.Accepted, &updatedAt)
	if err == sql.ErrNoRows {
		return model.DomainStats{Category: category, RootDomain: rootDomain}, nil
	}
	if err != nil {
		return model.DomainStats{}, fmt.Errorf("storage: get domain stats: %w", err)
	}
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return d, nil
}
