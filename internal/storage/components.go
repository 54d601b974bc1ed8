package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curationlabs/core/internal/model"
)

// UpsertComponentIdentity creates or updates a canonical component row,
// keyed by (component_type, canonical_name).
func (db *DB) UpsertComponentIdentity(ctx context.Context, c model.ComponentIdentity) (model.ComponentIdentity, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	aliases, err := json.Marshal(c.Aliases)
	if err != nil {
		return model.ComponentIdentity{}, fmt.Errorf("storage: marshal aliases: %w", err)
	}

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO component_identities (id, component_type, canonical_name, maker, aliases_json, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (component_type, canonical_name) DO UPDATE SET
			   maker = excluded.maker, aliases_json = excluded.aliases_json, updated_at = excluded.updated_at`,
			c.ID, c.ComponentType, c.CanonicalName, c.Maker, string(aliases), c.CreatedAt.Format(time.RFC3339Nano), c.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("storage: upsert component identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.ComponentIdentity{}, err
	}
	return c, nil
}

// FindComponentByAlias looks up a component of componentType whose canonical
// name or alias list matches the normalized needle.
func (db *DB) FindComponentByAlias(ctx context.Context, componentType, normalizedNeedle string) (model.ComponentIdentity, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, component_type, canonical_name, maker, aliases_json, created_at, updated_at
		 FROM component_identities WHERE component_type = ?`, componentType)
	if err != nil {
		return model.ComponentIdentity{}, fmt.Errorf("storage: list components for alias lookup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		comp, err := scanComponentIdentity(rows)
		if err != nil {
			return model.ComponentIdentity{}, err
		}
		if model.NormalizeEnumValue(comp.CanonicalName) == normalizedNeedle {
			return comp, nil
		}
		for _, alias := range comp.Aliases {
			if model.NormalizeEnumValue(alias) == normalizedNeedle {
				return comp, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return model.ComponentIdentity{}, err
	}
	return model.ComponentIdentity{}, ErrNotFound
}

func scanComponentIdentity(rows *sql.Rows) (model.ComponentIdentity, error) {
	var c model.ComponentIdentity
	var aliasJSON, createdAt, updatedAt string
	if err := rows.Scan(&c.ID, &c.ComponentType, &c.CanonicalName, &c.Maker, &aliasJSON, &createdAt, &updatedAt); err != nil {
		return model.ComponentIdentity{}, fmt.Errorf("storage: scan component identity: %w", err)
	}
	_ = json.Unmarshal([]byte(aliasJSON), &c.Aliases)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return c, nil
}

// ListComponentIdentitiesByType returns every component row of componentType,
// ordered by canonical name then maker so a payload's row order is stable.
func (db *DB) ListComponentIdentitiesByType(ctx context.Context, componentType string) ([]model.ComponentIdentity, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, component_type, canonical_name, maker, aliases_json, created_at, updated_at
		 FROM component_identities WHERE component_type = ? ORDER BY canonical_name, maker`, componentType)
	if err != nil {
		return nil, fmt.Errorf("storage: list components by type: %w", err)
	}
	defer rows.Close()

	var out []model.ComponentIdentity
	for rows.Next() {
		c, err := scanComponentIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertComponentValue creates or updates a single property on a component,
// keyed by (component_id, property_key).
func (db *DB) UpsertComponentValue(ctx context.Context, v model.ComponentValue) (model.ComponentValue, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.UpdatedAt = time.Now().UTC()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO component_values (id, component_id, component_type, property_key, value, confidence, accepted_candidate_id, overridden, needs_ai_review, variance_policy, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (component_id, property_key) DO UPDATE SET
			   value = excluded.value, confidence = excluded.confidence, accepted_candidate_id = excluded.accepted_candidate_id,
			   overridden = excluded.overridden, needs_ai_review = excluded.needs_ai_review, variance_policy = excluded.variance_policy,
			   updated_at = excluded.updated_at`,
			v.ID, v.ComponentID, v.ComponentType, v.PropertyKey, v.Value, v.Confidence, v.AcceptedCandidateID,
			boolToInt(v.Overridden), boolToInt(v.NeedsAIReview), string(v.VariancePolicyOverride), v.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("storage: upsert component value: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.ComponentValue{}, err
	}
	return v, nil
}

// ListComponentValues returns every property for one component.
func (db *DB) ListComponentValues(ctx context.Context, componentID string) ([]model.ComponentValue, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, component_id, component_type, property_key, value, confidence, accepted_candidate_id, overridden, needs_ai_review, variance_policy, updated_at
		 FROM component_values WHERE component_id = ? ORDER BY property_key`, componentID)
	if err != nil {
		return nil, fmt.Errorf("storage: list component values: %w", err)
	}
	defer rows.Close()

	var out []model.ComponentValue
	for rows.Next() {
		var v model.ComponentValue
		var overridden, needsReview int
		var variancePolicy, updatedAt string
		if err := rows.Scan(&v.ID, &v.ComponentID, &v.ComponentType, &v.PropertyKey, &v.Value, &v.Confidence, &v.AcceptedCandidateID,
			&overridden, &needsReview, &variancePolicy, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan component value: %w", err)
		}
		v.Overridden = overridden != 0
		v.NeedsAIReview = needsReview != 0
		v.VariancePolicyOverride = model.VariancePolicy(variancePolicy)
		v.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, v)
	}
	return out, rows.Err()
}

// LinkItemComponent records which component an item resolves a
// component-backed field through.
func (db *DB) LinkItemComponent(ctx context.Context, l model.ItemComponentLink) (model.ItemComponentLink, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO item_component_links (id, item_id, field_key, component_id, match_score, match_method)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (item_id, field_key) DO UPDATE SET
			   component_id = excluded.component_id, match_score = excluded.match_score, match_method = excluded.match_method`,
			l.ID, l.ItemID, l.FieldKey, l.ComponentID, l.MatchScore, l.MatchMethod,
		)
		if err != nil {
			return fmt.Errorf("storage: link item component: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.ItemComponentLink{}, err
	}
	return l, nil
}

// ListItemsLinkedToComponent returns the item ids whose field_key resolves
// through componentID, used to cascade authoritative component edits.
func (db *DB) ListItemsLinkedToComponent(ctx context.Context, componentID string) ([]model.ItemComponentLink, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, item_id, field_key, component_id, match_score, match_method FROM item_component_links WHERE component_id = ?`, componentID)
	if err != nil {
		return nil, fmt.Errorf("storage: list component links: %w", err)
	}
	defer rows.Close()

	var out []model.ItemComponentLink
	for rows.Next() {
		var l model.ItemComponentLink
		if err := rows.Scan(&l.ID, &l.ItemID, &l.FieldKey, &l.ComponentID, &l.MatchScore, &l.MatchMethod); err != nil {
			return nil, fmt.Errorf("storage: scan component link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
