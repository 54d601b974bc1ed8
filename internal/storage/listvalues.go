package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curationlabs/core/internal/model"
)

// UpsertListValue creates or updates one enum/list catalog entry, keyed by
// (enum_name, normalized_value).
func (db *DB) UpsertListValue(ctx context.Context, v model.ListValue) (model.ListValue, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	if v.NormalizedValue == "" {
		v.NormalizedValue = model.NormalizeEnumValue(v.Value)
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO list_values (id, enum_name, value, normalized_value, enum_policy, accepted_candidate_id, overridden, needs_ai_review, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (enum_name, normalized_value) DO UPDATE SET
			   value = excluded.value, enum_policy = excluded.enum_policy, accepted_candidate_id = excluded.accepted_candidate_id,
			   overridden = excluded.overridden, needs_ai_review = excluded.needs_ai_review, updated_at = excluded.updated_at`,
			v.ID, v.EnumName, v.Value, v.NormalizedValue, string(v.EnumPolicy), v.AcceptedCandidateID,
			boolToInt(v.Overridden), boolToInt(v.NeedsAIReview), v.CreatedAt.Format(time.RFC3339Nano), v.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("storage: upsert list value: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.ListValue{}, err
	}
	return v, nil
}

// RenameListValue updates a list value's display Value and NormalizedValue
// in place (its row id is unchanged), used by enum rename review actions
// when the target value has no existing row to merge into. Every
// ItemListLink pointing at list_value_id keeps working since the join key
// (the row id) never moves.
func (db *DB) RenameListValue(ctx context.Context, listValueID, newValue string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE list_values SET value = ?, normalized_value = ?, updated_at = ? WHERE id = ?`,
			newValue, model.NormalizeEnumValue(newValue), time.Now().UTC().Format(time.RFC3339Nano), listValueID,
		)
		if err != nil {
			return fmt.Errorf("storage: rename list value: %w", err)
		}
		return nil
	})
}

// DeleteListValue removes a list value row, used by enum rename when the
// rename target already exists as its own row: the source row's links are
// rewired onto the target first, then the now-orphaned source row is
// deleted so it can never reappear in an enum payload.
func (db *DB) DeleteListValue(ctx context.Context, listValueID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM list_values WHERE id = ?`, listValueID)
		if err != nil {
			return fmt.Errorf("storage: delete list value: %w", err)
		}
		return nil
	})
}

// RewireItemListLink repoints a single item-field's link from one list value
// row to another, used by the enum-rename merge path.
func (db *DB) RewireItemListLink(ctx context.Context, itemID, fieldKey, fromListValueID, toListValueID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE OR REPLACE item_list_links SET list_value_id = ? WHERE item_id = ? AND field_key = ? AND list_value_id = ?`,
			toListValueID, itemID, fieldKey, fromListValueID,
		)
		if err != nil {
			return fmt.Errorf("storage: rewire item list link: %w", err)
		}
		return nil
	})
}

// GetListValueByNormalized looks up a list entry by its normalized form.
func (db *DB) GetListValueByNormalized(ctx context.Context, enumName, normalizedValue string) (model.ListValue, error) {
	row := db.reader.QueryRowContext(ctx,
		`SELECT id, enum_name, value, normalized_value, enum_policy, accepted_candidate_id, overridden, needs_ai_review, created_at, updated_at
		 FROM list_values WHERE enum_name = ? AND normalized_value = ?`, enumName, normalizedValue)
	return scanListValue(row)
}

// GetListValue fetches a list entry by its surrogate id.
func (db *DB) GetListValue(ctx context.Context, id string) (model.ListValue, error) {
	row := db.reader.QueryRowContext(ctx,
		`SELECT id, enum_name, value, normalized_value, enum_policy, accepted_candidate_id, overridden, needs_ai_review, created_at, updated_at
		 FROM list_values WHERE id = ?`, id)
	return scanListValue(row)
}

func scanListValue(row *sql.Row) (model.ListValue, error) {
	var v model.ListValue
	var overridden, needsReview int
	var createdAt, updatedAt string
	err := row.Scan(&v.ID, &v.EnumName, &v.Value, &v.NormalizedValue, &v.EnumPolicy, &v.AcceptedCandidateID,
		&overridden, &needsReview, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return model.ListValue{}, ErrNotFound
	}
	if err != nil {
		return model.ListValue{}, fmt.Errorf("storage: scan list value: %w", err)
	}
	v.Overridden = overridden != 0
	v.NeedsAIReview = needsReview != 0
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	v.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return v, nil
}

// ListEnumValues returns every entry in a named enum/list catalog.
func (db *DB) ListEnumValues(ctx context.Context, enumName string) ([]model.ListValue, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, enum_name, value, normalized_value, enum_policy, accepted_candidate_id, overridden, needs_ai_review, created_at, updated_at
		 FROM list_values WHERE enum_name = ? ORDER BY value`, enumName)
	if err != nil {
		return nil, fmt.Errorf("storage: list enum values: %w", err)
	}
	defer rows.Close()

	var out []model.ListValue
	for rows.Next() {
		var v model.ListValue
		var overridden, needsReview int
		var createdAt, updatedAt string
		if err := rows.Scan(&v.ID, &v.EnumName, &v.Value, &v.NormalizedValue, &v.EnumPolicy, &v.AcceptedCandidateID,
			&overridden, &needsReview, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan enum value row: %w", err)
		}
		v.Overridden = overridden != 0
		v.NeedsAIReview = needsReview != 0
		v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		v.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, v)
	}
	return out, rows.Err()
}

// LinkItemList attaches a list entry to an item's list-shaped field.
func (db *DB) LinkItemList(ctx context.Context, l model.ItemListLink) (model.ItemListLink, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO item_list_links (id, item_id, field_key, list_value_id) VALUES (?, ?, ?, ?)
			 ON CONFLICT (item_id, field_key, list_value_id) DO NOTHING`,
			l.ID, l.ItemID, l.FieldKey, l.ListValueID,
		)
		if err != nil {
			return fmt.Errorf("storage: link item list value: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.ItemListLink{}, err
	}
	return l, nil
}

// ListItemListLinks returns every list entry attached to an item's field.
func (db *DB) ListItemListLinks(ctx context.Context, itemID, fieldKey string) ([]model.ItemListLink, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, item_id, field_key, list_value_id FROM item_list_links WHERE item_id = ? AND field_key = ?`, itemID, fieldKey)
	if err != nil {
		return nil, fmt.Errorf("storage: list item list links: %w", err)
	}
	defer rows.Close()

	var out []model.ItemListLink
	for rows.Next() {
		var l model.ItemListLink
		if err := rows.Scan(&l.ID, &l.ItemID, &l.FieldKey, &l.ListValueID); err != nil {
			return nil, fmt.Errorf("storage: scan item list link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListLinksForListValue returns every (item, field) pair pointing at a list
// value, used to cascade an enum rename's effect onto payload readers.
func (db *DB) ListLinksForListValue(ctx context.Context, listValueID string) ([]model.ItemListLink, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, item_id, field_key, list_value_id FROM item_list_links WHERE list_value_id = ?`, listValueID)
	if err != nil {
		return nil, fmt.Errorf("storage: list links for list value: %w", err)
	}
	defer rows.Close()

	var out []model.ItemListLink
	for rows.Next() {
		var l model.ItemListLink
		if err := rows.Scan(&l.ID, &l.ItemID, &l.FieldKey, &l.ListValueID); err != nil {
			return nil, fmt.Errorf("storage: scan item list link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
