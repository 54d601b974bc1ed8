package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curationlabs/core/internal/model"
)

// CreateItem inserts a new item, assigning an id and timestamps if unset.
func (db *DB) CreateItem(ctx context.Context, item model.Item) (model.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Lifecycle == "" {
		item.Lifecycle = model.ItemActive
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, category, product_id, brand, model, variant, lifecycle, identity_status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Category, item.ProductID, item.Identity.Brand, item.Identity.Model, item.Identity.Variant,
			string(item.Lifecycle), "unlocked", item.CreatedAt.Format(time.RFC3339Nano), item.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("storage: create item: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Item{}, err
	}
	return item, nil
}

// GetItem fetches an item by its surrogate id.
func (db *DB) GetItem(ctx context.Context, id string) (model.Item, error) {
	row := db.reader.QueryRowContext(ctx,
		`SELECT id, category, product_id, brand, model, variant, lifecycle, created_at, updated_at
		 FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// GetItemByProductID fetches an item by its (category, product_id) natural key.
func (db *DB) GetItemByProductID(ctx context.Context, category, productID string) (model.Item, error) {
	row := db.reader.QueryRowContext(ctx,
		`SELECT id, category, product_id, brand, model, variant, lifecycle, created_at, updated_at
		 FROM items WHERE category = ? AND product_id = ?`, category, productID)
	return scanItem(row)
}

func scanItem(row *sql.Row) (model.Item, error) {
	var it model.Item
	var createdAt, updatedAt string
	err := row.Scan(&it.ID, &it.Category, &it.ProductID, &it.Identity.Brand, &it.Identity.Model, &it.Identity.Variant,
		&it.Lifecycle, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return model.Item{}, ErrNotFound
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("storage: scan item: %w", err)
	}
	it.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	it.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return it, nil
}

// ListItemsByCategory returns every item in a category, ordered by product_id.
func (db *DB) ListItemsByCategory(ctx context.Context, category string) ([]model.Item, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, category, product_id, brand, model, variant, lifecycle, created_at, updated_at
		 FROM items WHERE category = ? ORDER BY product_id`, category)
	if err != nil {
		return nil, fmt.Errorf("storage: list items: %w", err)
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var it model.Item
		var createdAt, updatedAt string
		if err := rows.Scan(&it.ID, &it.Category, &it.ProductID, &it.Identity.Brand, &it.Identity.Model, &it.Identity.Variant,
			&it.Lifecycle, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan item row: %w", err)
		}
		it.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		it.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, it)
	}
	return out, rows.Err()
}
