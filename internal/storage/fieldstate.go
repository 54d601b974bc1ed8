package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curationlabs/core/internal/model"
)

// UpsertItemFieldState writes the resolved projection row for (item, field),
// overwriting whatever was there before. Callers hold the single source of
// truth (the accepted candidate); this row is a read cache.
func (db *DB) UpsertItemFieldState(ctx context.Context, s model.ItemFieldState) (model.ItemFieldState, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.UpdatedAt = time.Now().UTC()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO item_field_state (id, item_id, field_key, value, confidence, source, accepted_candidate_id, overridden, needs_ai_review, ai_review_complete, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (item_id, field_key) DO UPDATE SET
			   value = excluded.value,
			   confidence = excluded.confidence,
			   source = excluded.source,
			   accepted_candidate_id = excluded.accepted_candidate_id,
			   overridden = excluded.overridden,
			   needs_ai_review = excluded.needs_ai_review,
			   ai_review_complete = excluded.ai_review_complete,
			   updated_at = excluded.updated_at`,
			s.ID, s.ItemID, s.FieldKey, s.Value, s.Confidence, string(s.Source), s.AcceptedCandidateID,
			boolToInt(s.Overridden), boolToInt(s.NeedsAIReview), boolToInt(s.AIReviewComplete), s.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("storage: upsert item field state: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.ItemFieldState{}, err
	}
	return s, nil
}

// GetItemFieldState fetches the resolved state row for (item, field).
func (db *DB) GetItemFieldState(ctx context.Context, itemID, fieldKey string) (model.ItemFieldState, error) {
	row := db.reader.QueryRowContext(ctx,
		`SELECT id, item_id, field_key, value, confidence, source, accepted_candidate_id, overridden, needs_ai_review, ai_review_complete, updated_at
		 FROM item_field_state WHERE item_id = ? AND field_key = ?`, itemID, fieldKey)

	var s model.ItemFieldState
	var overridden, needsReview, reviewComplete int
	var updatedAt string
	err := row.Scan(&s.ID, &s.ItemID, &s.FieldKey, &s.Value, &s.Confidence, &s.Source, &s.AcceptedCandidateID,
		&overridden, &needsReview, &reviewComplete, &updatedAt)
	if err == sql.ErrNoRows {
		return model.ItemFieldState{}, ErrNotFound
	}
	if err != nil {
		return model.ItemFieldState{}, fmt.Errorf("storage: scan item field state: %w", err)
	}
	s.Overridden = overridden != 0
	s.NeedsAIReview = needsReview != 0
	s.AIReviewComplete = reviewComplete != 0
	s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return s, nil
}

// ListItemFieldStates returns every resolved field for one item.
func (db *DB) ListItemFieldStates(ctx context.Context, itemID string) ([]model.ItemFieldState, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, item_id, field_key, value, confidence, source, accepted_candidate_id, overridden, needs_ai_review, ai_review_complete, updated_at
		 FROM item_field_state WHERE item_id = ? ORDER BY field_key`, itemID)
	if err != nil {
		return nil, fmt.Errorf("storage: list item field states: %w", err)
	}
	defer rows.Close()

	var out []model.ItemFieldState
	for rows.Next() {
		var s model.ItemFieldState
		var overridden, needsReview, reviewComplete int
		var updatedAt string
		if err := rows.Scan(&s.ID, &s.ItemID, &s.FieldKey, &s.Value, &s.Confidence, &s.Source, &s.AcceptedCandidateID,
			&overridden, &needsReview, &reviewComplete, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan item field state row: %w", err)
		}
		s.Overridden = overridden != 0
		s.NeedsAIReview = needsReview != 0
		s.AIReviewComplete = reviewComplete != 0
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
