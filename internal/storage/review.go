package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curationlabs/core/internal/model"
)

// ReviewSlot identifies a single KeyReviewState row. Exactly the fields
// relevant to TargetKind are populated by callers; the rest stay "".
type ReviewSlot struct {
	TargetKind  model.TargetKind
	Category    string
	ItemID      string
	FieldKey    string
	ComponentID string
	PropertyKey string
	EnumName    string
	ListValueID string
}

// GetKeyReviewState fetches the review state row for a slot, or ErrNotFound
// if the slot has never been actioned.
func (db *DB) GetKeyReviewState(ctx context.Context, slot ReviewSlot) (model.KeyReviewState, error) {
	row := db.reader.QueryRowContext(ctx, keyReviewStateSelectCols+`
		WHERE target_kind = ? AND item_id = ? AND field_key = ? AND component_id = ? AND property_key = ? AND enum_name = ? AND list_value_id = ?`,
		string(slot.TargetKind), slot.ItemID, slot.FieldKey, slot.ComponentID, slot.PropertyKey, slot.EnumName, slot.ListValueID)
	return scanKeyReviewState(row)
}

// SeedKeyReviewState creates a slot's KeyReviewState row with all four lanes
// pending if it does not already exist. Unlike ApplyLaneTransition this never
// writes an audit entry and never overwrites an existing row: seeding is the
// baseline a slot starts from, not a transition a reviewer made, and a
// reviewer's prior work must survive a re-seed of the same product.
func (db *DB) SeedKeyReviewState(ctx context.Context, slot ReviewSlot) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		id := uuid.NewString()
		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO key_review_states (
				id, target_kind, category, item_id, field_key, component_id, property_key, enum_name, list_value_id,
				ai_confirm_primary_status, ai_confirm_primary_at, ai_confirm_primary_candidate_id,
				ai_confirm_shared_status, ai_confirm_shared_at, ai_confirm_shared_candidate_id,
				user_accept_primary_status, user_accept_primary_at, user_accept_primary_candidate_id,
				user_accept_shared_status, user_accept_shared_at, user_accept_shared_candidate_id,
				updated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, NULL, ?, ?, NULL, ?, ?, NULL, ?, ?)
			 ON CONFLICT (target_kind, item_id, field_key, component_id, property_key, enum_name, list_value_id) DO NOTHING`,
			id, string(slot.TargetKind), slot.Category, slot.ItemID, slot.FieldKey, slot.ComponentID, slot.PropertyKey, slot.EnumName, slot.ListValueID,
			string(model.LaneStatusPending), "",
			string(model.LaneStatusPending), "",
			string(model.LaneStatusPending), "",
			string(model.LaneStatusPending), "",
			now,
		)
		if err != nil {
			return fmt.Errorf("storage: seed key review state: %w", err)
		}
		return nil
	})
}

// ApplyLaneTransition atomically persists a new KeyReviewState row and its
// accompanying audit entry. Both writes commit together: a lane transition
// without its audit trail, or vice versa, is never observable.
//
// ApplyLaneTransition is also the "applySharedLaneState"-style read-modify-
// write contract from spec §4.1: it returns the post-write row such that the
// returned object equals the persisted row field-for-field.
func (db *DB) ApplyLaneTransition(ctx context.Context, state model.KeyReviewState, audit model.KeyReviewAudit) (model.KeyReviewState, error) {
	if state.ID == "" {
		state.ID = uuid.NewString()
	}
	state.UpdatedAt = time.Now().UTC()
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = state.UpdatedAt
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertKeyReviewStateTx(ctx, tx, state); err != nil {
			return err
		}
		return insertKeyReviewAuditTx(ctx, tx, audit)
	})
	if err != nil {
		return model.KeyReviewState{}, err
	}
	return state, nil
}

// ApplyLaneTransitionWithReset is ApplyLaneTransition plus an optional
// preceding reset-audit row, both committed in the same transaction as the
// lane mutation: when a selection-regression fires (spec invariant 7), the
// reset and the action that triggered it must appear together or not at all.
func (db *DB) ApplyLaneTransitionWithReset(ctx context.Context, state model.KeyReviewState, resetAudit *model.KeyReviewAudit, audit model.KeyReviewAudit) (model.KeyReviewState, error) {
	if state.ID == "" {
		state.ID = uuid.NewString()
	}
	state.UpdatedAt = time.Now().UTC()
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = state.UpdatedAt
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if resetAudit != nil {
			if resetAudit.ID == "" {
				resetAudit.ID = uuid.NewString()
			}
			if resetAudit.CreatedAt.IsZero() {
				resetAudit.CreatedAt = state.UpdatedAt
			}
			if err := insertKeyReviewAuditTx(ctx, tx, *resetAudit); err != nil {
				return err
			}
		}
		if err := upsertKeyReviewStateTx(ctx, tx, state); err != nil {
			return err
		}
		return insertKeyReviewAuditTx(ctx, tx, audit)
	})
	if err != nil {
		return model.KeyReviewState{}, err
	}
	return state, nil
}

func upsertKeyReviewStateTx(ctx context.Context, tx *sql.Tx, s model.KeyReviewState) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO key_review_states (
			id, target_kind, category, item_id, field_key, component_id, property_key, enum_name, list_value_id,
			ai_confirm_primary_status, ai_confirm_primary_at, ai_confirm_primary_candidate_id,
			ai_confirm_shared_status, ai_confirm_shared_at, ai_confirm_shared_candidate_id,
			user_accept_primary_status, user_accept_primary_at, user_accept_primary_candidate_id,
			user_accept_shared_status, user_accept_shared_at, user_accept_shared_candidate_id,
			selected_value, selected_candidate_id,
			updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (target_kind, item_id, field_key, component_id, property_key, enum_name, list_value_id) DO UPDATE SET
		   ai_confirm_primary_status = excluded.ai_confirm_primary_status,
		   ai_confirm_primary_at = excluded.ai_confirm_primary_at,
		   ai_confirm_primary_candidate_id = excluded.ai_confirm_primary_candidate_id,
		   ai_confirm_shared_status = excluded.ai_confirm_shared_status,
		   ai_confirm_shared_at = excluded.ai_confirm_shared_at,
		   ai_confirm_shared_candidate_id = excluded.ai_confirm_shared_candidate_id,
		   user_accept_primary_status = excluded.user_accept_primary_status,
		   user_accept_primary_at = excluded.user_accept_primary_at,
		   user_accept_primary_candidate_id = excluded.user_accept_primary_candidate_id,
		   user_accept_shared_status = excluded.user_accept_shared_status,
		   user_accept_shared_at = excluded.user_accept_shared_at,
		   user_accept_shared_candidate_id = excluded.user_accept_shared_candidate_id,
		   selected_value = excluded.selected_value,
		   selected_candidate_id = excluded.selected_candidate_id,
		   updated_at = excluded.updated_at`,
		s.ID, string(s.TargetKind), s.Category, s.ItemID, s.FieldKey, s.ComponentID, s.PropertyKey, s.EnumName, s.ListValueID,
		string(s.AIConfirmPrimary.Status), formatLaneAt(s.AIConfirmPrimary.At), s.AIConfirmPrimary.CandidateID,
		string(s.AIConfirmShared.Status), formatLaneAt(s.AIConfirmShared.At), s.AIConfirmShared.CandidateID,
		string(s.UserAcceptPrimary.Status), formatLaneAt(s.UserAcceptPrimary.At), s.UserAcceptPrimary.CandidateID,
		string(s.UserAcceptShared.Status), formatLaneAt(s.UserAcceptShared.At), s.UserAcceptShared.CandidateID,
		s.SelectedValue, s.SelectedCandidateID,
		s.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: upsert key review state: %w", err)
	}
	return nil
}

func insertKeyReviewAuditTx(ctx context.Context, tx *sql.Tx, a model.KeyReviewAudit) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO key_review_audits (
			id, request_id, target_kind, category, item_id, field_key, component_id, property_key, enum_name, list_value_id,
			dimension, lane, action, candidate_id, previous_status, new_status, actor_id, actor_role, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RequestID, string(a.TargetKind), a.Category, a.ItemID, a.FieldKey, a.ComponentID, a.PropertyKey, a.EnumName, a.ListValueID,
		string(a.Dimension), string(a.Lane), string(a.Action), a.CandidateID, string(a.PreviousStatus), string(a.NewStatus),
		a.ActorID, a.ActorRole, a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: insert key review audit: %w", err)
	}
	return nil
}

// ListAuditForSlot returns every audit row for a slot, oldest first.
func (db *DB) ListAuditForSlot(ctx context.Context, slot ReviewSlot) ([]model.KeyReviewAudit, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, request_id, target_kind, category, item_id, field_key, component_id, property_key, enum_name, list_value_id,
		        dimension, lane, action, candidate_id, previous_status, new_status, actor_id, actor_role, created_at
		 FROM key_review_audits
		 WHERE target_kind = ? AND item_id = ? AND field_key = ? AND component_id = ? AND property_key = ? AND enum_name = ? AND list_value_id = ?
		 ORDER BY created_at ASC`,
		string(slot.TargetKind), slot.ItemID, slot.FieldKey, slot.ComponentID, slot.PropertyKey, slot.EnumName, slot.ListValueID)
	if err != nil {
		return nil, fmt.Errorf("storage: list audit for slot: %w", err)
	}
	defer rows.Close()

	var out []model.KeyReviewAudit
	for rows.Next() {
		var a model.KeyReviewAudit
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RequestID, &a.TargetKind, &a.Category, &a.ItemID, &a.FieldKey, &a.ComponentID, &a.PropertyKey, &a.EnumName, &a.ListValueID,
			&a.Dimension, &a.Lane, &a.Action, &a.CandidateID, &a.PreviousStatus, &a.NewStatus, &a.ActorID, &a.ActorRole, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan key review audit: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

const keyReviewStateSelectCols = `SELECT
	id, target_kind, category, item_id, field_key, component_id, property_key, enum_name, list_value_id,
	ai_confirm_primary_status, ai_confirm_primary_at, ai_confirm_primary_candidate_id,
	ai_confirm_shared_status, ai_confirm_shared_at, ai_confirm_shared_candidate_id,
	user_accept_primary_status, user_accept_primary_at, user_accept_primary_candidate_id,
	user_accept_shared_status, user_accept_shared_at, user_accept_shared_candidate_id,
	selected_value, selected_candidate_id,
	updated_at
FROM key_review_states`

func scanKeyReviewState(row *sql.Row) (model.KeyReviewState, error) {
	var s model.KeyReviewState
	var updatedAt string
	var acpAt, acsAt, uapAt, uasAt sql.NullString

	err := row.Scan(
		&s.ID, &s.TargetKind, &s.Category, &s.ItemID, &s.FieldKey, &s.ComponentID, &s.PropertyKey, &s.EnumName, &s.ListValueID,
		&s.AIConfirmPrimary.Status, &acpAt, &s.AIConfirmPrimary.CandidateID,
		&s.AIConfirmShared.Status, &acsAt, &s.AIConfirmShared.CandidateID,
		&s.UserAcceptPrimary.Status, &uapAt, &s.UserAcceptPrimary.CandidateID,
		&s.UserAcceptShared.Status, &uasAt, &s.UserAcceptShared.CandidateID,
		&s.SelectedValue, &s.SelectedCandidateID,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return model.KeyReviewState{}, ErrNotFound
	}
	if err != nil {
		return model.KeyReviewState{}, fmt.Errorf("storage: scan key review state: %w", err)
	}
	s.AIConfirmPrimary.At = parseLaneAt(acpAt)
	s.AIConfirmShared.At = parseLaneAt(acsAt)
	s.UserAcceptPrimary.At = parseLaneAt(uapAt)
	s.UserAcceptShared.At = parseLaneAt(uasAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return s, nil
}

func formatLaneAt(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseLaneAt(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// UpsertCandidateReview records one candidate's terminal review disposition
// within a slot's lane. Idempotent: confirming the same candidate twice
// just updates reviewed_at.
func (db *DB) UpsertCandidateReview(ctx context.Context, r model.CandidateReview) (model.CandidateReview, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ReviewedAt.IsZero() {
		r.ReviewedAt = time.Now().UTC()
	}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO candidate_reviews (
				id, target_kind, category, item_id, field_key, component_id, property_key, enum_name, list_value_id,
				lane, candidate_id, status, actor_id, actor_role, reviewed_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (target_kind, item_id, field_key, component_id, property_key, enum_name, list_value_id, lane, candidate_id)
			 DO UPDATE SET status = excluded.status, actor_id = excluded.actor_id, actor_role = excluded.actor_role, reviewed_at = excluded.reviewed_at`,
			r.ID, string(r.TargetKind), r.Category, r.ItemID, r.FieldKey, r.ComponentID, r.PropertyKey, r.EnumName, r.ListValueID,
			string(r.Lane), r.CandidateID, string(r.Status), r.ActorID, r.ActorRole, r.ReviewedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("storage: upsert candidate review: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.CandidateReview{}, err
	}
	return r, nil
}

// ListCandidateReviews returns every recorded candidate review for a slot's
// lane, used to decide whether every candidate has a terminal disposition.
func (db *DB) ListCandidateReviews(ctx context.Context, slot ReviewSlot, lane model.Lane) ([]model.CandidateReview, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT candidate_id, status, actor_id, actor_role, reviewed_at FROM candidate_reviews
		 WHERE target_kind = ? AND item_id = ? AND field_key = ? AND component_id = ? AND property_key = ? AND enum_name = ? AND list_value_id = ? AND lane = ?`,
		string(slot.TargetKind), slot.ItemID, slot.FieldKey, slot.ComponentID, slot.PropertyKey, slot.EnumName, slot.ListValueID, string(lane))
	if err != nil {
		return nil, fmt.Errorf("storage: list candidate reviews: %w", err)
	}
	defer rows.Close()

	var out []model.CandidateReview
	for rows.Next() {
		var r model.CandidateReview
		var reviewedAt string
		if err := rows.Scan(&r.CandidateID, &r.Status, &r.ActorID, &r.ActorRole, &reviewedAt); err != nil {
			return nil, fmt.Errorf("storage: scan candidate review: %w", err)
		}
		r.ReviewedAt, _ = time.Parse(time.RFC3339Nano, reviewedAt)
		r.TargetKind, r.Category = slot.TargetKind, slot.Category
		r.ItemID, r.FieldKey, r.ComponentID, r.PropertyKey, r.EnumName, r.ListValueID =
			slot.ItemID, slot.FieldKey, slot.ComponentID, slot.PropertyKey, slot.EnumName, slot.ListValueID
		r.Lane = lane
		out = append(out, r)
	}
	return out, rows.Err()
}
