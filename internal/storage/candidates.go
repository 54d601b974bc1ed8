package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curationlabs/core/internal/model"
)

// InsertCandidate inserts a single candidate row. candidateID must already be
// disambiguated (internal/ingest owns that logic); storage only enforces the
// uniqueness of (category, product_id, field_key, candidate_id).
func (db *DB) InsertCandidate(ctx context.Context, c model.Candidate) (model.Candidate, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		return insertCandidateTx(ctx, tx, c)
	})
	if err != nil {
		return model.Candidate{}, err
	}
	return c, nil
}

func insertCandidateTx(ctx context.Context, tx *sql.Tx, c model.Candidate) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO candidates (
			id, category, product_id, field_key, candidate_id, raw_candidate_id,
			value, normalized_value, score, rank,
			source_host, source_root_domain, source_method, source_tier,
			evidence_snippet_id, evidence_quote, evidence_url, evidence_retrieved_at,
			is_component_field, is_list_field, component_type, content_hash, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Category, c.ProductID, c.FieldKey, c.CandidateID, c.RawCandidateID,
		c.Value, c.NormalizedValue, c.Score, c.Rank,
		c.Source.Host, c.Source.RootDomain, c.Source.Method, c.Source.Tier,
		c.Evidence.SnippetID, c.Evidence.Quote, c.Evidence.URL, c.Evidence.RetrievedAt.Format(time.RFC3339Nano),
		boolToInt(c.IsComponentField), boolToInt(c.IsListField), c.ComponentType, c.ContentHash, c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: insert candidate: %w", err)
	}
	return nil
}

// CandidateIDExists reports whether a candidate with this exact
// (category, product_id, field_key, candidate_id) key already exists, used
// by the ingest disambiguation step.
func (db *DB) CandidateIDExists(ctx context.Context, category, productID, fieldKey, candidateID string) (bool, error) {
	var n int
	err := db.reader.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM candidates WHERE category = ? AND product_id = ? AND field_key = ? AND candidate_id = ?`,
		category, productID, fieldKey, candidateID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage: check candidate id: %w", err)
	}
	return n > 0, nil
}

// GetCandidate fetches a single candidate by its disambiguated key.
func (db *DB) GetCandidate(ctx context.Context, category, productID, fieldKey, candidateID string) (model.Candidate, error) {
	row := db.reader.QueryRowContext(ctx, candidateSelectCols+` WHERE category = ? AND product_id = ? AND field_key = ? AND candidate_id = ?`,
		category, productID, fieldKey, candidateID)
	return scanCandidate(row)
}

// ListCandidatesForField returns every candidate for a slot, ordered by rank
// ascending then score descending. Payload builders re-sort the result by
// source tier then score.
func (db *DB) ListCandidatesForField(ctx context.Context, category, productID, fieldKey string) ([]model.Candidate, error) {
	rows, err := db.reader.QueryContext(ctx,
		candidateSelectCols+` WHERE category = ? AND product_id = ? AND field_key = ? ORDER BY rank ASC, score DESC`,
		category, productID, fieldKey)
	if err != nil {
		return nil, fmt.Errorf("storage: list candidates: %w", err)
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidateRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkSuperseded points an existing candidate's SupersededByID at a newer
// candidate for the same slot. Candidates are otherwise never mutated.
func (db *DB) MarkSuperseded(ctx context.Context, candidateRowID, supersededByRowID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE candidates SET superseded_by_id = ? WHERE id = ?`, supersededByRowID, candidateRowID)
		if err != nil {
			return fmt.Errorf("storage: mark superseded: %w", err)
		}
		return nil
	})
}

const candidateSelectCols = `SELECT
	id, category, product_id, field_key, candidate_id, raw_candidate_id,
	value, normalized_value, score, rank,
	source_host, source_root_domain, source_method, source_tier,
	evidence_snippet_id, evidence_quote, evidence_url, evidence_retrieved_at,
	is_component_field, is_list_field, component_type, content_hash, created_at, superseded_by_id
FROM candidates`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row *sql.Row) (model.Candidate, error) {
	c, err := scanCandidateScanner(row)
	if err == sql.ErrNoRows {
		return model.Candidate{}, ErrNotFound
	}
	return c, err
}

func scanCandidateRows(rows *sql.Rows) (model.Candidate, error) {
	c, err := scanCandidateScanner(rows)
	if err == sql.ErrNoRows {
		return model.Candidate{}, ErrNotFound
	}
	return c, err
}

func scanCandidateScanner(s rowScanner) (model.Candidate, error) {
	var c model.Candidate
	var isComponent, isList int
	var retrievedAt, createdAt string
	var supersededBy sql.NullString

	err := s.Scan(
		&c.ID, &c.Category, &c.ProductID, &c.FieldKey, &c.CandidateID, &c.RawCandidateID,
		&c.Value, &c.NormalizedValue, &c.Score, &c.Rank,
		&c.Source.Host, &c.Source.RootDomain, &c.Source.Method, &c.Source.Tier,
		&c.Evidence.SnippetID, &c.Evidence.Quote, &c.Evidence.URL, &retrievedAt,
		&isComponent, &isList, &c.ComponentType, &c.ContentHash, &createdAt, &supersededBy,
	)
	if err == sql.ErrNoRows {
		return model.Candidate{}, err
	}
	if err != nil {
		return model.Candidate{}, fmt.Errorf("storage: scan candidate: %w", err)
	}
	c.IsComponentField = isComponent != 0
	c.IsListField = isList != 0
	c.Evidence.RetrievedAt, _ = time.Parse(time.RFC3339Nano, retrievedAt)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if supersededBy.Valid {
		c.SupersededByID = &supersededBy.String
	}
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
