package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MutationAuditEntry is a generic append-only record of a write to any
// table, independent of the review-specific KeyReviewAudit trail. It backs
// operator-facing change history (who changed what row, when, from what).
type MutationAuditEntry struct {
	ActorID      string
	ActorRole    string
	Action       string
	ResourceType string
	ResourceID   string
	RequestID    string
	BeforeData   any
	AfterData    any
}

// InsertMutationAuditTx inserts a mutation audit row within an existing
// transaction, so the audit write commits or rolls back with its subject.
func InsertMutationAuditTx(ctx context.Context, tx *sql.Tx, e MutationAuditEntry) error {
	before, err := marshalAuditData(e.BeforeData)
	if err != nil {
		return fmt.Errorf("storage: marshal before_data: %w", err)
	}
	after, err := marshalAuditData(e.AfterData)
	if err != nil {
		return fmt.Errorf("storage: marshal after_data: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO mutation_audit (id, actor_id, actor_role, action, resource_type, resource_id, request_id, before_data, after_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), e.ActorID, e.ActorRole, e.Action, e.ResourceType, e.ResourceID, e.RequestID, before, after,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: insert mutation audit: %w", err)
	}
	return nil
}

func marshalAuditData(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
