package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/curationlabs/core/internal/model"
)

// UpsertFieldRule writes a field's governance record, keyed by (category, field_key).
func (db *DB) UpsertFieldRule(ctx context.Context, r model.FieldRule) error {
	constraints, err := json.Marshal(r.Constraints)
	if err != nil {
		return fmt.Errorf("storage: marshal constraints: %w", err)
	}
	tiers, err := json.Marshal(r.TierPreference)
	if err != nil {
		return fmt.Errorf("storage: marshal tier preference: %w", err)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO field_rules (
				category, field_key, required_level, contract_type, contract_unit, contract_shape,
				component_type, enum_name, variance_policy, constraints_json, pass_target, tier_preference_json, min_evidence_refs
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (category, field_key) DO UPDATE SET
			   required_level = excluded.required_level, contract_type = excluded.contract_type, contract_unit = excluded.contract_unit,
			   contract_shape = excluded.contract_shape, component_type = excluded.component_type, enum_name = excluded.enum_name,
			   variance_policy = excluded.variance_policy, constraints_json = excluded.constraints_json,
			   pass_target = excluded.pass_target, tier_preference_json = excluded.tier_preference_json, min_evidence_refs = excluded.min_evidence_refs`,
			r.Category, r.FieldKey, string(r.RequiredLevel), r.Contract.Type, r.Contract.Unit, string(r.Contract.Shape),
			r.Component, r.Enum, string(r.VariancePolicy), string(constraints), r.PassTarget, string(tiers), r.MinEvidenceRefs,
		)
		if err != nil {
			return fmt.Errorf("storage: upsert field rule: %w", err)
		}
		return nil
	})
}

// ListFieldRules returns every field rule registered for a category.
func (db *DB) ListFieldRules(ctx context.Context, category string) ([]model.FieldRule, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT category, field_key, required_level, contract_type, contract_unit, contract_shape,
		        component_type, enum_name, variance_policy, constraints_json, pass_target, tier_preference_json, min_evidence_refs
		 FROM field_rules WHERE category = ? ORDER BY field_key`, category)
	if err != nil {
		return nil, fmt.Errorf("storage: list field rules: %w", err)
	}
	defer rows.Close()

	var out []model.FieldRule
	for rows.Next() {
		var r model.FieldRule
		var constraintsJSON, tiersJSON string
		if err := rows.Scan(&r.Category, &r.FieldKey, &r.RequiredLevel, &r.Contract.Type, &r.Contract.Unit, &r.Contract.Shape,
			&r.Component, &r.Enum, &r.VariancePolicy, &constraintsJSON, &r.PassTarget, &tiersJSON, &r.MinEvidenceRefs); err != nil {
			return nil, fmt.Errorf("storage: scan field rule: %w", err)
		}
		_ = json.Unmarshal([]byte(constraintsJSON), &r.Constraints)
		_ = json.Unmarshal([]byte(tiersJSON), &r.TierPreference)
		out = append(out, r)
	}
	return out, rows.Err()
}
