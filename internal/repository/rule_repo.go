package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/rule"
)

// RuleRepository handles business rule persistence. Condition trees and
// action params are stored as JSON blobs.
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

// Create persists a new rule
func (r *RuleRepository) Create(ctx context.Context, br *rule.BusinessRule) error {
	condition, err := br.Condition.MarshalJSONString()
	if err != nil {
		return err
	}
	params, err := marshalParams(br.ActionParams)
	if err != nil {
		return err
	}

	now := time.Now()
	br.CreatedAt = now
	br.UpdatedAt = now

	result, err := q(ctx, r.db).ExecContext(ctx, `
		INSERT INTO business_rules (
			name, entity_type, rule_type, condition, action, action_params,
			severity, message, priority, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		br.Name, br.EntityType.String(), string(br.RuleType), condition,
		string(br.Action), params, string(br.Severity), br.Message,
		br.Priority, br.IsActive, br.CreatedAt, br.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert rule", zap.String("name", br.Name), zap.Error(err))
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	br.ID = id
	return nil
}

// Update replaces an existing rule
func (r *RuleRepository) Update(ctx context.Context, br *rule.BusinessRule) error {
	condition, err := br.Condition.MarshalJSONString()
	if err != nil {
		return err
	}
	params, err := marshalParams(br.ActionParams)
	if err != nil {
		return err
	}

	br.UpdatedAt = time.Now()

	result, err := q(ctx, r.db).ExecContext(ctx, `
		UPDATE business_rules SET
			name = ?, entity_type = ?, rule_type = ?, condition = ?, action = ?,
			action_params = ?, severity = ?, message = ?, priority = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		br.Name, br.EntityType.String(), string(br.RuleType), condition,
		string(br.Action), params, string(br.Severity), br.Message,
		br.Priority, br.IsActive, br.UpdatedAt, br.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update rule", zap.Int64("id", br.ID), zap.Error(err))
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: rule %d", rule.ErrNotFound, br.ID)
	}
	return nil
}

// Delete removes a rule
func (r *RuleRepository) Delete(ctx context.Context, id int64) error {
	result, err := q(ctx, r.db).ExecContext(ctx, "DELETE FROM business_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: rule %d", rule.ErrNotFound, id)
	}
	return nil
}

// GetByID loads one rule
func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*rule.BusinessRule, error) {
	row := q(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, name, entity_type, rule_type, condition, action, action_params,
			severity, message, priority, is_active, created_at, updated_at
		FROM business_rules WHERE id = ?
	`, id)

	br, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule %d", rule.ErrNotFound, id)
	}
	return br, err
}

// List returns all rules ordered by priority
func (r *RuleRepository) List(ctx context.Context) ([]*rule.BusinessRule, error) {
	return r.listWhere(ctx, `
		SELECT id, name, entity_type, rule_type, condition, action, action_params,
			severity, message, priority, is_active, created_at, updated_at
		FROM business_rules ORDER BY priority ASC, id ASC
	`)
}

// ListActive returns the active rules for an entity type ordered by priority
func (r *RuleRepository) ListActive(ctx context.Context, entityType entity.EntityType) ([]*rule.BusinessRule, error) {
	return r.listWhere(ctx, `
		SELECT id, name, entity_type, rule_type, condition, action, action_params,
			severity, message, priority, is_active, created_at, updated_at
		FROM business_rules
		WHERE entity_type = ? AND is_active = 1
		ORDER BY priority ASC, id ASC
	`, entityType.String())
}

func (r *RuleRepository) listWhere(ctx context.Context, query string, args ...interface{}) ([]*rule.BusinessRule, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query rules", zap.Error(err))
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []*rule.BusinessRule
	for rows.Next() {
		br, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, br)
	}

	return rules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*rule.BusinessRule, error) {
	var br rule.BusinessRule
	var entityTypeStr, ruleTypeStr, actionStr, severityStr, condition string
	var params sql.NullString

	if err := row.Scan(
		&br.ID, &br.Name, &entityTypeStr, &ruleTypeStr, &condition,
		&actionStr, &params, &severityStr, &br.Message, &br.Priority,
		&br.IsActive, &br.CreatedAt, &br.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	br.EntityType = entity.EntityType(entityTypeStr)
	br.RuleType = rule.RuleType(ruleTypeStr)
	br.Action = rule.Action(actionStr)
	br.Severity = rule.Severity(severityStr)

	cond, err := rule.ParseCondition(condition)
	if err != nil {
		return nil, fmt.Errorf("rule %d has a corrupt condition: %w", br.ID, err)
	}
	br.Condition = cond

	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &br.ActionParams); err != nil {
			return nil, fmt.Errorf("rule %d has corrupt action params: %w", br.ID, err)
		}
	}

	return &br, nil
}

func marshalParams(params map[string]string) (interface{}, error) {
	if len(params) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action params: %w", err)
	}
	return string(data), nil
}
