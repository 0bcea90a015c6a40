package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ledgerflow/approval-engine/internal/application/port"
	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/rule"
)

// RuleInput is the administrator-facing payload for creating or updating a
// business rule. Enum membership is validated server-side before anything
// is persisted.
type RuleInput struct {
	Name         string            `json:"name" validate:"required,min=3,max=120"`
	EntityType   string            `json:"entity_type" validate:"required,oneof=invoice expense"`
	RuleType     string            `json:"rule_type" validate:"required"`
	Condition    *rule.Condition   `json:"condition" validate:"required"`
	Action       string            `json:"action" validate:"required"`
	ActionParams map[string]string `json:"action_params,omitempty"`
	Severity     string            `json:"severity" validate:"required"`
	Message      string            `json:"message" validate:"max=500"`
	Priority     int               `json:"priority" validate:"gte=0"`
	IsActive     bool              `json:"is_active"`
}

// RuleService administers business rules and offers dry-run evaluation
type RuleService interface {
	List(ctx context.Context, actor Actor) ([]*rule.BusinessRule, error)
	Get(ctx context.Context, actor Actor, id int64) (*rule.BusinessRule, error)
	Create(ctx context.Context, actor Actor, input RuleInput) (*rule.BusinessRule, error)
	Update(ctx context.Context, actor Actor, id int64, input RuleInput) (*rule.BusinessRule, error)
	Delete(ctx context.Context, actor Actor, id int64) error

	// Test evaluates a stored rule against a caller-supplied entity sample
	// without touching any document
	Test(ctx context.Context, actor Actor, id int64, sample map[string]interface{}) (*rule.Result, error)
}

type ruleServiceImpl struct {
	repo      port.RuleRepository
	evaluator *rule.Evaluator
	gate      PermissionChecker
	audits    AuditService
	validate  *validator.Validate
	logger    Logger
}

// PermissionChecker is the slice of the permission gate the rule admin needs
type PermissionChecker interface {
	Require(userID string, roles []string, resource, action, ownerID string) error
}

// NewRuleService creates a rule administration service
func NewRuleService(repo port.RuleRepository, evaluator *rule.Evaluator, gate PermissionChecker, audits AuditService, logger Logger) RuleService {
	return &ruleServiceImpl{
		repo:      repo,
		evaluator: evaluator,
		gate:      gate,
		audits:    audits,
		validate:  validator.New(),
		logger:    logger,
	}
}

// List returns all rules
func (s *ruleServiceImpl) List(ctx context.Context, actor Actor) ([]*rule.BusinessRule, error) {
	if err := s.gate.Require(actor.UserID, actor.Roles, "rules", "read", ""); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Get returns one rule by ID
func (s *ruleServiceImpl) Get(ctx context.Context, actor Actor, id int64) (*rule.BusinessRule, error) {
	if err := s.gate.Require(actor.UserID, actor.Roles, "rules", "read", ""); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Create validates and persists a new rule
func (s *ruleServiceImpl) Create(ctx context.Context, actor Actor, input RuleInput) (*rule.BusinessRule, error) {
	if err := s.gate.Require(actor.UserID, actor.Roles, "rules", "write", ""); err != nil {
		return nil, err
	}

	r, err := s.fromInput(input)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	if _, err := s.audits.Log(ctx, actor.UserID, entity.AuditActionRuleCreate, r.EntityType, r.ID, ""); err != nil {
		s.logger.Warn("Rule creation audit failed", "rule_id", r.ID, "error", err)
	}

	return r, nil
}

// Update validates and replaces an existing rule
func (s *ruleServiceImpl) Update(ctx context.Context, actor Actor, id int64, input RuleInput) (*rule.BusinessRule, error) {
	if err := s.gate.Require(actor.UserID, actor.Roles, "rules", "write", ""); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r, err := s.fromInput(input)
	if err != nil {
		return nil, err
	}
	r.ID = existing.ID
	r.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	if _, err := s.audits.Log(ctx, actor.UserID, entity.AuditActionRuleUpdate, r.EntityType, r.ID, ""); err != nil {
		s.logger.Warn("Rule update audit failed", "rule_id", r.ID, "error", err)
	}

	return r, nil
}

// Delete removes a rule
func (s *ruleServiceImpl) Delete(ctx context.Context, actor Actor, id int64) error {
	if err := s.gate.Require(actor.UserID, actor.Roles, "rules", "write", ""); err != nil {
		return err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	if _, err := s.audits.Log(ctx, actor.UserID, entity.AuditActionRuleDelete, existing.EntityType, id, ""); err != nil {
		s.logger.Warn("Rule deletion audit failed", "rule_id", id, "error", err)
	}

	return nil
}

// Test dry-runs a stored rule against a sample entity snapshot
func (s *ruleServiceImpl) Test(ctx context.Context, actor Actor, id int64, sample map[string]interface{}) (*rule.Result, error) {
	if err := s.gate.Require(actor.UserID, actor.Roles, "rules", "read", ""); err != nil {
		return nil, err
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ent := &sampleEntity{entityType: r.EntityType, fields: sample}
	triggered, evalErr := s.evaluator.Evaluate(r, ent)

	res := &rule.Result{
		RuleID:    r.ID,
		RuleName:  r.Name,
		Triggered: triggered,
		Err:       evalErr,
	}
	if triggered {
		res.Action = r.Action
		res.Severity = r.Severity
		res.Message = r.Message
	}
	if evalErr != nil {
		return res, evalErr
	}
	return res, nil
}

func (s *ruleServiceImpl) fromInput(input RuleInput) (*rule.BusinessRule, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid rule input: %w", err)
	}

	r := &rule.BusinessRule{
		Name:         input.Name,
		EntityType:   entity.EntityType(input.EntityType),
		RuleType:     rule.RuleType(input.RuleType),
		Condition:    input.Condition,
		Action:       rule.Action(input.Action),
		ActionParams: input.ActionParams,
		Severity:     rule.Severity(input.Severity),
		Message:      input.Message,
		Priority:     input.Priority,
		IsActive:     input.IsActive,
	}

	if !r.RuleType.IsValid() {
		return nil, fmt.Errorf("invalid rule type %q", input.RuleType)
	}
	if !r.Action.IsValid() {
		return nil, fmt.Errorf("invalid rule action %q", input.Action)
	}
	if !r.Severity.IsValid() {
		return nil, fmt.Errorf("invalid rule severity %q", input.Severity)
	}
	if err := r.Condition.Validate(s.evaluator.MaxDepth()); err != nil {
		return nil, err
	}

	return r, nil
}

// sampleEntity adapts a caller-supplied field map to WorkflowableEntity for
// dry-run evaluation
type sampleEntity struct {
	entityType entity.EntityType
	fields     map[string]interface{}
}

func (s *sampleEntity) EntityType() entity.EntityType { return s.entityType }
func (s *sampleEntity) EntityID() int64               { return 0 }
func (s *sampleEntity) CurrentVersion() int64         { return 0 }

func (s *sampleEntity) CurrentStatus() string {
	if v, ok := s.fields["status"].(string); ok {
		return v
	}
	return ""
}

func (s *sampleEntity) NeedsApproval() bool {
	v, _ := s.fields["requires_approval"].(bool)
	return v
}

func (s *sampleEntity) Field(path string) (interface{}, bool) {
	v, ok := s.fields[path]
	return v, ok
}
