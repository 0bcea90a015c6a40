package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerflow/approval-engine/internal/application/dispatcher"
	"github.com/ledgerflow/approval-engine/internal/application/port"
	"github.com/ledgerflow/approval-engine/internal/application/tx"
	engine "github.com/ledgerflow/approval-engine/internal/application/workflow"
	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/event"
	"github.com/ledgerflow/approval-engine/internal/domain/permission"
	"github.com/ledgerflow/approval-engine/internal/domain/rule"
	domainwf "github.com/ledgerflow/approval-engine/internal/domain/workflow"
)

// Actor identifies the caller of a workflow operation
type Actor struct {
	UserID string
	Roles  []string
}

// TransitionOutcome is what a successful write operation returns
type TransitionOutcome struct {
	Entity              entity.WorkflowableEntity `json:"entity"`
	NewStatus           domainwf.Status           `json:"new_status"`
	ExecutedSideEffects []string                  `json:"executed_side_effects,omitempty"`
	Warnings            []string                  `json:"warnings,omitempty"`
}

// WorkflowService is the orchestrator: it composes the permission gate,
// rule engine, transition engine, audit logger and event bus into the
// public workflow operations.
type WorkflowService interface {
	CreateInvoice(ctx context.Context, actor Actor, inv *entity.Invoice) ([]string, error)
	CreateExpense(ctx context.Context, actor Actor, exp *entity.Expense) ([]string, error)
	SubmitForApproval(ctx context.Context, actor Actor, entityType entity.EntityType, id int64) (*TransitionOutcome, error)
	Approve(ctx context.Context, actor Actor, entityType entity.EntityType, id int64) (*TransitionOutcome, error)
	Reject(ctx context.Context, actor Actor, entityType entity.EntityType, id int64, reason string) (*TransitionOutcome, error)
	Transition(ctx context.Context, actor Actor, entityType entity.EntityType, id int64, to domainwf.Status, reason string) (*TransitionOutcome, error)
	AvailableActions(ctx context.Context, actor Actor, entityType entity.EntityType, id int64) (*engine.ActionSet, error)
	WorkflowHistory(ctx context.Context, actor Actor, entityType entity.EntityType, id int64) ([]*entity.WorkflowHistory, error)
}

type workflowServiceImpl struct {
	gate          *permission.Gate
	machine       *domainwf.Machine
	evaluator     *rule.Evaluator
	engine        engine.Engine
	txManager     *tx.Manager
	entityRepo    port.EntityRepository
	historyRepo   port.HistoryRepository
	ruleRepo      port.RuleRepository
	notifications port.NotificationRepository
	audits        AuditService
	bus           dispatcher.Bus
	logger        Logger
}

// NewWorkflowService creates the orchestrator
func NewWorkflowService(
	gate *permission.Gate,
	machine *domainwf.Machine,
	evaluator *rule.Evaluator,
	eng engine.Engine,
	txManager *tx.Manager,
	entityRepo port.EntityRepository,
	historyRepo port.HistoryRepository,
	ruleRepo port.RuleRepository,
	notifications port.NotificationRepository,
	audits AuditService,
	bus dispatcher.Bus,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		gate:          gate,
		machine:       machine,
		evaluator:     evaluator,
		engine:        eng,
		txManager:     txManager,
		entityRepo:    entityRepo,
		historyRepo:   historyRepo,
		ruleRepo:      ruleRepo,
		notifications: notifications,
		audits:        audits,
		bus:           bus,
		logger:        logger,
	}
}

// CreateInvoice persists a new draft invoice as a saga
func (s *workflowServiceImpl) CreateInvoice(ctx context.Context, actor Actor, inv *entity.Invoice) ([]string, error) {
	inv.Status = domainwf.InitialStatus(entity.EntityTypeInvoice).String()
	inv.Version = 0
	inv.CreatedBy = actor.UserID
	return s.create(ctx, actor, inv, "invoices")
}

// CreateExpense persists a new draft expense as a saga
func (s *workflowServiceImpl) CreateExpense(ctx context.Context, actor Actor, exp *entity.Expense) ([]string, error) {
	exp.Status = domainwf.InitialStatus(entity.EntityTypeExpense).String()
	exp.Version = 0
	exp.CreatedBy = actor.UserID
	return s.create(ctx, actor, exp, "expenses")
}

func (s *workflowServiceImpl) create(ctx context.Context, actor Actor, ent entity.WorkflowableEntity, resource string) ([]string, error) {
	if err := s.gate.Require(actor.UserID, actor.Roles, resource, "create", actor.UserID); err != nil {
		return nil, err
	}

	warnings, err := s.checkRules(ctx, ent)
	if err != nil {
		return nil, err
	}

	steps := []tx.Step{
		{
			Name: "insert-entity",
			Execute: func(sctx context.Context) (interface{}, error) {
				if err := s.entityRepo.Insert(sctx, ent); err != nil {
					return nil, fmt.Errorf("failed to insert %s: %w", ent.EntityType(), err)
				}
				return ent.EntityID(), nil
			},
			Compensate: func(sctx context.Context, _ interface{}) error {
				return s.entityRepo.Delete(sctx, ent.EntityType(), ent.EntityID())
			},
		},
		{
			Name: "enqueue-notification",
			Execute: func(sctx context.Context) (interface{}, error) {
				n := &entity.NotificationPayload{
					RecipientID: actor.UserID,
					Channel:     entity.NotificationChannelInApp,
					Subject:     fmt.Sprintf("%s %d created", ent.EntityType(), ent.EntityID()),
					Body:        fmt.Sprintf("%s %d was created as %s", ent.EntityType(), ent.EntityID(), ent.CurrentStatus()),
					EntityType:  ent.EntityType(),
					EntityID:    ent.EntityID(),
					Status:      entity.NotificationStatusPending,
				}
				if err := s.notifications.Enqueue(sctx, n); err != nil {
					return nil, err
				}
				return n.ID, nil
			},
			Compensate: func(sctx context.Context, _ interface{}) error {
				return s.notifications.CancelForEntity(sctx, ent.EntityType(), ent.EntityID())
			},
		},
	}

	if _, err := s.txManager.RunSaga(ctx, steps); err != nil {
		return nil, err
	}

	// Audit after the saga committed; a failed write degrades to a warning
	changeSet, _ := json.Marshal(map[string]string{"status": ent.CurrentStatus()})
	if _, err := s.audits.Log(ctx, actor.UserID, entity.AuditActionCreate, ent.EntityType(), ent.EntityID(), string(changeSet)); err != nil {
		warnings = append(warnings, err.Error())
	}

	s.publish(ctx, createdEventType(ent.EntityType()), ent, actor, map[string]interface{}{
		"status": ent.CurrentStatus(),
	})

	return warnings, nil
}

// SubmitForApproval moves a draft into the approval queue
func (s *workflowServiceImpl) SubmitForApproval(ctx context.Context, actor Actor, entityType entity.EntityType, id int64) (*TransitionOutcome, error) {
	return s.Transition(ctx, actor, entityType, id, domainwf.StatusPendingApproval, "")
}

// Approve records an approval decision
func (s *workflowServiceImpl) Approve(ctx context.Context, actor Actor, entityType entity.EntityType, id int64) (*TransitionOutcome, error) {
	return s.Transition(ctx, actor, entityType, id, domainwf.StatusApproved, "")
}

// Reject records a rejection with its reason
func (s *workflowServiceImpl) Reject(ctx context.Context, actor Actor, entityType entity.EntityType, id int64, reason string) (*TransitionOutcome, error) {
	return s.Transition(ctx, actor, entityType, id, domainwf.StatusRejected, reason)
}

// Transition runs the full write sequence: authorize, evaluate rules,
// execute under optimistic lock, audit, publish.
func (s *workflowServiceImpl) Transition(ctx context.Context, actor Actor, entityType entity.EntityType, id int64, to domainwf.Status, reason string) (*TransitionOutcome, error) {
	ent, err := s.entityRepo.FindByID(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	from := domainwf.Status(ent.CurrentStatus())
	t, ok := s.machine.Registry().Lookup(entityType, from, to)
	if !ok {
		return nil, &engine.InvalidTransitionError{
			From:   from,
			To:     to,
			Reason: fmt.Sprintf("no transition registered from %s to %s for %s", from, to, entityType),
		}
	}

	ownerID := ownerOf(ent)
	perm := t.RequiredPermission
	if err := s.gate.Require(actor.UserID, actor.Roles, perm.Resource, perm.Action, ownerID); err != nil {
		return nil, err
	}

	warnings, err := s.checkRules(ctx, ent)
	if err != nil {
		return nil, err
	}

	tctx := domainwf.Context{
		Entity:    ent,
		From:      from,
		To:        to,
		ActorID:   actor.UserID,
		Roles:     actor.Roles,
		Reason:    reason,
		Timestamp: time.Now(),
	}

	result, err := s.engine.ExecuteTransition(ctx, tctx)
	if err != nil {
		return nil, err
	}

	updated, err := s.entityRepo.FindByID(ctx, entityType, id)
	if err != nil {
		// The transition committed; reload failure only degrades the response
		s.logger.Warn("Failed to reload entity after transition",
			"entity_type", entityType, "entity_id", id, "error", err)
		updated = ent
	}

	s.publish(ctx, transitionEventType(entityType, to), updated, actor, map[string]interface{}{
		"from_status": from.String(),
		"to_status":   to.String(),
		"reason":      reason,
	})

	return &TransitionOutcome{
		Entity:              updated,
		NewStatus:           result.NewStatus,
		ExecutedSideEffects: result.ExecutedSideEffects,
		Warnings:            append(warnings, result.Warnings...),
	}, nil
}

// AvailableActions computes the caller's next moves without mutating
func (s *workflowServiceImpl) AvailableActions(ctx context.Context, actor Actor, entityType entity.EntityType, id int64) (*engine.ActionSet, error) {
	ent, err := s.entityRepo.FindByID(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	return s.engine.AvailableActions(ctx, domainwf.Context{
		Entity:  ent,
		From:    domainwf.Status(ent.CurrentStatus()),
		ActorID: actor.UserID,
		Roles:   actor.Roles,
	})
}

// WorkflowHistory returns the transition trail for one entity
func (s *workflowServiceImpl) WorkflowHistory(ctx context.Context, actor Actor, entityType entity.EntityType, id int64) ([]*entity.WorkflowHistory, error) {
	ent, err := s.entityRepo.FindByID(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	resource := resourceFor(entityType)
	if err := s.gate.Require(actor.UserID, actor.Roles, resource, "read", ownerOf(ent)); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByEntity(ctx, entityType, id)
}

// checkRules evaluates the active rules for the entity's type. CRITICAL
// triggers block with RuleViolationError; WARNING triggers come back as
// display messages.
func (s *workflowServiceImpl) checkRules(ctx context.Context, ent entity.WorkflowableEntity) ([]string, error) {
	rules, err := s.ruleRepo.ListActive(ctx, ent.EntityType())
	if err != nil {
		return nil, fmt.Errorf("failed to load business rules: %w", err)
	}

	results := s.evaluator.EvaluateAll(rules, ent)

	var critical []rule.Result
	var warnings []string
	for _, res := range results {
		if res.Err != nil {
			s.logger.Warn("Rule evaluation error",
				"rule", res.RuleName, "entity_type", ent.EntityType(), "error", res.Err)
			continue
		}
		if !res.Triggered {
			continue
		}

		s.publish(ctx, event.TypeRuleTriggered, ent, Actor{}, map[string]interface{}{
			"rule_id":   res.RuleID,
			"rule_name": res.RuleName,
			"severity":  string(res.Severity),
			"action":    string(res.Action),
		})

		switch res.Severity {
		case rule.SeverityCritical:
			critical = append(critical, res)
		case rule.SeverityWarning:
			if res.Message != "" {
				warnings = append(warnings, res.Message)
			} else {
				warnings = append(warnings, fmt.Sprintf("rule %s triggered", res.RuleName))
			}
		}
	}

	if len(critical) > 0 {
		return nil, &RuleViolationError{Violations: critical}
	}
	return warnings, nil
}

func (s *workflowServiceImpl) publish(ctx context.Context, eventType event.Type, ent entity.WorkflowableEntity, actor Actor, payload map[string]interface{}) {
	if s.bus == nil {
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if actor.UserID != "" {
		payload["actor_id"] = actor.UserID
	}
	s.bus.Publish(ctx, event.New(eventType, ent.EntityID(), ent.EntityType().String(), payload))
}

func ownerOf(ent entity.WorkflowableEntity) string {
	if v, ok := ent.Field("created_by"); ok {
		if s, isStr := v.(string); isStr {
			return s
		}
	}
	return ""
}

func resourceFor(entityType entity.EntityType) string {
	if entityType == entity.EntityTypeExpense {
		return "expenses"
	}
	return "invoices"
}

func createdEventType(entityType entity.EntityType) event.Type {
	if entityType == entity.EntityTypeExpense {
		return event.TypeExpenseCreated
	}
	return event.TypeInvoiceCreated
}

func transitionEventType(entityType entity.EntityType, to domainwf.Status) event.Type {
	isExpense := entityType == entity.EntityTypeExpense
	switch to {
	case domainwf.StatusPendingApproval:
		if isExpense {
			return event.TypeExpenseSubmitted
		}
		return event.TypeInvoiceSubmitted
	case domainwf.StatusApproved:
		if isExpense {
			return event.TypeExpenseApproved
		}
		return event.TypeInvoiceApproved
	case domainwf.StatusRejected:
		if isExpense {
			return event.TypeExpenseRejected
		}
		return event.TypeInvoiceRejected
	default:
		if isExpense {
			return event.TypeExpenseStatus
		}
		return event.TypeInvoiceStatus
	}
}
