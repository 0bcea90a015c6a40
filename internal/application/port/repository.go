// Package port defines the contracts the workflow core expects from its
// external collaborators: durable storage and transaction scoping. Concrete
// implementations live under internal/repository.
package port

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/rule"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// StatusUpdate carries the mutation applied by an optimistic-locked
// transition: the new status and, for approval outcomes, the approver or
// rejecter identity.
type StatusUpdate struct {
	Status   string
	Approval *entity.ApprovalMeta
}

// EntityRepository provides versioned access to workflowable documents.
// UpdateWithVersionCheck is the optimistic-lock primitive: a conditional
// UPDATE ... WHERE id=? AND version=? whose affected-row count of zero is
// the lock-conflict signal; on success the persisted version is incremented
// by exactly one.
type EntityRepository interface {
	FindByID(ctx context.Context, entityType entity.EntityType, id int64) (entity.WorkflowableEntity, error)
	Insert(ctx context.Context, ent entity.WorkflowableEntity) error
	UpdateWithVersionCheck(ctx context.Context, entityType entity.EntityType, id int64, upd StatusUpdate, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, entityType entity.EntityType, id int64) error
}

// HistoryRepository stores the per-entity transition trail
type HistoryRepository interface {
	Insert(ctx context.Context, h *entity.WorkflowHistory) error
	ListByEntity(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.WorkflowHistory, error)
}

// AuditRepository stores the append-only audit log. There is deliberately
// no update or delete operation.
type AuditRepository interface {
	Insert(ctx context.Context, e *entity.AuditLogEntry) error
	ListByEntity(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.AuditLogEntry, error)
	ListByRange(ctx context.Context, from, to time.Time) ([]*entity.AuditLogEntry, error)
}

// RuleRepository stores administrator-authored business rules
type RuleRepository interface {
	Create(ctx context.Context, r *rule.BusinessRule) error
	Update(ctx context.Context, r *rule.BusinessRule) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*rule.BusinessRule, error)
	List(ctx context.Context) ([]*rule.BusinessRule, error)
	ListActive(ctx context.Context, entityType entity.EntityType) ([]*rule.BusinessRule, error)
}

// NotificationRepository enqueues notification intents. Delivery is owned
// by a worker outside this module.
type NotificationRepository interface {
	Enqueue(ctx context.Context, n *entity.NotificationPayload) error
	CancelForEntity(ctx context.Context, entityType entity.EntityType, entityID int64) error
	ListPending(ctx context.Context, limit int) ([]*entity.NotificationPayload, error)
}

// TransactionManager scopes a function to one atomic unit. The transaction
// travels in the context; repository methods participate when one is
// present.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
