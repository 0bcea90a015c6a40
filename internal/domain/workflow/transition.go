package workflow

import (
	"time"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/rule"
)

// ConditionKind discriminates transition condition variants
type ConditionKind string

const (
	ConditionFieldValue ConditionKind = "FIELD_VALUE"
	ConditionUserRole   ConditionKind = "USER_ROLE"
	ConditionCustom     ConditionKind = "CUSTOM"
)

// Condition guards a transition. It is a tagged variant: a field comparison,
// a role requirement, or a reference to a named validator. Validators are
// referenced by stable ID so the definition stays data, not code.
type Condition struct {
	Kind ConditionKind `json:"kind"`

	// FIELD_VALUE
	Field    string        `json:"field,omitempty"`
	Operator rule.Operator `json:"operator,omitempty"`
	Value    interface{}   `json:"value,omitempty"`

	// USER_ROLE
	Role string `json:"role,omitempty"`

	// CUSTOM
	ValidatorID string `json:"validator_id,omitempty"`

	// ErrorMessage is surfaced to the caller when the condition is unmet
	ErrorMessage string `json:"error_message"`
}

// SideEffectKind names the post-commit actions a transition can carry
type SideEffectKind string

const (
	SideEffectNotification SideEffectKind = "NOTIFICATION"
	SideEffectAuditLog     SideEffectKind = "AUDIT_LOG"
	SideEffectWebhook      SideEffectKind = "WEBHOOK"
	SideEffectCustom       SideEffectKind = "CUSTOM"
)

// SideEffect is executed after the transition has committed. Async effects
// are dispatched through the event bus; failures of either flavor degrade
// to warnings and never roll back the committed transition.
type SideEffect struct {
	Kind   SideEffectKind    `json:"kind"`
	Async  bool              `json:"async"`
	Params map[string]string `json:"params,omitempty"`
}

// Transition is one registered edge of an entity type's state graph
type Transition struct {
	From               Status       `json:"from"`
	To                 Status       `json:"to"`
	RequiredRoles      []string     `json:"required_roles,omitempty"`
	RequiredPermission Permission   `json:"required_permission"`
	Conditions         []Condition  `json:"conditions,omitempty"`
	SideEffects        []SideEffect `json:"side_effects,omitempty"`
}

// Permission names the (resource, action) capability a transition demands
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Context carries everything needed to validate and execute a transition
type Context struct {
	Entity    entity.WorkflowableEntity
	From      Status
	To        Status
	ActorID   string
	Roles     []string
	Reason    string
	Timestamp time.Time
}

// Decision is the outcome of validating a requested transition
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}
