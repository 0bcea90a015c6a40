package rule

import (
	"time"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

// Severity classifies how a triggered rule affects the operation
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// IsValid returns true if the severity is one of the defined constants
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Action names what a triggered rule asks the caller to do
type Action string

const (
	ActionBlockTransition   Action = "BLOCK_TRANSITION"
	ActionRequireAttachment Action = "REQUIRE_ATTACHMENT"
	ActionRequireApproval   Action = "REQUIRE_APPROVAL"
	ActionNotify            Action = "NOTIFY"
	ActionFlagReview        Action = "FLAG_REVIEW"
)

// IsValid returns true if the action is one of the defined constants
func (a Action) IsValid() bool {
	switch a {
	case ActionBlockTransition, ActionRequireAttachment, ActionRequireApproval,
		ActionNotify, ActionFlagReview:
		return true
	default:
		return false
	}
}

// RuleType groups rules by the aspect of the document they inspect
type RuleType string

const (
	RuleTypeAmount     RuleType = "AMOUNT"
	RuleTypeAttachment RuleType = "ATTACHMENT"
	RuleTypeDeadline   RuleType = "DEADLINE"
	RuleTypeCustom     RuleType = "CUSTOM"
)

// IsValid returns true if the rule type is one of the defined constants
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeAmount, RuleTypeAttachment, RuleTypeDeadline, RuleTypeCustom:
		return true
	default:
		return false
	}
}

// BusinessRule is an administrator-authored rule evaluated read-only at
// workflow time. The condition tree is data, never code.
type BusinessRule struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	EntityType   entity.EntityType `json:"entity_type"`
	RuleType     RuleType          `json:"rule_type"`
	Condition    *Condition        `json:"condition"`
	Action       Action            `json:"action"`
	ActionParams map[string]string `json:"action_params,omitempty"`
	Severity     Severity          `json:"severity"`
	Message      string            `json:"message"`
	Priority     int               `json:"priority"` // lower evaluates first
	IsActive     bool              `json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Result is the outcome of evaluating one rule against one entity
type Result struct {
	RuleID    int64    `json:"rule_id"`
	RuleName  string   `json:"rule_name"`
	Triggered bool     `json:"triggered"`
	Action    Action   `json:"action,omitempty"`
	Severity  Severity `json:"severity,omitempty"`
	Message   string   `json:"message,omitempty"`
	Err       error    `json:"-"`
}
