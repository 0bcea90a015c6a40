package entity

import "time"

// EntityType identifies a kind of workflowable document
type EntityType string

const (
	EntityTypeInvoice EntityType = "invoice"
	EntityTypeExpense EntityType = "expense"
)

// String returns the string representation of the entity type
func (t EntityType) String() string {
	return string(t)
}

// IsValid returns true if the entity type is one of the defined constants
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeInvoice, EntityTypeExpense:
		return true
	default:
		return false
	}
}

// WorkflowableEntity is the capability every document governed by the
// approval workflow must expose. Field access goes through an explicit
// validated path lookup instead of reflection.
type WorkflowableEntity interface {
	EntityType() EntityType
	EntityID() int64
	CurrentStatus() string
	CurrentVersion() int64
	NeedsApproval() bool

	// Field resolves a dotted path ("amount", "approval.approved_by") to a
	// value. The second return is false when the path is not known.
	Field(path string) (interface{}, bool)
}

// ApprovalMeta holds the approval outcome recorded on the entity itself
type ApprovalMeta struct {
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}
