package workflow

import "github.com/ledgerflow/approval-engine/internal/domain/entity"

// Status represents a workflow state in a document's lifecycle
type Status string

// Invoice lifecycle states
const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusSent            Status = "SENT"
	StatusPartiallyPaid   Status = "PARTIALLY_PAID"
	StatusPaid            Status = "PAID"
	StatusOverdue         Status = "OVERDUE"
	StatusCollection      Status = "COLLECTION"
	StatusWrittenOff      Status = "WRITTEN_OFF"
	StatusCancelled       Status = "CANCELLED"
)

// Expense-only lifecycle state
const (
	StatusReimbursed Status = "REIMBURSED"
)

var invoiceStates = map[Status]bool{
	StatusDraft:           true,
	StatusPendingApproval: true,
	StatusApproved:        true,
	StatusRejected:        true,
	StatusSent:            true,
	StatusPartiallyPaid:   true,
	StatusPaid:            true,
	StatusOverdue:         true,
	StatusCollection:      true,
	StatusWrittenOff:      true,
	StatusCancelled:       true,
}

var expenseStates = map[Status]bool{
	StatusDraft:           true,
	StatusPendingApproval: true,
	StatusApproved:        true,
	StatusRejected:        true,
	StatusReimbursed:      true,
	StatusCancelled:       true,
}

// Terminal states have no outgoing transitions registered. REJECTED is not
// terminal: REJECTED -> DRAFT deliberately reopens the workflow.
var terminalStates = map[Status]bool{
	StatusCancelled:  true,
	StatusPaid:       true,
	StatusWrittenOff: true,
	StatusReimbursed: true,
}

// InitialStatus returns the entry state for an entity type
func InitialStatus(entityType entity.EntityType) Status {
	_ = entityType // both document types start life as drafts
	return StatusDraft
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status admits no further transitions
func (s Status) IsTerminal() bool {
	return terminalStates[s]
}

// ValidFor returns true if the status belongs to the given entity type's
// closed state enumeration
func (s Status) ValidFor(entityType entity.EntityType) bool {
	switch entityType {
	case entity.EntityTypeInvoice:
		return invoiceStates[s]
	case entity.EntityTypeExpense:
		return expenseStates[s]
	default:
		return false
	}
}
