package event

// Type identifies the type of domain event
type Type string

const (
	TypeInvoiceCreated   Type = "invoice.created"
	TypeInvoiceSubmitted Type = "invoice.submitted"
	TypeInvoiceApproved  Type = "invoice.approved"
	TypeInvoiceRejected  Type = "invoice.rejected"
	TypeInvoiceStatus    Type = "invoice.status_changed"
	TypeExpenseCreated   Type = "expense.created"
	TypeExpenseSubmitted Type = "expense.submitted"
	TypeExpenseApproved  Type = "expense.approved"
	TypeExpenseRejected  Type = "expense.rejected"
	TypeExpenseStatus    Type = "expense.status_changed"
	TypeRuleTriggered    Type = "rule.triggered"
	TypeAuditRecorded    Type = "audit.recorded"
	TypeNotifyRequested  Type = "notification.requested"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInvoiceCreated, TypeInvoiceSubmitted, TypeInvoiceApproved,
		TypeInvoiceRejected, TypeInvoiceStatus,
		TypeExpenseCreated, TypeExpenseSubmitted, TypeExpenseApproved,
		TypeExpenseRejected, TypeExpenseStatus,
		TypeRuleTriggered, TypeAuditRecorded, TypeNotifyRequested:
		return true
	default:
		return false
	}
}
