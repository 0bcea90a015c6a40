package entity

import "time"

// Invoice is a customer-facing billing document moving through the
// approval and collection lifecycle. Amounts are stored in cents.
type Invoice struct {
	ID               int64        `json:"id"`
	CompanyID        int64        `json:"company_id"`
	Number           string       `json:"number"`
	CustomerName     string       `json:"customer_name"`
	Amount           int64        `json:"amount"`
	Currency         string       `json:"currency"`
	DueDate          *time.Time   `json:"due_date,omitempty"`
	Status           string       `json:"status"`
	Version          int64        `json:"version"`
	RequiresApproval bool         `json:"requires_approval"`
	Approval         ApprovalMeta `json:"approval"`
	CreatedBy        string       `json:"created_by"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// EntityType implements WorkflowableEntity
func (i *Invoice) EntityType() EntityType { return EntityTypeInvoice }

// EntityID implements WorkflowableEntity
func (i *Invoice) EntityID() int64 { return i.ID }

// CurrentStatus implements WorkflowableEntity
func (i *Invoice) CurrentStatus() string { return i.Status }

// CurrentVersion implements WorkflowableEntity
func (i *Invoice) CurrentVersion() int64 { return i.Version }

// NeedsApproval implements WorkflowableEntity
func (i *Invoice) NeedsApproval() bool { return i.RequiresApproval }

// Field implements WorkflowableEntity
func (i *Invoice) Field(path string) (interface{}, bool) {
	switch path {
	case "id":
		return i.ID, true
	case "company_id":
		return i.CompanyID, true
	case "number":
		return i.Number, true
	case "customer_name":
		return i.CustomerName, true
	case "amount":
		return i.Amount, true
	case "currency":
		return i.Currency, true
	case "due_date":
		if i.DueDate == nil {
			return nil, true
		}
		return *i.DueDate, true
	case "status":
		return i.Status, true
	case "requires_approval":
		return i.RequiresApproval, true
	case "created_by":
		return i.CreatedBy, true
	case "approval.approved_by":
		return i.Approval.ApprovedBy, true
	case "approval.rejected_by":
		return i.Approval.RejectedBy, true
	case "approval.rejection_reason":
		return i.Approval.RejectionReason, true
	default:
		return nil, false
	}
}
