package entity

import "time"

// Expense is an employee-submitted cost claim. ReceiptURL is nil until an
// attachment has been uploaded; business rules key off that.
type Expense struct {
	ID               int64        `json:"id"`
	CompanyID        int64        `json:"company_id"`
	Description      string       `json:"description"`
	Amount           int64        `json:"amount"`
	Currency         string       `json:"currency"`
	Category         string       `json:"category"`
	ReceiptURL       *string      `json:"receipt_url,omitempty"`
	Status           string       `json:"status"`
	Version          int64        `json:"version"`
	RequiresApproval bool         `json:"requires_approval"`
	Approval         ApprovalMeta `json:"approval"`
	CreatedBy        string       `json:"created_by"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// EntityType implements WorkflowableEntity
func (e *Expense) EntityType() EntityType { return EntityTypeExpense }

// EntityID implements WorkflowableEntity
func (e *Expense) EntityID() int64 { return e.ID }

// CurrentStatus implements WorkflowableEntity
func (e *Expense) CurrentStatus() string { return e.Status }

// CurrentVersion implements WorkflowableEntity
func (e *Expense) CurrentVersion() int64 { return e.Version }

// NeedsApproval implements WorkflowableEntity
func (e *Expense) NeedsApproval() bool { return e.RequiresApproval }

// Field implements WorkflowableEntity
func (e *Expense) Field(path string) (interface{}, bool) {
	switch path {
	case "id":
		return e.ID, true
	case "company_id":
		return e.CompanyID, true
	case "description":
		return e.Description, true
	case "amount":
		return e.Amount, true
	case "currency":
		return e.Currency, true
	case "category":
		return e.Category, true
	case "receipt_url":
		if e.ReceiptURL == nil {
			return nil, true
		}
		return *e.ReceiptURL, true
	case "status":
		return e.Status, true
	case "requires_approval":
		return e.RequiresApproval, true
	case "created_by":
		return e.CreatedBy, true
	case "approval.approved_by":
		return e.Approval.ApprovedBy, true
	case "approval.rejected_by":
		return e.Approval.RejectedBy, true
	case "approval.rejection_reason":
		return e.Approval.RejectionReason, true
	default:
		return nil, false
	}
}
