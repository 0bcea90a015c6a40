package entity

import (
	"testing"
	"time"
)

func TestInvoiceFieldLookup(t *testing.T) {
	due := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	inv := &Invoice{
		ID:               4,
		CompanyID:        2,
		Number:           "INV-2026-004",
		CustomerName:     "Acme Corp",
		Amount:           250000,
		Currency:         "USD",
		DueDate:          &due,
		Status:           "DRAFT",
		Version:          1,
		RequiresApproval: true,
		CreatedBy:        "user-1",
	}

	tests := []struct {
		path  string
		want  interface{}
		known bool
	}{
		{path: "amount", want: int64(250000), known: true},
		{path: "currency", want: "USD", known: true},
		{path: "customer_name", want: "Acme Corp", known: true},
		{path: "requires_approval", want: true, known: true},
		{path: "due_date", want: due, known: true},
		{path: "created_by", want: "user-1", known: true},
		{path: "status", want: "DRAFT", known: true},
		{path: "supplier", known: false},
		{path: "", known: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, known := inv.Field(tt.path)
			if known != tt.known {
				t.Fatalf("Field(%q) known = %v, want %v", tt.path, known, tt.known)
			}
			if known && got != tt.want {
				t.Errorf("Field(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestExpenseFieldNilReceipt(t *testing.T) {
	exp := &Expense{ID: 1, Amount: 4500, Category: "travel"}

	got, known := exp.Field("receipt_url")
	if !known {
		t.Fatal("receipt_url must be a known field")
	}
	if got != nil {
		t.Errorf("nil receipt must surface as nil, got %v", got)
	}

	url := "https://receipts.example.com/1"
	exp.ReceiptURL = &url
	got, _ = exp.Field("receipt_url")
	if got != url {
		t.Errorf("Field(receipt_url) = %v, want %v", got, url)
	}
}

func TestAuditChecksum(t *testing.T) {
	entry := &AuditLogEntry{
		ID:         "e1",
		Timestamp:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		ActorID:    "user-1",
		Action:     AuditActionApprove,
		EntityType: EntityTypeInvoice,
		EntityID:   42,
		ChangeSet:  `{"status":["PENDING_APPROVAL","APPROVED"]}`,
	}

	sum := entry.ComputeChecksum()
	if len(sum) != 64 {
		t.Fatalf("checksum length = %d, want 64 hex chars", len(sum))
	}
	if sum != entry.ComputeChecksum() {
		t.Error("checksum must be deterministic")
	}

	tampered := *entry
	tampered.ChangeSet = `{"status":["PENDING_APPROVAL","REJECTED"]}`
	if tampered.ComputeChecksum() == sum {
		t.Error("changing the change set must change the checksum")
	}

	later := *entry
	later.Timestamp = entry.Timestamp.Add(time.Nanosecond)
	if later.ComputeChecksum() == sum {
		t.Error("changing the timestamp must change the checksum")
	}
}
