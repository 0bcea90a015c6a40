package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerflow/approval-engine/internal/application/port"
	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/rule"
	"github.com/ledgerflow/approval-engine/pkg/database"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunMigrations())
	return db
}

func draftInvoice() *entity.Invoice {
	return &entity.Invoice{
		CompanyID:        1,
		Number:           "INV-2026-001",
		CustomerName:     "Acme",
		Amount:           45000,
		Currency:         "USD",
		Status:           "DRAFT",
		Version:          0,
		RequiresApproval: true,
		CreatedBy:        "alice",
	}
}

func TestEntityRepositoryInvoiceRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewEntityRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	inv := draftInvoice()
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	inv.DueDate = &due

	require.NoError(t, repo.Insert(ctx, inv))
	assert.Greater(t, inv.ID, int64(0), "insert fills the generated ID")

	loaded, err := repo.FindByID(ctx, entity.EntityTypeInvoice, inv.ID)
	require.NoError(t, err)

	got := loaded.(*entity.Invoice)
	assert.Equal(t, inv.Number, got.Number)
	assert.Equal(t, int64(45000), got.Amount)
	assert.Equal(t, "DRAFT", got.Status)
	assert.Equal(t, int64(0), got.Version)
	assert.True(t, got.RequiresApproval)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))
	assert.Empty(t, got.Approval.ApprovedBy)
}

func TestEntityRepositoryExpenseRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewEntityRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	receipt := "https://files.example.com/r/7.pdf"
	exp := &entity.Expense{
		CompanyID:   1,
		Description: "conference travel",
		Amount:      80000,
		Currency:    "EUR",
		Category:    "travel",
		ReceiptURL:  &receipt,
		Status:      "DRAFT",
		CreatedBy:   "alice",
	}

	require.NoError(t, repo.Insert(ctx, exp))

	loaded, err := repo.FindByID(ctx, entity.EntityTypeExpense, exp.ID)
	require.NoError(t, err)

	got := loaded.(*entity.Expense)
	assert.Equal(t, "conference travel", got.Description)
	require.NotNil(t, got.ReceiptURL)
	assert.Equal(t, receipt, *got.ReceiptURL)
}

func TestEntityRepositoryNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewEntityRepository(db.DB, zap.NewNop())

	_, err := repo.FindByID(context.Background(), entity.EntityTypeInvoice, 404)

	require.ErrorIs(t, err, port.ErrNotFound)
}

func TestEntityRepositoryVersionedUpdate(t *testing.T) {
	db := testDB(t)
	repo := NewEntityRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	inv := draftInvoice()
	inv.Status = "PENDING_APPROVAL"
	inv.Version = 1
	require.NoError(t, repo.Insert(ctx, inv))

	now := time.Now().UTC()
	upd := port.StatusUpdate{
		Status:   "APPROVED",
		Approval: &entity.ApprovalMeta{ApprovedBy: "bob", ApprovedAt: &now},
	}

	rows, err := repo.UpdateWithVersionCheck(ctx, entity.EntityTypeInvoice, inv.ID, upd, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	loaded, err := repo.FindByID(ctx, entity.EntityTypeInvoice, inv.ID)
	require.NoError(t, err)
	got := loaded.(*entity.Invoice)
	assert.Equal(t, "APPROVED", got.Status)
	assert.Equal(t, int64(2), got.Version, "the persisted version increments by exactly one")
	assert.Equal(t, "bob", got.Approval.ApprovedBy)
	require.NotNil(t, got.Approval.ApprovedAt)

	// a second writer holding the old version loses the race
	rows, err = repo.UpdateWithVersionCheck(ctx, entity.EntityTypeInvoice, inv.ID, upd, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "a stale version affects zero rows")
}

func TestEntityRepositoryDelete(t *testing.T) {
	db := testDB(t)
	repo := NewEntityRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	inv := draftInvoice()
	require.NoError(t, repo.Insert(ctx, inv))
	require.NoError(t, repo.Delete(ctx, entity.EntityTypeInvoice, inv.ID))

	_, err := repo.FindByID(ctx, entity.EntityTypeInvoice, inv.ID)
	require.ErrorIs(t, err, port.ErrNotFound)
}

func TestHistoryRepository(t *testing.T) {
	db := testDB(t)
	repo := NewHistoryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	steps := []struct{ from, to string }{
		{"DRAFT", "PENDING_APPROVAL"},
		{"PENDING_APPROVAL", "APPROVED"},
		{"APPROVED", "SENT"},
	}
	for i, s := range steps {
		require.NoError(t, repo.Insert(ctx, &entity.WorkflowHistory{
			EntityType: entity.EntityTypeInvoice,
			EntityID:   11,
			FromStatus: s.from,
			ToStatus:   s.to,
			ActorID:    "bob",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// a different entity's trail must not leak in
	require.NoError(t, repo.Insert(ctx, &entity.WorkflowHistory{
		EntityType: entity.EntityTypeInvoice,
		EntityID:   12,
		FromStatus: "DRAFT",
		ToStatus:   "CANCELLED",
		ActorID:    "alice",
		Timestamp:  base,
	}))

	rows, err := repo.ListByEntity(ctx, entity.EntityTypeInvoice, 11)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "PENDING_APPROVAL", rows[0].ToStatus)
	assert.Equal(t, "APPROVED", rows[1].ToStatus)
	assert.Equal(t, "SENT", rows[2].ToStatus)
}

func TestAuditRepository(t *testing.T) {
	db := testDB(t)
	repo := NewAuditRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	entries := []*entity.AuditLogEntry{
		{ID: "a1", Timestamp: base, ActorID: "alice", Action: entity.AuditActionCreate, EntityType: entity.EntityTypeInvoice, EntityID: 11, ChangeSet: "{}"},
		{ID: "a2", Timestamp: base.Add(time.Minute), ActorID: "bob", Action: entity.AuditActionApprove, EntityType: entity.EntityTypeInvoice, EntityID: 11, ChangeSet: "{}"},
		{ID: "a3", Timestamp: base.Add(2 * time.Hour), ActorID: "bob", Action: entity.AuditActionApprove, EntityType: entity.EntityTypeExpense, EntityID: 7, ChangeSet: "{}"},
	}
	for _, e := range entries {
		e.Checksum = e.ComputeChecksum()
		require.NoError(t, repo.Insert(ctx, e))
	}

	byEntity, err := repo.ListByEntity(ctx, entity.EntityTypeInvoice, 11)
	require.NoError(t, err)
	require.Len(t, byEntity, 2)
	assert.Equal(t, "a1", byEntity[0].ID)
	assert.Equal(t, entries[0].Checksum, byEntity[0].Checksum, "the stored checksum survives the round trip")
	assert.Equal(t, byEntity[0].ComputeChecksum(), byEntity[0].Checksum)

	byRange, err := repo.ListByRange(ctx, base.Add(-time.Minute), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, byRange, 2, "range queries exclude entries outside the window")
}

func TestRuleRepository(t *testing.T) {
	db := testDB(t)
	repo := NewRuleRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	br := &rule.BusinessRule{
		Name:       "expense-receipt-required",
		EntityType: entity.EntityTypeExpense,
		RuleType:   rule.RuleTypeAttachment,
		Condition: rule.And(
			rule.Leaf("amount", rule.OpGt, 50000),
			rule.Leaf("receipt_url", rule.OpIsNull, nil),
		),
		Action:       rule.ActionBlockTransition,
		ActionParams: map[string]string{"notify": "finance"},
		Severity:     rule.SeverityCritical,
		Message:      "expenses over 500 need a receipt",
		Priority:     10,
		IsActive:     true,
	}

	require.NoError(t, repo.Create(ctx, br))
	assert.Greater(t, br.ID, int64(0))

	loaded, err := repo.GetByID(ctx, br.ID)
	require.NoError(t, err)
	assert.Equal(t, br.Name, loaded.Name)
	assert.Equal(t, rule.SeverityCritical, loaded.Severity)
	assert.Equal(t, map[string]string{"notify": "finance"}, loaded.ActionParams)
	require.NotNil(t, loaded.Condition)
	assert.Equal(t, rule.NodeAnd, loaded.Condition.Kind)
	require.Len(t, loaded.Condition.Children, 2)
	assert.Equal(t, "amount", loaded.Condition.Children[0].Field)

	loaded.IsActive = false
	loaded.Message = "updated"
	require.NoError(t, repo.Update(ctx, loaded))

	active, err := repo.ListActive(ctx, entity.EntityTypeExpense)
	require.NoError(t, err)
	assert.Empty(t, active, "deactivated rules drop out of the active set")

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "updated", all[0].Message)

	require.NoError(t, repo.Delete(ctx, br.ID))
	_, err = repo.GetByID(ctx, br.ID)
	require.ErrorIs(t, err, rule.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, br.ID), rule.ErrNotFound)
}

func TestRuleRepositoryActiveOrdering(t *testing.T) {
	db := testDB(t)
	repo := NewRuleRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	for _, r := range []*rule.BusinessRule{
		{Name: "second", EntityType: entity.EntityTypeInvoice, RuleType: rule.RuleTypeAmount, Condition: rule.Leaf("amount", rule.OpGt, 0), Action: rule.ActionNotify, Severity: rule.SeverityInfo, Priority: 20, IsActive: true},
		{Name: "first", EntityType: entity.EntityTypeInvoice, RuleType: rule.RuleTypeAmount, Condition: rule.Leaf("amount", rule.OpGt, 0), Action: rule.ActionNotify, Severity: rule.SeverityInfo, Priority: 5, IsActive: true},
		{Name: "inactive", EntityType: entity.EntityTypeInvoice, RuleType: rule.RuleTypeAmount, Condition: rule.Leaf("amount", rule.OpGt, 0), Action: rule.ActionNotify, Severity: rule.SeverityInfo, Priority: 1, IsActive: false},
	} {
		require.NoError(t, repo.Create(ctx, r))
	}

	active, err := repo.ListActive(ctx, entity.EntityTypeInvoice)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "first", active[0].Name)
	assert.Equal(t, "second", active[1].Name)
}

func TestNotificationRepository(t *testing.T) {
	db := testDB(t)
	repo := NewNotificationRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	n := &entity.NotificationPayload{
		RecipientID: "alice",
		Channel:     entity.NotificationChannelInApp,
		Subject:     "invoice 11 created",
		Body:        "invoice 11 was created as DRAFT",
		EntityType:  entity.EntityTypeInvoice,
		EntityID:    11,
	}

	require.NoError(t, repo.Enqueue(ctx, n))
	assert.Greater(t, n.ID, int64(0))
	assert.Equal(t, entity.NotificationStatusPending, n.Status, "enqueue defaults the status")

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].RecipientID)

	require.NoError(t, repo.CancelForEntity(ctx, entity.EntityTypeInvoice, 11))

	pending, err = repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "cancelled intents leave the pending queue")
}

func TestTxManagerRollback(t *testing.T) {
	db := testDB(t)
	txm := NewTxManager(db.DB, zap.NewNop())
	entities := NewEntityRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("boom")
	err := txm.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := entities.Insert(txCtx, draftInvoice()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = entities.FindByID(ctx, entity.EntityTypeInvoice, 1)
	require.ErrorIs(t, err, port.ErrNotFound, "a failed transaction leaves no rows behind")
}

func TestTxManagerNestedJoins(t *testing.T) {
	db := testDB(t)
	txm := NewTxManager(db.DB, zap.NewNop())
	entities := NewEntityRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	var id int64
	err := txm.WithTransaction(ctx, func(outer context.Context) error {
		return txm.WithTransaction(outer, func(inner context.Context) error {
			inv := draftInvoice()
			if err := entities.Insert(inner, inv); err != nil {
				return err
			}
			id = inv.ID
			return nil
		})
	})
	require.NoError(t, err)

	_, err = entities.FindByID(ctx, entity.EntityTypeInvoice, id)
	require.NoError(t, err, "nested scopes join one transaction that commits once")
}
