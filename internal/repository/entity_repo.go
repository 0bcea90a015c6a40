package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerflow/approval-engine/internal/application/port"
	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

// EntityRepository handles invoice and expense persistence, including the
// optimistic-lock conditional update the transition engine relies on.
type EntityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db *sql.DB, logger *zap.Logger) *EntityRepository {
	return &EntityRepository{db: db, logger: logger}
}

// FindByID loads one document
func (r *EntityRepository) FindByID(ctx context.Context, entityType entity.EntityType, id int64) (entity.WorkflowableEntity, error) {
	switch entityType {
	case entity.EntityTypeInvoice:
		return r.findInvoice(ctx, id)
	case entity.EntityTypeExpense:
		return r.findExpense(ctx, id)
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
}

// Insert persists a new document and fills in its generated ID
func (r *EntityRepository) Insert(ctx context.Context, ent entity.WorkflowableEntity) error {
	switch e := ent.(type) {
	case *entity.Invoice:
		return r.insertInvoice(ctx, e)
	case *entity.Expense:
		return r.insertExpense(ctx, e)
	default:
		return fmt.Errorf("unsupported entity %T", ent)
	}
}

// UpdateWithVersionCheck applies a status update conditionally on the
// expected version. It returns the affected-row count; zero rows means the
// version moved underneath the caller.
func (r *EntityRepository) UpdateWithVersionCheck(ctx context.Context, entityType entity.EntityType, id int64, upd port.StatusUpdate, expectedVersion int64) (int64, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			status = ?,
			version = version + 1,
			approved_by = COALESCE(?, approved_by),
			approved_at = COALESCE(?, approved_at),
			rejected_by = COALESCE(?, rejected_by),
			rejected_at = COALESCE(?, rejected_at),
			rejection_reason = COALESCE(?, rejection_reason),
			updated_at = ?
		WHERE id = ? AND version = ?
	`, table)

	var approvedBy, rejectedBy, rejectionReason interface{}
	var approvedAt, rejectedAt interface{}
	if a := upd.Approval; a != nil {
		if a.ApprovedBy != "" {
			approvedBy = a.ApprovedBy
		}
		if a.ApprovedAt != nil {
			approvedAt = *a.ApprovedAt
		}
		if a.RejectedBy != "" {
			rejectedBy = a.RejectedBy
		}
		if a.RejectedAt != nil {
			rejectedAt = *a.RejectedAt
		}
		if a.RejectionReason != "" {
			rejectionReason = a.RejectionReason
		}
	}

	result, err := q(ctx, r.db).ExecContext(ctx, query,
		upd.Status,
		approvedBy, approvedAt,
		rejectedBy, rejectedAt, rejectionReason,
		time.Now(),
		id, expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed versioned update",
			zap.String("entity_type", entityType.String()),
			zap.Int64("entity_id", id),
			zap.Error(err))
		return 0, fmt.Errorf("failed to update %s: %w", table, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows, nil
}

// Delete removes a document. Used only as saga compensation for a creation
// that later failed; committed workflow state is never deleted.
func (r *EntityRepository) Delete(ctx context.Context, entityType entity.EntityType, id int64) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}

	if _, err := q(ctx, r.db).ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", table, id, err)
	}
	return nil
}

func tableFor(entityType entity.EntityType) (string, error) {
	switch entityType {
	case entity.EntityTypeInvoice:
		return "invoices", nil
	case entity.EntityTypeExpense:
		return "expenses", nil
	default:
		return "", fmt.Errorf("unknown entity type %q", entityType)
	}
}

func (r *EntityRepository) findInvoice(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := `
		SELECT id, company_id, number, customer_name, amount, currency, due_date,
			status, version, requires_approval,
			approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
			created_by, created_at, updated_at
		FROM invoices WHERE id = ?
	`

	var inv entity.Invoice
	var dueDate, approvedAt, rejectedAt sql.NullTime
	var approvedBy, rejectedBy, rejectionReason sql.NullString

	err := q(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &inv.CompanyID, &inv.Number, &inv.CustomerName, &inv.Amount,
		&inv.Currency, &dueDate, &inv.Status, &inv.Version, &inv.RequiresApproval,
		&approvedBy, &approvedAt, &rejectedBy, &rejectedAt, &rejectionReason,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice %d", port.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %d: %w", id, err)
	}

	if dueDate.Valid {
		inv.DueDate = &dueDate.Time
	}
	inv.Approval = approvalMeta(approvedBy, approvedAt, rejectedBy, rejectedAt, rejectionReason)

	return &inv, nil
}

func (r *EntityRepository) findExpense(ctx context.Context, id int64) (*entity.Expense, error) {
	query := `
		SELECT id, company_id, description, amount, currency, category, receipt_url,
			status, version, requires_approval,
			approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
			created_by, created_at, updated_at
		FROM expenses WHERE id = ?
	`

	var exp entity.Expense
	var receiptURL, approvedBy, rejectedBy, rejectionReason sql.NullString
	var approvedAt, rejectedAt sql.NullTime

	err := q(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&exp.ID, &exp.CompanyID, &exp.Description, &exp.Amount, &exp.Currency,
		&exp.Category, &receiptURL, &exp.Status, &exp.Version, &exp.RequiresApproval,
		&approvedBy, &approvedAt, &rejectedBy, &rejectedAt, &rejectionReason,
		&exp.CreatedBy, &exp.CreatedAt, &exp.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: expense %d", port.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load expense %d: %w", id, err)
	}

	if receiptURL.Valid {
		exp.ReceiptURL = &receiptURL.String
	}
	exp.Approval = approvalMeta(approvedBy, approvedAt, rejectedBy, rejectedAt, rejectionReason)

	return &exp, nil
}

func approvalMeta(approvedBy sql.NullString, approvedAt sql.NullTime, rejectedBy sql.NullString, rejectedAt sql.NullTime, rejectionReason sql.NullString) entity.ApprovalMeta {
	meta := entity.ApprovalMeta{
		ApprovedBy:      approvedBy.String,
		RejectedBy:      rejectedBy.String,
		RejectionReason: rejectionReason.String,
	}
	if approvedAt.Valid {
		meta.ApprovedAt = &approvedAt.Time
	}
	if rejectedAt.Valid {
		meta.RejectedAt = &rejectedAt.Time
	}
	return meta
}

func (r *EntityRepository) insertInvoice(ctx context.Context, inv *entity.Invoice) error {
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	result, err := q(ctx, r.db).ExecContext(ctx, `
		INSERT INTO invoices (
			company_id, number, customer_name, amount, currency, due_date,
			status, version, requires_approval, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.CompanyID, inv.Number, inv.CustomerName, inv.Amount, inv.Currency,
		nullableTime(inv.DueDate), inv.Status, inv.Version, inv.RequiresApproval,
		inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert invoice", zap.Error(err))
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	inv.ID = id
	return nil
}

func (r *EntityRepository) insertExpense(ctx context.Context, exp *entity.Expense) error {
	now := time.Now()
	exp.CreatedAt = now
	exp.UpdatedAt = now

	result, err := q(ctx, r.db).ExecContext(ctx, `
		INSERT INTO expenses (
			company_id, description, amount, currency, category, receipt_url,
			status, version, requires_approval, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		exp.CompanyID, exp.Description, exp.Amount, exp.Currency, exp.Category,
		nullableString(exp.ReceiptURL), exp.Status, exp.Version, exp.RequiresApproval,
		exp.CreatedBy, exp.CreatedAt, exp.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert expense", zap.Error(err))
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	exp.ID = id
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
