package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

// AuditRepository handles the append-only audit log. There is no update or
// delete path on purpose.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Insert appends one audit entry
func (r *AuditRepository) Insert(ctx context.Context, e *entity.AuditLogEntry) error {
	_, err := q(ctx, r.db).ExecContext(ctx, `
		INSERT INTO audit_log (
			id, timestamp, actor_id, action, entity_type, entity_id, change_set, checksum
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.Timestamp, e.ActorID, e.Action,
		e.EntityType.String(), e.EntityID, e.ChangeSet, e.Checksum,
	)
	if err != nil {
		r.logger.Error("Failed to insert audit entry", zap.Error(err))
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListByEntity retrieves the audit trail for one entity, oldest first
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.AuditLogEntry, error) {
	return r.list(ctx, `
		SELECT id, timestamp, actor_id, action, entity_type, entity_id, change_set, checksum
		FROM audit_log
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY timestamp ASC
	`, entityType.String(), entityID)
}

// ListByRange retrieves all entries in a time range, oldest first
func (r *AuditRepository) ListByRange(ctx context.Context, from, to time.Time) ([]*entity.AuditLogEntry, error) {
	return r.list(ctx, `
		SELECT id, timestamp, actor_id, action, entity_type, entity_id, change_set, checksum
		FROM audit_log
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, from, to)
}

func (r *AuditRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.AuditLogEntry, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query audit log", zap.Error(err))
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditLogEntry
	for rows.Next() {
		var e entity.AuditLogEntry
		var entityTypeStr string
		var changeSet sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.ActorID, &e.Action,
			&entityTypeStr, &e.EntityID, &changeSet, &e.Checksum,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.EntityType = entity.EntityType(entityTypeStr)
		e.ChangeSet = changeSet.String
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
