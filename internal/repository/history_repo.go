package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

// HistoryRepository handles workflow history database operations
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Insert creates a new history record
func (r *HistoryRepository) Insert(ctx context.Context, h *entity.WorkflowHistory) error {
	result, err := q(ctx, r.db).ExecContext(ctx, `
		INSERT INTO workflow_history (
			entity_type, entity_id, from_status, to_status, actor_id, reason, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		h.EntityType.String(), h.EntityID, h.FromStatus, h.ToStatus,
		h.ActorID, h.Reason, h.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// ListByEntity retrieves all history records for an entity, oldest first
func (r *HistoryRepository) ListByEntity(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.WorkflowHistory, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, `
		SELECT id, entity_type, entity_id, from_status, to_status, actor_id, reason, timestamp
		FROM workflow_history
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY timestamp ASC, id ASC
	`, entityType.String(), entityID)
	if err != nil {
		r.logger.Error("Failed to list workflow history",
			zap.String("entity_type", entityType.String()),
			zap.Int64("entity_id", entityID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var records []*entity.WorkflowHistory
	for rows.Next() {
		var record entity.WorkflowHistory
		var entityTypeStr string
		if err := rows.Scan(
			&record.ID, &entityTypeStr, &record.EntityID,
			&record.FromStatus, &record.ToStatus,
			&record.ActorID, &record.Reason, &record.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.EntityType = entity.EntityType(entityTypeStr)
		records = append(records, &record)
	}

	return records, rows.Err()
}
