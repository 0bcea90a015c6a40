package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
)

// NotificationRepository queues notification intents for the external
// delivery worker
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Enqueue inserts a pending notification intent
func (r *NotificationRepository) Enqueue(ctx context.Context, n *entity.NotificationPayload) error {
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}
	n.CreatedAt = time.Now()

	result, err := q(ctx, r.db).ExecContext(ctx, `
		INSERT INTO notifications (
			recipient_id, channel, subject, body, entity_type, entity_id, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.RecipientID, n.Channel, n.Subject, n.Body,
		n.EntityType.String(), n.EntityID, n.Status, n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to enqueue notification", zap.Error(err))
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// CancelForEntity marks every pending intent for an entity as cancelled.
// Used as saga compensation; delivered notifications are untouched.
func (r *NotificationRepository) CancelForEntity(ctx context.Context, entityType entity.EntityType, entityID int64) error {
	_, err := q(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications SET status = ?
		WHERE entity_type = ? AND entity_id = ? AND status = ?
	`,
		entity.NotificationStatusCancelled,
		entityType.String(), entityID, entity.NotificationStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel notifications: %w", err)
	}
	return nil
}

// ListPending returns queued intents for the delivery worker
func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]*entity.NotificationPayload, error) {
	rows, err := q(ctx, r.db).QueryContext(ctx, `
		SELECT id, recipient_id, channel, subject, body, entity_type, entity_id, status, created_at
		FROM notifications
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, entity.NotificationStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.NotificationPayload
	for rows.Next() {
		var n entity.NotificationPayload
		var entityTypeStr string
		if err := rows.Scan(
			&n.ID, &n.RecipientID, &n.Channel, &n.Subject, &n.Body,
			&entityTypeStr, &n.EntityID, &n.Status, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.EntityType = entity.EntityType(entityTypeStr)
		out = append(out, &n)
	}

	return out, rows.Err()
}
