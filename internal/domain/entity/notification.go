package entity

import "time"

// Notification channel constants
const (
	NotificationChannelEmail   = "EMAIL"
	NotificationChannelSMS     = "SMS"
	NotificationChannelInApp   = "IN_APP"
	NotificationChannelWebhook = "WEBHOOK"
)

// Notification status constants. The engine only enqueues PENDING intents;
// a delivery worker outside this module owns the rest of the lifecycle.
const (
	NotificationStatusPending   = "PENDING"
	NotificationStatusCancelled = "CANCELLED"
)

// NotificationPayload is a queued notification intent
type NotificationPayload struct {
	ID          int64      `json:"id"`
	RecipientID string     `json:"recipient_id"`
	Channel     string     `json:"channel"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    int64      `json:"entity_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}
