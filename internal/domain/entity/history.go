package entity

import "time"

// WorkflowHistory is one row of the per-entity transition trail
type WorkflowHistory struct {
	ID         int64      `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	FromStatus string     `json:"from_status"`
	ToStatus   string     `json:"to_status"`
	ActorID    string     `json:"actor_id"`
	Reason     string     `json:"reason,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
