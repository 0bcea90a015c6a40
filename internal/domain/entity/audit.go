package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Audit action constants
const (
	AuditActionCreate            = "CREATE"
	AuditActionSubmitForApproval = "SUBMIT_FOR_APPROVAL"
	AuditActionApprove           = "APPROVE"
	AuditActionReject            = "REJECT"
	AuditActionStatusChange      = "STATUS_CHANGE"
	AuditActionRuleCreate        = "RULE_CREATE"
	AuditActionRuleUpdate        = "RULE_UPDATE"
	AuditActionRuleDelete        = "RULE_DELETE"
	AuditActionCompensate        = "COMPENSATE"
)

// AuditLogEntry is one immutable row of the audit trail. Rows are never
// updated or deleted; compensation appends a COMPENSATE row instead of
// erasing history.
type AuditLogEntry struct {
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	ActorID    string     `json:"actor_id"`
	Action     string     `json:"action"`
	EntityType EntityType `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	ChangeSet  string     `json:"change_set,omitempty"` // JSON blob
	Checksum   string     `json:"checksum"`
}

// ComputeChecksum derives the tamper-evidence checksum over the entry's
// identifying fields. External tooling verifies it; the engine only writes it.
func (e *AuditLogEntry) ComputeChecksum() string {
	canonical := fmt.Sprintf("%s|%s|%s|%d|%d|%s",
		e.ActorID,
		e.Action,
		e.EntityType,
		e.EntityID,
		e.Timestamp.UnixNano(),
		e.ChangeSet,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
