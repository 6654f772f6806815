package models

import (
	"encoding/json"
	"time"
)

// QueueKind tags a queued remote side-effect with the operation it carries.
type QueueKind string

const (
	QueueKindHealthData             QueueKind = "health-data"
	QueueKindEmergencyAlert         QueueKind = "emergency-alert"
	QueueKindMedicationConfirmation QueueKind = "medication-confirmation"
)

// IsValid reports whether k is a known queue kind.
func (k QueueKind) IsValid() bool {
	switch k {
	case QueueKindHealthData, QueueKindEmergencyAlert, QueueKindMedicationConfirmation:
		return true
	}
	return false
}

// QueueItem represents a pending remote side-effect. An item exists in the
// queue iff its effect has not yet been durably acknowledged by the remote
// system; it is removed only after a successful remote apply.
type QueueItem struct {
	ID         int64           `db:"id" json:"id"`
	Kind       QueueKind       `db:"kind" json:"kind"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	EnqueuedAt int64           `db:"enqueued_at" json:"enqueued_at"`
	Attempts   int             `db:"attempts" json:"attempts"`
}

// TableName returns the table name for QueueItem.
func (QueueItem) TableName() string {
	return "sync_queue"
}

// EnqueuedAtTime returns the EnqueuedAt as time.Time.
func (q *QueueItem) EnqueuedAtTime() time.Time {
	return time.Unix(q.EnqueuedAt, 0)
}
