package models

import (
	"encoding/json"
	"fmt"
)

// QueuePayload is implemented by every concrete payload that can ride a
// queue item. Kind returns the queue kind the payload belongs to.
type QueuePayload interface {
	Kind() QueueKind
}

// VitalsPayload carries a batch of vital-sign observations for upload.
type VitalsPayload struct {
	UserID   string          `json:"user_id"`
	RecordID int64           `json:"record_id"`
	Type     RecordType      `json:"type"`
	Reading  json.RawMessage `json:"reading"`
	TakenAt  int64           `json:"taken_at"`
}

// Kind implements QueuePayload.
func (VitalsPayload) Kind() QueueKind { return QueueKindHealthData }

// AlertPayload is the wire form of an emergency alert.
type AlertPayload struct {
	AlertID   string    `json:"alert_id"`
	UserID    string    `json:"user_id"`
	Timestamp int64     `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Location  *Location `json:"location,omitempty"`
	Symptoms  []string  `json:"symptoms,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Kind implements QueuePayload.
func (AlertPayload) Kind() QueueKind { return QueueKindEmergencyAlert }

// MedicationConfirmation records that a scheduled dose was taken.
type MedicationConfirmation struct {
	UserID       string `json:"user_id"`
	MedicationID string `json:"medication_id"`
	TakenAt      int64  `json:"taken_at"`
}

// Kind implements QueuePayload.
func (MedicationConfirmation) Kind() QueueKind { return QueueKindMedicationConfirmation }

// EncodePayload marshals a typed payload for storage in a queue item.
func EncodePayload(p QueuePayload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return raw, nil
}

// DecodePayload unmarshals a queue item payload into its concrete type
// according to kind. Unknown kinds are an error, never a silent
// pass-through.
func DecodePayload(kind QueueKind, raw json.RawMessage) (QueuePayload, error) {
	switch kind {
	case QueueKindHealthData:
		var p VitalsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return p, nil
	case QueueKindEmergencyAlert:
		var p AlertPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return p, nil
	case QueueKindMedicationConfirmation:
		var p MedicationConfirmation
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown queue kind %q", kind)
	}
}
