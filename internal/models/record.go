// Package models provides data model definitions for the Nalam core engine.
package models

import (
	"encoding/json"
	"time"
)

// RecordType classifies a health record.
type RecordType string

const (
	RecordTypeVitals      RecordType = "vitals"
	RecordTypeMedication  RecordType = "medication"
	RecordTypeAppointment RecordType = "appointment"
	RecordTypeAlert       RecordType = "alert"
)

// IsValid reports whether t is a known record type.
func (t RecordType) IsValid() bool {
	switch t {
	case RecordTypeVitals, RecordTypeMedication, RecordTypeAppointment, RecordTypeAlert:
		return true
	}
	return false
}

// HealthRecord represents one observation or event written locally.
// Synced stays false until the remote system durably acknowledges the
// record; SyncAttempts only ever grows.
type HealthRecord struct {
	ID           int64           `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	Type         RecordType      `db:"type" json:"type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	CreatedAt    int64           `db:"created_at" json:"created_at"`
	Synced       bool            `db:"synced" json:"synced"`
	SyncAttempts int             `db:"sync_attempts" json:"sync_attempts"`
}

// TableName returns the table name for HealthRecord.
func (HealthRecord) TableName() string {
	return "health_records"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (r *HealthRecord) CreatedAtTime() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// Medication represents a prescribed medication. The id is server-supplied
// and used as the primary key; the local copy is a cache snapshot.
type Medication struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	Name      string `db:"name" json:"name"`
	Dosage    string `db:"dosage" json:"dosage"`
	Schedule  string `db:"schedule" json:"schedule"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Medication.
func (Medication) TableName() string {
	return "medications"
}

// Appointment represents an upcoming appointment. Server-supplied id,
// cached locally like Medication.
type Appointment struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	Provider  string `db:"provider" json:"provider"`
	Notes     string `db:"notes" json:"notes"`
	StartsAt  int64  `db:"starts_at" json:"starts_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Appointment.
func (Appointment) TableName() string {
	return "appointments"
}
