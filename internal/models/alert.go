package models

import (
	"fmt"
	"time"
)

// Severity grades an emergency alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Location is a resolved device position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// EmergencyAlert is a single emergency-alert event. Alerts are immutable
// once created; the id is derived from creation time so it is unique
// within a user's stream.
type EmergencyAlert struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp int64     `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Location  *Location `json:"location,omitempty"`
	Symptoms  []string  `json:"symptoms,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// NewAlertID derives an alert id from the creation instant. The suffix
// disambiguates alerts created within the same millisecond.
func NewAlertID(at time.Time, suffix string) string {
	return fmt.Sprintf("alert-%d-%s", at.UnixMilli(), suffix)
}

// Wire returns the payload form of the alert for queueing or direct
// delivery.
func (a *EmergencyAlert) Wire() AlertPayload {
	return AlertPayload{
		AlertID:   a.ID,
		UserID:    a.UserID,
		Timestamp: a.Timestamp,
		Severity:  a.Severity,
		Location:  a.Location,
		Symptoms:  a.Symptoms,
		Message:   a.Message,
	}
}
