package models

import "sort"

// EmergencyContact is a care-circle contact eligible for emergency
// notification. The locally cached set is a full replacement snapshot from
// the last successful remote fetch, never patched field by field.
type EmergencyContact struct {
	ID           string `db:"id" json:"id"`
	UserID       string `db:"user_id" json:"user_id"`
	Name         string `db:"name" json:"name"`
	Relationship string `db:"relationship" json:"relationship"`
	Phone        string `db:"phone" json:"phone"`
	Email        string `db:"email" json:"email"`
	// Priority orders notification: lower value is notified first.
	Priority int `db:"priority" json:"priority"`
}

// TableName returns the table name for EmergencyContact.
func (EmergencyContact) TableName() string {
	return "emergency_contacts"
}

// SortByPriority sorts contacts ascending by Priority in place.
func SortByPriority(contacts []EmergencyContact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].Priority < contacts[j].Priority
	})
}
