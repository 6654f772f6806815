package models

// SyncStatus is the observable coordinator status.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// SyncState is the coordinator status published to subscribers. It is not
// persisted; PendingItems is rebuilt from the queue count on restart.
// Subscribers always receive copies, never a shared reference.
type SyncState struct {
	Status       SyncStatus `json:"status"`
	LastSyncTime *int64     `json:"last_sync_time,omitempty"`
	PendingItems int        `json:"pending_items"`
	Error        string     `json:"error,omitempty"`
}
