package models

import "time"

// SyncState tracks how far the Stream Controller has durably committed.
type SyncState struct {
	Key         string    `gorm:"primaryKey;column:key;type:varchar(32)" json:"key"`
	LastBlock   int64     `gorm:"column:last_block" json:"last_block"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by SyncState to `sync_state`.
func (SyncState) TableName() string {
	return "sync_state"
}

// DefaultSyncKey is the single row this system tracks (one chain, one exchange set).
const DefaultSyncKey = "polygon-ctf-exchange"
