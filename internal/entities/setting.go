package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	SettingKeyStoreName     = "store_name"
	SettingKeySchemaVersion = "schema_version"

	// Outbox sync status, written by the scheduler after each flush
	SettingKeySyncLastAt      = "sync_last_at"
	SettingKeySyncLastStatus  = "sync_last_status"
	SettingKeySyncLastMessage = "sync_last_message"

	// Maintenance status, written after each cleanup pass
	SettingKeyCleanupLastAt      = "cleanup_last_at"
	SettingKeyCleanupLastStatus  = "cleanup_last_status"
	SettingKeyCleanupLastMessage = "cleanup_last_message"
)
