package entities

import (
	"time"

	"gorm.io/datatypes"
)

type OutboxType string

const (
	OutboxHighlightCreate OutboxType = "highlight_create"
	OutboxHighlightUpdate OutboxType = "highlight_update"
	OutboxHighlightDelete OutboxType = "highlight_delete"
	OutboxProgressUpdate  OutboxType = "progress_update"
)

// OutboxItem is a local mutation waiting to be acknowledged by the remote server.
type OutboxItem struct {
	ID           string         `gorm:"primaryKey;size:64" json:"id"`
	Type         OutboxType     `gorm:"size:32;index" json:"type"`
	BookID       string         `gorm:"size:255;index" json:"book_id"`
	Payload      datatypes.JSON `json:"payload"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	AttemptCount int            `json:"attempt_count"`
	LastError    string         `gorm:"type:text" json:"last_error,omitempty"`
}

func (OutboxItem) TableName() string {
	return "outbox"
}

// Valid reports whether t is one of the known mutation types.
func (t OutboxType) Valid() bool {
	switch t {
	case OutboxHighlightCreate, OutboxHighlightUpdate, OutboxHighlightDelete, OutboxProgressUpdate:
		return true
	}
	return false
}
