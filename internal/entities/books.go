package entities

import (
	"time"

	"gorm.io/datatypes"
)

// SpineRef points at one chapter in reading order.
type SpineRef struct {
	Index int    `json:"index"`
	Href  string `json:"href"`
	Title string `json:"title"`
}

// Book is the locally cached copy of a remote publication.
// Zero DownloadedAt/LastReadAt mean "never" and sort as epoch zero.
type Book struct {
	BookID   string                        `gorm:"primaryKey;size:255" json:"book_id"`
	Title    string                        `gorm:"size:512" json:"title"`
	Authors  datatypes.JSONSlice[string]   `json:"authors"`
	SpineLen int                           `json:"spine_len"`
	TOC      datatypes.JSON                `json:"toc,omitempty"`
	Spine    datatypes.JSONSlice[SpineRef] `json:"spine"`

	DownloadedAt time.Time `gorm:"index" json:"downloaded_at"`
	LastReadAt   time.Time `gorm:"index" json:"last_read_at"`

	// PendingDeletion is set before a cascading delete starts and only disappears
	// together with the row, so an interrupted delete can be resumed.
	PendingDeletion bool `json:"pending_deletion,omitempty"`
}

func (Book) TableName() string {
	return "books"
}

// LastAccess returns the later of LastReadAt and DownloadedAt.
func (b Book) LastAccess() time.Time {
	if b.LastReadAt.After(b.DownloadedAt) {
		return b.LastReadAt
	}
	return b.DownloadedAt
}

// Chapter is one rendered chapter, keyed by (book_id, chapter_index).
type Chapter struct {
	BookID       string `gorm:"primaryKey;size:255;index:idx_chapters_book" json:"book_id"`
	ChapterIndex int    `gorm:"primaryKey;autoIncrement:false" json:"chapter_index"`
	Href         string `gorm:"size:1024" json:"href"`
	Title        string `gorm:"size:512" json:"title"`
	HTML         string `gorm:"column:html;type:text" json:"html"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// Image is a binary asset of a book, keyed by (book_id, path).
type Image struct {
	BookID   string `gorm:"primaryKey;size:255;index:idx_images_book" json:"book_id"`
	Path     string `gorm:"primaryKey;size:1024" json:"path"`
	MimeType string `gorm:"size:100" json:"mime_type"`
	Data     []byte `json:"-"`
}

func (Image) TableName() string {
	return "images"
}
