package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/offlinereader/internal/download"
	"github.com/mrlokans/offlinereader/internal/entities"
	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/outbox"
	"github.com/mrlokans/offlinereader/internal/settingsstore"
)

// This file consolidates the store and service interfaces used by the local
// control API. Each controller depends on the narrowest one it needs.

// --- Store access ---

// BookStore provides read access to cached books.
type BookStore interface {
	GetAllBooks(ctx context.Context) ([]entities.Book, error)
	GetBook(ctx context.Context, id string) (*entities.Book, error)
	ListChapterIndexes(ctx context.Context, bookID string) ([]int, error)
}

// OutboxLister lists queued mutations.
type OutboxLister interface {
	GetAllOutboxItems(ctx context.Context) ([]entities.OutboxItem, error)
}

// HealthStore reports whether the store can be opened and how much it holds.
type HealthStore interface {
	Open(ctx context.Context) error
	CountBooks(ctx context.Context) (int64, error)
	CountOutboxItems(ctx context.Context) (int64, error)
}

// AssetStore is the on-disk cache of the reader's static files.
type AssetStore interface {
	Count() (int, error)
	Invalidate(assetPath string) error
	CacheDir() string
}

// --- Services ---

// Downloader stores a whole book locally.
type Downloader interface {
	DownloadBook(ctx context.Context, bookID string, onProgress download.ProgressFunc) (download.Result, error)
}

// BookRemover deletes a book and everything it owns.
type BookRemover interface {
	RemoveBook(ctx context.Context, bookID string) error
}

// Cleaner applies the cache policies on demand.
type Cleaner interface {
	RunCleanup(ctx context.Context) (maintenance.Result, error)
}

// OutboxService queues and replays mutations.
type OutboxService interface {
	Enqueue(ctx context.Context, typ entities.OutboxType, bookID string, payload json.RawMessage) (*entities.OutboxItem, error)
	FlushOutbox(ctx context.Context) (outbox.FlushResult, error)
	IsFlushing() bool
}

// TaskQueue enqueues background tasks and reports their status.
type TaskQueue interface {
	Enqueue(task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// JobStatusReader returns the outcome of the last scheduled runs.
type JobStatusReader interface {
	GetJobStatus(ctx context.Context, job settingsstore.Job) settingsstore.JobStatus
}

// NextRunner reports when scheduled jobs fire next.
type NextRunner interface {
	NextRuns() map[settingsstore.Job]time.Time
}
