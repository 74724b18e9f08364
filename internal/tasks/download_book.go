package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/offlinereader/internal/download"
)

// Downloader stores a whole book locally.
type Downloader interface {
	DownloadBook(ctx context.Context, bookID string, onProgress download.ProgressFunc) (download.Result, error)
}

// DownloadBookTask downloads one book in the background.
type DownloadBookTask struct {
	BookID string `json:"book_id"`
}

// Config returns the queue configuration for book downloads.
func (t DownloadBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "download_book",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// DownloadBookProcessor creates the processor for DownloadBookTask.
func DownloadBookProcessor(d Downloader) backlite.QueueProcessor[DownloadBookTask] {
	return func(ctx context.Context, task DownloadBookTask) error {
		if d == nil {
			return errors.New("downloader not configured")
		}

		result, err := d.DownloadBook(ctx, task.BookID, nil)
		if err != nil {
			return fmt.Errorf("download book %s: %w", task.BookID, err)
		}

		log.Printf("[TASK] Downloaded book %s: %d chapters, %d images", task.BookID, result.Chapters, result.Images)
		return nil
	}
}

// NewDownloadBookQueue creates the backlite queue for book downloads.
func NewDownloadBookQueue(d Downloader) backlite.Queue {
	return backlite.NewQueue(DownloadBookProcessor(d))
}
