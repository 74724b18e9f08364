package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/offlinereader/internal/outbox"
)

// Flusher replays queued mutations.
type Flusher interface {
	FlushOutbox(ctx context.Context) (outbox.FlushResult, error)
}

// FlushOutboxTask replays the outbox once.
type FlushOutboxTask struct{}

// Config returns the queue configuration for outbox flushes. Items that fail
// stay queued, so the task itself is never retried.
func (t FlushOutboxTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "flush_outbox",
		MaxAttempts: 1,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   6 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// FlushOutboxProcessor creates the processor for FlushOutboxTask.
func FlushOutboxProcessor(f Flusher) backlite.QueueProcessor[FlushOutboxTask] {
	return func(ctx context.Context, _ FlushOutboxTask) error {
		if f == nil {
			return errors.New("outbox not configured")
		}

		result, err := f.FlushOutbox(ctx)
		if errors.Is(err, outbox.ErrFlushInProgress) {
			log.Printf("[TASK] Outbox flush already running, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("flush outbox: %w", err)
		}

		log.Printf("[TASK] Outbox flushed: %d sent, %d failed, %d skipped", result.Success, result.Failed, result.Skipped)
		return nil
	}
}

// NewFlushOutboxQueue creates the backlite queue for outbox flushes.
func NewFlushOutboxQueue(f Flusher) backlite.Queue {
	return backlite.NewQueue(FlushOutboxProcessor(f))
}
