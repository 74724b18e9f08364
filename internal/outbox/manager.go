// Package outbox replays locally queued mutations against the server.
//
// Items are removed only after the server accepts them. A rejected item stays
// queued with its attempt count bumped, so flushing is safe to repeat.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"

	"github.com/mrlokans/offlinereader/internal/entities"
	"github.com/mrlokans/offlinereader/internal/metrics"
)

var (
	// ErrFlushInProgress is returned when another flush is already running.
	ErrFlushInProgress = errors.New("outbox flush already in progress")

	// ErrInvalidMutation is returned by Enqueue for a payload that could never be replayed.
	ErrInvalidMutation = errors.New("invalid outbox mutation")
)

const defaultHighlightColor = "yellow"

// Store is the subset of the persistent store the outbox needs.
type Store interface {
	AddOutboxItem(ctx context.Context, item *entities.OutboxItem) error
	GetAllOutboxItems(ctx context.Context) ([]entities.OutboxItem, error)
	RemoveOutboxItem(ctx context.Context, id string) error
	RecordOutboxFailure(ctx context.Context, id, reason string) error
}

// FlushResult counts the outcome of one flush.
type FlushResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	// Remaining counts items not attempted because the flush was cancelled.
	Remaining int `json:"remaining,omitempty"`
}

// HighlightPayload is the body of a highlight creation.
type HighlightPayload struct {
	Text         string `json:"text"`
	ChapterIndex int    `json:"chapter_index"`
	ChapterHref  string `json:"chapter_href"`
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
	Note         string `json:"note"`
	Color        string `json:"color"`
}

// ProgressPayload is the reading position of a book.
type ProgressPayload struct {
	ChapterIndex int       `json:"chapter_index"`
	Offset       float64   `json:"offset"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Manager queues and flushes mutations.
type Manager struct {
	store    Store
	remote   Remote
	now      func() time.Time
	flushing atomic.Bool
}

// NewManager creates an outbox manager.
func NewManager(store Store, remote Remote) *Manager {
	return &Manager{
		store:  store,
		remote: remote,
		now:    time.Now,
	}
}

// IsFlushing reports whether a flush is running.
func (m *Manager) IsFlushing() bool {
	return m.flushing.Load()
}

// FlushOutbox replays every queued item in order. Per-item failures are
// counted, not returned; only a failure to read the queue is an error.
func (m *Manager) FlushOutbox(ctx context.Context) (FlushResult, error) {
	var result FlushResult
	if !m.flushing.CompareAndSwap(false, true) {
		return result, ErrFlushInProgress
	}
	defer m.flushing.Store(false)

	items, err := m.store.GetAllOutboxItems(ctx)
	if err != nil {
		return result, fmt.Errorf("read outbox: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}

	log.Printf("[OUTBOX] Flushing %d items", len(items))

	for i, item := range items {
		if ctx.Err() != nil {
			result.Remaining = len(items) - i
			log.Printf("[OUTBOX] Flush cancelled: %d items left for the next flush", result.Remaining)
			break
		}

		mutation, err := Decode(item)
		if err != nil {
			m.fail(ctx, item, err, &result)
			continue
		}

		if _, unknown := mutation.(Unknown); unknown {
			log.Printf("[OUTBOX] Skipping item %s with unknown type %q", item.ID, item.Type)
			metrics.OutboxSkipped.Inc()
			result.Skipped++
			continue
		}

		if err := mutation.Apply(ctx, m.remote); err != nil {
			m.fail(ctx, item, err, &result)
			continue
		}

		if err := m.store.RemoveOutboxItem(ctx, item.ID); err != nil {
			// The server has it; a replay will duplicate unless removal succeeds later.
			m.fail(ctx, item, err, &result)
			continue
		}
		metrics.OutboxSucceeded.Inc()
		result.Success++
	}

	log.Printf("[OUTBOX] Flush finished: %d sent, %d failed, %d skipped", result.Success, result.Failed, result.Skipped)
	return result, nil
}

func (m *Manager) fail(ctx context.Context, item entities.OutboxItem, cause error, result *FlushResult) {
	log.Printf("[OUTBOX] Item %s (%s) failed: %v", item.ID, item.Type, cause)
	if err := m.store.RecordOutboxFailure(ctx, item.ID, cause.Error()); err != nil {
		log.Printf("[OUTBOX] Could not record failure of %s: %v", item.ID, err)
	}
	metrics.OutboxFailed.Inc()
	result.Failed++
}

// Enqueue stores a raw mutation after checking it can be replayed.
func (m *Manager) Enqueue(ctx context.Context, typ entities.OutboxType, bookID string, payload json.RawMessage) (*entities.OutboxItem, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMutation, typ)
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidMutation)
	}

	item := &entities.OutboxItem{
		Type:    typ,
		BookID:  bookID,
		Payload: datatypes.JSON(payload),
	}
	if _, err := Decode(*item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMutation, err)
	}
	if err := m.store.AddOutboxItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// QueueHighlightCreate queues a new highlight. An empty color becomes yellow.
func (m *Manager) QueueHighlightCreate(ctx context.Context, bookID string, h HighlightPayload) (*entities.OutboxItem, error) {
	if h.Color == "" {
		h.Color = defaultHighlightColor
	}
	return m.enqueueJSON(ctx, entities.OutboxHighlightCreate, bookID, h)
}

// QueueHighlightUpdate queues a note change on an existing highlight.
func (m *Manager) QueueHighlightUpdate(ctx context.Context, bookID, highlightID, note string) (*entities.OutboxItem, error) {
	return m.enqueueJSON(ctx, entities.OutboxHighlightUpdate, bookID, map[string]string{
		"highlight_id": highlightID,
		"note":         note,
	})
}

// QueueHighlightDelete queues the removal of a highlight.
func (m *Manager) QueueHighlightDelete(ctx context.Context, bookID, highlightID string) (*entities.OutboxItem, error) {
	return m.enqueueJSON(ctx, entities.OutboxHighlightDelete, bookID, map[string]string{
		"highlight_id": highlightID,
	})
}

// QueueProgressUpdate queues a reading position. A zero UpdatedAt is set to now.
func (m *Manager) QueueProgressUpdate(ctx context.Context, bookID string, p ProgressPayload) (*entities.OutboxItem, error) {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = m.now().UTC()
	}
	return m.enqueueJSON(ctx, entities.OutboxProgressUpdate, bookID, p)
}

func (m *Manager) enqueueJSON(ctx context.Context, typ entities.OutboxType, bookID string, v any) (*entities.OutboxItem, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return m.Enqueue(ctx, typ, bookID, payload)
}
