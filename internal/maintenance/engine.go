// Package maintenance enforces the cache policies: books idle for longer than
// TTL are purged, and at most MaxBooks books are kept, evicting the least
// recently read first.
//
// Removing a book is a cascade over three collections that the store cannot
// make atomic. The cascade marks the book first, deletes its chapters and
// images, and deletes the book row last, so after a crash the book row is
// still present and RunCleanup finishes the job.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/mrlokans/offlinereader/internal/database"
	"github.com/mrlokans/offlinereader/internal/entities"
	"github.com/mrlokans/offlinereader/internal/metrics"
)

const (
	// TTL is how long a book may stay unread before it is purged.
	TTL = 48 * time.Hour

	// MaxBooks is the number of books kept after eviction.
	MaxBooks = 3
)

// ErrBookBusy is returned when a book cannot be removed because it is being
// downloaded or another removal of it is in flight.
var ErrBookBusy = errors.New("book is being downloaded or removed")

// Store is the subset of the persistent store the engine needs.
type Store interface {
	GetAllBooks(ctx context.Context) ([]entities.Book, error)
	MarkBookForDeletion(ctx context.Context, id string) error
	DeleteAllByBook(ctx context.Context, collection database.Collection, bookID string) (int64, error)
	DeleteBook(ctx context.Context, id string) error
}

// Result reports how many books a maintenance pass removed.
type Result struct {
	Expired int `json:"expired"`
	Evicted int `json:"evicted"`
}

// Engine applies TTL expiry and LRU eviction.
type Engine struct {
	store Store
	now   func() time.Time
	pins  *Pins
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a maintenance engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
		pins:  NewPins(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pin protects bookID from expiry and eviction until the returned func is called.
func (e *Engine) Pin(bookID string) (unpin func()) {
	return e.pins.Pin(bookID)
}

// RunCleanup resumes interrupted removals, then expires idle books, then
// evicts down to MaxBooks.
func (e *Engine) RunCleanup(ctx context.Context) (Result, error) {
	var result Result

	if err := e.resumePendingDeletes(ctx); err != nil {
		return result, err
	}

	expired, err := e.CleanupExpiredBooks(ctx)
	result.Expired = expired
	if err != nil {
		return result, err
	}

	evicted, err := e.EvictLeastRecentlyUsed(ctx)
	result.Evicted = evicted
	if err != nil {
		return result, err
	}

	if result.Expired > 0 || result.Evicted > 0 {
		log.Printf("[MAINT] Cleanup removed %d expired and %d evicted books", result.Expired, result.Evicted)
	}
	return result, nil
}

// CleanupExpiredBooks removes every unpinned book whose last access is older than TTL.
func (e *Engine) CleanupExpiredBooks(ctx context.Context) (int, error) {
	books, err := e.store.GetAllBooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list books for expiry: %w", err)
	}

	now := e.now()
	removed := 0
	for _, book := range books {
		if now.Sub(accessTime(book.LastAccess())) <= TTL {
			continue
		}
		err := e.removeBook(ctx, book.BookID)
		if errors.Is(err, ErrBookBusy) {
			continue
		}
		if err != nil {
			return removed, err
		}
		log.Printf("[MAINT] Expired book %s (last access %s)", book.BookID, book.LastAccess().Format(time.RFC3339))
		metrics.BooksExpired.Inc()
		removed++
	}
	return removed, nil
}

// EvictLeastRecentlyUsed removes the least recently read unpinned books until
// at most MaxBooks remain. Books never read sort first.
func (e *Engine) EvictLeastRecentlyUsed(ctx context.Context) (int, error) {
	books, err := e.store.GetAllBooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list books for eviction: %w", err)
	}

	excess := len(books) - MaxBooks
	if excess <= 0 {
		return 0, nil
	}

	sort.SliceStable(books, func(i, j int) bool {
		a, b := accessTime(books[i].LastReadAt), accessTime(books[j].LastReadAt)
		if a.Equal(b) {
			return books[i].BookID < books[j].BookID
		}
		return a.Before(b)
	})

	removed := 0
	for _, book := range books {
		if removed == excess {
			break
		}
		err := e.removeBook(ctx, book.BookID)
		if errors.Is(err, ErrBookBusy) {
			continue
		}
		if err != nil {
			return removed, err
		}
		log.Printf("[MAINT] Evicted book %s (last read %s)", book.BookID, book.LastReadAt.Format(time.RFC3339))
		metrics.BooksEvicted.Inc()
		removed++
	}
	return removed, nil
}

// RemoveBook deletes a book and everything it owns on explicit user request.
// It returns ErrBookBusy while the book is being downloaded.
func (e *Engine) RemoveBook(ctx context.Context, bookID string) error {
	if err := e.removeBook(ctx, bookID); err != nil {
		return err
	}
	log.Printf("[MAINT] Removed book %s", bookID)
	return nil
}

func (e *Engine) resumePendingDeletes(ctx context.Context) error {
	books, err := e.store.GetAllBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books for pending deletes: %w", err)
	}
	for _, book := range books {
		if !book.PendingDeletion {
			continue
		}
		log.Printf("[MAINT] Resuming interrupted removal of book %s", book.BookID)
		err := e.removeBook(ctx, book.BookID)
		if errors.Is(err, ErrBookBusy) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// removeBook runs the cascade while holding a removal claim on bookID, so a
// download cannot pin the book until the cascade is over.
func (e *Engine) removeBook(ctx context.Context, bookID string) error {
	release, ok := e.pins.Claim(bookID)
	if !ok {
		reason := "already being removed"
		if e.pins.IsPinned(bookID) {
			reason = "pinned by a download"
		}
		return fmt.Errorf("remove book %s (%s): %w", bookID, reason, ErrBookBusy)
	}
	defer release()

	if err := e.store.MarkBookForDeletion(ctx, bookID); err != nil {
		return fmt.Errorf("mark book %s: %w", bookID, err)
	}
	if _, err := e.store.DeleteAllByBook(ctx, database.CollectionChapters, bookID); err != nil {
		return fmt.Errorf("remove chapters of %s: %w", bookID, err)
	}
	if _, err := e.store.DeleteAllByBook(ctx, database.CollectionImages, bookID); err != nil {
		return fmt.Errorf("remove images of %s: %w", bookID, err)
	}
	if err := e.store.DeleteBook(ctx, bookID); err != nil {
		return fmt.Errorf("remove book %s: %w", bookID, err)
	}
	return nil
}

// accessTime maps a missing timestamp to the Unix epoch.
func accessTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0)
	}
	return t
}
