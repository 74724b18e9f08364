// Package download materializes a remote offline package into the local store.
package download

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"

	"github.com/mrlokans/offlinereader/internal/entities"
	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/metrics"
	"github.com/mrlokans/offlinereader/internal/remote"
)

// Store is the subset of the persistent store a download writes to.
type Store interface {
	SaveBook(ctx context.Context, book *entities.Book) error
	SaveChapter(ctx context.Context, chapter *entities.Chapter) error
	SaveImage(ctx context.Context, image *entities.Image) error
}

// Maintainer runs the cache policies around a download.
type Maintainer interface {
	Pin(bookID string) (unpin func())
	RunCleanup(ctx context.Context) (maintenance.Result, error)
	EvictLeastRecentlyUsed(ctx context.Context) (int, error)
}

// Fetcher retrieves packages and images from the server.
type Fetcher interface {
	GetOfflinePackage(ctx context.Context, bookID string) (*remote.OfflinePackage, error)
	FetchImage(ctx context.Context, path string) ([]byte, string, error)
}

// ProgressFunc is called after each chapter and image is attempted.
type ProgressFunc func(completed, total int)

// Result counts the chapters and images that were attempted.
type Result struct {
	Chapters int `json:"chapters"`
	Images   int `json:"images"`
}

// Orchestrator downloads books.
type Orchestrator struct {
	store   Store
	maint   Maintainer
	fetcher Fetcher
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates a download orchestrator.
func NewOrchestrator(store Store, maint Maintainer, fetcher Fetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		maint:   maint,
		fetcher: fetcher,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DownloadBook fetches the package for bookID and stores its metadata,
// chapters and images. Chapters must all be stored for the call to succeed;
// images are best effort. onProgress may be nil.
func (o *Orchestrator) DownloadBook(ctx context.Context, bookID string, onProgress ProgressFunc) (Result, error) {
	metrics.DownloadsStarted.Inc()
	result, err := o.downloadBook(ctx, bookID, onProgress)
	if err != nil {
		metrics.DownloadsFailed.Inc()
		log.Printf("[DOWNLOAD] Book %s failed: %v", bookID, err)
		return result, err
	}
	metrics.DownloadsSucceeded.Inc()
	return result, nil
}

func (o *Orchestrator) downloadBook(ctx context.Context, bookID string, onProgress ProgressFunc) (Result, error) {
	var result Result
	if bookID == "" {
		return result, fmt.Errorf("book id is required")
	}

	unpin := o.maint.Pin(bookID)
	defer unpin()

	if _, err := o.maint.RunCleanup(ctx); err != nil {
		return result, fmt.Errorf("pre-download cleanup: %w", err)
	}

	pkg, err := o.fetcher.GetOfflinePackage(ctx, bookID)
	if err != nil {
		return result, fmt.Errorf("fetch offline package: %w", err)
	}

	now := o.now()
	if err := o.store.SaveBook(ctx, bookFromPackage(bookID, pkg, now)); err != nil {
		return result, fmt.Errorf("save book: %w", err)
	}

	result.Chapters = len(pkg.Chapters)
	result.Images = len(pkg.Images)
	total := result.Chapters + result.Images
	completed := 0
	progress := func() {
		completed++
		if onProgress != nil {
			onProgress(completed, total)
		}
	}

	log.Printf("[DOWNLOAD] Book %s: %d chapters, %d images", bookID, result.Chapters, result.Images)

	for _, ch := range pkg.Chapters {
		chapter := &entities.Chapter{
			BookID:       bookID,
			ChapterIndex: ch.Index,
			Href:         ch.Href,
			Title:        ch.Title,
			HTML:         ch.HTML,
		}
		if err := o.store.SaveChapter(ctx, chapter); err != nil {
			return result, fmt.Errorf("save chapter %d: %w", ch.Index, err)
		}
		progress()
	}

	skipped := 0
	for _, img := range pkg.Images {
		if err := o.downloadImage(ctx, bookID, img.Path); err != nil {
			log.Printf("[DOWNLOAD] Skipping image %s of %s: %v", img.Path, bookID, err)
			metrics.ImagesSkipped.Inc()
			skipped++
		}
		progress()
	}

	unpin()
	if _, err := o.maint.EvictLeastRecentlyUsed(ctx); err != nil {
		log.Printf("[DOWNLOAD] Post-download eviction failed: %v", err)
	}

	log.Printf("[DOWNLOAD] Book %s stored (%d images skipped)", bookID, skipped)
	return result, nil
}

func (o *Orchestrator) downloadImage(ctx context.Context, bookID, path string) error {
	data, mimeType, err := o.fetcher.FetchImage(ctx, path)
	if err != nil {
		return err
	}
	return o.store.SaveImage(ctx, &entities.Image{
		BookID:   bookID,
		Path:     path,
		MimeType: mimeType,
		Data:     data,
	})
}

func bookFromPackage(bookID string, pkg *remote.OfflinePackage, now time.Time) *entities.Book {
	spine := make([]entities.SpineRef, 0, len(pkg.Spine))
	for _, s := range pkg.Spine {
		spine = append(spine, entities.SpineRef{Index: s.Index, Href: s.Href, Title: s.Title})
	}

	authors := pkg.Metadata.Authors
	if authors == nil {
		authors = []string{}
	}

	spineLen := pkg.SpineLen
	if spineLen == 0 {
		spineLen = len(spine)
	}

	var toc datatypes.JSON
	if len(pkg.TOC) > 0 && string(pkg.TOC) != "null" {
		toc = datatypes.JSON(pkg.TOC)
	}

	return &entities.Book{
		BookID:       bookID,
		Title:        pkg.Metadata.Title,
		Authors:      datatypes.JSONSlice[string](authors),
		SpineLen:     spineLen,
		TOC:          toc,
		Spine:        datatypes.JSONSlice[entities.SpineRef](spine),
		DownloadedAt: now,
		LastReadAt:   now,
	}
}
