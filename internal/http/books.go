package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/offlinereader/internal/entities"
	"github.com/mrlokans/offlinereader/internal/maintenance"
	"github.com/mrlokans/offlinereader/internal/remote"
	"github.com/mrlokans/offlinereader/internal/tasks"
)

// BookSummary is a cached book without its table of contents.
type BookSummary struct {
	BookID       string    `json:"book_id"`
	Title        string    `json:"title"`
	Authors      []string  `json:"authors"`
	SpineLen     int       `json:"spine_len"`
	DownloadedAt time.Time `json:"downloaded_at"`
	LastReadAt   time.Time `json:"last_read_at"`
}

// BookDetail is a cached book together with the chapters stored for it.
type BookDetail struct {
	Book           entities.Book `json:"book"`
	CachedChapters []int         `json:"cached_chapters"`
}

// BooksController exposes the local book cache.
type BooksController struct {
	store      BookStore
	downloader Downloader
	remover    BookRemover
	queue      TaskQueue
}

// NewBooksController creates a BooksController. queue may be nil, in which case
// only synchronous downloads are offered.
func NewBooksController(store BookStore, downloader Downloader, remover BookRemover, queue TaskQueue) *BooksController {
	return &BooksController{
		store:      store,
		downloader: downloader,
		remover:    remover,
		queue:      queue,
	}
}

// ListBooks handles GET /local/books
func (bc *BooksController) ListBooks(c *gin.Context) {
	books, err := bc.store.GetAllBooks(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}

	summaries := make([]BookSummary, 0, len(books))
	for _, b := range books {
		summaries = append(summaries, summarize(b))
	}

	c.JSON(http.StatusOK, gin.H{
		"books": summaries,
		"count": len(summaries),
	})
}

// GetBook handles GET /local/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseBookIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.store.GetBook(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}
	if book == nil {
		respondNotFound(c, "book")
		return
	}

	indexes, err := bc.store.ListChapterIndexes(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "list chapters")
		return
	}
	if indexes == nil {
		indexes = []int{}
	}

	c.JSON(http.StatusOK, BookDetail{Book: *book, CachedChapters: indexes})
}

// DownloadBook handles POST /local/books/:id/download
// With ?async=true the download runs on the task queue and 202 is returned.
func (bc *BooksController) DownloadBook(c *gin.Context) {
	id, ok := parseBookIDParam(c, "id")
	if !ok {
		return
	}

	if parseBoolQuery(c, "async") {
		if bc.queue == nil {
			respondError(c, http.StatusServiceUnavailable, "task queue is disabled")
			return
		}
		taskID, err := bc.queue.Enqueue(tasks.DownloadBookTask{BookID: id})
		if err != nil {
			respondInternalError(c, err, "enqueue download")
			return
		}
		respondAccepted(c, "download enqueued", gin.H{"task_id": taskID, "book_id": id})
		return
	}

	result, err := bc.downloader.DownloadBook(c.Request.Context(), id, nil)
	if err != nil {
		if remote.IsStatus(err, http.StatusNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondError(c, http.StatusBadGateway, "download failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"book_id":  id,
		"chapters": result.Chapters,
		"images":   result.Images,
	})
}

// DeleteBook handles DELETE /local/books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseBookIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.store.GetBook(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}
	if book == nil {
		respondNotFound(c, "book")
		return
	}

	if err := bc.remover.RemoveBook(c.Request.Context(), id); err != nil {
		if errors.Is(err, maintenance.ErrBookBusy) {
			respondError(c, http.StatusConflict, maintenance.ErrBookBusy.Error())
			return
		}
		respondInternalError(c, err, "remove book")
		return
	}

	respondSuccess(c, "book removed")
}

func summarize(b entities.Book) BookSummary {
	authors := []string(b.Authors)
	if authors == nil {
		authors = []string{}
	}
	return BookSummary{
		BookID:       b.BookID,
		Title:        b.Title,
		Authors:      authors,
		SpineLen:     b.SpineLen,
		DownloadedAt: b.DownloadedAt,
		LastReadAt:   b.LastReadAt,
	}
}
