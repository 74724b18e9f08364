package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/offlinereader/internal/entities"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db := New(filepath.Join(t.TempDir(), "store.db"), WithLogLevel(logger.Silent))
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func sampleBook(id string) *entities.Book {
	now := time.Now().UTC().Truncate(time.Second)
	return &entities.Book{
		BookID:   id,
		Title:    "Title " + id,
		Authors:  datatypes.JSONSlice[string]{"Ada", "Grace"},
		SpineLen: 2,
		TOC:      datatypes.JSON(`[{"title":"One","href":"ch1.html"}]`),
		Spine: datatypes.JSONSlice[entities.SpineRef]{
			{Index: 0, Href: "ch1.html", Title: "One"},
			{Index: 1, Href: "ch2.html", Title: "Two"},
		},
		DownloadedAt: now,
		LastReadAt:   now,
	}
}

func TestOpen_ConcurrentCallersShareOneOpen(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.Open(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), db.opens.Load())

	require.NoError(t, db.Open(ctx))
	assert.Equal(t, int32(1), db.opens.Load())
}

func TestOpen_StampsSchemaVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	name, err := db.GetSetting(ctx, entities.SettingKeyStoreName)
	require.NoError(t, err)
	assert.Equal(t, StoreName, name)

	version, err := db.GetSetting(ctx, entities.SettingKeySchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	first := New(path, WithLogLevel(logger.Silent))
	require.NoError(t, first.SaveBook(ctx, sampleBook("b1")))
	require.NoError(t, first.Close())

	second := New(path, WithLogLevel(logger.Silent))
	defer second.Close()

	book, err := second.GetBook(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, "Title b1", book.Title)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	first := New(path, WithLogLevel(logger.Silent))
	require.NoError(t, first.SetSetting(ctx, entities.SettingKeySchemaVersion, "99"))
	require.NoError(t, first.Close())

	second := New(path, WithLogLevel(logger.Silent))
	defer second.Close()

	err := second.Open(ctx)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestClose_RejectsFurtherOperations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Open(ctx))
	require.NoError(t, db.Close())

	_, err := db.GetBook(ctx, "b1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBooks_SaveGetDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	missing, err := db.GetBook(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, db.SaveBook(ctx, sampleBook("b1")))

	book, err := db.GetBook(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, []string{"Ada", "Grace"}, []string(book.Authors))
	assert.Len(t, book.Spine, 2)
	assert.Equal(t, "ch2.html", book.Spine[1].Href)
	assert.JSONEq(t, `[{"title":"One","href":"ch1.html"}]`, string(book.TOC))

	require.NoError(t, db.DeleteBook(ctx, "b1"))
	book, err = db.GetBook(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestBooks_SaveIsUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	book := sampleBook("b1")
	require.NoError(t, db.SaveBook(ctx, book))
	require.NoError(t, db.MarkBookForDeletion(ctx, "b1"))

	book.Title = "Renamed"
	book.PendingDeletion = false
	require.NoError(t, db.SaveBook(ctx, book))

	books, err := db.GetAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Renamed", books[0].Title)
	assert.False(t, books[0].PendingDeletion)
}

func TestBooks_SaveRequiresID(t *testing.T) {
	db := setupTestDB(t)
	err := db.SaveBook(context.Background(), &entities.Book{Title: "nameless"})
	assert.Error(t, err)
}

func TestBooks_ReturnedRecordsAreSnapshots(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveBook(ctx, sampleBook("b1")))

	book, err := db.GetBook(ctx, "b1")
	require.NoError(t, err)
	book.Title = "changed locally"
	book.Authors[0] = "someone else"

	again, err := db.GetBook(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Title b1", again.Title)
	assert.Equal(t, "Ada", again.Authors[0])
}

func TestBooks_TouchUpdatesOnlyLastRead(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	book := sampleBook("b1")
	require.NoError(t, db.SaveBook(ctx, book))

	later := book.LastReadAt.Add(time.Hour)
	require.NoError(t, db.TouchBook(ctx, "b1", later))
	require.NoError(t, db.TouchBook(ctx, "absent", later))

	got, err := db.GetBook(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, got.LastReadAt.Equal(later))
	assert.True(t, got.DownloadedAt.Equal(book.DownloadedAt))
	assert.Equal(t, "Title b1", got.Title)

	count, err := db.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestChapters_CompositeKeyUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveChapter(ctx, &entities.Chapter{BookID: "b1", ChapterIndex: 0, Title: "One", HTML: "<p>1</p>"}))
	require.NoError(t, db.SaveChapter(ctx, &entities.Chapter{BookID: "b1", ChapterIndex: 1, Title: "Two", HTML: "<p>2</p>"}))
	require.NoError(t, db.SaveChapter(ctx, &entities.Chapter{BookID: "b2", ChapterIndex: 0, Title: "Other", HTML: "<p>x</p>"}))

	// re-download overwrites index 0
	require.NoError(t, db.SaveChapter(ctx, &entities.Chapter{BookID: "b1", ChapterIndex: 0, Title: "One v2", HTML: "<p>1b</p>"}))

	ch, err := db.GetChapter(ctx, "b1", 0)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, "One v2", ch.Title)
	assert.Equal(t, "<p>1b</p>", ch.HTML)

	missing, err := db.GetChapter(ctx, "b1", 7)
	require.NoError(t, err)
	assert.Nil(t, missing)

	indexes, err := db.ListChapterIndexes(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, indexes)
}

func TestImages_SaveGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	img := &entities.Image{BookID: "b1", Path: "/read/b1/images/pic.png", MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	require.NoError(t, db.SaveImage(ctx, img))

	got, err := db.GetImage(ctx, "b1", "/read/b1/images/pic.png")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "image/png", got.MimeType)
	assert.Equal(t, img.Data, got.Data)

	missing, err := db.GetImage(ctx, "b2", "/read/b1/images/pic.png")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteAllByBook(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.SaveChapter(ctx, &entities.Chapter{BookID: "b1", ChapterIndex: i}))
	}
	require.NoError(t, db.SaveChapter(ctx, &entities.Chapter{BookID: "b2", ChapterIndex: 0}))
	require.NoError(t, db.SaveImage(ctx, &entities.Image{BookID: "b1", Path: "a.png"}))
	require.NoError(t, db.SaveImage(ctx, &entities.Image{BookID: "b2", Path: "a.png"}))

	n, err := db.DeleteAllByBook(ctx, CollectionChapters, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = db.DeleteAllByBook(ctx, CollectionImages, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	other, err := db.GetChapter(ctx, "b2", 0)
	require.NoError(t, err)
	assert.NotNil(t, other)
	otherImg, err := db.GetImage(ctx, "b2", "a.png")
	require.NoError(t, err)
	assert.NotNil(t, otherImg)

	_, err = db.DeleteAllByBook(ctx, Collection("books"), "b1")
	assert.ErrorIs(t, err, ErrUnsupportedCollection)
}

func TestOutbox_AddAssignsDefaults(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	db := New(filepath.Join(t.TempDir(), "store.db"), WithLogLevel(logger.Silent), WithClock(func() time.Time { return fixed }))
	defer db.Close()
	ctx := context.Background()

	item := &entities.OutboxItem{
		Type:    entities.OutboxProgressUpdate,
		BookID:  "b1",
		Payload: datatypes.JSON(`{"chapter_index":3}`),
	}
	require.NoError(t, db.AddOutboxItem(ctx, item))

	assert.NotEmpty(t, item.ID)
	assert.True(t, item.CreatedAt.Equal(fixed))
	assert.Equal(t, 0, item.AttemptCount)

	items, err := db.GetAllOutboxItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.JSONEq(t, `{"chapter_index":3}`, string(items[0].Payload))
}

func TestOutbox_KeepsGivenID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AddOutboxItem(ctx, &entities.OutboxItem{ID: "fixed-id", Type: entities.OutboxHighlightDelete}))
	items, err := db.GetAllOutboxItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fixed-id", items[0].ID)
}

func TestOutbox_OrderFailureAndRemove(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, db.AddOutboxItem(ctx, &entities.OutboxItem{ID: "second", Type: entities.OutboxHighlightCreate, CreatedAt: base.Add(time.Second)}))
	require.NoError(t, db.AddOutboxItem(ctx, &entities.OutboxItem{ID: "first", Type: entities.OutboxHighlightCreate, CreatedAt: base}))

	items, err := db.GetAllOutboxItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].ID)
	assert.Equal(t, "second", items[1].ID)

	require.NoError(t, db.RecordOutboxFailure(ctx, "first", "status 500"))
	require.NoError(t, db.RecordOutboxFailure(ctx, "first", "status 502"))
	require.NoError(t, db.RemoveOutboxItem(ctx, "second"))

	items, err = db.GetAllOutboxItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].AttemptCount)
	assert.Equal(t, "status 502", items[0].LastError)

	count, err := db.CountOutboxItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentWritesAreSerialized(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, db.SaveChapter(ctx, &entities.Chapter{BookID: "b1", ChapterIndex: i}))
		}(i)
	}
	wg.Wait()

	indexes, err := db.ListChapterIndexes(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, indexes, 20)
}
