package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/offlinereader/internal/entities"
)

// Collection names a collection that is indexed by owning book.
type Collection string

const (
	CollectionChapters Collection = "chapters"
	CollectionImages   Collection = "images"
)

var ErrUnsupportedCollection = errors.New("collection has no book index")

// GetChapter returns a cached chapter, or nil if absent.
func (d *Database) GetChapter(ctx context.Context, bookID string, index int) (*entities.Chapter, error) {
	var chapter entities.Chapter
	err := d.read(ctx, func(db *gorm.DB) error {
		return db.Where("book_id = ? AND chapter_index = ?", bookID, index).First(&chapter).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chapter %s/%d: %w", bookID, index, err)
	}
	return &chapter, nil
}

// SaveChapter upserts a chapter by (book_id, chapter_index).
func (d *Database) SaveChapter(ctx context.Context, chapter *entities.Chapter) error {
	if chapter.BookID == "" {
		return errMissingBookID
	}
	return d.write(ctx, func(db *gorm.DB) error {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(chapter).Error; err != nil {
			return fmt.Errorf("save chapter %s/%d: %w", chapter.BookID, chapter.ChapterIndex, err)
		}
		return nil
	})
}

// ListChapterIndexes returns the cached chapter indexes of a book in order.
func (d *Database) ListChapterIndexes(ctx context.Context, bookID string) ([]int, error) {
	var indexes []int
	err := d.read(ctx, func(db *gorm.DB) error {
		return db.Model(&entities.Chapter{}).
			Where("book_id = ?", bookID).
			Order("chapter_index ASC").
			Pluck("chapter_index", &indexes).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list chapters of %s: %w", bookID, err)
	}
	return indexes, nil
}

// GetImage returns a cached image, or nil if absent.
func (d *Database) GetImage(ctx context.Context, bookID, path string) (*entities.Image, error) {
	var image entities.Image
	err := d.read(ctx, func(db *gorm.DB) error {
		return db.Where("book_id = ? AND path = ?", bookID, path).First(&image).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image %s%s: %w", bookID, path, err)
	}
	return &image, nil
}

// SaveImage upserts an image by (book_id, path).
func (d *Database) SaveImage(ctx context.Context, image *entities.Image) error {
	if image.BookID == "" {
		return errMissingBookID
	}
	return d.write(ctx, func(db *gorm.DB) error {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(image).Error; err != nil {
			return fmt.Errorf("save image %s%s: %w", image.BookID, image.Path, err)
		}
		return nil
	})
}

// DeleteAllByBook removes every record of the collection owned by bookID and
// returns how many were removed.
func (d *Database) DeleteAllByBook(ctx context.Context, collection Collection, bookID string) (int64, error) {
	var model any
	switch collection {
	case CollectionChapters:
		model = &entities.Chapter{}
	case CollectionImages:
		model = &entities.Image{}
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCollection, collection)
	}

	var deleted int64
	err := d.write(ctx, func(db *gorm.DB) error {
		result := db.Where("book_id = ?", bookID).Delete(model)
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete %s of %s: %w", collection, bookID, err)
	}
	return deleted, nil
}
