package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/offlinereader/internal/entities"
)

// GetBook returns the book with the given id, or nil if it is not cached.
func (d *Database) GetBook(ctx context.Context, id string) (*entities.Book, error) {
	var book entities.Book
	err := d.read(ctx, func(db *gorm.DB) error {
		return db.Where("book_id = ?", id).First(&book).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", id, err)
	}
	return &book, nil
}

// GetAllBooks returns every cached book ordered by id.
func (d *Database) GetAllBooks(ctx context.Context) ([]entities.Book, error) {
	var books []entities.Book
	err := d.read(ctx, func(db *gorm.DB) error {
		return db.Order("book_id ASC").Find(&books).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// CountBooks returns the number of cached books.
func (d *Database) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	err := d.read(ctx, func(db *gorm.DB) error {
		return db.Model(&entities.Book{}).Count(&count).Error
	})
	return count, err
}

// SaveBook inserts the book or overwrites every column of the existing record.
func (d *Database) SaveBook(ctx context.Context, book *entities.Book) error {
	if book.BookID == "" {
		return errMissingBookID
	}
	return d.write(ctx, func(db *gorm.DB) error {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(book).Error; err != nil {
			return fmt.Errorf("save book %s: %w", book.BookID, err)
		}
		return nil
	})
}

// DeleteBook removes the book record only. Chapters and images are left alone.
func (d *Database) DeleteBook(ctx context.Context, id string) error {
	return d.write(ctx, func(db *gorm.DB) error {
		if err := db.Where("book_id = ?", id).Delete(&entities.Book{}).Error; err != nil {
			return fmt.Errorf("delete book %s: %w", id, err)
		}
		return nil
	})
}

// TouchBook sets last_read_at. A book that is not cached is ignored.
func (d *Database) TouchBook(ctx context.Context, id string, at time.Time) error {
	return d.write(ctx, func(db *gorm.DB) error {
		return db.Model(&entities.Book{}).
			Where("book_id = ?", id).
			Update("last_read_at", at).Error
	})
}

// MarkBookForDeletion records the intent to delete a book before its
// dependents are removed.
func (d *Database) MarkBookForDeletion(ctx context.Context, id string) error {
	return d.write(ctx, func(db *gorm.DB) error {
		return db.Model(&entities.Book{}).
			Where("book_id = ?", id).
			Update("pending_deletion", true).Error
	})
}
