package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/offlinereader/internal/entities"
)

// AddOutboxItem queues a mutation. ID and CreatedAt are filled in when empty.
func (d *Database) AddOutboxItem(ctx context.Context, item *entities.OutboxItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = d.now()
	}
	if item.AttemptCount < 0 {
		item.AttemptCount = 0
	}
	return d.write(ctx, func(db *gorm.DB) error {
		if err := db.Create(item).Error; err != nil {
			return fmt.Errorf("add outbox item %s: %w", item.ID, err)
		}
		return nil
	})
}

// GetAllOutboxItems returns the queued mutations, oldest first.
func (d *Database) GetAllOutboxItems(ctx context.Context) ([]entities.OutboxItem, error) {
	var items []entities.OutboxItem
	err := d.read(ctx, func(db *gorm.DB) error {
		return db.Order("created_at ASC, id ASC").Find(&items).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	return items, nil
}

// CountOutboxItems returns the number of queued mutations.
func (d *Database) CountOutboxItems(ctx context.Context) (int64, error) {
	var count int64
	err := d.read(ctx, func(db *gorm.DB) error {
		return db.Model(&entities.OutboxItem{}).Count(&count).Error
	})
	return count, err
}

// RemoveOutboxItem deletes an acknowledged mutation.
func (d *Database) RemoveOutboxItem(ctx context.Context, id string) error {
	return d.write(ctx, func(db *gorm.DB) error {
		if err := db.Where("id = ?", id).Delete(&entities.OutboxItem{}).Error; err != nil {
			return fmt.Errorf("remove outbox item %s: %w", id, err)
		}
		return nil
	})
}

// RecordOutboxFailure bumps the attempt counter and keeps the last error.
func (d *Database) RecordOutboxFailure(ctx context.Context, id, reason string) error {
	return d.write(ctx, func(db *gorm.DB) error {
		return db.Model(&entities.OutboxItem{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"attempt_count": gorm.Expr("attempt_count + 1"),
				"last_error":    reason,
			}).Error
	})
}
