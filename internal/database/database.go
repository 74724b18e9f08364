package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/offlinereader/internal/entities"
)

const (
	// StoreName identifies the database file as an offline reader store.
	StoreName = "offline-reader"

	// SchemaVersion is bumped whenever a collection or column is added.
	// Upgrades are additive only.
	SchemaVersion = 1
)

var (
	ErrClosed        = errors.New("database is closed")
	ErrSchemaTooNew  = errors.New("database schema is newer than this binary")
	ErrForeignStore  = errors.New("database belongs to a different store")
	errMissingBookID = errors.New("book_id is required")
)

// models lists every collection in creation order.
var models = []any{
	&entities.Setting{},
	&entities.Book{},
	&entities.Chapter{},
	&entities.Image{},
	&entities.OutboxItem{},
}

// Database is the persistent store for books, chapters, images and the outbox.
//
// The handle is cheap to construct; the sqlite file is opened lazily by the
// first operation. Concurrent first callers share a single open.
// Writes are serialized by mu, reads run concurrently with each other.
type Database struct {
	path     string
	logLevel logger.LogLevel
	now      func() time.Time

	mu sync.RWMutex

	opening singleflight.Group
	stateMu sync.Mutex
	db      *gorm.DB
	closed  bool
	opens   atomic.Int32
}

// Option configures a Database.
type Option func(*Database)

// WithLogLevel sets the gorm logger level. Defaults to logger.Warn.
func WithLogLevel(level logger.LogLevel) Option {
	return func(d *Database) {
		d.logLevel = level
	}
}

// WithClock overrides the clock used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Database) {
		d.now = now
	}
}

// New returns a store backed by the sqlite file at path. Nothing is opened yet.
func New(path string, opts ...Option) *Database {
	d := &Database{
		path:     path,
		logLevel: logger.Warn,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDatabase creates the store and opens it immediately.
func NewDatabase(path string, opts ...Option) (*Database, error) {
	d := New(path, opts...)
	if err := d.Open(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

// Open opens and migrates the database if that has not happened yet.
// It is safe to call repeatedly and from multiple goroutines.
func (d *Database) Open(ctx context.Context) error {
	_, err := d.conn(ctx)
	return err
}

// Path returns the sqlite file path.
func (d *Database) Path() string {
	return d.path
}

func (d *Database) conn(ctx context.Context) (*gorm.DB, error) {
	d.stateMu.Lock()
	db, closed := d.db, d.closed
	d.stateMu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if db != nil {
		return db.WithContext(ctx), nil
	}

	v, err, _ := d.opening.Do("open", func() (any, error) {
		d.stateMu.Lock()
		if d.db != nil {
			db := d.db
			d.stateMu.Unlock()
			return db, nil
		}
		d.stateMu.Unlock()

		db, err := d.openAndMigrate()
		if err != nil {
			return nil, err
		}

		d.stateMu.Lock()
		defer d.stateMu.Unlock()
		if d.closed {
			closeGorm(db)
			return nil, ErrClosed
		}
		d.db = db
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gorm.DB).WithContext(ctx), nil
}

func (d *Database) openAndMigrate() (*gorm.DB, error) {
	d.opens.Add(1)

	dsn := d.path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(d.logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		closeGorm(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("Database initialized successfully at %s (schema v%d)", d.path, SchemaVersion)
	return db, nil
}

// migrate creates missing collections and adds missing columns. It never drops
// or rewrites existing tables.
func migrate(db *gorm.DB) error {
	m := db.Migrator()
	for _, model := range models {
		if !m.HasTable(model) {
			if err := m.CreateTable(model); err != nil {
				return fmt.Errorf("create table for %T: %w", model, err)
			}
			continue
		}

		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse %T: %w", model, err)
		}
		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" || m.HasColumn(model, field.DBName) {
				continue
			}
			if err := m.AddColumn(model, field.Name); err != nil {
				return fmt.Errorf("add column %s.%s: %w", stmt.Schema.Table, field.DBName, err)
			}
			log.Printf("Added column %s.%s", stmt.Schema.Table, field.DBName)
		}
	}

	return stampVersion(db)
}

func stampVersion(db *gorm.DB) error {
	name, err := getSetting(db, entities.SettingKeyStoreName)
	if err != nil {
		return err
	}
	if name != "" && name != StoreName {
		return fmt.Errorf("%w: %q", ErrForeignStore, name)
	}

	raw, err := getSetting(db, entities.SettingKeySchemaVersion)
	if err != nil {
		return err
	}
	if raw != "" {
		version, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid schema version %q: %w", raw, err)
		}
		if version > SchemaVersion {
			return fmt.Errorf("%w: stored v%d, supported v%d", ErrSchemaTooNew, version, SchemaVersion)
		}
		if version == SchemaVersion && name == StoreName {
			return nil
		}
	}

	if err := setSetting(db, entities.SettingKeyStoreName, StoreName); err != nil {
		return err
	}
	return setSetting(db, entities.SettingKeySchemaVersion, strconv.Itoa(SchemaVersion))
}

// Close releases the underlying connection. Further operations return ErrClosed.
func (d *Database) Close() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	d.closed = true
	if d.db == nil {
		return nil
	}
	err := closeGorm(d.db)
	d.db = nil
	return err
}

func closeGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// read runs fn under the shared lock.
func (d *Database) read(ctx context.Context, fn func(db *gorm.DB) error) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fn(db)
}

// write runs fn under the exclusive lock.
func (d *Database) write(ctx context.Context, fn func(db *gorm.DB) error) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(db)
}

// GetSetting returns the value stored under key, or "" when unset.
func (d *Database) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.read(ctx, func(db *gorm.DB) error {
		var err error
		value, err = getSetting(db, key)
		return err
	})
	return value, err
}

// SetSetting upserts a setting.
func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	return d.write(ctx, func(db *gorm.DB) error {
		return setSetting(db, key, value)
	})
}

func getSetting(db *gorm.DB, key string) (string, error) {
	var setting entities.Setting
	err := db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return setting.Value, nil
}

func setSetting(db *gorm.DB, key, value string) error {
	var setting entities.Setting
	result := db.Where("key = ?", key).First(&setting)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		setting = entities.Setting{
			Key:   key,
			Value: value,
		}
		return db.Create(&setting).Error
	} else if result.Error != nil {
		return result.Error
	}

	setting.Value = value
	return db.Save(&setting).Error
}
