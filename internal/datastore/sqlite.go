package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/logger"
)

const (
	memoryDSN          = ":memory:"
	slowQueryThreshold = 200 * time.Millisecond
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open opens the SQLite database and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Storage.SQLite.Path
	if path == "" {
		return validationError("sqlite path cannot be empty", "storage.sqlite.path", path)
	}

	dsn := path
	if path != memoryDSN {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// WAL lets readers proceed while a preference write is in flight
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.NewGormAdapter(store.Logger, slowQueryThreshold),
	})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if path == memoryDSN {
		// Every connection to :memory: is a separate database
		sqlDB, err := db.DB()
		if err != nil {
			return dbError(err, "open", "action", "get_sql_db")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	return performAutoMigration(db, store.Logger, "SQLite", path)
}
