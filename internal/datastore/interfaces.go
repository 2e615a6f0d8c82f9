// interfaces.go: the durable key-value medium behind settings and the daily selection
package datastore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/logger"
)

// KeyValue is the subset of the store used by services that persist
// preferences. Each Set is atomic for its single key.
type KeyValue interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Interface abstracts the underlying database implementation.
type Interface interface {
	KeyValue
	Open() error
	Close() error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)
}

// DataStore implements Interface on top of GORM.
type DataStore struct {
	DB     *gorm.DB
	Logger logger.Logger
}

// New returns the store selected by settings.Storage.Type. The store must
// be opened before use.
func New(settings *conf.Settings, log logger.Logger) (Interface, error) {
	if log == nil {
		log = logger.Global().Module("datastore")
	}

	switch settings.Storage.Type {
	case "sqlite":
		return &SQLiteStore{
			DataStore: DataStore{Logger: log.Module("sqlite")},
			Settings:  settings,
		}, nil
	case "mysql":
		return &MySQLStore{
			DataStore: DataStore{Logger: log.Module("mysql")},
			Settings:  settings,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", settings.Storage.Type)
	}
}

// Close releases the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", "action", "get_sql_db")
	}

	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "action", "close_pool")
	}

	return nil
}

// performAutoMigration creates or updates the preference table.
func performAutoMigration(db *gorm.DB, log logger.Logger, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Preference{}); err != nil {
		return dbError(err, "auto_migrate", "db_type", dbType)
	}

	log.Debug("database ready",
		logger.String("type", dbType),
		logger.String("location", connectionInfo))

	return nil
}
