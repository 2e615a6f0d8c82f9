package datastore

import (
	"fmt"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// dsn builds the connection string with the driver's own formatter so
// credentials containing special characters are escaped.
func (store *MySQLStore) dsn() string {
	m := store.Settings.Storage.MySQL
	cfg := mysqldriver.NewConfig()
	cfg.User = m.Username
	cfg.Passwd = m.Password
	cfg.Net = "tcp"
	cfg.Addr = m.Host + ":" + strconv.Itoa(m.Port)
	cfg.DBName = m.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and migrates the schema.
func (store *MySQLStore) Open() error {
	m := store.Settings.Storage.MySQL

	db, err := gorm.Open(mysql.Open(store.dsn()), &gorm.Config{
		Logger: logger.NewGormAdapter(store.Logger, slowQueryThreshold),
	})
	if err != nil {
		store.Logger.Error("failed to open MySQL database",
			logger.String("host", m.Host),
			logger.Int("port", m.Port),
			logger.String("database", m.Database),
			logger.Error(err))
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Logger, "MySQL", fmt.Sprintf("%s:%d/%s", m.Host, m.Port, m.Database))
}
