package database

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"riskexecutor/src/model"
)

// Dialector picks the driver from the URL: postgres URLs and key=value DSNs go to
// PostgreSQL, anything else is treated as a SQLite file path.
func Dialector(url string) gorm.Dialector {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") {
		return postgres.Open(url)
	}
	return sqlite.Open(url)
}

// InitMainDB opens the audit database and migrates its tables.
// This should be called once at application startup.
func InitMainDB(config Config) (*gorm.DB, error) {
	db, err := gorm.Open(Dialector(config.DatabaseURL),
		&gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB from GORM: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	logrus.WithField("driver", db.Dialector.Name()).Info("[database] MainDB connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logrus.Info("[database] MainDB migrations completed")
	return db, nil
}

// Migrate creates or updates the audit tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.OrderExecutionLog{},
		&model.Exception{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}
	return nil
}

// Close releases the pool behind db. A nil db is ignored.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
