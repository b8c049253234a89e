package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"perfdash-backend/config"
	"perfdash-backend/internal/logger"
	"perfdash-backend/internal/model"
)

// Init opens the in-memory database, runs migrations and optionally seeds
// the demo datasets.
func Init(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	if !isMemoryDSN(cfg.DSN) {
		return nil, fmt.Errorf("database dsn %q is not an in-memory sqlite database", cfg.DSN)
	}

	db, err := Open(cfg.DSN, cfg.MaxOpenConns, cfg.LogQueries)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database migrated", "dsn", cfg.DSN)

	if cfg.Seed {
		if err := Seed(ctx, db); err != nil {
			return nil, fmt.Errorf("seed failed: %w", err)
		}
		log.Info("demo data seeded")
	}
	return db, nil
}

// Migrate creates the tables for every model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Machine{},
		&model.Analysis{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// Open connects to an in-memory SQLite database. An in-memory database
// lives only as long as one of its connections, so idle connections are
// never recycled.
func Open(dsn string, maxConns int, logQueries bool) (*gorm.DB, error) {
	logMode := gormlogger.Silent
	if logQueries {
		logMode = gormlogger.Info
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)
	return db, nil
}

// MemoryDSN returns a DSN for a private named in-memory database.
func MemoryDSN(name string) string {
	return "file:" + name + "?mode=memory&cache=shared"
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" ||
		strings.HasPrefix(dsn, "file::memory:") ||
		strings.Contains(dsn, "mode=memory")
}
