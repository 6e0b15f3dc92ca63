// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and Postgres, plus schema migrations.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-garden-backend/internal/config"
	"github.com/tbourn/go-garden-backend/internal/domain"
)

// sqlitePragmas are applied on every pooled connection through the DSN.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// Open connects to the database selected by cfg.DBDriver, sets GORM's log
// level from cfg.LogLevel and enables GORM tracing when OpenTelemetry is on.
func Open(cfg config.Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = OpenPostgres(cfg.DatabaseURL)
	default:
		db, err = OpenSQLite(cfg.DBPath)
	}
	if err != nil {
		return nil, err
	}
	db.Config.Logger = db.Config.Logger.LogMode(gormLogLevel(cfg.LogLevel))
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("gorm tracing: %w", err)
		}
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database with pragmas set per connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig())
	if err != nil {
		return nil, err
	}
	setPool(db)
	return db, nil
}

// OpenPostgres opens a Postgres database via the pgx-backed GORM driver.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	setPool(db)
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: newGormLogger(logger.Warn)}
}

func sqliteDSN(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

func setPool(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates the ledger schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.TaskCompletion{},
		&domain.BonusClaim{},
		&domain.Wallet{},
		&domain.Idempotency{},
	)
}
