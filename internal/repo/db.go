// Package repo persists the audit trail and idempotency records with GORM on
// SQLite (pure Go driver).
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-sql-assistant/internal/domain"
)

// pragmas are applied to every audit database. The audit trail is
// append-mostly, so WAL with NORMAL sync is durable enough and keeps writes
// off the request's critical path.
var pragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

const maxOpenConns = 10

// OpenSQLite opens (or creates) the audit database at path and installs the
// OpenTelemetry plugin so audit writes appear as child spans of the request.
// ":memory:" and "file:" URIs skip the directory check.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		// Missing parent dirs surface as "out of memory (14)" from sqlite otherwise.
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, fmt.Errorf("audit db dir: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, err
	}
	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", strings.TrimSuffix(p, ";"), err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// AutoMigrate creates or updates the audit and idempotency tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.QueryAudit{}, &domain.Idempotency{})
}
