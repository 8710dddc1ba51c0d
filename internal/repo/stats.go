// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-sql-assistant/internal/domain"
)

// AuditStats returns the number of audit rows for userID (all users when
// empty) and the newest CreatedAt among them. When there are no rows, the
// count is 0 and newest is nil.
func AuditStats(ctx context.Context, db *gorm.DB, userID string) (count int64, newest *time.Time, err error) {
	q := auditScope(db.WithContext(ctx).Model(&domain.QueryAudit{}), userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	q = auditScope(db.WithContext(ctx).Model(&domain.QueryAudit{}), userID)
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
