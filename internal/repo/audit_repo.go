// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// QueryAudit trail.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business logic, only persistence and
// query composition.
//
// Error semantics:
//   - When an audit row is not found, functions return ErrNotFound.
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sql-assistant/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateAudit inserts a new audit row. A missing ID is filled with a UUID and a zero
// CreatedAt with the current UTC time.
func CreateAudit(ctx context.Context, db *gorm.DB, a *domain.QueryAudit) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(a).Error
}

func auditScope(db *gorm.DB, userID string) *gorm.DB {
	if userID == "" {
		return db
	}
	return db.Where("user_id = ?", userID)
}

// CountAudit returns the number of audit rows for userID, or for all users
// when userID is empty.
func CountAudit(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := auditScope(db.WithContext(ctx).Model(&domain.QueryAudit{}), userID).
		Count(&total).Error
	return total, err
}

// ListAuditPage returns a page of audit rows, most recent first. Use
// CountAudit for pagination metadata.
func ListAuditPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.QueryAudit, error) {
	var out []domain.QueryAudit
	err := auditScope(db.WithContext(ctx), userID).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetAudit fetches one audit row by id.
func GetAudit(ctx context.Context, db *gorm.DB, id string) (*domain.QueryAudit, error) {
	var a domain.QueryAudit
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
