package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-sql-assistant/internal/domain"
	"github.com/tbourn/go-sql-assistant/internal/repo"
)

// AuditSink receives one row per processed question. Failures are logged by
// the caller and never fail the request.
type AuditSink interface {
	Record(ctx context.Context, a *domain.QueryAudit) error
}

// AuditService persists and lists the audit trail.
type AuditService struct {
	DB *gorm.DB
}

// Record implements AuditSink.
func (s *AuditService) Record(ctx context.Context, a *domain.QueryAudit) error {
	return repo.CreateAudit(ctx, s.DB, a)
}

// ListPage returns a page of audit rows for userID (all users when empty),
// newest first, and the total count.
func (s *AuditService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.QueryAudit, int64, error) {
	tr := otel.Tracer("services/AuditService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountAudit(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.QueryAudit{}, 0, nil
	}
	items, err := repo.ListAuditPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Stats returns the row count and newest timestamp used for ETags.
func (s *AuditService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.AuditStats(ctx, s.DB, userID)
}
