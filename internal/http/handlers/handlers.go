package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sql-assistant/internal/domain"
	"github.com/tbourn/go-sql-assistant/internal/services"
)

//
// Service contracts (context-aware)
//

// QueryService answers questions. *services.QueryService implements it.
type QueryService interface {
	Handle(ctx context.Context, req services.QueryRequest) (*services.QueryResult, error)
	ClearContext(userID string) bool
}

// ChatService answers conversational messages. *services.ChatService
// implements it.
type ChatService interface {
	Reply(ctx context.Context, sessionID, userID, message string) (*services.ChatReply, error)
}

// AuditService reads the audit trail. *services.AuditService implements it.
type AuditService interface {
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.QueryAudit, int64, error)
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
}

// SafetyAdmin resets safety records. *safety.Guard implements it.
type SafetyAdmin interface {
	ClearWarnings(userID string) bool
}

// Pinger checks a dependency. *warehouse.Executor implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers. Audit, Safety and Warehouse may be
// nil; the matching endpoints then report 503 or skip the check.
type Deps struct {
	Query     QueryService
	Chat      ChatService
	Audit     AuditService
	Safety    SafetyAdmin
	Warehouse Pinger
	// Provider is the language-model provider name reported by /health.
	Provider string
	// MaxQuestionRunes is echoed in "too long" messages.
	MaxQuestionRunes int
}

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	deps Deps
}

// New constructs Handlers bound to deps.
func New(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// headerUserID returns the user id set by upstream middleware or the
// X-User-ID header, or "" when neither is present.
func headerUserID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		return strings.TrimSpace(c.GetHeader("X-User-ID"))
	}
	return ""
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}
