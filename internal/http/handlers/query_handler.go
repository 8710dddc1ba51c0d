// Query HTTP handlers.
//
// This file exposes the question-answering endpoints:
//   - POST /query           (answer a natural-language question)
//   - POST /context/clear   (forget a user's follow-up grounding)
//
// Retries carrying the same Idempotency-Key are replayed by the idempotency
// middleware and never reach Query.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sql-assistant/internal/analysis"
	"github.com/tbourn/go-sql-assistant/internal/domain"
	"github.com/tbourn/go-sql-assistant/internal/format"
	"github.com/tbourn/go-sql-assistant/internal/services"
	"github.com/tbourn/go-sql-assistant/internal/sysutil"
)

//
// DTOs
//

// QueryRequest is the JSON payload for POST /query. Omitted booleans default
// to true.
type QueryRequest struct {
	Question        string `json:"question" binding:"required" example:"Сколько транзакций за сегодня?"`
	UserID          string `json:"user_id,omitempty" example:"analyst-1"`
	SessionID       string `json:"session_id,omitempty"`
	IncludeAnalysis *bool  `json:"include_analysis,omitempty"`
	UseCache        *bool  `json:"use_cache,omitempty"`
	IncludeSQL      *bool  `json:"include_sql,omitempty"`
	// OutputType is one of auto, table, chart, json, csv.
	OutputType string `json:"output_type,omitempty" example:"auto"`
}

// QueryResponse is the answer to a question. On the chat path only
// text_response is set and data is empty.
type QueryResponse struct {
	Question        string             `json:"question"`
	SQL             *string            `json:"sql,omitempty"`
	TextResponse    *string            `json:"text_response,omitempty"`
	Data            []domain.Record    `json:"data" swaggertype:"array,object"`
	Table           *string            `json:"table,omitempty"`
	ChartData       *format.ChartData  `json:"chart_data,omitempty"`
	ExecutionTimeMs int64              `json:"execution_time_ms"`
	RowCount        int                `json:"row_count"`
	Analysis        *analysis.Analysis `json:"analysis,omitempty"`
	Cached          bool               `json:"cached"`

	Route          string `json:"route" example:"sql"`
	SessionID      string `json:"session_id,omitempty"`
	Language       string `json:"language" example:"ru"`
	FallbackReason string `json:"fallback_reason,omitempty"`
	AuditID        string `json:"audit_id,omitempty"`
}

// ClearContextRequest is the JSON payload for POST /context/clear.
type ClearContextRequest struct {
	UserID string `json:"user_id" example:"analyst-1"`
}

// ClearContextResponse reports whether a context existed.
type ClearContextResponse struct {
	UserID  string `json:"user_id"`
	Cleared bool   `json:"cleared"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toQueryResponse(r *services.QueryResult) QueryResponse {
	data := r.Data
	if data == nil {
		data = []domain.Record{}
	}
	return QueryResponse{
		Question:        r.Question,
		SQL:             strPtr(r.SQL),
		TextResponse:    strPtr(r.TextResponse),
		Data:            data,
		Table:           r.Table,
		ChartData:       r.Chart,
		ExecutionTimeMs: r.ExecutionTimeMs,
		RowCount:        r.RowCount,
		Analysis:        r.Analysis,
		Cached:          r.Cached,
		Route:           r.Route,
		SessionID:       r.SessionID,
		Language:        string(r.Language),
		FallbackReason:  r.FallbackReason,
		AuditID:         r.AuditID,
	}
}

//
// Handlers
//

// Query godoc
// @ID          query
// @Summary     Answer a question about the transactions data
// @Description Routes the question to SQL generation or to chat, validates and executes generated SQL,
// @Description and returns rows, an optional analysis, a table and chart payload.
// @Description Supports idempotency via the Idempotency-Key header (same key → same response).
// @Tags        Query
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (overrides user_id in the body)"  example(analyst-1)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.QueryRequest  true  "Question"
//
// @Success     200  {object}  handlers.QueryResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Blocked by the safety guard"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Warehouse failure"
// @Failure     502  {object}  handlers.ErrorResponse  "Language model unavailable"
// @Router      /query [post]
func (h *Handlers) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question required")
		return
	}
	out, valid := format.ParseOutputType(req.OutputType)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "output_type must be one of: auto, table, chart, json, csv")
		return
	}

	res, err := h.deps.Query.Handle(c.Request.Context(), services.QueryRequest{
		Question:        req.Question,
		UserID:          sysutil.FirstNonEmpty(headerUserID(c), strings.TrimSpace(req.UserID)),
		SessionID:       strings.TrimSpace(req.SessionID),
		IncludeAnalysis: boolOr(req.IncludeAnalysis, true),
		UseCache:        boolOr(req.UseCache, true),
		IncludeSQL:      boolOr(req.IncludeSQL, true),
		OutputType:      out,
	})
	if err != nil {
		failService(c, err, h.deps.MaxQuestionRunes)
		return
	}
	ok(c, http.StatusOK, toQueryResponse(res))
}

// ClearContext godoc
// @ID          clearContext
// @Summary     Clear follow-up context
// @Description Forgets the question/SQL history used to ground follow-up questions for a user.
// @Tags        Query
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID"  example(analyst-1)
// @Param       body       body    handlers.ClearContextRequest  false  "User to clear"
//
// @Success     200  {object}  handlers.ClearContextResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /context/clear [post]
func (h *Handlers) ClearContext(c *gin.Context) {
	var req ClearContextRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	uid := sysutil.FirstNonEmpty(headerUserID(c), strings.TrimSpace(req.UserID))
	if uid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}
	ok(c, http.StatusOK, ClearContextResponse{UserID: uid, Cleared: h.deps.Query.ClearContext(uid)})
}
