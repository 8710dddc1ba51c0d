// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them instead of
// on messages. Generic codes mirror HTTP status semantics, domain codes name
// the pipeline stage that failed.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "blocked",
//	  "message": "Вы временно заблокированы. Блокировка закончится через 42 мин."
//	}
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sql-assistant/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeBlocked        = "blocked"
	ErrCodeTooLong        = "question_too_long"
	ErrCodeLLMUnavailable = "llm_unavailable"
	ErrCodeQueryFailed    = "query_failed"
	ErrCodeListFailed     = "list_failed"
	ErrCodeUnavailable    = "unavailable"
)

// failService maps a pipeline error to its status and code. Safety
// rejections carry a localized message meant for the end user.
func failService(c *gin.Context, err error, maxRunes int) {
	var rej *services.RejectedError
	switch {
	case errors.As(err, &rej):
		fail(c, http.StatusForbidden, ErrCodeBlocked, rej.Message)
	case errors.Is(err, services.ErrEmptyQuestion):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question required")
	case errors.Is(err, services.ErrQuestionTooLong):
		msg := "question too long"
		if maxRunes > 0 {
			msg = fmt.Sprintf("question too long: max %d runes", maxRunes)
		}
		fail(c, http.StatusBadRequest, ErrCodeTooLong, msg)
	case errors.Is(err, services.ErrLLMUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeLLMUnavailable, "language model unavailable")
	case errors.Is(err, services.ErrExecution):
		fail(c, http.StatusInternalServerError, ErrCodeQueryFailed, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
