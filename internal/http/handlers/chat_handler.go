package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sql-assistant/internal/sysutil"
)

// ChatRequest is the JSON payload for POST /chat.
type ChatRequest struct {
	Message   string `json:"message" binding:"required" example:"Привет! Что ты умеешь?"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// ChatResponse is the assistant reply.
type ChatResponse struct {
	Message        string `json:"message"`
	SessionID      string `json:"session_id"`
	Language       string `json:"language" example:"ru"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// Chat godoc
// @ID          chat
// @Summary     Chat with the assistant
// @Description Answers a conversational message within a session. A new session id is returned when none is given.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID"  example(analyst-1)
// @Param       body       body    handlers.ChatRequest  true  "Message"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Blocked by the safety guard"
// @Failure     502  {object}  handlers.ErrorResponse  "Language model unavailable"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}
	uid := sysutil.FirstNonEmpty(headerUserID(c), strings.TrimSpace(req.UserID), strings.TrimSpace(req.SessionID))

	r, err := h.deps.Chat.Reply(c.Request.Context(), req.SessionID, uid, req.Message)
	if err != nil {
		failService(c, err, h.deps.MaxQuestionRunes)
		return
	}
	ok(c, http.StatusOK, ChatResponse{
		Message:        r.Message,
		SessionID:      r.SessionID,
		Language:       string(r.Language),
		ResponseTimeMs: r.ResponseTime.Milliseconds(),
	})
}
