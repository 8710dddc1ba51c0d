package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ClearWarningsResponse reports whether a safety record existed.
type ClearWarningsResponse struct {
	UserID  string `json:"user_id"`
	Cleared bool   `json:"cleared"`
}

// HealthResponse reports liveness and dependency status.
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Warehouse string `json:"warehouse" example:"ok"`
	LLM       string `json:"llm" example:"ollama"`
}

// ClearWarnings godoc
// @ID          clearWarnings
// @Summary     Reset a user's safety record
// @Description Drops warnings and violations and lifts an active ban.
// @Tags        Safety
// @Produce     json
// @Param       user_id  path  string  true  "User ID"
// @Success     200  {object}  handlers.ClearWarningsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /safety/{user_id} [delete]
func (h *Handlers) ClearWarnings(c *gin.Context) {
	if h.deps.Safety == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "safety guard disabled")
		return
	}
	uid := strings.TrimSpace(c.Param("user_id"))
	if uid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}
	ok(c, http.StatusOK, ClearWarningsResponse{UserID: uid, Cleared: h.deps.Safety.ClearWarnings(uid)})
}

// Health godoc
// @ID          health
// @Summary     Liveness and dependency check
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Failure     503  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Warehouse: "disabled", LLM: h.deps.Provider}
	if resp.LLM == "" {
		resp.LLM = "disabled"
	}
	status := http.StatusOK
	if h.deps.Warehouse != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Warehouse.Ping(ctx); err != nil {
			resp.Status, resp.Warehouse = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Warehouse = "ok"
		}
	}
	c.JSON(status, resp)
}
