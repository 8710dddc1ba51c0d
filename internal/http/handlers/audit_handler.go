package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sql-assistant/internal/domain"
	"github.com/tbourn/go-sql-assistant/internal/utils"
)

// ListAuditResponse wraps a page of audit rows and pagination information.
type ListAuditResponse struct {
	Items      []domain.QueryAudit `json:"items"`
	Pagination Pagination          `json:"pagination"`
}

// ListAudit godoc
// @ID          listAudit
// @Summary     List the audit trail (paginated)
// @Description Returns processed questions newest first, for one user or for everyone when user_id is empty.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Audit
// @Produce     json
//
// @Param       user_id        query   string  false "Filter by user"               example(analyst-1)
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListAuditResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Failure     503  {object} handlers.ErrorResponse "Audit trail disabled"
// @Router      /audit [get]
func (h *Handlers) ListAudit(c *gin.Context) {
	if h.deps.Audit == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail disabled")
		return
	}
	ctx := c.Request.Context()
	uid := strings.TrimSpace(c.Query("user_id"))
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"))

	// ETag pre-check (best effort).
	if count, newest, err := h.deps.Audit.Stats(ctx, uid); err == nil {
		var ts int64
		if newest != nil {
			ts = newest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"audit:%s:%d:%d:%d:%d"`, uid, count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.deps.Audit.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListAuditResponse{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
