package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mlevan/hearth/internal/pkg/response"
	"github.com/mlevan/hearth/internal/repo"
)

// AuditHandler exposes the append-only grant history. Read only; nothing
// here can change or remove an entry.
type AuditHandler struct {
	logs *repo.AuditLogRepo
}

func NewAuditHandler(logs *repo.AuditLogRepo) *AuditHandler {
	return &AuditHandler{logs: logs}
}

func pageParams(c *gin.Context) (uint, uint) {
	limit := uint(50)
	offset := uint(0)
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 32); err == nil && parsed > 0 && parsed <= 200 {
			limit = uint(parsed)
		}
	}
	if value := c.Query("offset"); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 32); err == nil {
			offset = uint(parsed)
		}
	}
	return limit, offset
}

func (h *AuditHandler) ListRecent(c *gin.Context) {
	limit, offset := pageParams(c)
	items, err := h.logs.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}

func (h *AuditHandler) ListByTarget(c *gin.Context) {
	limit, offset := pageParams(c)
	items, err := h.logs.ListByTarget(c.Request.Context(), c.Param("target_type"), c.Param("target_id"), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items})
}
