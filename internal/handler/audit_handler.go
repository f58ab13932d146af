package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/piwi3910/FabriCut/internal/middleware"
)

// AuditHandler serves /audit.
type AuditHandler struct {
	audit AuditService
}

// ListAudit GET /audit/:entity_type/:entity_id
func (h *AuditHandler) ListAudit(c *gin.Context) {
	records, err := h.audit.ListAudit(c.Request.Context(), middleware.WorkspaceID(c), c.Param("entity_type"), c.Param("entity_id"))
	if err != nil {
		Error(c, err)
		return
	}
	list(c, records, len(records), len(records), 0)
}
