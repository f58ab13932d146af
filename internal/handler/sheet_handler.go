package handler

import (
	"bytes"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/export"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/middleware"
	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/repository"
	"github.com/piwi3910/FabriCut/internal/service"
)

// SheetHandler serves /cutting-sheets.
type SheetHandler struct {
	sheets SheetService
	log    *logger.Logger
}

// ListSheets GET /cutting-sheets?plan_id=&order_id=&status=
func (h *SheetHandler) ListSheets(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		Error(c, err)
		return
	}
	sheets, err := h.sheets.ListSheets(c.Request.Context(), repository.SheetFilter{
		WorkspaceID: middleware.WorkspaceID(c),
		PlanID:      c.Query("plan_id"),
		OrderID:     c.Query("order_id"),
		Status:      model.SheetStatus(c.Query("status")),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		Error(c, err)
		return
	}
	list(c, sheets, len(sheets), limit, offset)
}

// GetSheet GET /cutting-sheets/:id
func (h *SheetHandler) GetSheet(c *gin.Context) {
	sheet, err := h.sheets.GetSheet(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, sheet)
}

// StartSheet POST /cutting-sheets/:id/start
func (h *SheetHandler) StartSheet(c *gin.Context) {
	var req service.StartSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	req.WorkspaceID = middleware.WorkspaceID(c)
	req.SheetID = c.Param("id")

	result, err := h.sheets.StartSheet(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}

// UpdateSheet PATCH /cutting-sheets/:id
func (h *SheetHandler) UpdateSheet(c *gin.Context) {
	var req service.UpdateSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	req.WorkspaceID = middleware.WorkspaceID(c)
	req.SheetID = c.Param("id")
	req.Actor = middleware.Actor(c)

	result, err := h.sheets.UpdateSheet(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}

// SheetProgress GET /cutting-sheets/:id/progress
func (h *SheetHandler) SheetProgress(c *gin.Context) {
	progress, err := h.sheets.SheetProgress(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, progress)
}

// ListPieces GET /cutting-sheets/:id/pieces
func (h *SheetHandler) ListPieces(c *gin.Context) {
	pieces, err := h.sheets.ListPieces(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	list(c, pieces, len(pieces), len(pieces), 0)
}

// ExportMarker GET /cutting-sheets/:id/marker.dxf
func (h *SheetHandler) ExportMarker(c *gin.Context) {
	sheet, err := h.sheets.GetSheet(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteMarkerDXF(&buf, sheet.Layout); err != nil {
		h.log.Error().Err(err).Str("sheet_id", sheet.ID).Msg("Marker export failed")
		Error(c, errors.Wrap(err, errors.ErrCodeInternal, "failed to render marker"))
		return
	}
	attachment(c, fmt.Sprintf("marker-%s-sheet-%d.dxf", sheet.PlanID, sheet.SheetNumber), contentTypeDXF, buf.Bytes())
}
