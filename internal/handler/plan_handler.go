package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/export"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/middleware"
	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/repository"
	"github.com/piwi3910/FabriCut/internal/service"
)

// Content types of the export endpoints.
const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeDXF  = "application/dxf"
)

// PlanHandler serves /cutting-plans.
type PlanHandler struct {
	plans  PlanService
	sheets SheetService
	log    *logger.Logger
}

// CreatePlan POST /cutting-plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req service.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	req.WorkspaceID = middleware.WorkspaceID(c)
	req.Actor = middleware.Actor(c)

	result, err := h.plans.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, result)
}

// ListPlans GET /cutting-plans?order_id=&status=
func (h *PlanHandler) ListPlans(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		Error(c, err)
		return
	}
	plans, err := h.plans.ListPlans(c.Request.Context(), repository.PlanFilter{
		WorkspaceID: middleware.WorkspaceID(c),
		OrderID:     c.Query("order_id"),
		Status:      model.PlanStatus(c.Query("status")),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		Error(c, err)
		return
	}
	list(c, plans, len(plans), limit, offset)
}

// GetPlan GET /cutting-plans/:id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	plan, err := h.plans.GetPlan(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, plan)
}

// UpdatePlan PATCH /cutting-plans/:id
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	var req service.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	req.WorkspaceID = middleware.WorkspaceID(c)
	req.PlanID = c.Param("id")
	req.Actor = middleware.Actor(c)

	plan, err := h.plans.UpdatePlan(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, plan)
}

type approveInput struct {
	ApprovedBy string `json:"approved_by"`
}

// ApprovePlan POST /cutting-plans/:id/approve
// The approver defaults to the X-Actor header.
func (h *PlanHandler) ApprovePlan(c *gin.Context) {
	var input approveInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			BadRequest(c, err)
			return
		}
	}
	approver := input.ApprovedBy
	if approver == "" {
		approver = middleware.Actor(c)
	}

	plan, err := h.plans.ApprovePlan(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"), approver)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, plan)
}

// CompareLayouts POST /cutting-plans/compare
func (h *PlanHandler) CompareLayouts(c *gin.Context) {
	var req service.CompareLayoutsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	results, err := h.plans.CompareLayouts(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, results)
}

// ListPlanSheets GET /cutting-plans/:id/sheets
func (h *PlanHandler) ListPlanSheets(c *gin.Context) {
	ws := middleware.WorkspaceID(c)
	planID := c.Param("id")
	if _, err := h.plans.GetPlan(c.Request.Context(), ws, planID); err != nil {
		Error(c, err)
		return
	}
	sheets, err := h.sheets.ListSheets(c.Request.Context(), repository.SheetFilter{
		WorkspaceID: ws,
		PlanID:      planID,
		Status:      model.SheetStatus(c.Query("status")),
		Limit:       500,
	})
	if err != nil {
		Error(c, err)
		return
	}
	list(c, sheets, len(sheets), 500, 0)
}

// ExportPlan GET /cutting-plans/:id/export?format=pdf|xlsx
func (h *PlanHandler) ExportPlan(c *gin.Context) {
	plan, err := h.plans.GetPlan(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	doc := export.FromPlan(plan)

	var buf bytes.Buffer
	var contentType, ext string
	switch format := c.DefaultQuery("format", "pdf"); format {
	case "pdf":
		contentType, ext = contentTypePDF, "pdf"
		err = export.WritePDF(&buf, doc)
	case "xlsx":
		contentType, ext = contentTypeXLSX, "xlsx"
		err = export.WriteWorkbook(&buf, doc)
	default:
		Error(c, errors.InvalidInput("format", "format must be pdf or xlsx"))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("plan_id", plan.ID).Msg("Plan export failed")
		Error(c, errors.Wrap(err, errors.ErrCodeInternal, "failed to render export"))
		return
	}

	attachment(c, fmt.Sprintf("cutting-plan-%s.%s", plan.ID, ext), contentType, buf.Bytes())
}

// attachment writes a rendered file. Exports render to a buffer first so a
// failure can still produce a JSON error.
func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Data(http.StatusOK, contentType, data)
}
