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

// LayPlanHandler serves /lay-plans and /bundles.
type LayPlanHandler struct {
	layPlans LayPlanService
	log      *logger.Logger
}

// CreateLayPlan POST /lay-plans
func (h *LayPlanHandler) CreateLayPlan(c *gin.Context) {
	var req service.CreateLayPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	req.WorkspaceID = middleware.WorkspaceID(c)
	req.Actor = middleware.Actor(c)

	result, err := h.layPlans.CreateLayPlan(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, result)
}

// ListLayPlans GET /lay-plans?order_id=&fabric_batch_id=&status=
func (h *LayPlanHandler) ListLayPlans(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		Error(c, err)
		return
	}
	plans, err := h.layPlans.ListLayPlans(c.Request.Context(), repository.LayPlanFilter{
		WorkspaceID:   middleware.WorkspaceID(c),
		OrderID:       c.Query("order_id"),
		FabricBatchID: c.Query("fabric_batch_id"),
		Status:        model.LayPlanStatus(c.Query("status")),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		Error(c, err)
		return
	}
	list(c, plans, len(plans), limit, offset)
}

// GetLayPlan GET /lay-plans/:id
func (h *LayPlanHandler) GetLayPlan(c *gin.Context) {
	plan, err := h.layPlans.GetLayPlan(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, plan)
}

// ApproveLayPlan POST /lay-plans/:id/approve
func (h *LayPlanHandler) ApproveLayPlan(c *gin.Context) {
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

	plan, err := h.layPlans.ApproveLayPlan(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"), approver)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, plan)
}

// CreateBundles POST /lay-plans/:id/bundles
func (h *LayPlanHandler) CreateBundles(c *gin.Context) {
	var req service.CreateBundlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	req.WorkspaceID = middleware.WorkspaceID(c)
	req.LayPlanID = c.Param("id")
	req.Actor = middleware.Actor(c)

	result, err := h.layPlans.CreateBundles(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, result)
}

// ListBundles GET /lay-plans/:id/bundles
func (h *LayPlanHandler) ListBundles(c *gin.Context) {
	bundles, err := h.layPlans.ListBundles(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	list(c, bundles, len(bundles), len(bundles), 0)
}

// BundleTickets GET /lay-plans/:id/bundles/tickets
func (h *LayPlanHandler) BundleTickets(c *gin.Context) {
	ctx := c.Request.Context()
	ws := middleware.WorkspaceID(c)

	plan, err := h.layPlans.GetLayPlan(ctx, ws, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	bundles, err := h.layPlans.ListBundles(ctx, ws, plan.ID)
	if err != nil {
		Error(c, err)
		return
	}
	if len(bundles) == 0 {
		Error(c, errors.Conflict("Lay plan %s has no bundles yet", plan.ID))
		return
	}
	order, err := h.layPlans.Order(ctx, ws, plan.OrderID)
	if err != nil {
		Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBundleTickets(&buf, export.TicketsFor(order, bundles)); err != nil {
		h.log.Error().Err(err).Str("lay_plan_id", plan.ID).Msg("Bundle ticket export failed")
		Error(c, errors.Wrap(err, errors.ErrCodeInternal, "failed to render tickets"))
		return
	}
	attachment(c, fmt.Sprintf("bundle-tickets-%s.pdf", plan.ID), contentTypePDF, buf.Bytes())
}

// GetBundle GET /bundles/:id
func (h *LayPlanHandler) GetBundle(c *gin.Context) {
	bundle, err := h.layPlans.GetBundle(c.Request.Context(), middleware.WorkspaceID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, bundle)
}

// UpdateBundleStatus PATCH /bundles/:id/status
func (h *LayPlanHandler) UpdateBundleStatus(c *gin.Context) {
	var req service.UpdateBundleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err)
		return
	}
	req.WorkspaceID = middleware.WorkspaceID(c)
	req.BundleID = c.Param("id")
	req.Actor = middleware.Actor(c)

	bundle, err := h.layPlans.UpdateBundleStatus(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, bundle)
}
