// Package handler exposes the cutting-room services over HTTP with gin.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/piwi3910/FabriCut/internal/engine"
	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/repository"
	"github.com/piwi3910/FabriCut/internal/service"
)

// PlanService is the cutting plan API used by the handlers.
type PlanService interface {
	CreatePlan(ctx context.Context, req *service.CreatePlanRequest) (*service.CreatePlanResult, error)
	UpdatePlan(ctx context.Context, req *service.UpdatePlanRequest) (*model.CuttingPlan, error)
	ApprovePlan(ctx context.Context, workspaceID, planID, approver string) (*model.CuttingPlan, error)
	GetPlan(ctx context.Context, workspaceID, planID string) (*model.CuttingPlan, error)
	ListPlans(ctx context.Context, f repository.PlanFilter) ([]*model.CuttingPlan, error)
	CompareLayouts(ctx context.Context, req *service.CompareLayoutsRequest) ([]engine.ComparisonResult, error)
}

// SheetService is the cutting sheet API used by the handlers.
type SheetService interface {
	StartSheet(ctx context.Context, req *service.StartSheetRequest) (*service.StartSheetResult, error)
	UpdateSheet(ctx context.Context, req *service.UpdateSheetRequest) (*service.UpdateSheetResult, error)
	SheetProgress(ctx context.Context, workspaceID, sheetID string) (model.SheetProgress, error)
	GetSheet(ctx context.Context, workspaceID, sheetID string) (*model.CuttingSheet, error)
	ListSheets(ctx context.Context, f repository.SheetFilter) ([]*model.CuttingSheet, error)
	ListPieces(ctx context.Context, workspaceID, sheetID string) ([]*model.CutPiece, error)
}

// LayPlanService is the lay planning API used by the handlers.
type LayPlanService interface {
	CreateLayPlan(ctx context.Context, req *service.CreateLayPlanRequest) (*service.CreateLayPlanResult, error)
	CreateBundles(ctx context.Context, req *service.CreateBundlesRequest) (*service.CreateBundlesResult, error)
	UpdateBundleStatus(ctx context.Context, req *service.UpdateBundleStatusRequest) (*model.CuttingBundle, error)
	GetLayPlan(ctx context.Context, workspaceID, id string) (*model.LayPlan, error)
	ApproveLayPlan(ctx context.Context, workspaceID, id, approver string) (*model.LayPlan, error)
	ListLayPlans(ctx context.Context, f repository.LayPlanFilter) ([]*model.LayPlan, error)
	ListBundles(ctx context.Context, workspaceID, layPlanID string) ([]*model.CuttingBundle, error)
	GetBundle(ctx context.Context, workspaceID, id string) (*model.CuttingBundle, error)
	Order(ctx context.Context, workspaceID, orderID string) (*model.Order, error)
}

// AuditService reads the audit trail.
type AuditService interface {
	ListAudit(ctx context.Context, workspaceID, entityType, entityID string) ([]*model.AuditRecord, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the HTTP handlers.
type Handlers struct {
	Plan    *PlanHandler
	Sheet   *SheetHandler
	LayPlan *LayPlanHandler
	Audit   *AuditHandler
	Import  *ImportHandler
	Health  *HealthHandler
}

// NewHandlers wires the handlers to their services.
func NewHandlers(plans PlanService, sheets SheetService, layPlans LayPlanService, audit AuditService, db Pinger, log *logger.Logger) *Handlers {
	return &Handlers{
		Plan:    &PlanHandler{plans: plans, sheets: sheets, log: log},
		Sheet:   &SheetHandler{sheets: sheets, log: log},
		LayPlan: &LayPlanHandler{layPlans: layPlans, log: log},
		Audit:   &AuditHandler{audit: audit},
		Import:  &ImportHandler{log: log},
		Health:  &HealthHandler{db: db},
	}
}

// Response wraps every successful JSON body.
type Response struct {
	Data interface{} `json:"data"`
}

// ListResponse is the data of list endpoints.
type ListResponse struct {
	Items  interface{} `json:"items"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Data: data})
}

// Created writes a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Data: data})
}

// Error writes err with the status of its code. Internal details never leave
// the process; they are attached to the gin context for the request log.
func Error(c *gin.Context, err error) {
	pub := errors.Public(err)
	if pub.Code == errors.ErrCodeInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(errors.HTTPStatus(pub.Code), pub)
}

// BadRequest reports a body that could not be decoded.
func BadRequest(c *gin.Context, err error) {
	Error(c, errors.InvalidInput("body", "invalid request body: "+err.Error()))
}

// pagination reads limit and offset query parameters.
func pagination(c *gin.Context) (limit, offset int, err error) {
	limit, err = queryInt(c, "limit", 50)
	if err != nil {
		return 0, 0, err
	}
	offset, err = queryInt(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if limit < 1 || limit > 500 {
		return 0, 0, errors.InvalidInput("limit", "limit must be between 1 and 500")
	}
	if offset < 0 {
		return 0, 0, errors.InvalidInput("offset", "offset cannot be negative")
	}
	return limit, offset, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidInput(key, key+" must be an integer")
	}
	return v, nil
}

func list(c *gin.Context, items interface{}, count, limit, offset int) {
	Success(c, ListResponse{Items: items, Count: count, Limit: limit, Offset: offset})
}
