package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/middleware"
)

// RouterConfig holds the HTTP options the router needs.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(h *Handlers, log *logger.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders,
		middleware.HeaderWorkspace, middleware.HeaderActor, middleware.HeaderRequestID)
	corsCfg.ExposeHeaders = []string{middleware.HeaderRequestID, "Content-Disposition"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api/v1")
	api.Use(middleware.Workspace(), middleware.Timeout(cfg.RequestTimeout))

	plans := api.Group("/cutting-plans")
	plans.POST("", h.Plan.CreatePlan)
	plans.GET("", h.Plan.ListPlans)
	plans.POST("/compare", h.Plan.CompareLayouts)
	plans.GET("/:id", h.Plan.GetPlan)
	plans.PATCH("/:id", h.Plan.UpdatePlan)
	plans.POST("/:id/approve", h.Plan.ApprovePlan)
	plans.GET("/:id/sheets", h.Plan.ListPlanSheets)
	plans.GET("/:id/export", h.Plan.ExportPlan)

	sheets := api.Group("/cutting-sheets")
	sheets.GET("", h.Sheet.ListSheets)
	sheets.GET("/:id", h.Sheet.GetSheet)
	sheets.POST("/:id/start", h.Sheet.StartSheet)
	sheets.PATCH("/:id", h.Sheet.UpdateSheet)
	sheets.GET("/:id/progress", h.Sheet.SheetProgress)
	sheets.GET("/:id/pieces", h.Sheet.ListPieces)
	sheets.GET("/:id/marker.dxf", h.Sheet.ExportMarker)

	lay := api.Group("/lay-plans")
	lay.POST("", h.LayPlan.CreateLayPlan)
	lay.GET("", h.LayPlan.ListLayPlans)
	lay.GET("/:id", h.LayPlan.GetLayPlan)
	lay.POST("/:id/approve", h.LayPlan.ApproveLayPlan)
	lay.POST("/:id/bundles", h.LayPlan.CreateBundles)
	lay.GET("/:id/bundles", h.LayPlan.ListBundles)
	lay.GET("/:id/bundles/tickets", h.LayPlan.BundleTickets)

	bundles := api.Group("/bundles")
	bundles.GET("/:id", h.LayPlan.GetBundle)
	bundles.PATCH("/:id/status", h.LayPlan.UpdateBundleStatus)

	api.GET("/audit/:entity_type/:entity_id", h.Audit.ListAudit)
	api.POST("/imports/pieces", h.Import.ImportPieces)

	return r
}
