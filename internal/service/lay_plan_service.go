package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/piwi3910/FabriCut/internal/client"
	"github.com/piwi3910/FabriCut/internal/engine"
	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/repository"
	"github.com/piwi3910/FabriCut/internal/risk"
)

// LayPlanService assigns fabric batches to lays and splits lays into
// bundles for sewing.
type LayPlanService struct {
	layPlans  LayPlanStore
	bundles   BundleStore
	batches   BatchStore
	orders    client.OrderSource
	estimator engine.LayPlanEstimator
	risk      risk.Evaluator
	audit     AuditDispatcher
	log       *logger.Logger
	now       func() time.Time
}

// NewLayPlanService creates a new lay plan service
func NewLayPlanService(
	layPlans LayPlanStore,
	bundles BundleStore,
	batches BatchStore,
	orders client.OrderSource,
	estimator engine.LayPlanEstimator,
	evaluator risk.Evaluator,
	audit AuditDispatcher,
	log *logger.Logger,
) *LayPlanService {
	return &LayPlanService{
		layPlans:  layPlans,
		bundles:   bundles,
		batches:   batches,
		orders:    orders,
		estimator: estimator,
		risk:      evaluator,
		audit:     audit,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateLayPlanRequest represents a create lay plan request
type CreateLayPlanRequest struct {
	WorkspaceID   string                 `json:"-" validate:"required"`
	FabricIssueID string                 `json:"fabric_issue_id" validate:"required"`
	FabricBatchID string                 `json:"fabric_batch_id" validate:"required"`
	OrderID       string                 `json:"order_id" validate:"required"`
	Configuration model.LayConfiguration `json:"lay_configuration"`
	SizeBreakdown map[string]int         `json:"size_breakdown" validate:"required,min=1,dive,keys,required,endkeys,gte=0"`
	Actor         string                 `json:"-"`
}

// CreateLayPlanResult is the stored lay plan with its gating verdict.
type CreateLayPlanResult struct {
	LayPlan *model.LayPlan    `json:"lay_plan"`
	Verdict model.RiskVerdict `json:"verdict"`
}

// CreateBundlesRequest represents a create bundles request. Without a
// bundle configuration the lay plan's size breakdown is used.
type CreateBundlesRequest struct {
	WorkspaceID         string             `json:"-" validate:"required"`
	LayPlanID           string             `json:"-" validate:"required"`
	BundleSize          int                `json:"bundle_size" validate:"gt=0"`
	BundleConfiguration []model.BundleLine `json:"bundle_configuration,omitempty" validate:"dive"`
	Actor               string             `json:"-"`
}

// CreateBundlesResult is the updated lay plan and its bundles.
type CreateBundlesResult struct {
	LayPlan *model.LayPlan         `json:"lay_plan"`
	Bundles []*model.CuttingBundle `json:"bundles"`
}

// UpdateBundleStatusRequest represents a bundle status change
type UpdateBundleStatusRequest struct {
	WorkspaceID string             `json:"-" validate:"required"`
	BundleID    string             `json:"-" validate:"required"`
	Status      model.BundleStatus `json:"status" validate:"required,oneof=READY_FOR_CUTTING IN_PROGRESS DONE"`
	Actor       string             `json:"-"`
}

// CreateLayPlan estimates the lay, gates it and claims the fabric batch.
// A RED verdict leaves the batch untouched.
func (s *LayPlanService) CreateLayPlan(ctx context.Context, req *CreateLayPlanRequest) (_ *CreateLayPlanResult, err error) {
	ctx, span := startSpan(ctx, "LayPlanService.CreateLayPlan", req.WorkspaceID,
		attribute.String("fabric_batch_id", req.FabricBatchID),
		attribute.String("order_id", req.OrderID))
	defer func() { endSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, req.WorkspaceID, req.OrderID)
	if err != nil {
		return nil, internal(err, "failed to look up order")
	}

	batch, err := s.batches.Get(ctx, req.WorkspaceID, req.FabricBatchID)
	if err != nil {
		return nil, internal(err, "failed to get fabric batch")
	}
	if batch.FabricIssueID != req.FabricIssueID {
		return nil, errors.InvalidInput("fabric_batch_id", "fabric batch does not belong to the fabric issue")
	}
	if batch.Status != model.BatchAvailable || batch.LayPlanID != nil {
		return nil, errors.Conflict("Fabric batch %s is %s and cannot be lay planned", batch.ID, batch.Status)
	}

	estimate, err := s.estimator.Estimate(*batch, req.SizeBreakdown, req.Configuration)
	if err != nil {
		return nil, err
	}

	verdict, err := s.risk.Evaluate(ctx, model.ContextLayPlanning, estimate.RiskInputs)
	if err != nil {
		s.log.Error().Err(err).Str("fabric_batch_id", batch.ID).Msg("Risk evaluation failed")
		return nil, internal(err, "risk evaluation failed")
	}
	if verdict.Blocking() {
		s.log.Warn().
			Str("workspace_id", req.WorkspaceID).
			Str("fabric_batch_id", batch.ID).
			Int("issues", len(verdict.Issues)).
			Msg("Lay plan blocked by risk gate")
		return nil, errors.RiskBlocked(verdict)
	}

	plan := &model.LayPlan{
		WorkspaceID:   req.WorkspaceID,
		FabricIssueID: req.FabricIssueID,
		FabricBatchID: batch.ID,
		OrderID:       order.ID,
		Configuration: req.Configuration,
		SizeBreakdown: req.SizeBreakdown,
		Estimate:      estimate,
		Risk:          verdict,
		Status:        model.LayPlanPlanned,
	}
	if err := s.layPlans.Create(ctx, plan); err != nil {
		if errors.Is(err, errors.ErrCodeConflict) {
			s.log.Warn().Str("fabric_batch_id", batch.ID).Msg("Fabric batch claimed by another lay plan")
		}
		return nil, internal(err, "failed to create lay plan")
	}

	s.log.Info().
		Str("workspace_id", req.WorkspaceID).
		Str("lay_plan_id", plan.ID).
		Str("fabric_batch_id", batch.ID).
		Str("risk", string(verdict.Risk)).
		Float64("meters_required", estimate.FabricMetersRequired).
		Msg("Lay plan created")

	s.audit.Dispatch(ctx, model.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EntityType:  EntityLayPlan,
		EntityID:    plan.ID,
		Action:      "create",
		Actor:       req.Actor,
		After:       plan,
	})
	s.audit.Dispatch(ctx, model.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EntityType:  EntityFabricBatch,
		EntityID:    batch.ID,
		Action:      "lay_planned",
		Actor:       req.Actor,
		Before:      map[string]interface{}{"status": batch.Status},
		After:       map[string]interface{}{"status": model.BatchLayPlanned, "lay_plan_id": plan.ID},
	})

	return &CreateLayPlanResult{LayPlan: plan, Verdict: verdict}, nil
}

// CreateBundles splits a lay plan into numbered bundles and marks the plan
// BUNDLES_CREATED.
func (s *LayPlanService) CreateBundles(ctx context.Context, req *CreateBundlesRequest) (_ *CreateBundlesResult, err error) {
	ctx, span := startSpan(ctx, "LayPlanService.CreateBundles", req.WorkspaceID, attribute.String("lay_plan_id", req.LayPlanID))
	defer func() { endSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	plan, err := s.layPlans.Get(ctx, req.WorkspaceID, req.LayPlanID)
	if err != nil {
		return nil, internal(err, "failed to get lay plan")
	}
	if !plan.Status.AcceptsBundles() {
		return nil, errors.Conflict("Cannot create bundles for lay plan in %s status", plan.Status)
	}

	lines := req.BundleConfiguration
	if len(lines) == 0 {
		lines = engine.LinesFromBreakdown(plan.SizeBreakdown, nil)
	}
	var requested, planned int
	for _, l := range lines {
		requested += l.Quantity
	}
	for _, q := range plan.SizeBreakdown {
		planned += q
	}
	if requested != planned {
		return nil, errors.InvalidInput("bundle_configuration",
			fmt.Sprintf("bundle configuration has %d pieces but the lay plan has %d", requested, planned))
	}

	slices, err := engine.PartitionBundles(lines, req.BundleSize)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, req.WorkspaceID, plan.OrderID)
	if err != nil {
		return nil, internal(err, "failed to look up order")
	}
	brand := order.BrandCode
	if brand == "" {
		brand = engine.BrandCode(order.Brand)
	}

	bundles := make([]*model.CuttingBundle, 0, len(slices))
	for _, sl := range slices {
		bundles = append(bundles, &model.CuttingBundle{
			WorkspaceID:   req.WorkspaceID,
			LayPlanID:     plan.ID,
			BundleNumber:  engine.BundleNumber(brand, order.PONumber, sl.Sequence, len(slices)),
			Sequence:      sl.Sequence,
			SizeBreakdown: sl.SizeBreakdown,
			TotalPieces:   sl.TotalPieces,
			Status:        model.BundleReady,
		})
	}

	updated, err := s.layPlans.CreateBundles(ctx, req.WorkspaceID, plan.ID, bundles, s.now())
	if err != nil {
		return nil, internal(err, "failed to create bundles")
	}

	s.log.Info().
		Str("workspace_id", req.WorkspaceID).
		Str("lay_plan_id", plan.ID).
		Int("bundles", len(bundles)).
		Int("pieces", planned).
		Msg("Cutting bundles created")

	s.audit.Dispatch(ctx, model.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EntityType:  EntityLayPlan,
		EntityID:    plan.ID,
		Action:      "bundles_created",
		Actor:       req.Actor,
		Before:      map[string]interface{}{"status": plan.Status},
		After:       map[string]interface{}{"status": updated.Status, "bundle_count": updated.BundleCount},
	})

	return &CreateBundlesResult{LayPlan: updated, Bundles: bundles}, nil
}

// ApproveLayPlan signs off a PLANNED lay plan so the cutting room can
// bundle it.
func (s *LayPlanService) ApproveLayPlan(ctx context.Context, workspaceID, id, approver string) (_ *model.LayPlan, err error) {
	ctx, span := startSpan(ctx, "LayPlanService.ApproveLayPlan", workspaceID, attribute.String("lay_plan_id", id))
	defer func() { endSpan(span, err) }()

	if workspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	if approver == "" {
		return nil, errors.InvalidInput("approved_by", "approver is required")
	}

	plan, err := s.layPlans.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, internal(err, "failed to get lay plan")
	}
	if plan.Status != model.LayPlanPlanned {
		return nil, errors.Conflict("Cannot approve lay plan in %s status", plan.Status)
	}

	updated, err := s.layPlans.Approve(ctx, workspaceID, plan.ID)
	if err != nil {
		return nil, internal(err, "failed to approve lay plan")
	}

	s.log.Info().
		Str("workspace_id", workspaceID).
		Str("lay_plan_id", plan.ID).
		Str("approved_by", approver).
		Msg("Lay plan approved")

	s.audit.Dispatch(ctx, model.AuditEvent{
		WorkspaceID: workspaceID,
		EntityType:  EntityLayPlan,
		EntityID:    plan.ID,
		Action:      "approve",
		Actor:       approver,
		Before:      map[string]interface{}{"status": plan.Status},
		After:       map[string]interface{}{"status": updated.Status},
	})
	return updated, nil
}

// UpdateBundleStatus advances a bundle by one step.
func (s *LayPlanService) UpdateBundleStatus(ctx context.Context, req *UpdateBundleStatusRequest) (_ *model.CuttingBundle, err error) {
	ctx, span := startSpan(ctx, "LayPlanService.UpdateBundleStatus", req.WorkspaceID, attribute.String("bundle_id", req.BundleID))
	defer func() { endSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	bundle, err := s.bundles.Get(ctx, req.WorkspaceID, req.BundleID)
	if err != nil {
		return nil, internal(err, "failed to get cutting bundle")
	}
	if !bundle.Status.CanAdvanceTo(req.Status) {
		return nil, errors.Conflict("Cannot move cutting bundle from %s to %s", bundle.Status, req.Status)
	}

	updated, err := s.bundles.UpdateStatus(ctx, req.WorkspaceID, bundle.ID, bundle.Status, req.Status)
	if err != nil {
		return nil, internal(err, "failed to update cutting bundle")
	}

	s.log.Info().
		Str("workspace_id", req.WorkspaceID).
		Str("bundle_id", bundle.ID).
		Str("status", string(updated.Status)).
		Msg("Cutting bundle updated")

	s.audit.Dispatch(ctx, model.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EntityType:  EntityCuttingBundle,
		EntityID:    bundle.ID,
		Action:      "status_" + string(updated.Status),
		Actor:       req.Actor,
		Before:      map[string]interface{}{"status": bundle.Status},
		After:       map[string]interface{}{"status": updated.Status},
	})
	return updated, nil
}

// GetLayPlan returns one lay plan.
func (s *LayPlanService) GetLayPlan(ctx context.Context, workspaceID, id string) (*model.LayPlan, error) {
	if workspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	return readWithRetry(ctx, s.log, "get_lay_plan", func(ctx context.Context) (*model.LayPlan, error) {
		return s.layPlans.Get(ctx, workspaceID, id)
	})
}

// ListLayPlans returns the lay plans of a workspace.
func (s *LayPlanService) ListLayPlans(ctx context.Context, f repository.LayPlanFilter) ([]*model.LayPlan, error) {
	if f.WorkspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	return readWithRetry(ctx, s.log, "list_lay_plans", func(ctx context.Context) ([]*model.LayPlan, error) {
		return s.layPlans.List(ctx, f)
	})
}

// ListBundles returns the bundles of a lay plan in sequence order.
func (s *LayPlanService) ListBundles(ctx context.Context, workspaceID, layPlanID string) ([]*model.CuttingBundle, error) {
	if _, err := s.GetLayPlan(ctx, workspaceID, layPlanID); err != nil {
		return nil, err
	}
	return readWithRetry(ctx, s.log, "list_bundles", func(ctx context.Context) ([]*model.CuttingBundle, error) {
		return s.bundles.ListByLayPlan(ctx, workspaceID, layPlanID)
	})
}

// GetBundle returns one bundle.
func (s *LayPlanService) GetBundle(ctx context.Context, workspaceID, id string) (*model.CuttingBundle, error) {
	if workspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	return readWithRetry(ctx, s.log, "get_bundle", func(ctx context.Context) (*model.CuttingBundle, error) {
		return s.bundles.Get(ctx, workspaceID, id)
	})
}

// Order returns the order a lay plan or cutting plan belongs to.
func (s *LayPlanService) Order(ctx context.Context, workspaceID, orderID string) (*model.Order, error) {
	return s.orders.GetOrder(ctx, workspaceID, orderID)
}
