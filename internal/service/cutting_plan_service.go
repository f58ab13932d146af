package service

import (
	"context"
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

// CuttingPlanService nests an order's pieces, gates the result and persists
// the plan with its sheets.
type CuttingPlanService struct {
	plans    PlanStore
	orders   client.OrderSource
	risk     risk.Evaluator
	audit    AuditDispatcher
	settings model.PlanningSettings
	log      *logger.Logger
	now      func() time.Time
}

// NewCuttingPlanService creates a new cutting plan service
func NewCuttingPlanService(
	plans PlanStore,
	orders client.OrderSource,
	evaluator risk.Evaluator,
	audit AuditDispatcher,
	settings model.PlanningSettings,
	log *logger.Logger,
) *CuttingPlanService {
	return &CuttingPlanService{
		plans:    plans,
		orders:   orders,
		risk:     evaluator,
		audit:    audit,
		settings: settings,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// layoutSettings is the optimizer calibration with waste priced at the cost
// profile's fabric rate.
func (s *CuttingPlanService) layoutSettings() model.LayoutSettings {
	layout := s.settings.Layout
	if s.settings.Costs.FabricCostPerSqM > 0 {
		layout.CostPerSqMeter = s.settings.Costs.FabricCostPerSqM
	}
	return layout
}

// CreatePlanRequest represents a create cutting plan request
type CreatePlanRequest struct {
	WorkspaceID string            `json:"-" validate:"required"`
	OrderID     string            `json:"order_id" validate:"required"`
	PlanName    string            `json:"plan_name" validate:"required,max=200"`
	Fabric      model.FabricSpec  `json:"fabric"`
	Pieces      []model.PieceSpec `json:"pieces" validate:"required,min=1,dive"`
	Notes       *string           `json:"notes,omitempty"`
	Actor       string            `json:"-"`
}

// CreatePlanResult is the created plan together with the layout it was
// built from and the verdict that gated it.
type CreatePlanResult struct {
	Plan    *model.CuttingPlan `json:"plan"`
	Layout  model.LayoutResult `json:"layout"`
	Verdict model.RiskVerdict  `json:"verdict"`
}

// UpdatePlanRequest represents an update cutting plan request. Nil fields
// are left unchanged.
type UpdatePlanRequest struct {
	WorkspaceID string            `json:"-" validate:"required"`
	PlanID      string            `json:"-" validate:"required"`
	Status      *model.PlanStatus `json:"status,omitempty"`
	ApprovedBy  *string           `json:"approved_by,omitempty" validate:"omitempty,min=1,max=100"`
	Notes       *string           `json:"notes,omitempty"`
	Actor       string            `json:"-"`
}

// CompareLayoutsRequest asks for a what-if comparison. Without scenarios the
// default variations around Fabric are used.
type CompareLayoutsRequest struct {
	Fabric    model.FabricSpec            `json:"fabric"`
	Pieces    []model.PieceSpec           `json:"pieces" validate:"required,min=1,dive"`
	Scenarios []engine.ComparisonScenario `json:"scenarios,omitempty"`
}

// layoutSignals maps a layout onto the CUTTING_PLAN_CREATION risk inputs.
// Ratios are fractions, not percentages. The marker efficiency of a nested
// layout is its area utilization.
func layoutSignals(result model.LayoutResult) model.Signals {
	return model.Signals{
		risk.SignalUtilization: result.UtilizationPct / 100,
		risk.SignalEfficiency:  result.UtilizationPct / 100,
		risk.SignalWastePct:    result.WasteAnalysis.WastePercentage / 100,
		risk.SignalPieces:      result.TotalPieces(),
		risk.SignalTimeMins:    result.CuttingTimeEstimateMins,
		risk.SignalSheets:      len(result.Sheets),
	}
}

// CreatePlan lays out the pieces and stores the plan. A RED verdict stops
// the operation before anything is written.
func (s *CuttingPlanService) CreatePlan(ctx context.Context, req *CreatePlanRequest) (_ *CreatePlanResult, err error) {
	ctx, span := startSpan(ctx, "CuttingPlanService.CreatePlan", req.WorkspaceID, attribute.String("order_id", req.OrderID))
	defer func() { endSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, req.WorkspaceID, req.OrderID)
	if err != nil {
		return nil, internal(err, "failed to look up order")
	}

	result, err := engine.New(s.layoutSettings()).Optimize(req.Pieces, req.Fabric)
	if err != nil {
		return nil, err
	}

	verdict, err := s.risk.Evaluate(ctx, model.ContextCuttingPlanCreation, layoutSignals(result))
	if err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID).Msg("Risk evaluation failed")
		return nil, internal(err, "risk evaluation failed")
	}
	if verdict.Blocking() {
		s.log.Warn().
			Str("workspace_id", req.WorkspaceID).
			Str("order_id", order.ID).
			Int("issues", len(verdict.Issues)).
			Msg("Cutting plan blocked by risk gate")
		return nil, errors.RiskBlocked(verdict)
	}

	now := s.now()
	plan := &model.CuttingPlan{
		WorkspaceID:     req.WorkspaceID,
		OrderID:         order.ID,
		Name:            req.PlanName,
		Fabric:          req.Fabric,
		FabricLengthCM:  result.TotalFabricNeededCM,
		UtilizationPct:  result.UtilizationPct,
		WastePct:        result.WasteAnalysis.WastePercentage,
		WasteAreaCM2:    result.WasteAnalysis.WasteAreaCM2,
		TotalPieces:     result.TotalPieces(),
		CuttingTimeMins: result.CuttingTimeEstimateMins,
		Cost:            planCost(result, req.Fabric, s.settings.Costs),
		Status:          model.PlanDraft,
		Risk:            &verdict,
		Notes:           req.Notes,
	}
	if verdict.Risk == model.RiskGreen {
		plan.Status = model.PlanApproved
		plan.ApprovedBy = ptr(AutoApprover)
		plan.ApprovedAt = &now
	}
	for _, sl := range result.Sheets {
		plan.Sheets = append(plan.Sheets, &model.CuttingSheet{
			SheetNumber: sl.SheetNumber,
			FabricType:  req.Fabric.Type,
			WidthCM:     sl.Width,
			LengthCM:    sl.Length,
			PiecesCount: sl.PiecesCount(),
			Layout:      sl,
			Status:      model.SheetOpen,
		})
	}

	if err := s.plans.Create(ctx, plan); err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID).Msg("Failed to persist cutting plan")
		return nil, internal(err, "failed to create cutting plan")
	}

	ev := s.log.Info()
	if verdict.Risk == model.RiskAmber {
		ev = s.log.Warn().Int("issues", len(verdict.Issues))
	}
	ev.Str("workspace_id", plan.WorkspaceID).
		Str("plan_id", plan.ID).
		Str("status", string(plan.Status)).
		Str("risk", string(verdict.Risk)).
		Int("sheets", len(plan.Sheets)).
		Int("pieces", plan.TotalPieces).
		Msg("Cutting plan created")

	s.audit.Dispatch(ctx, model.AuditEvent{
		WorkspaceID: plan.WorkspaceID,
		EntityType:  EntityCuttingPlan,
		EntityID:    plan.ID,
		Action:      "create",
		Actor:       req.Actor,
		After:       plan,
	})

	return &CreatePlanResult{Plan: plan, Layout: result, Verdict: verdict}, nil
}

// UpdatePlan changes the status, approver or notes of a plan. Setting the
// current status again is not a transition and only updates the other fields.
func (s *CuttingPlanService) UpdatePlan(ctx context.Context, req *UpdatePlanRequest) (*model.CuttingPlan, error) {
	return s.updatePlan(ctx, req, false)
}

func (s *CuttingPlanService) updatePlan(ctx context.Context, req *UpdatePlanRequest, mustTransition bool) (_ *model.CuttingPlan, err error) {
	ctx, span := startSpan(ctx, "CuttingPlanService.UpdatePlan", req.WorkspaceID, attribute.String("plan_id", req.PlanID))
	defer func() { endSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, errors.InvalidInput("status", "unknown plan status: "+string(*req.Status))
	}

	current, err := s.plans.Get(ctx, req.WorkspaceID, req.PlanID)
	if err != nil {
		return nil, internal(err, "failed to get cutting plan")
	}

	if mustTransition && req.Status != nil && *req.Status == current.Status {
		return nil, errors.Conflict("Cannot approve cutting plan in %s status", current.Status)
	}

	update := repository.PlanUpdate{Notes: req.Notes, ApprovedBy: req.ApprovedBy}
	if req.Status != nil && *req.Status != current.Status {
		if !current.Status.CanTransitionTo(*req.Status) {
			return nil, errors.Conflict("Cannot move cutting plan from %s to %s", current.Status, *req.Status)
		}
		if *req.Status == model.PlanApproved {
			if req.ApprovedBy == nil {
				return nil, errors.InvalidInput("approved_by", "approver is required to approve a plan")
			}
			update.ApprovedAt = ptr(s.now())
		}
		update.Status = req.Status
		update.ExpectStatus = ptr(current.Status)
	}

	updated, err := s.plans.Update(ctx, req.WorkspaceID, req.PlanID, update)
	if err != nil {
		return nil, internal(err, "failed to update cutting plan")
	}
	updated.Sheets = current.Sheets

	action := "update"
	if update.Status != nil {
		action = "status_" + string(*update.Status)
	}
	s.log.Info().
		Str("workspace_id", req.WorkspaceID).
		Str("plan_id", req.PlanID).
		Str("status", string(updated.Status)).
		Msg("Cutting plan updated")

	current.Sheets = nil
	s.audit.Dispatch(ctx, model.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EntityType:  EntityCuttingPlan,
		EntityID:    req.PlanID,
		Action:      action,
		Actor:       req.Actor,
		Before:      current,
		After:       updated,
	})

	return updated, nil
}

// ApprovePlan approves a DRAFT plan, recording who approved it and when.
func (s *CuttingPlanService) ApprovePlan(ctx context.Context, workspaceID, planID, approver string) (*model.CuttingPlan, error) {
	if approver == "" {
		return nil, errors.InvalidInput("approved_by", "approver is required to approve a plan")
	}
	return s.updatePlan(ctx, &UpdatePlanRequest{
		WorkspaceID: workspaceID,
		PlanID:      planID,
		Status:      ptr(model.PlanApproved),
		ApprovedBy:  &approver,
		Actor:       approver,
	}, true)
}

// GetPlan returns a plan with its sheets.
func (s *CuttingPlanService) GetPlan(ctx context.Context, workspaceID, planID string) (*model.CuttingPlan, error) {
	if workspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	return readWithRetry(ctx, s.log, "get_plan", func(ctx context.Context) (*model.CuttingPlan, error) {
		return s.plans.Get(ctx, workspaceID, planID)
	})
}

// ListPlans returns the plans of a workspace.
func (s *CuttingPlanService) ListPlans(ctx context.Context, f repository.PlanFilter) ([]*model.CuttingPlan, error) {
	if f.WorkspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, errors.InvalidInput("status", "unknown plan status: "+string(f.Status))
	}
	return readWithRetry(ctx, s.log, "list_plans", func(ctx context.Context) ([]*model.CuttingPlan, error) {
		return s.plans.List(ctx, f)
	})
}

// CompareLayouts runs the optimizer for several fabric setups side by side.
// Nothing is persisted.
func (s *CuttingPlanService) CompareLayouts(ctx context.Context, req *CompareLayoutsRequest) ([]engine.ComparisonResult, error) {
	_, span := startSpan(ctx, "CuttingPlanService.CompareLayouts", "")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	scenarios := req.Scenarios
	if len(scenarios) == 0 {
		scenarios = engine.BuildDefaultScenarios(req.Fabric)
	}
	return engine.CompareScenarios(s.layoutSettings(), scenarios, req.Pieces), nil
}
