package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/logger"
	"github.com/piwi3910/FabriCut/internal/model"
	"github.com/piwi3910/FabriCut/internal/repository"
	"github.com/piwi3910/FabriCut/internal/risk"
)

// CuttingSheetService drives a sheet through OPEN, CUTTING and its terminal
// states and records the pieces cut from it.
type CuttingSheetService struct {
	sheets SheetStore
	plans  PlanStore
	risk   risk.Evaluator
	audit  AuditDispatcher
	log    *logger.Logger
	now    func() time.Time
}

// NewCuttingSheetService creates a new cutting sheet service
func NewCuttingSheetService(
	sheets SheetStore,
	plans PlanStore,
	evaluator risk.Evaluator,
	audit AuditDispatcher,
	log *logger.Logger,
) *CuttingSheetService {
	return &CuttingSheetService{
		sheets: sheets,
		plans:  plans,
		risk:   evaluator,
		audit:  audit,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// StartSheetRequest represents a start cutting request
type StartSheetRequest struct {
	WorkspaceID string `json:"-" validate:"required"`
	SheetID     string `json:"-" validate:"required"`
	Operator    string `json:"operator_name" validate:"max=100"`
	Method      string `json:"cutting_method" validate:"required,max=50"`
}

// StartSheetResult is the started sheet with its cutting instructions.
type StartSheetResult struct {
	Sheet        *model.CuttingSheet        `json:"sheet"`
	Instructions *model.CuttingInstructions `json:"cutting_instructions"`
	Verdict      model.RiskVerdict          `json:"verdict"`
}

// CutPieceRequest is one piece reported as cut.
type CutPieceRequest struct {
	PieceName    string             `json:"piece_name" validate:"required"`
	Size         string             `json:"size" validate:"required"`
	Color        string             `json:"color"`
	Quantity     int                `json:"quantity" validate:"gte=1"`
	PositionX    float64            `json:"position_x" validate:"gte=0"`
	PositionY    float64            `json:"position_y" validate:"gte=0"`
	QualityCheck model.QualityCheck `json:"quality_check" validate:"omitempty,oneof=OPEN PASS FAIL"`
	DefectNotes  *string            `json:"defect_notes,omitempty"`
}

// UpdateSheetRequest represents an update cutting sheet request
type UpdateSheetRequest struct {
	WorkspaceID string             `json:"-" validate:"required"`
	SheetID     string             `json:"-" validate:"required"`
	Status      *model.SheetStatus `json:"status,omitempty"`
	Notes       *string            `json:"notes,omitempty"`
	Pieces      []CutPieceRequest  `json:"pieces,omitempty" validate:"dive"`
	Actor       string             `json:"-"`
}

// UpdateSheetResult is the updated sheet and the pieces recorded with it.
type UpdateSheetResult struct {
	Sheet  *model.CuttingSheet `json:"sheet"`
	Pieces []*model.CutPiece   `json:"pieces"`
}

// StartSheet moves an OPEN sheet to CUTTING and generates the operator's
// cutting instructions, which are stored on the sheet.
func (s *CuttingSheetService) StartSheet(ctx context.Context, req *StartSheetRequest) (_ *StartSheetResult, err error) {
	ctx, span := startSpan(ctx, "CuttingSheetService.StartSheet", req.WorkspaceID, attribute.String("sheet_id", req.SheetID))
	defer func() { endSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	sheet, err := s.sheets.Get(ctx, req.WorkspaceID, req.SheetID)
	if err != nil {
		return nil, internal(err, "failed to get cutting sheet")
	}
	if sheet.Status != model.SheetOpen {
		return nil, errors.Conflict("Cannot start cutting sheet in %s status", sheet.Status)
	}

	plan, err := s.plans.Get(ctx, req.WorkspaceID, sheet.PlanID)
	if err != nil {
		return nil, internal(err, "failed to get cutting plan")
	}

	operator := strings.TrimSpace(req.Operator)
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	signals := model.Signals{
		risk.SignalOperator:   operator,
		risk.SignalMethod:     method,
		risk.SignalPieces:     sheet.PiecesCount,
		risk.SignalFabricType: sheet.FabricType,
	}
	verdict, err := s.risk.Evaluate(ctx, model.ContextCuttingStart, signals)
	if err != nil {
		s.log.Error().Err(err).Str("sheet_id", sheet.ID).Msg("Risk evaluation failed")
		return nil, internal(err, "risk evaluation failed")
	}
	if verdict.Blocking() {
		s.log.Warn().
			Str("workspace_id", req.WorkspaceID).
			Str("sheet_id", sheet.ID).
			Int("issues", len(verdict.Issues)).
			Msg("Cutting start blocked by risk gate")
		return nil, errors.RiskBlocked(verdict)
	}

	now := s.now()
	instructions := buildInstructions(sheet, plan.Fabric, operator, method, now)

	started, err := s.sheets.Start(ctx, req.WorkspaceID, sheet.ID, repository.StartSheet{
		Operator:     operator,
		Method:       method,
		Instructions: instructions,
		Risk:         &verdict,
		StartedAt:    now,
	})
	if err != nil {
		return nil, internal(err, "failed to start cutting sheet")
	}

	s.log.Info().
		Str("workspace_id", req.WorkspaceID).
		Str("sheet_id", sheet.ID).
		Str("operator", operator).
		Str("method", method).
		Str("risk", string(verdict.Risk)).
		Msg("Cutting sheet started")

	s.audit.Dispatch(ctx, model.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EntityType:  EntityCuttingSheet,
		EntityID:    sheet.ID,
		Action:      "start",
		Actor:       operator,
		Before:      map[string]interface{}{"status": sheet.Status},
		After:       map[string]interface{}{"status": started.Status, "cut_by": operator, "cutting_method": method},
	})

	return &StartSheetResult{Sheet: started, Instructions: instructions, Verdict: verdict}, nil
}

// UpdateSheet applies a status transition, notes and cut pieces together.
// Pieces can only be recorded while the sheet is CUTTING.
func (s *CuttingSheetService) UpdateSheet(ctx context.Context, req *UpdateSheetRequest) (_ *UpdateSheetResult, err error) {
	ctx, span := startSpan(ctx, "CuttingSheetService.UpdateSheet", req.WorkspaceID, attribute.String("sheet_id", req.SheetID))
	defer func() { endSpan(span, err) }()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Status == nil && req.Notes == nil && len(req.Pieces) == 0 {
		return nil, errors.InvalidInput("status", "nothing to update")
	}

	sheet, err := s.sheets.Get(ctx, req.WorkspaceID, req.SheetID)
	if err != nil {
		return nil, internal(err, "failed to get cutting sheet")
	}

	update := repository.SheetUpdate{From: sheet.Status, Notes: req.Notes}
	if req.Status != nil {
		if !sheet.Status.CanTransitionTo(*req.Status) {
			return nil, errors.Conflict("Cannot move cutting sheet from %s to %s", sheet.Status, *req.Status)
		}
		update.To = req.Status
		if *req.Status == model.SheetCompleted {
			update.CompletedAt = ptr(s.now())
		}
	}
	if len(req.Pieces) > 0 {
		if sheet.Status != model.SheetCutting {
			return nil, errors.Conflict("Cannot record cut pieces on a cutting sheet in %s status", sheet.Status)
		}
		for _, p := range req.Pieces {
			update.Pieces = append(update.Pieces, repository.CutPieceInput{
				PieceName:    p.PieceName,
				Size:         p.Size,
				Color:        p.Color,
				Quantity:     p.Quantity,
				PositionX:    p.PositionX,
				PositionY:    p.PositionY,
				QualityCheck: p.QualityCheck,
				DefectNotes:  p.DefectNotes,
			})
		}
	}

	updated, pieces, err := s.sheets.Update(ctx, req.WorkspaceID, sheet.ID, update)
	if err != nil {
		return nil, internal(err, "failed to update cutting sheet")
	}

	s.log.Info().
		Str("workspace_id", req.WorkspaceID).
		Str("sheet_id", sheet.ID).
		Str("status", string(updated.Status)).
		Int("pieces_recorded", len(pieces)).
		Msg("Cutting sheet updated")

	action := "update"
	if update.To != nil {
		action = "status_" + string(*update.To)
	}
	s.audit.Dispatch(ctx, model.AuditEvent{
		WorkspaceID: req.WorkspaceID,
		EntityType:  EntityCuttingSheet,
		EntityID:    sheet.ID,
		Action:      action,
		Actor:       req.Actor,
		Before:      map[string]interface{}{"status": sheet.Status, "notes": sheet.Notes},
		After:       map[string]interface{}{"status": updated.Status, "notes": updated.Notes, "pieces_recorded": len(pieces)},
	})

	if pieces == nil {
		pieces = []*model.CutPiece{}
	}
	return &UpdateSheetResult{Sheet: updated, Pieces: pieces}, nil
}

// SheetProgress returns the progress view of a sheet.
func (s *CuttingSheetService) SheetProgress(ctx context.Context, workspaceID, sheetID string) (model.SheetProgress, error) {
	if workspaceID == "" {
		return model.SheetProgress{}, errors.InvalidInput("workspace_id", "workspace is required")
	}
	return readWithRetry(ctx, s.log, "sheet_progress", func(ctx context.Context) (model.SheetProgress, error) {
		return s.sheets.Progress(ctx, workspaceID, sheetID)
	})
}

// GetSheet returns one sheet.
func (s *CuttingSheetService) GetSheet(ctx context.Context, workspaceID, sheetID string) (*model.CuttingSheet, error) {
	if workspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	return readWithRetry(ctx, s.log, "get_sheet", func(ctx context.Context) (*model.CuttingSheet, error) {
		return s.sheets.Get(ctx, workspaceID, sheetID)
	})
}

// ListSheets returns the sheets of a workspace.
func (s *CuttingSheetService) ListSheets(ctx context.Context, f repository.SheetFilter) ([]*model.CuttingSheet, error) {
	if f.WorkspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, errors.InvalidInput("status", "unknown sheet status: "+string(f.Status))
	}
	return readWithRetry(ctx, s.log, "list_sheets", func(ctx context.Context) ([]*model.CuttingSheet, error) {
		return s.sheets.List(ctx, f)
	})
}

// ListPieces returns the pieces cut from a sheet.
func (s *CuttingSheetService) ListPieces(ctx context.Context, workspaceID, sheetID string) ([]*model.CutPiece, error) {
	if workspaceID == "" {
		return nil, errors.InvalidInput("workspace_id", "workspace is required")
	}
	if _, err := s.GetSheet(ctx, workspaceID, sheetID); err != nil {
		return nil, err
	}
	return readWithRetry(ctx, s.log, "list_pieces", func(ctx context.Context) ([]*model.CutPiece, error) {
		return s.sheets.Pieces(ctx, workspaceID, sheetID)
	})
}
