package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PlanStatus is the lifecycle state of a cutting plan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "DRAFT"
	PlanApproved  PlanStatus = "APPROVED"
	PlanCancelled PlanStatus = "CANCELLED"
)

// Valid reports whether s is a known plan status.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanDraft, PlanApproved, PlanCancelled:
		return true
	}
	return false
}

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanDraft:    {PlanApproved, PlanCancelled},
	PlanApproved: {PlanCancelled},
}

// CanTransitionTo reports whether a plan may move from s to next.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	for _, allowed := range planTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SheetStatus is the execution state of a cutting sheet.
type SheetStatus string

const (
	SheetOpen      SheetStatus = "OPEN"
	SheetCutting   SheetStatus = "CUTTING"
	SheetCompleted SheetStatus = "COMPLETED"
	SheetCancelled SheetStatus = "CANCELLED"
)

// Valid reports whether s is a known sheet status.
func (s SheetStatus) Valid() bool {
	switch s {
	case SheetOpen, SheetCutting, SheetCompleted, SheetCancelled:
		return true
	}
	return false
}

// sheetTransitions lists the allowed next states for each sheet state.
var sheetTransitions = map[SheetStatus][]SheetStatus{
	SheetOpen:    {SheetCutting, SheetCancelled},
	SheetCutting: {SheetCompleted, SheetCancelled},
}

// CanTransitionTo reports whether a sheet may move from s to next.
func (s SheetStatus) CanTransitionTo(next SheetStatus) bool {
	for _, allowed := range sheetTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s SheetStatus) Terminal() bool {
	return len(sheetTransitions[s]) == 0
}

// QualityCheck is the QC result recorded against a cut piece.
type QualityCheck string

const (
	QCOpen QualityCheck = "OPEN"
	QCPass QualityCheck = "PASS"
	QCFail QualityCheck = "FAIL"
)

// BatchStatus is the state of a fabric batch. Transitions only move forward.
type BatchStatus string

const (
	BatchAvailable  BatchStatus = "AVAILABLE_FOR_CUTTING"
	BatchLayPlanned BatchStatus = "LAY_PLANNED"
	BatchConsumed   BatchStatus = "CONSUMED"
)

// LayPlanStatus is the lifecycle state of a lay plan.
type LayPlanStatus string

const (
	LayPlanPlanned        LayPlanStatus = "PLANNED"
	LayPlanApproved       LayPlanStatus = "APPROVED"
	LayPlanBundlesCreated LayPlanStatus = "BUNDLES_CREATED"
)

// AcceptsBundles reports whether bundles may be generated for a lay plan in this state.
func (s LayPlanStatus) AcceptsBundles() bool {
	return s == LayPlanPlanned || s == LayPlanApproved
}

// BundleStatus is the floor state of a cutting bundle.
type BundleStatus string

const (
	BundleReady      BundleStatus = "READY_FOR_CUTTING"
	BundleInProgress BundleStatus = "IN_PROGRESS"
	BundleDone       BundleStatus = "DONE"
)

var bundleOrder = map[BundleStatus]int{
	BundleReady:      0,
	BundleInProgress: 1,
	BundleDone:       2,
}

// CanAdvanceTo reports whether a bundle may move from s to next. Only single
// forward steps are allowed.
func (s BundleStatus) CanAdvanceTo(next BundleStatus) bool {
	from, ok1 := bundleOrder[s]
	to, ok2 := bundleOrder[next]
	return ok1 && ok2 && to == from+1
}

// Order is the subset of an order record the cutting room needs.
type Order struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	PONumber    string `json:"po_number"`
	ProductType string `json:"product_type"`
	TotalQty    int    `json:"total_qty"`
	Brand       string `json:"brand"`
	BrandCode   string `json:"brand_code,omitempty"`
	Client      string `json:"client"`
}

// OrderItem is a size/color line of an order.
type OrderItem struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	OrderID     string          `json:"order_id"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// PlanCost breaks down the money spent on a cutting plan.
type PlanCost struct {
	Currency   string          `json:"currency"`
	FabricCost decimal.Decimal `json:"fabric_cost"`
	WasteCost  decimal.Decimal `json:"waste_cost"`
	LabourCost decimal.Decimal `json:"labour_cost"`
	Total      decimal.Decimal `json:"total"`
}

// CuttingPlan is the persisted result of nesting an order's pieces.
type CuttingPlan struct {
	ID              string          `json:"id"`
	WorkspaceID     string          `json:"workspace_id"`
	OrderID         string          `json:"order_id"`
	Name            string          `json:"plan_name"`
	Fabric          FabricSpec      `json:"fabric"`
	FabricLengthCM  float64         `json:"fabric_length_cm"`
	UtilizationPct  float64         `json:"utilization_pct"`
	WastePct        float64         `json:"waste_pct"`
	WasteAreaCM2    float64         `json:"waste_area_cm2"`
	TotalPieces     int             `json:"total_pieces"`
	CuttingTimeMins float64         `json:"cutting_time_mins"`
	Cost            PlanCost        `json:"cost"`
	Status          PlanStatus      `json:"status"`
	Risk            *RiskVerdict    `json:"risk,omitempty"`
	ApprovedBy      *string         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Sheets          []*CuttingSheet `json:"sheets,omitempty"`
}

// CuttingSheet is one physical sheet of a plan.
type CuttingSheet struct {
	ID            string               `json:"id"`
	WorkspaceID   string               `json:"workspace_id"`
	PlanID        string               `json:"plan_id"`
	OrderID       string               `json:"order_id"`
	SheetNumber   int                  `json:"sheet_number"`
	FabricType    string               `json:"fabric_type"`
	WidthCM       float64              `json:"width_cm"`
	LengthCM      float64              `json:"length_cm"`
	PiecesCount   int                  `json:"pieces_count"`
	Layout        SheetLayout          `json:"layout_data"`
	Status        SheetStatus          `json:"status"`
	CutBy         *string              `json:"cut_by,omitempty"`
	CuttingMethod *string              `json:"cutting_method,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
	Instructions  *CuttingInstructions `json:"cutting_instructions,omitempty"`
	StartRisk     *RiskVerdict         `json:"start_risk,omitempty"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// CutPiece records pieces actually cut from a sheet.
type CutPiece struct {
	ID           string       `json:"id"`
	WorkspaceID  string       `json:"workspace_id"`
	SheetID      string       `json:"sheet_id"`
	OrderItemID  string       `json:"order_item_id"`
	PieceName    string       `json:"piece_name"`
	Size         string       `json:"size"`
	Color        string       `json:"color"`
	Quantity     int          `json:"quantity"`
	PositionX    float64      `json:"position_x"`
	PositionY    float64      `json:"position_y"`
	QualityCheck QualityCheck `json:"quality_check"`
	DefectNotes  *string      `json:"defect_notes,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// SheetProgress is derived from the cut pieces of a sheet; it is never stored.
type SheetProgress struct {
	SheetID     string `json:"sheet_id"`
	TotalPieces int    `json:"total_pieces"`
	CutPieces   int    `json:"cut_pieces"`
	PassedQC    int    `json:"passed_qc"`
	FailedQC    int    `json:"failed_qc"`
}

// InstructionStep is one line of the operator's cutting list.
type InstructionStep struct {
	Sequence  int     `json:"sequence"`
	Shelf     int     `json:"shelf"`
	PieceName string  `json:"piece_name"`
	Size      string  `json:"size,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	WidthCM   float64 `json:"width_cm"`
	HeightCM  float64 `json:"height_cm"`
	Rotated   bool    `json:"rotated"`
}

// CuttingInstructions is generated once when a sheet starts cutting.
type CuttingInstructions struct {
	SheetNumber int               `json:"sheet_number"`
	Operator    string            `json:"operator"`
	Method      string            `json:"method"`
	Steps       []InstructionStep `json:"steps"`
	Notes       []string          `json:"notes"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// FabricBatch is a roll lot issued from the warehouse for cutting.
type FabricBatch struct {
	ID              string      `json:"id"`
	WorkspaceID     string      `json:"workspace_id"`
	FabricIssueID   string      `json:"fabric_issue_id"`
	FabricType      string      `json:"fabric_type"`
	MetersRequested float64     `json:"meters_requested"`
	MetersActual    float64     `json:"meters_actual"`
	WidthCM         float64     `json:"width_cm"`
	GSM             float64     `json:"gsm"`
	QualityGrade    string      `json:"quality_grade"`
	Status          BatchStatus `json:"status"`
	LayPlanID       *string     `json:"lay_plan_id,omitempty"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// MetersAvailable prefers the measured length over the requested one.
func (b FabricBatch) MetersAvailable() float64 {
	if b.MetersActual > 0 {
		return b.MetersActual
	}
	return b.MetersRequested
}

// LayConfiguration describes how fabric is spread on the cutting table.
type LayConfiguration struct {
	TableWidthCM           float64 `json:"table_width_cm" validate:"gt=0"`
	MaxLayHeight           int     `json:"max_lay_height" validate:"gte=0"`
	FabricDirection        string  `json:"fabric_direction"`
	MarkerEfficiencyTarget float64 `json:"marker_efficiency_target" validate:"gt=0,lte=1"`
	AllowPatternRotation   bool    `json:"allow_pattern_rotation"`
}

// LayPlanEstimate is the output of the marker estimator.
type LayPlanEstimate struct {
	MarkerWidthCM        float64 `json:"marker_width_cm"`
	MarkerLengthM        float64 `json:"marker_length_m"`
	Plies                float64 `json:"plies"`
	EstimatedEfficiency  float64 `json:"estimated_efficiency"`
	FabricUtilization    float64 `json:"fabric_utilization"`
	FabricMetersRequired float64 `json:"fabric_meters_required"`
	WastePercentage      float64 `json:"waste_percentage"`
	CuttingTimeMinutes   float64 `json:"cutting_time_minutes"`
	RiskInputs           Signals `json:"risk_inputs"`
}

// LayPlan assigns a fabric batch to an order's size breakdown.
type LayPlan struct {
	ID               string           `json:"id"`
	WorkspaceID      string           `json:"workspace_id"`
	FabricIssueID    string           `json:"fabric_issue_id"`
	FabricBatchID    string           `json:"fabric_batch_id"`
	OrderID          string           `json:"order_id"`
	Configuration    LayConfiguration `json:"lay_configuration"`
	SizeBreakdown    map[string]int   `json:"size_breakdown"`
	Estimate         LayPlanEstimate  `json:"estimate"`
	Risk             RiskVerdict      `json:"risk"`
	Status           LayPlanStatus    `json:"status"`
	BundleCount      int              `json:"bundle_count"`
	BundlesCreatedAt *time.Time       `json:"bundles_created_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// BundleLine is one size/quantity entry of a bundle request.
type BundleLine struct {
	Size     string `json:"size" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// CuttingBundle is a group of cut pieces handed to sewing.
type CuttingBundle struct {
	ID            string         `json:"id"`
	WorkspaceID   string         `json:"workspace_id"`
	LayPlanID     string         `json:"lay_plan_id"`
	BundleNumber  string         `json:"bundle_number"`
	Sequence      int            `json:"sequence"`
	SizeBreakdown map[string]int `json:"size_breakdown"`
	TotalPieces   int            `json:"total_pieces"`
	Status        BundleStatus   `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// AuditEvent is recorded after every committed mutation.
type AuditEvent struct {
	WorkspaceID string      `json:"workspace_id"`
	EntityType  string      `json:"entity_type"`
	EntityID    string      `json:"entity_id"`
	Action      string      `json:"action"`
	Actor       string      `json:"actor,omitempty"`
	Before      interface{} `json:"before,omitempty"`
	After       interface{} `json:"after,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// AuditRecord is an audit event as read back from storage.
type AuditRecord struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Action      string          `json:"action"`
	Actor       string          `json:"actor,omitempty"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
