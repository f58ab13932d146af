package risk

import "github.com/piwi3910/FabriCut/internal/model"

// Cutting methods recognised on the floor.
const (
	MethodManual        = "MANUAL"
	MethodStraightKnife = "STRAIGHT_KNIFE"
	MethodBandKnife     = "BAND_KNIFE"
	MethodAutomatic     = "AUTOMATIC"
	MethodDie           = "DIE"
	MethodLaser         = "LASER"
)

// Signal keys shared by the services and the rule tables.
const (
	SignalUtilization    = "utilization"
	SignalEfficiency     = "efficiency"
	SignalWastePct       = "waste_pct"
	SignalPieces         = "pieces"
	SignalTimeMins       = "time_mins"
	SignalSheets         = "sheets"
	SignalOperator       = "operator"
	SignalMethod         = "method"
	SignalFabricType     = "fabric_type"
	SignalMetersRequired = "meters_required"
	SignalMetersAvail    = "meters_available"
	SignalQualityGrade   = "quality_grade"
	SignalSizeCount      = "size_count"
)

// Issue codes.
const (
	IssueFabricShortage = "fabric_shortage_risk"
	IssueLowEfficiency  = "low_marker_efficiency"
	IssueHighWaste      = "high_fabric_waste"
	IssueExcessiveWaste = "excessive_fabric_waste"
	IssueLongCutting    = "exceeds_shift"
	IssueLargePlan      = "large_plan"
	IssueNoOperator     = "no_operator"
	IssueUnknownMethod  = "unknown_cutting_method"
	IssueManualVolume   = "manual_high_volume"
	IssueUnknownFabric  = "unknown_fabric_type"
	IssueInsufficient   = "insufficient_fabric"
	IssueUnviableMarker = "unviable_marker"
	IssueLowGrade       = "low_fabric_grade"
	IssueRejectedFabric = "rejected_fabric"
	IssueManySizes      = "many_sizes"
)

// DefaultRules returns the production rule table.
func DefaultRules() RuleTable {
	return RuleTable{
		model.ContextCuttingPlanCreation: {
			{
				Code:           IssueFabricShortage,
				Severity:       model.RiskAmber,
				Message:        "Fabric shortage risk: utilization above 95% leaves no margin for flaws",
				Recommendation: "Order 3-5% extra fabric or check roll lengths before cutting",
				When:           above(SignalUtilization, 0.95),
			},
			{
				Code:           IssueLowEfficiency,
				Severity:       model.RiskAmber,
				Message:        "Low marker efficiency: below 75%",
				Recommendation: "Review the nesting or allow pattern rotation where grain permits",
				When:           below(SignalEfficiency, 0.75),
			},
			{
				Code:           IssueHighWaste,
				Severity:       model.RiskAmber,
				Message:        "High fabric waste: more than 40% of the fabric is unused",
				Recommendation: "Combine small pieces into the gaps or try a different fabric width",
				When:           above(SignalWastePct, 0.40),
			},
			{
				Code:           IssueExcessiveWaste,
				Severity:       model.RiskRed,
				Message:        "Excessive fabric waste: more than 60% of the fabric would be discarded",
				Recommendation: "Re-nest with rotation allowed or a narrower fabric before committing",
				When:           above(SignalWastePct, 0.60),
			},
			{
				Code:           IssueLongCutting,
				Severity:       model.RiskAmber,
				Message:        "Cutting time exceeds one 8-hour shift",
				Recommendation: "Split the plan across shifts or cutting tables",
				When:           above(SignalTimeMins, 480),
			},
			{
				Code:           IssueLargePlan,
				Severity:       model.RiskAmber,
				Message:        "Plan contains more than 5000 pieces",
				Recommendation: "Split the order into several cutting plans",
				When:           above(SignalPieces, 5000),
			},
		},
		model.ContextCuttingStart: {
			{
				Code:           IssueNoOperator,
				Severity:       model.RiskRed,
				Message:        "No operator assigned to the sheet",
				Recommendation: "Assign a trained operator before starting",
				When:           blank(SignalOperator),
			},
			{
				Code:     IssueUnknownMethod,
				Severity: model.RiskAmber,
				Message:  "Cutting method is not a recognised floor method",
				When: notOneOf(SignalMethod, MethodManual, MethodStraightKnife, MethodBandKnife,
					MethodAutomatic, MethodDie, MethodLaser),
			},
			{
				Code:           IssueManualVolume,
				Severity:       model.RiskAmber,
				Message:        "High piece count for manual cutting",
				Recommendation: "Use a straight knife or automatic cutter for sheets over 150 pieces",
				When:           all(oneOf(SignalMethod, MethodManual), above(SignalPieces, 150)),
			},
			{
				Code:           IssueUnknownFabric,
				Severity:       model.RiskAmber,
				Message:        "Fabric type is not recorded on the plan",
				Recommendation: "Confirm fabric type so the right blade and spreading tension are used",
				When:           blank(SignalFabricType),
			},
		},
		model.ContextLayPlanning: {
			{
				Code:           IssueInsufficient,
				Severity:       model.RiskRed,
				Message:        "Fabric batch is too short for the lay",
				Recommendation: "Issue an additional batch or reduce the size breakdown",
				When:           exceeds(SignalMetersRequired, SignalMetersAvail),
			},
			{
				Code:           IssueFabricShortage,
				Severity:       model.RiskAmber,
				Message:        "Fabric shortage risk: lay consumes more than 95% of the batch",
				Recommendation: "Keep an end-of-roll reserve or issue extra fabric",
				When:           above(SignalUtilization, 0.95),
			},
			{
				Code:           IssueLowEfficiency,
				Severity:       model.RiskAmber,
				Message:        "Low marker efficiency: below 75%",
				Recommendation: "Rework the marker or group fewer sizes per lay",
				When:           below(SignalEfficiency, 0.75),
			},
			{
				Code:           IssueUnviableMarker,
				Severity:       model.RiskRed,
				Message:        "Marker efficiency below 50% is not viable",
				Recommendation: "Rebuild the marker before spreading",
				When:           below(SignalEfficiency, 0.50),
			},
			{
				Code:           IssueManySizes,
				Severity:       model.RiskAmber,
				Message:        "More than 8 sizes in one lay",
				Recommendation: "Split the size breakdown across two lays",
				When:           above(SignalSizeCount, 8),
			},
			{
				Code:           IssueLowGrade,
				Severity:       model.RiskAmber,
				Message:        "Fabric batch graded C; expect more defects",
				Recommendation: "Inspect rolls during spreading and keep spare fabric",
				When:           oneOf(SignalQualityGrade, "C"),
			},
			{
				Code:     IssueRejectedFabric,
				Severity: model.RiskRed,
				Message:  "Fabric batch failed inspection",
				When:     oneOf(SignalQualityGrade, "D", "REJECTED"),
			},
		},
	}
}
