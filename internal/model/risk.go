package model

// RiskLevel is the traffic-light outcome of a risk evaluation.
type RiskLevel string

const (
	RiskGreen RiskLevel = "GREEN"
	RiskAmber RiskLevel = "AMBER"
	RiskRed   RiskLevel = "RED"
)

// Rank orders levels so that aggregation can pick the worst one.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskRed:
		return 2
	case RiskAmber:
		return 1
	default:
		return 0
	}
}

// RiskContext names the operation a verdict is requested for.
type RiskContext string

const (
	ContextCuttingPlanCreation RiskContext = "CUTTING_PLAN_CREATION"
	ContextCuttingStart        RiskContext = "CUTTING_START"
	ContextLayPlanning         RiskContext = "LAY_PLANNING"
)

// Signals are the numeric or string inputs to a risk evaluation.
type Signals map[string]interface{}

// Number returns the signal as float64. ok is false when the key is missing
// or not numeric.
func (s Signals) Number(key string) (float64, bool) {
	switch v := s[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	}
	return 0, false
}

// String returns the signal as string. ok is false when the key is missing
// or not a string.
func (s Signals) String(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// RiskIssue is a single finding raised by a rule.
type RiskIssue struct {
	Code     string    `json:"code"`
	Severity RiskLevel `json:"severity"`
	Message  string    `json:"message"`
}

// RiskVerdict is produced fresh for every evaluation and attached to the
// record that asked for it.
type RiskVerdict struct {
	Context         RiskContext `json:"context"`
	Risk            RiskLevel   `json:"risk"`
	Issues          []RiskIssue `json:"issues"`
	Recommendations []string    `json:"recommendations"`
	Confidence      float64     `json:"confidence"`
}

// Blocking reports whether the verdict must stop the operation.
func (v RiskVerdict) Blocking() bool {
	return v.Risk == RiskRed
}

// HasIssue reports whether an issue with the given code was raised.
func (v RiskVerdict) HasIssue(code string) bool {
	for _, i := range v.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}
