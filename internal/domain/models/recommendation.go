package models

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

const (
	ReasonDisagreement = "cross-agent disagreement"
	ReasonOutOfRange   = "out-of-historical-range"
)

type AnomalyFlag struct {
	Producers []string `json:"producers"`
	Severity  Severity `json:"severity"`
	Reason    string   `json:"reason"`
	Detail    string   `json:"detail,omitempty"`
}

type Action string

const (
	ActionBuy  Action = "buy"
	ActionHold Action = "hold"
	ActionSell Action = "sell"
)

type FeatureWeight struct {
	Producer string  `json:"producer"`
	Weight   float64 `json:"weight"`
}

type Recommendation struct {
	Action     Action          `json:"action"`
	Confidence float64         `json:"confidence"`
	Score      float64         `json:"score"`      // confidence-weighted aggregate, [-1,1]
	Importance []FeatureWeight `json:"importance"` // weight-descending, sums to 1
	Rationale  string          `json:"rationale"`
	Narrative  string          `json:"narrative,omitempty"`
}

type PortfolioFitAdvice struct {
	Action         Action  `json:"action"`
	Fraction       float64 `json:"fraction"`     // suggested position as a fraction of CapitalBase
	MaxFraction    float64 `json:"max_fraction"` // cap applied
	CapitalBase    float64 `json:"capital_base"`
	Amount         float64 `json:"amount"`
	MarginOfSafety float64 `json:"margin_of_safety"`
	Unscaled       bool    `json:"unscaled"`
	Note           string  `json:"note,omitempty"`
}
