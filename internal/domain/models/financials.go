package models

import "time"

// FinancialFacts are the inputs of the quantitative agent. Nil means "not reported".
type FinancialFacts struct {
	SecurityID        string    `json:"security_id"`
	Price             *float64  `json:"price"`
	FreeCashFlow      *float64  `json:"free_cash_flow"`
	SharesOutstanding *float64  `json:"shares_outstanding"`
	FCFGrowth         *float64  `json:"fcf_growth"`
	WACC              *float64  `json:"wacc"`
	TerminalGrowth    *float64  `json:"terminal_growth"`
	MarketCap         *float64  `json:"market_cap,omitempty"`
	PERatio           *float64  `json:"pe_ratio,omitempty"`
	PERatioAvg5Y      *float64  `json:"pe_ratio_avg_5y,omitempty"`
	PriceToBook       *float64  `json:"price_to_book,omitempty"`
	DebtToEquity      *float64  `json:"debt_to_equity,omitempty"` // ratio, not percent
	EPS               *float64  `json:"eps,omitempty"`
	ReturnOnAssets    *float64  `json:"return_on_assets,omitempty"`
	DividendYield     *float64  `json:"dividend_yield,omitempty"`
	DividendYieldAvg  *float64  `json:"dividend_yield_avg_5y,omitempty"`
	ReportedAt        time.Time `json:"reported_at"`
}

// Float returns a pointer to v; handy for literals.
func Float(v float64) *float64 { return &v }

// ScenarioValuation is one row of the DCF scenario table.
type ScenarioValuation struct {
	Scenario       string  `json:"scenario"`
	FCFGrowth      float64 `json:"fcf_growth"`
	WACC           float64 `json:"wacc"`
	TerminalGrowth float64 `json:"terminal_growth"`
	IntrinsicValue float64 `json:"intrinsic_value"`
	MarginOfSafety float64 `json:"margin_of_safety"`
	Verdict        string  `json:"verdict"`
}

// KeyMetric is one reported ratio graded against its value-investing benchmark.
type KeyMetric struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Benchmark string  `json:"benchmark"`
	Verdict   string  `json:"verdict"` // favorable, unfavorable or neutral
	Note      string  `json:"note"`
}

type ValuationReport struct {
	SecurityID string              `json:"security_id"`
	Price      float64             `json:"price"`
	MarketCap  string              `json:"market_cap"` // formatted with T/B suffix
	FreeCash   string              `json:"free_cash_flow"`
	Scenarios  []ScenarioValuation `json:"scenarios"`
	KeyMetrics []KeyMetric         `json:"key_metrics,omitempty"`
}
