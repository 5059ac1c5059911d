package valuation

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidInputs = errors.New("invalid valuation inputs")

// Params are the inputs of the discounted cash-flow model.
type Params struct {
	BaseFCF           float64
	SharesOutstanding float64
	FCFGrowth         float64
	WACC              float64
	TerminalGrowth    float64
	Years             int
}

// Scenario is a named set of growth/discount assumptions.
type Scenario struct {
	Name           string
	FCFGrowth      float64
	WACC           float64
	TerminalGrowth float64
}

var (
	Conservative = Scenario{Name: "conservative", FCFGrowth: 0.05, WACC: 0.095, TerminalGrowth: 0.02}
	Base         = Scenario{Name: "base", FCFGrowth: 0.10, WACC: 0.085, TerminalGrowth: 0.025}
	Aggressive   = Scenario{Name: "aggressive", FCFGrowth: 0.18, WACC: 0.075, TerminalGrowth: 0.03}
)

// Scenarios returns the standard scenario table, most to least cautious.
func Scenarios() []Scenario { return []Scenario{Conservative, Base, Aggressive} }

const DefaultYears = 10

// DCF returns the per-share intrinsic value: discounted projected FCF plus the
// discounted Gordon terminal value FCF_n·(1+g)/(WACC−g), divided by shares.
func DCF(p Params) (float64, error) {
	if p.Years <= 0 {
		p.Years = DefaultYears
	}
	if p.SharesOutstanding <= 0 {
		return 0, fmt.Errorf("%w: shares outstanding must be positive", ErrInvalidInputs)
	}
	if p.WACC <= p.TerminalGrowth {
		return 0, fmt.Errorf("%w: wacc %.4f must exceed terminal growth %.4f", ErrInvalidInputs, p.WACC, p.TerminalGrowth)
	}
	if p.WACC <= -1 || p.FCFGrowth <= -1 {
		return 0, fmt.Errorf("%w: rates must be greater than -100%%", ErrInvalidInputs)
	}

	total := 0.0
	fcf := p.BaseFCF
	for t := 1; t <= p.Years; t++ {
		fcf *= 1 + p.FCFGrowth
		total += fcf / math.Pow(1+p.WACC, float64(t))
	}
	terminal := fcf * (1 + p.TerminalGrowth) / (p.WACC - p.TerminalGrowth)
	total += terminal / math.Pow(1+p.WACC, float64(p.Years))

	v := total / p.SharesOutstanding
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite intrinsic value", ErrInvalidInputs)
	}
	return v, nil
}

// ForScenario runs DCF with the scenario's assumptions.
func ForScenario(s Scenario, baseFCF, shares float64, years int) (float64, error) {
	return DCF(Params{
		BaseFCF:           baseFCF,
		SharesOutstanding: shares,
		FCFGrowth:         s.FCFGrowth,
		WACC:              s.WACC,
		TerminalGrowth:    s.TerminalGrowth,
		Years:             years,
	})
}

// MarginOfSafety is (intrinsic − price) / intrinsic. A non-positive intrinsic
// value has no margin at all and reports -1.
func MarginOfSafety(intrinsic, price float64) float64 {
	if intrinsic <= 0 {
		return -1
	}
	return (intrinsic - price) / intrinsic
}

const (
	VerdictStrong = "strong"
	VerdictThin   = "thin"
	VerdictNone   = "none"
)

// Verdict grades a margin of safety: above 15% is strong, any positive margin is thin.
func Verdict(mos float64) string {
	switch {
	case mos > 0.15:
		return VerdictStrong
	case mos > 0:
		return VerdictThin
	default:
		return VerdictNone
	}
}

// Score maps a margin of safety monotonically onto [-1,1]; negative means overvalued.
func Score(mos float64) float64 {
	return math.Tanh(2 * mos)
}
