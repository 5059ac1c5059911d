package valuation

import (
	"fmt"

	"AlphaCrew/internal/domain/models"
)

const (
	MetricFavorable   = "favorable"
	MetricUnfavorable = "unfavorable"
	MetricNeutral     = "neutral"
)

// Benchmarks used by KeyMetrics.
const (
	GrahamMaxPE     = 15.0
	MaxPriceToBook  = 1.0
	MaxDebtToEquity = 1.5
	ExcellentROA    = 0.20
)

// KeyMetrics grades the reported ratios of facts. Metrics that were not
// reported are left out, so the result may be empty.
func KeyMetrics(f models.FinancialFacts) []models.KeyMetric {
	var out []models.KeyMetric
	add := func(m models.KeyMetric) { out = append(out, m) }

	if f.PERatio != nil {
		pe := *f.PERatio
		m := models.KeyMetric{Metric: "pe_ratio", Value: pe, Benchmark: fmt.Sprintf("< %.0f (Graham)", GrahamMaxPE)}
		switch {
		case pe <= 0:
			m.Verdict, m.Note = MetricUnfavorable, "no positive earnings"
		case pe < GrahamMaxPE:
			m.Verdict, m.Note = MetricFavorable, "within the defensive investor limit"
		default:
			m.Verdict, m.Note = MetricUnfavorable, "priced for growth; thin room for a margin of safety"
		}
		add(m)

		if f.PERatioAvg5Y != nil && *f.PERatioAvg5Y > 0 && pe > 0 {
			avg := *f.PERatioAvg5Y
			m := models.KeyMetric{Metric: "pe_vs_5y_avg", Value: pe / avg, Benchmark: fmt.Sprintf("<= 1 (5y avg %.2f)", avg)}
			if pe <= avg {
				m.Verdict, m.Note = MetricFavorable, "valued at or below its own recent history"
			} else {
				m.Verdict, m.Note = MetricUnfavorable, "valued above its own recent history"
			}
			add(m)
		}
	}

	if f.PriceToBook != nil {
		pb := *f.PriceToBook
		m := models.KeyMetric{Metric: "price_to_book", Value: pb, Benchmark: fmt.Sprintf("< %.0f", MaxPriceToBook)}
		if pb > 0 && pb < MaxPriceToBook {
			m.Verdict, m.Note = MetricFavorable, "trades below book value"
		} else {
			m.Verdict, m.Note = MetricNeutral, "value rests on intangibles rather than book assets"
		}
		add(m)
	}

	if f.DebtToEquity != nil {
		de := *f.DebtToEquity
		m := models.KeyMetric{Metric: "debt_to_equity", Value: de, Benchmark: fmt.Sprintf("< %.1f", MaxDebtToEquity)}
		if de >= 0 && de < MaxDebtToEquity {
			m.Verdict, m.Note = MetricFavorable, "financially strong"
		} else {
			m.Verdict, m.Note = MetricUnfavorable, "significant leverage"
		}
		add(m)
	}

	if f.EPS != nil {
		m := models.KeyMetric{Metric: "eps", Value: *f.EPS, Benchmark: "> 0"}
		if *f.EPS > 0 {
			m.Verdict, m.Note = MetricFavorable, "profitable"
		} else {
			m.Verdict, m.Note = MetricUnfavorable, "loss-making"
		}
		add(m)
	}

	if f.ReturnOnAssets != nil {
		roa := *f.ReturnOnAssets
		m := models.KeyMetric{Metric: "return_on_assets", Value: roa, Benchmark: fmt.Sprintf("> %.0f%%", ExcellentROA*100)}
		switch {
		case roa > ExcellentROA:
			m.Verdict, m.Note = MetricFavorable, "excellent asset efficiency"
		case roa > 0:
			m.Verdict, m.Note = MetricNeutral, "positive but below the excellence mark"
		default:
			m.Verdict, m.Note = MetricUnfavorable, "assets earn nothing"
		}
		add(m)
	}

	if f.DividendYield != nil {
		dy := *f.DividendYield
		m := models.KeyMetric{Metric: "dividend_yield", Value: dy, Benchmark: "5y average", Verdict: MetricNeutral}
		switch {
		case f.DividendYieldAvg == nil:
			m.Benchmark, m.Note = "", "no history to compare"
		case dy < *f.DividendYieldAvg:
			m.Note = "below its 5y average, usually a rising price rather than a policy change"
		default:
			m.Note = "at or above its 5y average"
		}
		add(m)
	}
	return out
}

// Inputs returns the reported ratios keyed by metric name, for signal evidence.
func Inputs(f models.FinancialFacts) map[string]float64 {
	out := map[string]float64{}
	set := func(k string, v *float64) {
		if v != nil {
			out[k] = *v
		}
	}
	set("pe_ratio", f.PERatio)
	set("price_to_book", f.PriceToBook)
	set("debt_to_equity", f.DebtToEquity)
	set("eps", f.EPS)
	set("return_on_assets", f.ReturnOnAssets)
	set("dividend_yield", f.DividendYield)
	return out
}
