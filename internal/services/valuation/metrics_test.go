package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaCrew/internal/domain/models"
)

func byMetric(ms []models.KeyMetric) map[string]models.KeyMetric {
	out := make(map[string]models.KeyMetric, len(ms))
	for _, m := range ms {
		out[m.Metric] = m
	}
	return out
}

func TestKeyMetricsGrowthStock(t *testing.T) {
	f := models.FinancialFacts{
		PERatio:          models.Float(38.89),
		PERatioAvg5Y:     models.Float(29),
		PriceToBook:      models.Float(58),
		DebtToEquity:     models.Float(1.54),
		EPS:              models.Float(6.59),
		ReturnOnAssets:   models.Float(0.221),
		DividendYield:    models.Float(0.0041),
		DividendYieldAvg: models.Float(0.0052),
	}
	got := byMetric(KeyMetrics(f))
	require.Len(t, got, 7)

	assert.Equal(t, MetricUnfavorable, got["pe_ratio"].Verdict)
	assert.Equal(t, "< 15 (Graham)", got["pe_ratio"].Benchmark)
	assert.Equal(t, MetricUnfavorable, got["pe_vs_5y_avg"].Verdict)
	assert.InDelta(t, 38.89/29, got["pe_vs_5y_avg"].Value, 1e-12)
	assert.Equal(t, MetricNeutral, got["price_to_book"].Verdict)
	assert.Equal(t, MetricUnfavorable, got["debt_to_equity"].Verdict)
	assert.Equal(t, MetricFavorable, got["eps"].Verdict)
	assert.Equal(t, MetricFavorable, got["return_on_assets"].Verdict)
	assert.Equal(t, MetricNeutral, got["dividend_yield"].Verdict)
	assert.Contains(t, got["dividend_yield"].Note, "below its 5y average")
}

func TestKeyMetricsValueStock(t *testing.T) {
	f := models.FinancialFacts{
		PERatio:      models.Float(11),
		PERatioAvg5Y: models.Float(13),
		PriceToBook:  models.Float(0.8),
		DebtToEquity: models.Float(0.4),
		EPS:          models.Float(-0.2),
	}
	got := byMetric(KeyMetrics(f))
	assert.Equal(t, MetricFavorable, got["pe_ratio"].Verdict)
	assert.Equal(t, MetricFavorable, got["pe_vs_5y_avg"].Verdict)
	assert.Equal(t, MetricFavorable, got["price_to_book"].Verdict)
	assert.Equal(t, MetricFavorable, got["debt_to_equity"].Verdict)
	assert.Equal(t, MetricUnfavorable, got["eps"].Verdict)
}

func TestKeyMetricsSkipsUnreported(t *testing.T) {
	assert.Empty(t, KeyMetrics(models.FinancialFacts{}))
	assert.Empty(t, Inputs(models.FinancialFacts{}))

	got := byMetric(KeyMetrics(models.FinancialFacts{PERatio: models.Float(-3), PERatioAvg5Y: models.Float(20)}))
	require.Len(t, got, 1)
	assert.Equal(t, MetricUnfavorable, got["pe_ratio"].Verdict)
}

func TestInputs(t *testing.T) {
	in := Inputs(models.FinancialFacts{PERatio: models.Float(12), DebtToEquity: models.Float(0.9)})
	assert.Equal(t, map[string]float64{"pe_ratio": 12, "debt_to_equity": 0.9}, in)
}
