package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaCrew/internal/domain/models"
	"AlphaCrew/internal/services/valuation"
)

func fullFacts(price float64) models.FinancialFacts {
	return models.FinancialFacts{
		Price:             models.Float(price),
		FreeCashFlow:      models.Float(1e9),
		SharesOutstanding: models.Float(1e8),
		FCFGrowth:         models.Float(0.08),
		WACC:              models.Float(0.09),
		TerminalGrowth:    models.Float(0.02),
	}
}

func TestQuantitativeFullInputs(t *testing.T) {
	s := valuation.Scenario{FCFGrowth: 0.08, WACC: 0.09, TerminalGrowth: 0.02}
	intrinsic, err := valuation.ForScenario(s, 1e9, 1e8, 10)
	require.NoError(t, err)
	price := intrinsic * 0.8

	a := NewQuantitativeAgent(DefaultQuantitativeConfig(), fakeFinancials{facts: fullFacts(price)})
	sig, err := a.ProduceSignal(context.Background(), request("acme"))
	require.NoError(t, err)

	assert.Equal(t, QuantitativeName, sig.Producer)
	assert.Equal(t, 1.0, sig.Confidence)
	mos, ok := sig.Input("margin_of_safety")
	require.True(t, ok)
	assert.InDelta(t, 0.2, mos, 1e-9)
	assert.InDelta(t, valuation.Score(0.2), sig.Value.Score, 1e-9)
	assert.Equal(t, valuation.VerdictStrong, sig.Value.Label)
	iv, _ := sig.Input("intrinsic_value")
	assert.InDelta(t, intrinsic, iv, 1e-6)
	assert.Contains(t, sig.Evidence.Summary, "margin of safety 20.0%")
}

func TestQuantitativeCarriesKeyMetricsAsEvidence(t *testing.T) {
	facts := fullFacts(50)
	facts.PERatio = models.Float(14)
	facts.DebtToEquity = models.Float(0.6)
	a := NewQuantitativeAgent(DefaultQuantitativeConfig(), fakeFinancials{facts: facts})
	sig, err := a.ProduceSignal(context.Background(), request("acme"))
	require.NoError(t, err)

	pe, ok := sig.Input("pe_ratio")
	require.True(t, ok)
	assert.Equal(t, 14.0, pe)
	de, _ := sig.Input("debt_to_equity")
	assert.Equal(t, 0.6, de)
	_, ok = sig.Input("price_to_book")
	assert.False(t, ok)
	// key metrics do not count toward DCF input completeness
	assert.Equal(t, 1.0, sig.Confidence)
}

func TestQuantitativeOvervaluedScoresNegative(t *testing.T) {
	a := NewQuantitativeAgent(DefaultQuantitativeConfig(), fakeFinancials{facts: fullFacts(1e6)})
	sig, err := a.ProduceSignal(context.Background(), request("acme"))
	require.NoError(t, err)
	assert.Less(t, sig.Value.Score, 0.0)
	assert.GreaterOrEqual(t, sig.Value.Score, -1.0)
	assert.Equal(t, valuation.VerdictNone, sig.Value.Label)
}

func TestQuantitativeMissingRatesDegradeConfidence(t *testing.T) {
	facts := fullFacts(50)
	facts.WACC = nil
	facts.TerminalGrowth = nil
	a := NewQuantitativeAgent(DefaultQuantitativeConfig(), fakeFinancials{facts: facts})
	sig, err := a.ProduceSignal(context.Background(), request("acme"))
	require.NoError(t, err)
	assert.InDelta(t, 4.0/6.0, sig.Confidence, 1e-9)
	wacc, _ := sig.Input("wacc")
	assert.Equal(t, valuation.Base.WACC, wacc)
}

func TestQuantitativeConfidenceFloor(t *testing.T) {
	facts := fullFacts(50)
	facts.FCFGrowth, facts.WACC, facts.TerminalGrowth = nil, nil, nil
	cfg := DefaultQuantitativeConfig()
	cfg.MinConfidence = 0.7
	a := NewQuantitativeAgent(cfg, fakeFinancials{facts: facts})
	sig, err := a.ProduceSignal(context.Background(), request("acme"))
	require.NoError(t, err)
	assert.Equal(t, 0.7, sig.Confidence)
}

func TestQuantitativeConfidenceWithOnlyRequiredInputs(t *testing.T) {
	facts := fullFacts(50)
	facts.FCFGrowth, facts.WACC, facts.TerminalGrowth = nil, nil, nil
	a := NewQuantitativeAgent(DefaultQuantitativeConfig(), fakeFinancials{facts: facts})
	sig, err := a.ProduceSignal(context.Background(), request("acme"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, sig.Confidence)
}

func TestQuantitativeErrors(t *testing.T) {
	missing := fullFacts(50)
	missing.Price = nil
	invalid := fullFacts(50)
	invalid.WACC = models.Float(0.01)

	cases := []struct {
		name string
		fin  fakeFinancials
		want error
	}{
		{"missing price", fakeFinancials{facts: missing}, models.ErrInsufficientData},
		{"wacc below growth", fakeFinancials{facts: invalid}, models.ErrInsufficientData},
		{"unknown security", fakeFinancials{err: models.ErrFinancialsNotFound}, models.ErrInsufficientData},
		{"provider down", fakeFinancials{err: errors.New("connection refused")}, models.ErrAgentUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewQuantitativeAgent(DefaultQuantitativeConfig(), tc.fin)
			_, err := a.ProduceSignal(context.Background(), request("acme"))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
