package agents

import (
	"context"
	"errors"
	"fmt"

	"AlphaCrew/internal/domain/models"
	domsvc "AlphaCrew/internal/domain/service"
	"AlphaCrew/internal/services/valuation"
	applogger "AlphaCrew/pkg/logger"
)

const QuantitativeName = "quantitative"

// requiredInputs counts every field that feeds the DCF.
const requiredInputs = 6

type QuantitativeConfig struct {
	Years         int
	Fallback      valuation.Scenario // used for missing growth/discount rates
	// MinConfidence only binds above 0.5: price, FCF and shares are required,
	// so at least 3 of the 6 inputs are always present.
	MinConfidence float64
}

func DefaultQuantitativeConfig() QuantitativeConfig {
	return QuantitativeConfig{Years: valuation.DefaultYears, Fallback: valuation.Base, MinConfidence: 0.2}
}

// QuantitativeAgent values the security with a DCF and scores its margin of safety.
type QuantitativeAgent struct {
	cfg        QuantitativeConfig
	financials domsvc.FinancialsProvider
	l          *applogger.Logger
}

func NewQuantitativeAgent(cfg QuantitativeConfig, financials domsvc.FinancialsProvider) *QuantitativeAgent {
	if cfg.Years <= 0 {
		cfg.Years = valuation.DefaultYears
	}
	if cfg.Fallback.Name == "" {
		cfg.Fallback = valuation.Base
	}
	return &QuantitativeAgent{cfg: cfg, financials: financials}
}

func (a *QuantitativeAgent) SetLogger(l *applogger.Logger) { a.l = l }

func (a *QuantitativeAgent) Name() string { return QuantitativeName }

func (a *QuantitativeAgent) ProduceSignal(ctx context.Context, req models.AnalysisRequest) (models.Signal, error) {
	facts, err := a.financials.FetchFinancials(ctx, req.SecurityID)
	if err != nil {
		if errors.Is(err, models.ErrFinancialsNotFound) {
			return models.Signal{}, fmt.Errorf("%w: %v", models.ErrInsufficientData, err)
		}
		return models.Signal{}, fmt.Errorf("%w: fetch financials: %v", models.ErrAgentUnavailable, err)
	}

	if facts.Price == nil || facts.FreeCashFlow == nil || facts.SharesOutstanding == nil {
		return models.Signal{}, fmt.Errorf("%w: %s is missing price, free cash flow or shares outstanding", models.ErrInsufficientData, req.SecurityID)
	}

	present := 3
	scenario := a.cfg.Fallback
	if facts.FCFGrowth != nil {
		scenario.FCFGrowth = *facts.FCFGrowth
		present++
	}
	if facts.WACC != nil {
		scenario.WACC = *facts.WACC
		present++
	}
	if facts.TerminalGrowth != nil {
		scenario.TerminalGrowth = *facts.TerminalGrowth
		present++
	}

	intrinsic, err := valuation.ForScenario(scenario, *facts.FreeCashFlow, *facts.SharesOutstanding, a.cfg.Years)
	if err != nil {
		return models.Signal{}, fmt.Errorf("%w: %v", models.ErrInsufficientData, err)
	}
	price := *facts.Price
	mos := valuation.MarginOfSafety(intrinsic, price)
	verdict := valuation.Verdict(mos)

	confidence := float64(present) / requiredInputs
	if confidence < a.cfg.MinConfidence {
		confidence = a.cfg.MinConfidence
	}

	if a.l != nil && present < requiredInputs {
		a.l.Debug("quantitative agent used fallback rates",
			applogger.String("security_id", req.SecurityID),
			applogger.Int("present_inputs", present),
		)
	}

	inputs := valuation.Inputs(facts)
	inputs["intrinsic_value"] = intrinsic
	inputs["price"] = price
	inputs["margin_of_safety"] = mos
	inputs["free_cash_flow"] = *facts.FreeCashFlow
	inputs["shares_outstanding"] = *facts.SharesOutstanding
	inputs["fcf_growth"] = scenario.FCFGrowth
	inputs["wacc"] = scenario.WACC
	inputs["terminal_growth"] = scenario.TerminalGrowth

	return models.Signal{
		Producer:   QuantitativeName,
		Value:      models.NumericValue(valuation.Score(mos), verdict),
		Confidence: confidence,
		Evidence: models.Evidence{
			Summary: fmt.Sprintf("DCF intrinsic value %.2f vs price %.2f, margin of safety %.1f%% (%s)",
				intrinsic, price, mos*100, verdict),
			Inputs: inputs,
		},
	}, nil
}

var _ domsvc.SignalAgent = (*QuantitativeAgent)(nil)
