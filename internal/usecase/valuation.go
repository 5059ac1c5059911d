package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"AlphaCrew/internal/domain/models"
	domsvc "AlphaCrew/internal/domain/service"
	"AlphaCrew/internal/services/valuation"
	"AlphaCrew/pkg/util"
)

// ValuationUseCase builds the DCF scenario table for a security.
type ValuationUseCase struct {
	financials domsvc.FinancialsProvider
	years      int
}

func NewValuationUseCase(financials domsvc.FinancialsProvider, years int) *ValuationUseCase {
	if years <= 0 {
		years = valuation.DefaultYears
	}
	return &ValuationUseCase{financials: financials, years: years}
}

func (uc *ValuationUseCase) Report(ctx context.Context, securityID string) (*models.ValuationReport, error) {
	sec := strings.ToUpper(strings.TrimSpace(securityID))
	if sec == "" {
		return nil, fmt.Errorf("%w: security id is required", models.ErrInvalidRequest)
	}
	facts, err := uc.financials.FetchFinancials(ctx, sec)
	if err != nil {
		if errors.Is(err, models.ErrFinancialsNotFound) {
			return nil, fmt.Errorf("%w: %v", models.ErrInsufficientData, err)
		}
		return nil, fmt.Errorf("%w: fetch financials: %v", models.ErrAgentUnavailable, err)
	}
	if facts.Price == nil || facts.FreeCashFlow == nil || facts.SharesOutstanding == nil {
		return nil, fmt.Errorf("%w: %s is missing price, free cash flow or shares outstanding", models.ErrInsufficientData, sec)
	}

	price := *facts.Price
	marketCap := facts.MarketCap
	if marketCap == nil {
		marketCap = models.Float(price * *facts.SharesOutstanding)
	}
	report := &models.ValuationReport{
		SecurityID: sec,
		Price:      price,
		MarketCap:  util.FormatLargeNumberPtr(marketCap),
		FreeCash:   util.FormatLargeNumber(*facts.FreeCashFlow),
		Scenarios:  make([]models.ScenarioValuation, 0, 3),
		KeyMetrics: valuation.KeyMetrics(facts),
	}
	for _, s := range valuation.Scenarios() {
		iv, err := valuation.ForScenario(s, *facts.FreeCashFlow, *facts.SharesOutstanding, uc.years)
		if err != nil {
			return nil, fmt.Errorf("%w: %s scenario: %v", models.ErrInsufficientData, s.Name, err)
		}
		mos := valuation.MarginOfSafety(iv, price)
		report.Scenarios = append(report.Scenarios, models.ScenarioValuation{
			Scenario:       s.Name,
			FCFGrowth:      s.FCFGrowth,
			WACC:           s.WACC,
			TerminalGrowth: s.TerminalGrowth,
			IntrinsicValue: iv,
			MarginOfSafety: mos,
			Verdict:        valuation.Verdict(mos),
		})
	}
	return report, nil
}
