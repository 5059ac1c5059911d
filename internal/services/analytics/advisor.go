package analytics

import (
	"fmt"
	"math"

	"AlphaCrew/internal/domain/models"
)

type AdvisorConfig struct {
	MaxPositionFraction float64
	RiskBudget          float64
}

func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{MaxPositionFraction: 0.1, RiskBudget: 0.5}
}

// PortfolioAdvisor sizes a single position from a recommendation.
type PortfolioAdvisor struct {
	cfg AdvisorConfig
}

func NewPortfolioAdvisor(cfg AdvisorConfig) *PortfolioAdvisor {
	return &PortfolioAdvisor{cfg: cfg}
}

// Advise returns the sizing suggestion. mos is nil when no producer reported a margin of safety.
func (a *PortfolioAdvisor) Advise(rec models.Recommendation, mos *float64, snapshot *models.PortfolioSnapshot) (models.PortfolioFitAdvice, error) {
	maxFrac := a.cfg.MaxPositionFraction
	if snapshot != nil && snapshot.MaxPositionFraction > 0 {
		maxFrac = snapshot.MaxPositionFraction
	}
	maxFrac = models.Clamp(maxFrac, 0, 1)

	adv := models.PortfolioFitAdvice{
		Action:      rec.Action,
		MaxFraction: maxFrac,
		CapitalBase: 1,
		Unscaled:    snapshot == nil,
	}
	if mos != nil {
		adv.MarginOfSafety = *mos
	}
	if snapshot != nil {
		adv.CapitalBase = snapshot.TotalCapital
	}

	switch rec.Action {
	case models.ActionSell:
		adv.Fraction = 0
		adv.Note = "exit position"
	case models.ActionHold:
		adv.Note = "keep current position"
		if snapshot != nil {
			adv.Fraction = math.Max(0, snapshot.PositionFraction)
			if adv.Fraction > maxFrac {
				adv.Fraction = maxFrac
				adv.Note = "current position exceeds maximum single-position fraction; trim to cap"
			}
		}
	case models.ActionBuy:
		if mos == nil {
			adv.Note = "margin of safety unavailable"
			break
		}
		if *mos <= 0 {
			return models.PortfolioFitAdvice{}, fmt.Errorf("%w: buy with margin of safety %.4f", models.ErrInconsistentSignal, *mos)
		}
		raw := rec.Confidence * *mos * a.cfg.RiskBudget
		adv.Fraction = math.Max(0, math.Min(maxFrac, raw))
		if raw > maxFrac {
			adv.Note = "capped at maximum single-position fraction"
		}
	default:
		return models.PortfolioFitAdvice{}, fmt.Errorf("%w: unknown action %q", models.ErrInconsistentSignal, rec.Action)
	}

	adv.Amount = adv.Fraction * adv.CapitalBase
	return adv, nil
}
