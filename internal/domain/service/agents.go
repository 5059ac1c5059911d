package service

import (
	"context"

	"AlphaCrew/internal/domain/models"
)

// SignalAgent produces exactly one signal per request or fails with
// models.ErrAgentUnavailable / models.ErrInsufficientData.
type SignalAgent interface {
	Name() string
	ProduceSignal(ctx context.Context, req models.AnalysisRequest) (models.Signal, error)
}

// LanguageModel is the single seam to the external model transport.
// Failures wrap models.ErrModelUnavailable or models.ErrModelRateLimited.
type LanguageModel interface {
	Invoke(ctx context.Context, prompt string, inputs map[string]string) (string, error)
}

// FinancialsProvider fetches reported financial facts; unknown ids wrap models.ErrFinancialsNotFound.
type FinancialsProvider interface {
	FetchFinancials(ctx context.Context, securityID string) (models.FinancialFacts, error)
}
