package usecase

import (
	"context"
	"fmt"
	"strings"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
)

// HistoryUseCase reads archived analyses.
type HistoryUseCase struct {
	store domrepo.AnalysisStore
}

func NewHistoryUseCase(store domrepo.AnalysisStore) *HistoryUseCase {
	return &HistoryUseCase{store: store}
}

func (uc *HistoryUseCase) Recent(ctx context.Context, securityID string, limit int) ([]domrepo.AnalysisSummary, error) {
	if uc.store == nil {
		return nil, fmt.Errorf("%w: analysis store not configured", models.ErrTelemetryUnavailable)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := uc.store.RecentResults(ctx, strings.ToUpper(strings.TrimSpace(securityID)), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent results: %v", models.ErrTelemetryUnavailable, err)
	}
	if rows == nil {
		rows = []domrepo.AnalysisSummary{}
	}
	return rows, nil
}
