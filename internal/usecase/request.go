package usecase

import (
	"fmt"
	"time"

	"AlphaCrew/internal/domain/models"
	"AlphaCrew/pkg/util"
)

// BuildRequest turns an inbound analyze payload into an AnalysisRequest.
// An empty as_of means now; an unparseable one is rejected.
func BuildRequest(in models.AnalyzeRequest, now time.Time) (models.AnalysisRequest, error) {
	asOf := now
	if in.AsOf != "" {
		t, ok := util.ParseTime(in.AsOf)
		if !ok {
			return models.AnalysisRequest{}, fmt.Errorf("%w: as_of %q is not a time", models.ErrInvalidRequest, in.AsOf)
		}
		asOf = t
	}
	if p := in.Portfolio; p != nil {
		if p.PositionFraction < 0 || p.PositionFraction > 1 || p.MaxPositionFraction < 0 || p.MaxPositionFraction > 1 {
			return models.AnalysisRequest{}, fmt.Errorf("%w: portfolio fractions must be within [0,1]", models.ErrInvalidRequest)
		}
		if p.TotalCapital <= 0 {
			return models.AnalysisRequest{}, fmt.Errorf("%w: total_capital must be positive", models.ErrInvalidRequest)
		}
	}
	return models.NewAnalysisRequest(in.SecurityID, asOf, in.Snapshot())
}
