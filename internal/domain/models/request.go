package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PortfolioSnapshot is the caller's view of its holdings for the analysed security.
type PortfolioSnapshot struct {
	PositionFraction    float64 `json:"position_fraction"`     // current weight of the security, [0,1]
	TotalCapital        float64 `json:"total_capital"`         // capital base used to scale advice
	MaxPositionFraction float64 `json:"max_position_fraction"` // 0 means "use configured default"
}

// AnalysisRequest is immutable once built; use NewAnalysisRequest.
type AnalysisRequest struct {
	ID         string
	SecurityID string
	AsOf       time.Time
	portfolio  *PortfolioSnapshot
}

// NewAnalysisRequest normalises the security id, stamps a request id and copies the snapshot.
func NewAnalysisRequest(securityID string, asOf time.Time, snapshot *PortfolioSnapshot) (AnalysisRequest, error) {
	sec := strings.ToUpper(strings.TrimSpace(securityID))
	if sec == "" {
		return AnalysisRequest{}, fmt.Errorf("%w: security id is required", ErrInvalidRequest)
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	req := AnalysisRequest{
		ID:         uuid.NewString(),
		SecurityID: sec,
		AsOf:       asOf.UTC(),
	}
	if snapshot != nil {
		cp := *snapshot
		req.portfolio = &cp
	}
	return req, nil
}

// Portfolio returns a copy of the snapshot and whether one was supplied.
func (r AnalysisRequest) Portfolio() (PortfolioSnapshot, bool) {
	if r.portfolio == nil {
		return PortfolioSnapshot{}, false
	}
	return *r.portfolio, true
}
