package models

// Requests for the HTTP and Kafka entry points. Defined in domain for reuse by both.

type PortfolioInput struct {
	PositionFraction    float64 `json:"position_fraction" validate:"gte=0,lte=1"`
	TotalCapital        float64 `json:"total_capital" validate:"gt=0"`
	MaxPositionFraction float64 `json:"max_position_fraction" validate:"gte=0,lte=1"`
}

type AnalyzeRequest struct {
	SecurityID string          `json:"security_id" validate:"required,max=32"`
	AsOf       string          `json:"as_of"` // RFC3339 or unix seconds; empty means now
	Portfolio  *PortfolioInput `json:"portfolio" validate:"omitempty"`
}

// Snapshot converts the optional portfolio input.
func (r AnalyzeRequest) Snapshot() *PortfolioSnapshot {
	if r.Portfolio == nil {
		return nil
	}
	return &PortfolioSnapshot{
		PositionFraction:    r.Portfolio.PositionFraction,
		TotalCapital:        r.Portfolio.TotalCapital,
		MaxPositionFraction: r.Portfolio.MaxPositionFraction,
	}
}

type HistoryRequest struct {
	SecurityID string `query:"security_id" json:"security_id" validate:"required"`
	Limit      int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}

type SummaryRequest struct {
	Recent int `query:"recent" json:"recent" default:"20" validate:"gte=0,lte=200"`
}

type ResetRequest struct {
	Producer string `query:"producer" json:"producer"`
}
