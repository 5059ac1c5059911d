package repository

import (
	"context"
	"time"

	"AlphaCrew/internal/domain/models"
)

// AnalysisStore archives analysis outcomes and agent invocations.
type AnalysisStore interface {
	SaveResult(ctx context.Context, res *models.AnalysisResult) error
	SaveFailure(ctx context.Context, aerr *models.AnalysisError) error
	SaveInvocations(ctx context.Context, recs []models.AgentInvocationRecord) error
	RecentResults(ctx context.Context, securityID string, limit int) ([]AnalysisSummary, error)
	LoadInvocations(ctx context.Context, since time.Time, limit int) ([]models.AgentInvocationRecord, error)
	Health(ctx context.Context) error
}

// AnalysisSummary is one archived analysis row.
type AnalysisSummary struct {
	RequestID  string    `json:"request_id"`
	SecurityID string    `json:"security_id"`
	AsOf       time.Time `json:"as_of"`
	Stage      string    `json:"stage"`
	Action     string    `json:"action"`
	Confidence float64   `json:"confidence"`
	Score      float64   `json:"score"`
	Error      string    `json:"error"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventPublisher pushes pipeline events to the message bus.
type EventPublisher interface {
	PublishResult(ctx context.Context, res *models.AnalysisResult) error
	PublishFailure(ctx context.Context, aerr *models.AnalysisError) error
	PublishInvocations(ctx context.Context, recs []models.AgentInvocationRecord) error
	PublishDrift(ctx context.Context, warnings []models.DriftWarning) error
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

type Metrics interface {
	RecordAgentInvocation(producer string, outcome models.Outcome, seconds float64)
	RecordStage(stage models.Stage, seconds float64)
	RecordAnalysis(outcome string)
	RecordAnomaly(severity models.Severity)
	RecordDriftScore(producer string, score float64)
	RecordError(kind string)
}
