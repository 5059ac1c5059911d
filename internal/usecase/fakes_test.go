package usecase

import (
	"context"
	"sync"
	"time"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
)

type fakeAgent struct {
	name string
	fn   func(ctx context.Context) (models.Signal, error)
}

func (a fakeAgent) Name() string { return a.name }

func (a fakeAgent) ProduceSignal(ctx context.Context, _ models.AnalysisRequest) (models.Signal, error) {
	return a.fn(ctx)
}

func staticAgent(name string, score, conf float64, inputs map[string]float64) fakeAgent {
	return fakeAgent{name: name, fn: func(context.Context) (models.Signal, error) {
		return models.Signal{
			Value:      models.NumericValue(score, ""),
			Confidence: conf,
			Evidence:   models.Evidence{Summary: name + " view", Inputs: inputs},
		}, nil
	}}
}

func failingAgent(name string, err error) fakeAgent {
	return fakeAgent{name: name, fn: func(context.Context) (models.Signal, error) { return models.Signal{}, err }}
}

func hangingAgent(name string) fakeAgent {
	return fakeAgent{name: name, fn: func(ctx context.Context) (models.Signal, error) {
		<-ctx.Done()
		return models.Signal{}, ctx.Err()
	}}
}

type memStore struct {
	mu       sync.Mutex
	results  []*models.AnalysisResult
	failures []*models.AnalysisError
	invs     []models.AgentInvocationRecord
	err      error
}

func (s *memStore) SaveResult(_ context.Context, res *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return s.err
}

func (s *memStore) SaveFailure(_ context.Context, aerr *models.AnalysisError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, aerr)
	return s.err
}

func (s *memStore) SaveInvocations(_ context.Context, recs []models.AgentInvocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invs = append(s.invs, recs...)
	return s.err
}

func (s *memStore) RecentResults(_ context.Context, securityID string, limit int) ([]domrepo.AnalysisSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domrepo.AnalysisSummary
	for i := len(s.results) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.results[i]
		if securityID != "" && r.SecurityID != securityID {
			continue
		}
		out = append(out, domrepo.AnalysisSummary{
			RequestID:  r.RequestID,
			SecurityID: r.SecurityID,
			Stage:      string(models.StageDone),
			Action:     string(r.Recommendation.Action),
			Confidence: r.Recommendation.Confidence,
			Score:      r.Recommendation.Score,
			CreatedAt:  r.CompletedAt,
		})
	}
	return out, s.err
}

func (s *memStore) LoadInvocations(_ context.Context, since time.Time, limit int) ([]models.AgentInvocationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AgentInvocationRecord
	for _, r := range s.invs {
		if !r.EndedAt.Before(since) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, s.err
}

func (s *memStore) Health(context.Context) error { return s.err }

type countingMetrics struct {
	mu        sync.Mutex
	stages    map[models.Stage]int
	analyses  map[string]int
	anomalies map[models.Severity]int
	errors    map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		stages:    map[models.Stage]int{},
		analyses:  map[string]int{},
		anomalies: map[models.Severity]int{},
		errors:    map[string]int{},
	}
}

func (m *countingMetrics) RecordAgentInvocation(string, models.Outcome, float64) {}
func (m *countingMetrics) RecordDriftScore(string, float64)                     {}

func (m *countingMetrics) RecordStage(stage models.Stage, _ float64) {
	m.mu.Lock()
	m.stages[stage]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordAnalysis(outcome string) {
	m.mu.Lock()
	m.analyses[outcome]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordAnomaly(sev models.Severity) {
	m.mu.Lock()
	m.anomalies[sev]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
