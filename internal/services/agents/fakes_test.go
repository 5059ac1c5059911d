package agents

import (
	"context"
	"time"

	"AlphaCrew/internal/domain/models"
)

type fakeFinancials struct {
	facts models.FinancialFacts
	err   error
}

func (f fakeFinancials) FetchFinancials(_ context.Context, securityID string) (models.FinancialFacts, error) {
	if f.err != nil {
		return models.FinancialFacts{}, f.err
	}
	out := f.facts
	out.SecurityID = securityID
	return out, nil
}

type fakeModel struct {
	reply  string
	err    error
	prompt string
	inputs map[string]string
}

func (m *fakeModel) Invoke(_ context.Context, prompt string, inputs map[string]string) (string, error) {
	m.prompt = prompt
	m.inputs = inputs
	return m.reply, m.err
}

func request(sec string) models.AnalysisRequest {
	req, err := models.NewAnalysisRequest(sec, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), nil)
	if err != nil {
		panic(err)
	}
	return req
}
