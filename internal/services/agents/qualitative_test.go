package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaCrew/internal/domain/models"
)

func TestQualitativeParsesAssessment(t *testing.T) {
	m := &fakeModel{reply: "Here is my view:\n```json\n" +
		`{"moat_score": 0.6, "moat_rating": "Wide Moat", "management_rating": "Strong", "certainty": 0.7, "explanation": "Dominant ecosystem with high switching costs."}` +
		"\n```"}
	a := NewQualitativeAgent(DefaultQualitativeConfig(), m)
	sig, err := a.ProduceSignal(context.Background(), request("acme"))
	require.NoError(t, err)

	assert.Equal(t, QualitativeName, sig.Producer)
	assert.InDelta(t, 0.6, sig.Value.Score, 1e-12)
	assert.Equal(t, "Wide Moat", sig.Value.Label)
	assert.InDelta(t, 0.7, sig.Confidence, 1e-12)
	assert.Equal(t, "Wide Moat: Dominant ecosystem with high switching costs. Management: Strong.", sig.Evidence.Summary)
	assert.Equal(t, "ACME", m.inputs["security_id"])
	assert.Equal(t, "2024-03-01", m.inputs["as_of"])
	assert.Contains(t, m.prompt, "moat_score")
}

func TestQualitativeClampsValues(t *testing.T) {
	cases := []struct {
		reply     string
		score     float64
		certainty float64
	}{
		{`{"moat_score": 3, "certainty": 1, "explanation": "x"}`, 1, 0.9},
		{`{"moat_score": -2, "certainty": 0, "explanation": "x"}`, -1, 0.1},
		{`{"moat_score": 0.1, "certainty": 80, "explanation": "x"}`, 0.1, 0.8},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			a := NewQualitativeAgent(DefaultQualitativeConfig(), &fakeModel{reply: tc.reply})
			sig, err := a.ProduceSignal(context.Background(), request("acme"))
			require.NoError(t, err)
			assert.InDelta(t, tc.score, sig.Value.Score, 1e-12)
			assert.InDelta(t, tc.certainty, sig.Confidence, 1e-12)
		})
	}
}

func TestQualitativeErrors(t *testing.T) {
	cases := []struct {
		name string
		m    *fakeModel
		want error
	}{
		{"rate limited", &fakeModel{err: fmt.Errorf("invoke: %w", models.ErrModelRateLimited)}, models.ErrAgentUnavailable},
		{"unavailable", &fakeModel{err: models.ErrModelUnavailable}, models.ErrAgentUnavailable},
		{"empty reply", &fakeModel{reply: ""}, models.ErrInsufficientData},
		{"prose only", &fakeModel{reply: "The company has a wide moat."}, models.ErrInsufficientData},
		{"broken json", &fakeModel{reply: `{"moat_score": 0.5,`}, models.ErrInsufficientData},
		{"empty explanation", &fakeModel{reply: `{"moat_score": 0.5, "certainty": 0.5, "explanation": "  "}`}, models.ErrInsufficientData},
		{"no score", &fakeModel{reply: `{"certainty": 0.5, "explanation": "ok"}`}, models.ErrInsufficientData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewQualitativeAgent(DefaultQualitativeConfig(), tc.m)
			_, err := a.ProduceSignal(context.Background(), request("acme"))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
