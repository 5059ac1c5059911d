package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaCrew/internal/domain/models"
	"AlphaCrew/internal/services/telemetry"
)

func invocation(producer string, outcome models.Outcome, end time.Time) models.AgentInvocationRecord {
	return models.AgentInvocationRecord{
		Producer:   producer,
		RequestID:  "r-" + end.Format(time.RFC3339Nano),
		SecurityID: "ACME",
		StartedAt:  end.Add(-100 * time.Millisecond),
		EndedAt:    end,
		Outcome:    outcome,
		Confidence: 0.8,
	}
}

func TestTelemetrySummary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := telemetry.NewCollector(telemetry.DefaultConfig())
	c.Record(invocation("quantitative", models.OutcomeFailure, now.Add(-25*time.Hour)))
	for i := 3; i > 0; i-- {
		c.Record(invocation("quantitative", models.OutcomeSuccess, now.Add(-time.Duration(i)*time.Minute)))
	}
	c.Record(invocation("quantitative", models.OutcomeTimeout, now))

	uc := NewTelemetryUseCase(c, []string{"quantitative", "qualitative"})
	uc.now = func() time.Time { return now }

	sum := uc.Summary(2)
	assert.Equal(t, 1, sum.ActiveAgents)
	assert.InDelta(t, 60.0, sum.SuccessfulRuns, 1e-9)
	assert.Equal(t, 100*time.Millisecond, sum.AvgResponseTime)
	assert.Equal(t, 1, sum.Errors24h)
	assert.Equal(t, 0, sum.DriftWarnings)
	require.Len(t, sum.Agents, 2)
	assert.Equal(t, "qualitative", sum.Agents[0].Producer)
	assert.Equal(t, models.HealthUnknown, sum.Agents[0].Status)
	assert.Equal(t, models.HealthInsufficientHistory, sum.Agents[1].Status)
	require.Len(t, sum.RecentLogs, 2)
	assert.Equal(t, now, sum.RecentLogs[0].EndedAt)
	assert.Equal(t, now, sum.GeneratedAt)
}

func TestTelemetrySummaryEmpty(t *testing.T) {
	uc := NewTelemetryUseCase(telemetry.NewCollector(telemetry.DefaultConfig()), nil)
	sum := uc.Summary(10)
	assert.Zero(t, sum.ActiveAgents)
	assert.Zero(t, sum.SuccessfulRuns)
	assert.NotNil(t, sum.Agents)
	assert.NotNil(t, sum.RecentLogs)
}

func TestTelemetryHealthSnapshotUnknown(t *testing.T) {
	uc := NewTelemetryUseCase(telemetry.NewCollector(telemetry.DefaultConfig()), nil)
	snap := uc.HealthSnapshot("ghost")
	assert.Equal(t, models.HealthUnknown, snap.Status)
	assert.Zero(t, snap.Samples)
}

func TestTelemetryReset(t *testing.T) {
	now := time.Now()
	c := telemetry.NewCollector(telemetry.DefaultConfig())
	c.Record(invocation("quantitative", models.OutcomeSuccess, now))
	c.Record(invocation("qualitative", models.OutcomeSuccess, now))
	uc := NewTelemetryUseCase(c, nil)

	_, err := uc.Reset("ghost")
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	n, err := uc.Reset("quantitative")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, c.Records("quantitative"))

	n, err = uc.Reset("")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, c.Producers())
}
