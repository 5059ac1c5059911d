package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaCrew/internal/domain/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(producer string, i int, outcome models.Outcome, conf float64, latency time.Duration) models.AgentInvocationRecord {
	start := t0.Add(time.Duration(i) * time.Second)
	r := models.AgentInvocationRecord{
		Producer:  producer,
		RequestID: fmt.Sprintf("req-%d", i),
		StartedAt: start,
		EndedAt:   start.Add(latency),
		Outcome:   outcome,
	}
	if outcome == models.OutcomeSuccess {
		r.Confidence = conf
		r.Score = 0.1
	}
	return r
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	c := NewCollector(Config{WindowSize: 3})
	for i := 0; i < 5; i++ {
		c.Record(rec("quant", i, models.OutcomeSuccess, 0.8, time.Millisecond))
	}
	got := c.Records("quant")
	require.Len(t, got, 3)
	assert.Equal(t, "req-2", got[0].RequestID)
	assert.Equal(t, "req-4", got[2].RequestID)
}

func TestDriftOnFailureRateShift(t *testing.T) {
	c := NewCollector(DefaultConfig())
	i := 0
	for ; i < 10; i++ {
		c.Record(rec("quant", i, models.OutcomeSuccess, 0.8, 10*time.Millisecond))
	}
	for j := 0; j < 20; j, i = j+1, i+1 {
		outcome := models.OutcomeSuccess
		if j%2 == 0 {
			outcome = models.OutcomeFailure
		}
		c.Record(rec("quant", i, outcome, 0.8, 10*time.Millisecond))
	}

	report := c.ComputeDrift("quant")
	assert.Equal(t, models.HealthDrifting, report.Status)
	assert.Equal(t, 30, report.Samples)
	warnings := report.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, models.StatFailureRate, warnings[0].Statistic)
	assert.InDelta(t, 0.0, warnings[0].Baseline, 1e-9)
	assert.InDelta(t, 0.5, warnings[0].Current, 1e-9)
	assert.True(t, warnings[0].ThresholdExceeded)
}

func TestDriftAgainstLowFailureBaseline(t *testing.T) {
	c := NewCollector(DefaultConfig())
	i := 0
	// baseline: 1 failure in 20 -> 0.05
	for ; i < 20; i++ {
		outcome := models.OutcomeSuccess
		if i == 7 {
			outcome = models.OutcomeFailure
		}
		c.Record(rec("qual", i, outcome, 0.6, time.Millisecond))
	}
	for j := 0; j < 20; j, i = j+1, i+1 {
		outcome := models.OutcomeSuccess
		if j < 10 {
			outcome = models.OutcomeFailure
		}
		c.Record(rec("qual", i, outcome, 0.6, time.Millisecond))
	}

	report := c.ComputeDrift("qual")
	require.Equal(t, models.HealthDrifting, report.Status)
	var fr models.DriftWarning
	for _, w := range report.Warnings() {
		if w.Statistic == models.StatFailureRate {
			fr = w
		}
	}
	assert.InDelta(t, 0.05, fr.Baseline, 1e-9)
	assert.InDelta(t, 0.5, fr.Current, 1e-9)
	assert.Greater(t, fr.ZScore, 2.0)
}

func TestDriftOnConfidenceShift(t *testing.T) {
	c := NewCollector(DefaultConfig())
	for i := 0; i < 40; i++ {
		conf := 0.8
		if i >= 20 {
			conf = 0.3
		}
		c.Record(rec("qual", i, models.OutcomeSuccess, conf, time.Millisecond))
	}
	report := c.ComputeDrift("qual")
	require.Equal(t, models.HealthDrifting, report.Status)
	warnings := report.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, models.StatMeanConfidence, warnings[0].Statistic)
	assert.Less(t, warnings[0].ZScore, -2.0)
}

func TestNoDriftOnSteadyHistory(t *testing.T) {
	c := NewCollector(DefaultConfig())
	for i := 0; i < 60; i++ {
		c.Record(rec("quant", i, models.OutcomeSuccess, 0.7, time.Millisecond))
	}
	report := c.ComputeDrift("quant")
	assert.Equal(t, models.HealthOK, report.Status)
	assert.Empty(t, report.Warnings())
	assert.Equal(t, 0.0, report.Score)
}

func TestDriftInsufficientHistoryAndUnknown(t *testing.T) {
	c := NewCollector(DefaultConfig())
	for i := 0; i < 9; i++ {
		c.Record(rec("quant", i, models.OutcomeFailure, 0, time.Millisecond))
	}
	assert.Equal(t, models.HealthInsufficientHistory, c.ComputeDrift("quant").Status)
	assert.Equal(t, models.HealthUnknown, c.ComputeDrift("nobody").Status)
}

func TestSnapshot(t *testing.T) {
	c := NewCollector(DefaultConfig())
	for i := 0; i < 10; i++ {
		outcome := models.OutcomeSuccess
		if i == 9 {
			outcome = models.OutcomeTimeout
		}
		c.Record(rec("quant", i, outcome, 0.9, time.Duration(i+1)*10*time.Millisecond))
	}
	snap := c.Snapshot("quant")
	assert.Equal(t, 10, snap.Samples)
	assert.InDelta(t, 0.9, snap.SuccessRate, 1e-9)
	assert.Equal(t, 55*time.Millisecond, snap.MeanLatency)
	assert.Equal(t, 50*time.Millisecond, snap.LatencyPercentiles.P50)
	assert.Equal(t, 90*time.Millisecond, snap.LatencyPercentiles.P90)
	assert.Equal(t, 100*time.Millisecond, snap.LatencyPercentiles.P99)
	assert.NotNil(t, snap.DriftWarnings)

	unknown := c.Snapshot("missing")
	assert.Equal(t, models.HealthUnknown, unknown.Status)
	assert.Equal(t, 0, unknown.Samples)
}

func TestScoreHistoryExcludesRequestAndFailures(t *testing.T) {
	c := NewCollector(DefaultConfig())
	c.Record(rec("quant", 1, models.OutcomeSuccess, 0.9, time.Millisecond))
	c.Record(rec("quant", 2, models.OutcomeFailure, 0, time.Millisecond))
	c.Record(rec("quant", 3, models.OutcomeSuccess, 0.9, time.Millisecond))
	assert.Len(t, c.ScoreHistory("quant", ""), 2)
	assert.Len(t, c.ScoreHistory("quant", "req-3"), 1)
}

func TestResetIsExplicit(t *testing.T) {
	c := NewCollector(DefaultConfig())
	c.Record(rec("quant", 1, models.OutcomeSuccess, 0.9, time.Millisecond))
	c.Record(rec("qual", 1, models.OutcomeSuccess, 0.9, time.Millisecond))

	assert.True(t, c.Reset("quant"))
	assert.False(t, c.Reset("quant"))
	assert.Equal(t, []string{"qual"}, c.Producers())

	assert.Equal(t, 1, c.ResetAll())
	assert.Empty(t, c.Producers())
}

func TestRecentAcrossProducers(t *testing.T) {
	c := NewCollector(DefaultConfig())
	c.Record(rec("quant", 1, models.OutcomeSuccess, 0.9, time.Millisecond))
	c.Record(rec("qual", 3, models.OutcomeSuccess, 0.9, time.Millisecond))
	c.Record(rec("quant", 2, models.OutcomeSuccess, 0.9, time.Millisecond))

	got := c.Recent(2)
	require.Len(t, got, 2)
	assert.Equal(t, "req-3", got[0].RequestID)
	assert.Equal(t, "req-2", got[1].RequestID)
}

type captureSub struct {
	mu     sync.Mutex
	recs   []models.AgentInvocationRecord
	drifts []models.DriftReport
}

func (s *captureSub) OnRecord(r models.AgentInvocationRecord) {
	s.mu.Lock()
	s.recs = append(s.recs, r)
	s.mu.Unlock()
}

func (s *captureSub) OnDrift(r models.DriftReport) {
	s.mu.Lock()
	s.drifts = append(s.drifts, r)
	s.mu.Unlock()
}

func TestSubscribersNotified(t *testing.T) {
	c := NewCollector(DefaultConfig())
	sub := &captureSub{}
	c.Subscribe(sub)
	c.SubscribeDrift(sub)

	for i := 0; i < 10; i++ {
		c.Record(rec("quant", i, models.OutcomeSuccess, 0.8, time.Millisecond))
	}
	for i := 10; i < 40; i++ {
		c.Record(rec("quant", i, models.OutcomeFailure, 0, time.Millisecond))
	}
	assert.Len(t, sub.recs, 40)
	// drift fires once on the transition into drifting
	assert.Len(t, sub.drifts, 1)
}

func TestSeedDoesNotNotify(t *testing.T) {
	c := NewCollector(DefaultConfig())
	sub := &captureSub{}
	c.Subscribe(sub)
	c.Seed([]models.AgentInvocationRecord{
		rec("quant", 2, models.OutcomeSuccess, 0.8, time.Millisecond),
		rec("quant", 1, models.OutcomeSuccess, 0.8, time.Millisecond),
	})
	got := c.Records("quant")
	require.Len(t, got, 2)
	assert.Equal(t, "req-1", got[0].RequestID)
	assert.Empty(t, sub.recs)
}

func TestConcurrentRecordsKeepPerProducerCounts(t *testing.T) {
	c := NewCollector(Config{WindowSize: 1000})
	var wg sync.WaitGroup
	for _, p := range []string{"a", "b", "c", "d"} {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(p string, w int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					c.Record(rec(p, w*100+i, models.OutcomeSuccess, 0.5, time.Millisecond))
					_ = c.Snapshot(p)
				}
			}(p, w)
		}
	}
	wg.Wait()
	for _, p := range []string{"a", "b", "c", "d"} {
		assert.Len(t, c.Records(p), 200)
	}
}

type fnAgent struct {
	name string
	fn   func(ctx context.Context) (models.Signal, error)
}

func (f fnAgent) Name() string { return f.name }

func (f fnAgent) ProduceSignal(ctx context.Context, _ models.AnalysisRequest) (models.Signal, error) {
	return f.fn(ctx)
}

func newReq(t *testing.T) models.AnalysisRequest {
	req, err := models.NewAnalysisRequest("aapl", t0, nil)
	require.NoError(t, err)
	return req
}

func TestInstrumentRecordsSuccess(t *testing.T) {
	c := NewCollector(DefaultConfig())
	a := Instrument(fnAgent{name: "quant", fn: func(context.Context) (models.Signal, error) {
		return models.Signal{Value: models.NumericValue(0.4, ""), Confidence: 1.3, Evidence: models.Evidence{Summary: "ok"}}, nil
	}}, c)

	req := newReq(t)
	sig, err := a.ProduceSignal(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "quant", sig.Producer)
	assert.Equal(t, 1.0, sig.Confidence)

	recs := c.Records("quant")
	require.Len(t, recs, 1)
	assert.Equal(t, models.OutcomeSuccess, recs[0].Outcome)
	assert.Equal(t, req.ID, recs[0].RequestID)
	assert.Equal(t, 0.4, recs[0].Score)
	assert.Equal(t, models.PayloadSmall, recs[0].PayloadSize)
}

func TestInstrumentRecordsFailureAndWrapsUnknownErrors(t *testing.T) {
	c := NewCollector(DefaultConfig())
	a := Instrument(fnAgent{name: "qual", fn: func(context.Context) (models.Signal, error) {
		return models.Signal{}, errors.New("boom")
	}}, c)

	_, err := a.ProduceSignal(context.Background(), newReq(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAgentUnavailable)

	recs := c.Records("qual")
	require.Len(t, recs, 1)
	assert.Equal(t, models.OutcomeFailure, recs[0].Outcome)
	assert.Equal(t, "agent_unavailable", recs[0].ErrorKind)
}

func TestInstrumentKeepsInsufficientData(t *testing.T) {
	c := NewCollector(DefaultConfig())
	a := Instrument(fnAgent{name: "quant", fn: func(context.Context) (models.Signal, error) {
		return models.Signal{}, fmt.Errorf("%w: no price", models.ErrInsufficientData)
	}}, c)
	_, err := a.ProduceSignal(context.Background(), newReq(t))
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Equal(t, "insufficient_data", c.Records("quant")[0].ErrorKind)
}

func TestInstrumentTimesOutHungAgent(t *testing.T) {
	c := NewCollector(DefaultConfig())
	release := make(chan struct{})
	defer close(release)
	a := Instrument(fnAgent{name: "slow", fn: func(context.Context) (models.Signal, error) {
		<-release
		return models.Signal{}, nil
	}}, c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.ProduceSignal(ctx, newReq(t))
	assert.ErrorIs(t, err, models.ErrAgentUnavailable)

	recs := c.Records("slow")
	require.Len(t, recs, 1)
	assert.Equal(t, models.OutcomeTimeout, recs[0].Outcome)
}

func TestInstrumentRecoversPanics(t *testing.T) {
	c := NewCollector(DefaultConfig())
	a := Instrument(fnAgent{name: "bad", fn: func(context.Context) (models.Signal, error) {
		panic("nil map")
	}}, c)
	_, err := a.ProduceSignal(context.Background(), newReq(t))
	assert.ErrorIs(t, err, models.ErrAgentUnavailable)
	assert.Len(t, c.Records("bad"), 1)
}
