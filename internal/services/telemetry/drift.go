package telemetry

import (
	"math"
	"time"

	"AlphaCrew/internal/domain/models"
	"AlphaCrew/internal/services/features"
)

// ComputeDrift compares the producer's most recent segment with the baseline
// segment that precedes it. It never fails; short histories report
// insufficient_history and unknown producers report unknown.
func (c *Collector) ComputeDrift(producer string) models.DriftReport {
	st := c.state(producer, false)
	if st == nil {
		return models.DriftReport{Producer: producer, Status: models.HealthUnknown}
	}
	st.mu.Lock()
	records := st.win.records()
	st.mu.Unlock()
	return c.drift(producer, records)
}

// segments splits records into baseline and recent parts.
func (c *Collector) segments(records []models.AgentInvocationRecord) (baseline, recent []models.AgentInvocationRecord) {
	n := c.cfg.RecentSegment
	if len(records) <= n {
		n = len(records) / 2
	}
	cut := len(records) - n
	return records[:cut], records[cut:]
}

func (c *Collector) drift(producer string, records []models.AgentInvocationRecord) models.DriftReport {
	report := models.DriftReport{Producer: producer, Samples: len(records)}
	if len(records) == 0 {
		report.Status = models.HealthUnknown
		return report
	}
	if len(records) < c.cfg.MinSamples {
		report.Status = models.HealthInsufficientHistory
		return report
	}

	baseline, recent := c.segments(records)
	now := c.now()

	// failure rate: per-record 0/1 indicator
	bFail := failureIndicators(baseline)
	rFail := failureIndicators(recent)
	report.Statistics = append(report.Statistics, c.statistic(producer, models.StatFailureRate, bFail, rFail, now))

	// mean confidence over successful invocations only
	bConf := confidences(baseline)
	rConf := confidences(recent)
	if len(bConf) > 0 && len(rConf) > 0 {
		report.Statistics = append(report.Statistics, c.statistic(producer, models.StatMeanConfidence, bConf, rConf, now))
	}

	report.Status = models.HealthOK
	for _, s := range report.Statistics {
		if z := math.Abs(s.ZScore); z > report.Score {
			report.Score = z
		}
		if s.ThresholdExceeded {
			report.Status = models.HealthDrifting
		}
	}
	return report
}

func (c *Collector) statistic(producer, name string, baseline, recent []float64, now time.Time) models.DriftWarning {
	bMean := features.Mean(baseline)
	bSD := features.PopStdDev(baseline, bMean)
	cur := features.Mean(recent)
	z := features.ZScore(cur, bMean, bSD, len(recent), c.cfg.MinStdDev)
	return models.DriftWarning{
		Producer:          producer,
		Statistic:         name,
		Baseline:          bMean,
		Current:           cur,
		ZScore:            z,
		Threshold:         c.cfg.ZThreshold,
		ThresholdExceeded: math.Abs(z) > c.cfg.ZThreshold,
		ComputedAt:        now,
	}
}

func failureIndicators(recs []models.AgentInvocationRecord) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		if r.Failed() {
			out[i] = 1
		}
	}
	return out
}

func confidences(recs []models.AgentInvocationRecord) []float64 {
	out := make([]float64, 0, len(recs))
	for _, r := range recs {
		if r.Outcome == models.OutcomeSuccess {
			out = append(out, r.Confidence)
		}
	}
	return out
}

// Snapshot summarises a producer's window for the monitoring surface.
func (c *Collector) Snapshot(producer string) models.HealthSnapshot {
	snap := models.HealthSnapshot{Producer: producer, Status: models.HealthUnknown, DriftWarnings: []models.DriftWarning{}}
	records := c.Records(producer)
	if len(records) == 0 {
		return snap
	}
	snap.Samples = len(records)

	lat := make([]float64, len(records))
	ok := 0
	for i, r := range records {
		lat[i] = float64(r.Latency())
		if r.Outcome == models.OutcomeSuccess {
			ok++
		}
	}
	snap.SuccessRate = float64(ok) / float64(len(records))
	snap.MeanLatency = time.Duration(features.Mean(lat))
	snap.LatencyPercentiles = models.LatencyPercentiles{
		P50: time.Duration(features.Percentile(lat, 0.50)),
		P90: time.Duration(features.Percentile(lat, 0.90)),
		P99: time.Duration(features.Percentile(lat, 0.99)),
	}

	report := c.drift(producer, records)
	snap.Status = report.Status
	snap.DriftScore = report.Score
	snap.DriftWarnings = append(snap.DriftWarnings, report.Warnings()...)
	return snap
}
