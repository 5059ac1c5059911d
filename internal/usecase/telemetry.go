package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"AlphaCrew/internal/domain/models"
	"AlphaCrew/internal/services/telemetry"
)

// TelemetryUseCase serves the monitoring surface from the collector.
type TelemetryUseCase struct {
	collector *telemetry.Collector
	agents    []string
	now       func() time.Time
}

// NewTelemetryUseCase takes the configured agent names so that agents which
// have not run yet still appear in the summary.
func NewTelemetryUseCase(c *telemetry.Collector, agents []string) *TelemetryUseCase {
	return &TelemetryUseCase{collector: c, agents: agents, now: time.Now}
}

func (uc *TelemetryUseCase) HealthSnapshot(producer string) models.HealthSnapshot {
	return uc.collector.Snapshot(strings.TrimSpace(producer))
}

func (uc *TelemetryUseCase) producers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range append(append([]string{}, uc.agents...), uc.collector.Producers()...) {
		if _, ok := seen[p]; ok || p == "" {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Summary aggregates every producer's window; recent bounds the invocation log.
func (uc *TelemetryUseCase) Summary(recent int) models.MonitorSummary {
	now := uc.now()
	dayAgo := now.Add(-24 * time.Hour)
	sum := models.MonitorSummary{
		Agents:      []models.AgentDrift{},
		RecentLogs:  []models.AgentInvocationRecord{},
		GeneratedAt: now,
	}

	var total, ok int
	var latency time.Duration
	for _, p := range uc.producers() {
		snap := uc.collector.Snapshot(p)
		sum.Agents = append(sum.Agents, models.AgentDrift{Producer: p, DriftScore: snap.DriftScore, Status: snap.Status})
		sum.DriftWarnings += len(snap.DriftWarnings)

		recs := uc.collector.Records(p)
		if len(recs) > 0 {
			sum.ActiveAgents++
		}
		for _, r := range recs {
			total++
			latency += r.Latency()
			if r.Outcome == models.OutcomeSuccess {
				ok++
			} else if r.EndedAt.After(dayAgo) {
				sum.Errors24h++
			}
		}
	}
	if total > 0 {
		sum.SuccessfulRuns = 100 * float64(ok) / float64(total)
		sum.AvgResponseTime = latency / time.Duration(total)
	}
	if logs := uc.collector.Recent(recent); len(logs) > 0 {
		sum.RecentLogs = logs
	}
	return sum
}

// Reset clears one producer's history, or every producer's when producer is empty.
// It returns the number of producers cleared.
func (uc *TelemetryUseCase) Reset(producer string) (int, error) {
	producer = strings.TrimSpace(producer)
	if producer == "" {
		return uc.collector.ResetAll(), nil
	}
	if !uc.collector.Reset(producer) {
		return 0, fmt.Errorf("%w: no telemetry for producer %q", models.ErrInsufficientData, producer)
	}
	return 1, nil
}
