package models

import "time"

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

type PayloadSize string

const (
	PayloadSmall  PayloadSize = "small"
	PayloadMedium PayloadSize = "medium"
	PayloadLarge  PayloadSize = "large"
)

// PayloadSizeFor classifies an evidence payload by its length in bytes.
func PayloadSizeFor(n int) PayloadSize {
	switch {
	case n < 256:
		return PayloadSmall
	case n < 2048:
		return PayloadMedium
	default:
		return PayloadLarge
	}
}

type AgentInvocationRecord struct {
	Producer    string      `json:"producer"`
	RequestID   string      `json:"request_id"`
	SecurityID  string      `json:"security_id"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     time.Time   `json:"ended_at"`
	Outcome     Outcome     `json:"outcome"`
	PayloadSize PayloadSize `json:"payload_size"`
	ErrorKind   string      `json:"error_kind,omitempty"`
	Score       float64     `json:"score"`      // zero unless Outcome is success
	Confidence  float64     `json:"confidence"` // zero unless Outcome is success
}

func (r AgentInvocationRecord) Latency() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

func (r AgentInvocationRecord) Failed() bool { return r.Outcome != OutcomeSuccess }

const (
	StatMeanConfidence = "mean_confidence"
	StatFailureRate    = "failure_rate"
)

type DriftWarning struct {
	Producer          string    `json:"producer"`
	Statistic         string    `json:"statistic"`
	Baseline          float64   `json:"baseline"`
	Current           float64   `json:"current"`
	ZScore            float64   `json:"z_score"`
	Threshold         float64   `json:"threshold"`
	ThresholdExceeded bool      `json:"threshold_exceeded"`
	ComputedAt        time.Time `json:"computed_at"`
}

type HealthStatus string

const (
	HealthOK                  HealthStatus = "ok"
	HealthDrifting            HealthStatus = "drifting"
	HealthInsufficientHistory HealthStatus = "insufficient_history"
	HealthUnknown             HealthStatus = "unknown"
)

type DriftReport struct {
	Producer   string         `json:"producer"`
	Status     HealthStatus   `json:"status"`
	Samples    int            `json:"samples"`
	Score      float64        `json:"score"` // max |z| across statistics
	Statistics []DriftWarning `json:"statistics,omitempty"`
}

// Warnings returns only the statistics that crossed the threshold.
func (r DriftReport) Warnings() []DriftWarning {
	out := make([]DriftWarning, 0, len(r.Statistics))
	for _, s := range r.Statistics {
		if s.ThresholdExceeded {
			out = append(out, s)
		}
	}
	return out
}

type LatencyPercentiles struct {
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P99 time.Duration `json:"p99"`
}

type HealthSnapshot struct {
	Producer           string             `json:"producer"`
	Status             HealthStatus       `json:"status"`
	Samples            int                `json:"samples"`
	SuccessRate        float64            `json:"success_rate"`
	MeanLatency        time.Duration      `json:"mean_latency"`
	LatencyPercentiles LatencyPercentiles `json:"latency_percentiles"`
	DriftScore         float64            `json:"drift_score"`
	DriftWarnings      []DriftWarning     `json:"drift_warnings"`
}

// AgentDrift is one row of the monitor's drift table.
type AgentDrift struct {
	Producer   string       `json:"producer"`
	DriftScore float64      `json:"drift_score"`
	Status     HealthStatus `json:"status"`
}

// MonitorSummary backs the system monitor surface.
type MonitorSummary struct {
	ActiveAgents    int                     `json:"active_agents"`
	SuccessfulRuns  float64                 `json:"successful_runs_pct"`
	AvgResponseTime time.Duration           `json:"avg_response_time"`
	Errors24h       int                     `json:"errors_24h"`
	DriftWarnings   int                     `json:"drift_warnings"`
	Agents          []AgentDrift            `json:"agents"`
	RecentLogs      []AgentInvocationRecord `json:"recent_logs"`
	GeneratedAt     time.Time               `json:"generated_at"`
}
