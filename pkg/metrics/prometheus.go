package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"AlphaCrew/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	invocations  *prometheus.CounterVec
	agentLatency *prometheus.HistogramVec
	stages       *prometheus.HistogramVec
	analyses     *prometheus.CounterVec
	anomalies    *prometheus.CounterVec
	driftScore   *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		invocations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphacrew_agent_invocations_total",
				Help: "Agent invocations by producer and outcome",
			},
			[]string{"producer", "outcome"},
		),
		agentLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphacrew_agent_latency_seconds",
				Help:    "Agent invocation latency in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20},
			},
			[]string{"producer"},
		),
		stages: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphacrew_pipeline_stage_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"stage"},
		),
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphacrew_analyses_total",
				Help: "Completed analyses by action, or failed",
			},
			[]string{"outcome"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphacrew_anomaly_flags_total",
				Help: "Anomaly flags raised by severity",
			},
			[]string{"severity"},
		),
		driftScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphacrew_agent_drift_score",
				Help: "Largest absolute drift z-score per producer",
			},
			[]string{"producer"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphacrew_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordAgentInvocation(producer string, outcome models.Outcome, seconds float64) {
	r.invocations.WithLabelValues(producer, string(outcome)).Inc()
	r.agentLatency.WithLabelValues(producer).Observe(seconds)
}

func (r *Recorder) RecordStage(stage models.Stage, seconds float64) {
	r.stages.WithLabelValues(string(stage)).Observe(seconds)
}

func (r *Recorder) RecordAnalysis(outcome string) {
	r.analyses.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordAnomaly(severity models.Severity) {
	r.anomalies.WithLabelValues(string(severity)).Inc()
}

func (r *Recorder) RecordDriftScore(producer string, score float64) {
	r.driftScore.WithLabelValues(producer).Set(score)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
