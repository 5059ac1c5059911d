package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "alphacrew",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of analysis API endpoints",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphacrew",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by analysis API endpoint and error code",
		},
		[]string{"endpoint", "code"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alphacrew",
			Subsystem: "api",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, CacheLookups)
	})
}

// ObserveSince records the latency of one endpoint call.
func ObserveSince(endpoint string, start time.Time) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func CountError(endpoint, code string) {
	APIErrors.WithLabelValues(endpoint, code).Inc()
}

func CountCache(endpoint string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(endpoint, result).Inc()
}
