package models

import "errors"

// Pipeline error taxonomy.
var (
	ErrAgentUnavailable     = errors.New("agent unavailable")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrNoSignalsAvailable   = errors.New("no signals available")
	ErrInconsistentSignal   = errors.New("inconsistent signal")
	ErrTelemetryUnavailable = errors.New("telemetry unavailable")
)

// Seam errors returned by external collaborators.
var (
	ErrModelUnavailable   = errors.New("language model unavailable")
	ErrModelRateLimited   = errors.New("language model rate limited")
	ErrFinancialsNotFound = errors.New("financials not found")
)

var (
	ErrDuplicateProducer = errors.New("duplicate signal producer")
	ErrInvalidRequest    = errors.New("invalid analysis request")
	ErrQueueUnavailable  = errors.New("analysis queue unavailable")
)

// ErrorKind names the taxonomy member err belongs to, for telemetry and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAgentUnavailable):
		return "agent_unavailable"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrNoSignalsAvailable):
		return "no_signals_available"
	case errors.Is(err, ErrInconsistentSignal):
		return "inconsistent_signal"
	case errors.Is(err, ErrTelemetryUnavailable):
		return "telemetry_unavailable"
	default:
		return "unknown"
	}
}
