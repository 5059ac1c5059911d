package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	models "AlphaCrew/internal/domain/models"
	"AlphaCrew/internal/service/metrics"
	"AlphaCrew/internal/usecase"
	xhttp "AlphaCrew/pkg/http"
)

// toAppError maps the pipeline taxonomy onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrInvalidRequest):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNoSignalsAvailable):
		return xhttp.ServiceUnavailableError("NO_SIGNALS_AVAILABLE", "no agent produced a signal").WithError(err)
	case errors.Is(err, models.ErrInconsistentSignal):
		return xhttp.UnprocessableError("INCONSISTENT_SIGNAL", "signals are inconsistent").WithError(err)
	case errors.Is(err, models.ErrTelemetryUnavailable):
		return xhttp.ServiceUnavailableError("TELEMETRY_UNAVAILABLE", "telemetry store unavailable").WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.NewAppError("INSUFFICIENT_DATA", "", "insufficient data", http.StatusNotFound).WithError(err)
	case errors.Is(err, models.ErrQueueUnavailable):
		return xhttp.ServiceUnavailableError("QUEUE_UNAVAILABLE", "analysis queue unavailable").WithError(err)
	case errors.Is(err, models.ErrAgentUnavailable):
		return xhttp.ServiceUnavailableError("UPSTREAM_UNAVAILABLE", "upstream data source unavailable").WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

// errorResponse writes err and counts it against endpoint.
func errorResponse(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	if aerr, ok := usecase.AsAnalysisError(err); ok {
		appErr.WithParam("request_id", aerr.RequestID).
			WithParam("stage", aerr.Stage)
		if len(aerr.AgentErrors) > 0 {
			appErr.WithParam("agent_errors", aerr.AgentErrors)
		}
		if aerr.Signals.Len() > 0 {
			appErr.WithParam("signals", aerr.Signals)
		}
	}
	metrics.CountError(endpoint, appErr.Code)
	return xhttp.AppErrorResponse(c, appErr)
}
