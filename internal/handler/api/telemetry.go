package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "AlphaCrew/internal/domain/models"
	"AlphaCrew/internal/service/metrics"
	xhttp "AlphaCrew/pkg/http"
	xlogger "AlphaCrew/pkg/logger"
)

type TelemetryReader interface {
	HealthSnapshot(producer string) models.HealthSnapshot
	Summary(recent int) models.MonitorSummary
	Reset(producer string) (int, error)
}

// TelemetryHandler serves health snapshots, the monitor summary and the admin reset.
type TelemetryHandler struct {
	logger *xlogger.Logger
	uc     TelemetryReader
}

func NewTelemetryHandler(logger *xlogger.Logger, uc TelemetryReader) *TelemetryHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &TelemetryHandler{logger: logger, uc: uc}
}

func (h *TelemetryHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/telemetry")
	g.GET("/health/:producer", h.Health)
	g.GET("/summary", h.Summary)
	e.POST("/api/admin/telemetry/reset", h.Reset)
}

func (h *TelemetryHandler) Health(c echo.Context) error {
	defer metrics.ObserveSince("telemetry_health", time.Now())
	return xhttp.SuccessResponse(c, h.uc.HealthSnapshot(c.Param("producer")))
}

func (h *TelemetryHandler) Summary(c echo.Context) error {
	const endpoint = "telemetry_summary"
	defer metrics.ObserveSince(endpoint, time.Now())

	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.CountError(endpoint, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.uc.Summary(req.Recent))
}

func (h *TelemetryHandler) Reset(c echo.Context) error {
	const endpoint = "telemetry_reset"
	req := &models.ResetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Producer == "" {
		// the binder ignores query params on POST
		req.Producer = c.QueryParam("producer")
	}
	n, err := h.uc.Reset(req.Producer)
	if err != nil {
		return errorResponse(c, endpoint, err)
	}
	h.logger.Warn("telemetry reset", xlogger.String("producer", req.Producer), xlogger.Int("cleared", n))
	return xhttp.SuccessResponse(c, map[string]int{"cleared": n})
}
