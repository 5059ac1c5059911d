package api

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	models "AlphaCrew/internal/domain/models"
	"AlphaCrew/internal/service/metrics"
	"AlphaCrew/pkg/cache"
	xhttp "AlphaCrew/pkg/http"
	xlogger "AlphaCrew/pkg/logger"
)

type ValuationReporter interface {
	Report(ctx context.Context, securityID string) (*models.ValuationReport, error)
}

// ValuationHandler serves the DCF scenario table, cached per security.
type ValuationHandler struct {
	logger   *xlogger.Logger
	reporter ValuationReporter
	cache    cache.Service
	ttl      time.Duration
}

func NewValuationHandler(logger *xlogger.Logger, reporter ValuationReporter) *ValuationHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ValuationHandler{logger: logger, reporter: reporter}
}

func (h *ValuationHandler) SetCache(c cache.Service, ttl time.Duration) {
	h.cache = c
	h.ttl = ttl
}

func (h *ValuationHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/valuation/:security", h.Valuation)
}

func (h *ValuationHandler) Valuation(c echo.Context) error {
	const endpoint = "valuation"
	start := time.Now()
	defer metrics.ObserveSince(endpoint, start)

	sec := strings.ToUpper(strings.TrimSpace(c.Param("security")))
	ctx := c.Request().Context()

	var (
		rep *models.ValuationReport
		err error
	)
	if h.cache == nil {
		rep, err = h.reporter.Report(ctx, sec)
	} else {
		var hit bool
		rep, hit, err = cache.GetOrLoad(ctx, h.cache, cache.GenerateKey("valuation", sec), h.ttl, func(ctx context.Context) (*models.ValuationReport, error) {
			return h.reporter.Report(ctx, sec)
		})
		if cache.IsStoreError(err) {
			h.logger.Warn("valuation cache_set_error", xlogger.String("security_id", sec), xlogger.Error(err))
			err = nil
		}
		if err == nil {
			metrics.CountCache(endpoint, hit)
		}
	}
	if err != nil {
		h.logger.Warn("valuation usecase error", xlogger.String("security_id", sec), xlogger.Error(err))
		return errorResponse(c, endpoint, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, rep)
}
