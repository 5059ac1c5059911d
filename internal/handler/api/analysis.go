package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	models "AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
	"AlphaCrew/internal/service/metrics"
	"AlphaCrew/internal/usecase"
	xhttp "AlphaCrew/pkg/http"
	xlogger "AlphaCrew/pkg/logger"
	"AlphaCrew/pkg/queue"
)

type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, securityID string, limit int) ([]domrepo.AnalysisSummary, error)
}

// AnalysisHandler serves the analyze entry point and the archive.
type AnalysisHandler struct {
	logger   *xlogger.Logger
	analyzer Analyzer
	history  HistoryReader
	queue    queue.Enqueuer
	limit    echo.MiddlewareFunc
}

// AcceptedAnalysis acknowledges a queued analysis.
type AcceptedAnalysis struct {
	RequestID  string    `json:"request_id"`
	SecurityID string    `json:"security_id"`
	AsOf       time.Time `json:"as_of"`
}

func NewAnalysisHandler(logger *xlogger.Logger, analyzer Analyzer, history HistoryReader) *AnalysisHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &AnalysisHandler{logger: logger, analyzer: analyzer, history: history}
}

// SetRateLimit guards POST /api/analyze.
func (h *AnalysisHandler) SetRateLimit(mw echo.MiddlewareFunc) { h.limit = mw }

// SetQueue enables POST /api/analyze/async.
func (h *AnalysisHandler) SetQueue(q queue.Enqueuer) { h.queue = q }

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	var mws []echo.MiddlewareFunc
	if h.limit != nil {
		mws = append(mws, h.limit)
	}
	g.POST("/analyze", h.Analyze, mws...)
	if h.queue != nil {
		g.POST("/analyze/async", h.AnalyzeAsync, mws...)
	}
	g.GET("/analyses", h.History)
}

func (h *AnalysisHandler) Analyze(c echo.Context) error {
	const endpoint = "analyze"
	start := time.Now()
	defer metrics.ObserveSince(endpoint, start)

	in := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, in); verr != nil {
		metrics.CountError(endpoint, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}
	req, err := usecase.BuildRequest(*in, time.Now())
	if err != nil {
		return errorResponse(c, endpoint, err)
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), req)
	if err != nil {
		h.logger.Warn("analyze usecase error",
			xlogger.String("request_id", req.ID),
			xlogger.String("security_id", req.SecurityID),
			xlogger.Error(err),
		)
		return errorResponse(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// AnalyzeAsync validates and enqueues the request; the outcome lands in the
// archive and on the events topic under the returned request id.
func (h *AnalysisHandler) AnalyzeAsync(c echo.Context) error {
	const endpoint = "analyze_async"
	start := time.Now()
	defer metrics.ObserveSince(endpoint, start)

	in := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, in); verr != nil {
		metrics.CountError(endpoint, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}
	req, err := usecase.Submit(c.Request().Context(), h.queue, *in, time.Now())
	if err != nil {
		h.logger.Warn("analyze enqueue error", xlogger.String("security_id", in.SecurityID), xlogger.Error(err))
		return errorResponse(c, endpoint, err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, AcceptedAnalysis{
		RequestID:  req.ID,
		SecurityID: req.SecurityID,
		AsOf:       req.AsOf,
	})
}

func (h *AnalysisHandler) History(c echo.Context) error {
	const endpoint = "analyses"
	start := time.Now()
	defer metrics.ObserveSince(endpoint, start)

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.CountError(endpoint, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.history.Recent(c.Request().Context(), req.SecurityID, req.Limit)
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return errorResponse(c, endpoint, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
