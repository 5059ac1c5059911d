package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
	"AlphaCrew/internal/usecase"
	"AlphaCrew/pkg/cache"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type appErrBody struct {
	Code   string                 `json:"code"`
	Params map[string]interface{} `json:"params"`
}

func serve(t *testing.T, h interface{ RegisterRoutes(*echo.Echo) }, method, target, body string) (int, envelope) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func firstError(t *testing.T, env envelope) appErrBody {
	t.Helper()
	var errs []appErrBody
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.NotEmpty(t, errs)
	return errs[0]
}

type stubAnalyzer struct {
	got models.AnalysisRequest
	err error
}

func (s *stubAnalyzer) Analyze(_ context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.AnalysisResult{
		RequestID:      req.ID,
		SecurityID:     req.SecurityID,
		Recommendation: models.Recommendation{Action: models.ActionBuy, Score: 0.46, Confidence: 0.78},
	}, nil
}

type stubHistory struct {
	rows []domrepo.AnalysisSummary
	err  error
}

func (s stubHistory) Recent(context.Context, string, int) ([]domrepo.AnalysisSummary, error) {
	return s.rows, s.err
}

func TestAnalyzeOK(t *testing.T) {
	a := &stubAnalyzer{}
	h := NewAnalysisHandler(nil, a, stubHistory{})
	code, env := serve(t, h, http.MethodPost, "/api/analyze", `{"security_id":"acme","portfolio":{"position_fraction":0,"total_capital":100000}}`)

	require.Equal(t, http.StatusOK, code)
	var res models.AnalysisResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "ACME", res.SecurityID)
	assert.Equal(t, models.ActionBuy, res.Recommendation.Action)
	snap, ok := a.got.Portfolio()
	require.True(t, ok)
	assert.Equal(t, 100000.0, snap.TotalCapital)
}

func TestAnalyzeValidation(t *testing.T) {
	h := NewAnalysisHandler(nil, &stubAnalyzer{}, stubHistory{})

	code, env := serve(t, h, http.MethodPost, "/api/analyze", `{"portfolio":null}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ERR_REQUIRED", firstError(t, env).Code)

	code, env = serve(t, h, http.MethodPost, "/api/analyze", `{"security_id":"ACME","as_of":"tomorrow-ish"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ERR_BAD_REQUEST", firstError(t, env).Code)
}

func TestAnalyzeErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&models.AnalysisError{RequestID: "r", Stage: models.StageSignalsPending, Err: models.ErrNoSignalsAvailable,
			AgentErrors: map[string]string{"quantitative": "agent unavailable"}}, http.StatusServiceUnavailable, "NO_SIGNALS_AVAILABLE"},
		{&models.AnalysisError{RequestID: "r", Stage: models.StageSynthesized, Err: models.ErrInconsistentSignal}, http.StatusUnprocessableEntity, "INCONSISTENT_SIGNAL"},
		{fmt.Errorf("wrap: %w", models.ErrTelemetryUnavailable), http.StatusServiceUnavailable, "TELEMETRY_UNAVAILABLE"},
		{fmt.Errorf("wrap: %w", models.ErrInsufficientData), http.StatusNotFound, "INSUFFICIENT_DATA"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := NewAnalysisHandler(nil, &stubAnalyzer{err: tc.err}, stubHistory{})
			code, env := serve(t, h, http.MethodPost, "/api/analyze", `{"security_id":"ACME"}`)
			assert.Equal(t, tc.status, code)
			body := firstError(t, env)
			assert.Equal(t, tc.code, body.Code)
			if _, ok := tc.err.(*models.AnalysisError); ok {
				assert.Equal(t, "r", body.Params["request_id"])
				assert.NotEmpty(t, body.Params["stage"])
			}
		})
	}
}

func TestAnalyzeFailureKeepsSignals(t *testing.T) {
	set := models.NewSignalSet()
	require.NoError(t, set.Add(models.Signal{Producer: "quantitative", Value: models.NumericValue(0.5, "strong"), Confidence: 0.9}))
	require.NoError(t, set.Add(models.Signal{Producer: "qualitative", Value: models.NumericValue(0.4, "Wide Moat"), Confidence: 0.6}))
	h := NewAnalysisHandler(nil, &stubAnalyzer{err: &models.AnalysisError{
		RequestID: "r", Stage: models.StageSynthesized, Signals: set, Err: models.ErrInconsistentSignal,
	}}, stubHistory{})

	code, env := serve(t, h, http.MethodPost, "/api/analyze", `{"security_id":"ACME"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	body := firstError(t, env)
	signals, ok := body.Params["signals"].([]interface{})
	require.True(t, ok, "signals param missing: %v", body.Params)
	require.Len(t, signals, 2)
	assert.Equal(t, "quantitative", signals[0].(map[string]interface{})["producer"])
	assert.Equal(t, "qualitative", signals[1].(map[string]interface{})["producer"])

	h = NewAnalysisHandler(nil, &stubAnalyzer{err: &models.AnalysisError{
		RequestID: "r", Stage: models.StageSignalsPending, Err: models.ErrNoSignalsAvailable,
	}}, stubHistory{})
	_, env = serve(t, h, http.MethodPost, "/api/analyze", `{"security_id":"ACME"}`)
	_, present := firstError(t, env).Params["signals"]
	assert.False(t, present)
}

func TestHistory(t *testing.T) {
	h := NewAnalysisHandler(nil, &stubAnalyzer{}, stubHistory{rows: []domrepo.AnalysisSummary{{RequestID: "1"}, {RequestID: "2"}}})
	code, env := serve(t, h, http.MethodGet, "/api/analyses?security_id=ACME&limit=5", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Rows  []domrepo.AnalysisSummary `json:"rows"`
		Total int64                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(2), list.Total)

	code, _ = serve(t, h, http.MethodGet, "/api/analyses?limit=5", "")
	assert.Equal(t, http.StatusBadRequest, code)

	h = NewAnalysisHandler(nil, &stubAnalyzer{}, stubHistory{err: models.ErrTelemetryUnavailable})
	code, env = serve(t, h, http.MethodGet, "/api/analyses?security_id=ACME", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "TELEMETRY_UNAVAILABLE", firstError(t, env).Code)
}

type stubQueue struct {
	msgType string
	payload interface{}
	err     error
}

func (q *stubQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.msgType, q.payload = msgType, payload
	return "msg-1", nil
}

func TestAnalyzeAsync(t *testing.T) {
	h := NewAnalysisHandler(nil, &stubAnalyzer{}, stubHistory{})
	code, _ := serve(t, h, http.MethodPost, "/api/analyze/async", `{"security_id":"acme"}`)
	assert.Equal(t, http.StatusNotFound, code, "route is off without a queue")

	q := &stubQueue{}
	h.SetQueue(q)
	code, env := serve(t, h, http.MethodPost, "/api/analyze/async", `{"security_id":"acme","as_of":"2024-03-01"}`)
	require.Equal(t, http.StatusAccepted, code)
	var out AcceptedAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, "ACME", out.SecurityID)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, usecase.AnalysisJobType, q.msgType)
	queued, ok := q.payload.(usecase.QueuedAnalysis)
	require.True(t, ok)
	assert.Equal(t, out.RequestID, queued.RequestID)

	h.SetQueue(&stubQueue{err: fmt.Errorf("redis down")})
	code, env = serve(t, h, http.MethodPost, "/api/analyze/async", `{"security_id":"acme"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "QUEUE_UNAVAILABLE", firstError(t, env).Code)
}

type countingReporter struct {
	calls int
	err   error
}

func (r *countingReporter) Report(_ context.Context, sec string) (*models.ValuationReport, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &models.ValuationReport{SecurityID: sec, Price: 100, MarketCap: "10.00B"}, nil
}

func TestValuationCached(t *testing.T) {
	rep := &countingReporter{}
	h := NewValuationHandler(nil, rep)
	mem := cache.NewMemoryCache()
	defer mem.Close()
	h.SetCache(mem, time.Minute)

	for i := 0; i < 2; i++ {
		code, env := serve(t, h, http.MethodGet, "/api/valuation/acme", "")
		require.Equal(t, http.StatusOK, code)
		var out models.ValuationReport
		require.NoError(t, json.Unmarshal(env.Data, &out))
		assert.Equal(t, "ACME", out.SecurityID)
	}
	assert.Equal(t, 1, rep.calls)
}

func TestValuationInsufficientData(t *testing.T) {
	h := NewValuationHandler(nil, &countingReporter{err: fmt.Errorf("%w: no financials", models.ErrInsufficientData)})
	code, env := serve(t, h, http.MethodGet, "/api/valuation/NOPE", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "INSUFFICIENT_DATA", firstError(t, env).Code)
}

type stubTelemetry struct {
	reset string
}

func (s *stubTelemetry) HealthSnapshot(p string) models.HealthSnapshot {
	return models.HealthSnapshot{Producer: p, Status: models.HealthUnknown}
}

func (s *stubTelemetry) Summary(recent int) models.MonitorSummary {
	return models.MonitorSummary{ActiveAgents: recent}
}

func (s *stubTelemetry) Reset(p string) (int, error) {
	s.reset = p
	if p == "ghost" {
		return 0, models.ErrInsufficientData
	}
	return 2, nil
}

func TestTelemetryEndpoints(t *testing.T) {
	st := &stubTelemetry{}
	h := NewTelemetryHandler(nil, st)

	code, env := serve(t, h, http.MethodGet, "/api/telemetry/health/qualitative", "")
	require.Equal(t, http.StatusOK, code)
	var snap models.HealthSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "qualitative", snap.Producer)
	assert.Equal(t, models.HealthUnknown, snap.Status)

	code, env = serve(t, h, http.MethodGet, "/api/telemetry/summary?recent=7", "")
	require.Equal(t, http.StatusOK, code)
	var sum models.MonitorSummary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, 7, sum.ActiveAgents)

	code, _ = serve(t, h, http.MethodGet, "/api/telemetry/summary?recent=900", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = serve(t, h, http.MethodPost, "/api/admin/telemetry/reset?producer=quantitative", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "quantitative", st.reset)

	code, _ = serve(t, h, http.MethodPost, "/api/admin/telemetry/reset?producer=ghost", "")
	assert.Equal(t, http.StatusNotFound, code)
}
