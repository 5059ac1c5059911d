package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func corsServer(cfg CORSConfig) *echo.Echo {
	e := echo.New()
	e.Use(CORS(cfg))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/api/telemetry/summary", ok)
	e.OPTIONS("/api/telemetry/summary", ok)
	return e
}

func TestCORSPreflight(t *testing.T) {
	e := corsServer(CORSConfig{
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{echo.HeaderContentType},
		ExposeHeaders: []string{echo.HeaderRetryAfter},
		MaxAge:        600,
	})
	req := httptest.NewRequest(http.MethodOptions, "/api/telemetry/summary", nil)
	req.Header.Set(echo.HeaderOrigin, "https://monitor.local")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://monitor.local", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, POST", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestCORSSimpleRequest(t *testing.T) {
	e := corsServer(CORSConfig{AllowOrigins: []string{"https://monitor.local"}, ExposeHeaders: []string{echo.HeaderRetryAfter}})

	req := httptest.NewRequest(http.MethodGet, "/api/telemetry/summary", nil)
	req.Header.Set(echo.HeaderOrigin, "https://monitor.local")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://monitor.local", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, echo.HeaderRetryAfter, rec.Header().Get(echo.HeaderAccessControlExposeHeaders))
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods))

	req = httptest.NewRequest(http.MethodGet, "/api/telemetry/summary", nil)
	req.Header.Set(echo.HeaderOrigin, "https://elsewhere.example")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, echo.HeaderOrigin, rec.Header().Get(echo.HeaderVary))
}
