package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "AlphaCrew/pkg/logger"
)

// RequestLogging logs HTTP requests at debug level.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if l != nil {
				l.Debug("http request",
					applogger.String("method", c.Request().Method),
					applogger.String("route", routeLabel(c)),
					applogger.String("remote", c.RealIP()),
					applogger.Int("status", c.Response().Status),
					applogger.Duration("latency_ms", time.Since(start)),
				)
			}
			return err
		}
	}
}
