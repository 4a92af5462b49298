package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/amazingshop/userservice/internal/logging"
)

// RequestLogger scopes a logger to each request, stores it in the request
// context and emits one request_completed event per request, leveled by
// outcome.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			l := base.With(
				"method", req.Method,
				"path", c.Path(),
				"remote_ip", c.RealIP(),
			)
			if rid := req.Header.Get(echo.HeaderXRequestID); rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
			}
			status := c.Response().Status

			attrs := []any{
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", c.Response().Size,
			}
			if err != nil {
				attrs = append(attrs, "error", err.Error())
			}
			switch {
			case err != nil || status >= http.StatusInternalServerError:
				l.Error("request_completed", attrs...)
			case status >= http.StatusBadRequest:
				l.Warn("request_completed", attrs...)
			default:
				l.Info("request_completed", attrs...)
			}
			return nil
		}
	}
}
