package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/woventales/backend/internal/metrics"
	"go.uber.org/zap"
)

// EchoZapLogger returns middleware that logs every request with zap
// and counts it in the HTTP request metric.
func EchoZapLogger(log *zap.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestFields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}
			if id != "" {
				requestFields = append(requestFields, zap.String("request_id", id))
			}

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final
				c.Error(err)
			}

			fields := append(requestFields,
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
			)
			if userID, ok := c.Get(UserIDKey).(string); ok && userID != "" {
				fields = append(fields, zap.String("user_id", userID))
			}
			m.HTTPRequest(req.Method, c.Path(), strconv.Itoa(res.Status))

			n := res.Status
			switch {
			case n >= http.StatusInternalServerError:
				log.Error("Server error", append(fields, zap.Error(err))...)
			case n >= http.StatusBadRequest:
				log.Warn("Client error", fields...)
			default:
				log.Info("Success", fields...)
			}
			return nil
		}
	}
}
