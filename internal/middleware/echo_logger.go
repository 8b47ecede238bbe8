// Package middleware middleware для echo.
package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// EchoZapLogger логирует запросы через zap. Пути из quiet (например /health, /metrics)
// при успехе пишутся на уровне debug.
func EchoZapLogger(log *zap.Logger, quiet ...string) echo.MiddlewareFunc {
	quietPaths := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		quietPaths[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("route", c.Path()),
				zap.String("remote_ip", c.RealIP()),
			}
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}
			if id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			err := next(c)
			if err != nil {
				// Пусть echo сформирует ответ, чтобы в лог попал итоговый статус
				c.Error(err)
			}

			fields = append(fields,
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
			)
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			n := res.Status
			switch {
			case n >= http.StatusInternalServerError:
				log.Error("Server error", fields...)
			case n >= http.StatusBadRequest:
				log.Warn("Client error", fields...)
			case quietPaths[req.URL.Path]:
				log.Debug("Success", fields...)
			default:
				log.Info("Success", fields...)
			}
			return nil
		}
	}
}
