package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
)

// Recovery returns Echo middleware that converts handler panics into
// 500 responses so one bad probe cannot take the ops listener down.
// The panic value and a truncated stack are logged, tagged with the
// request ID when RequestLog has assigned one.
func Recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				// net/http aborts a response by panicking with this
				// sentinel; pass it through instead of answering 500.
				if r == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value, never wrapped
					panic(r)
				}

				fields := []any{
					"panic", fmt.Sprint(r),
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"stack", string(stackTrace()),
				}
				if id, ok := c.Get("request_id").(string); ok && id != "" {
					fields = append(fields, "request_id", id)
				}
				log.Error("panic recovered", fields...)

				err = c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
				})
			}()
			return next(c)
		}
	}
}

func stackTrace() []byte {
	buf := make([]byte, 4096)
	return buf[:runtime.Stack(buf, false)]
}
