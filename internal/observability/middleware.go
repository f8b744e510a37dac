package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DeviceParam is the route parameter that names the device a request targets.
const DeviceParam = "name"

// requestDevice returns the targeted device, or "" when the route is not
// about one device or did not find it. 404s are left unlabelled so unknown
// names cannot grow the series count.
func requestDevice(c *gin.Context) string {
	if c.Writer.Status() == http.StatusNotFound {
		return ""
	}
	return c.Param(DeviceParam)
}

func routePath(c *gin.Context) (string, bool) {
	if path := c.FullPath(); path != "" {
		return path, true
	}
	return c.Request.URL.Path, false
}

// RequestLogger logs one line per request. Successful reads log at debug
// since dashboards poll them; writes log at info.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path, _ := routePath(c)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead:
			event = logger.Debug()
		default:
			event = logger.Info()
		}
		if device := requestDevice(c); device != "" {
			event = event.Str("device", device)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int("bytes", c.Writer.Size()).
			Msg("server.request")
	}
}

// RequestMetricsMiddleware records each request by route template and
// target device.
func RequestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path, matched := routePath(c)
		if !matched {
			path = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, path, requestDevice(c), c.Writer.Status(), time.Since(start))
	}
}
