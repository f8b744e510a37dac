package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/stridelink/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRequestMetricsLabelDevice(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()), RequestMetricsMiddleware())
	r.PUT("/sensors/:name/delay", func(c *gin.Context) {
		if c.Param(DeviceParam) == "ghost" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	})

	for _, path := range []string{"/sensors/left/delay", "/sensors/left/delay", "/sensors/ghost/delay", "/nowhere"} {
		req := httptest.NewRequest(http.MethodPut, path, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	route := "/sensors/:name/delay"
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("PUT", route, "left", "204")); got != 2 {
		t.Fatalf("left requests=%v", got)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("PUT", route, "", "404")); got != 1 {
		t.Fatalf("unknown device should be unlabelled, got %v", got)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("PUT", "unmatched", "", "404")); got != 1 {
		t.Fatalf("unmatched=%v", got)
	}
}
