package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/stridelink/internal/auth"
	"github.com/danmuck/stridelink/internal/device"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/danmuck/stridelink/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DeviceView is a device snapshot with its configuration keyed by name.
type DeviceView struct {
	device.State
	Configuration map[string]map[string]int `json:"configuration,omitempty"`
}

func view(l transport.Link) DeviceView {
	s := l.Device().Snapshot()
	v := DeviceView{State: s}
	if s.Configuration != nil {
		v.Configuration = s.Configuration.Names()
	}
	return v
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": "stridelink",
			"devices": len(s.names),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/devices", func(c *gin.Context) {
		out := make([]DeviceView, 0, len(s.names))
		for _, name := range s.names {
			out = append(out, view(s.links[name]))
		}
		c.JSON(http.StatusOK, gin.H{"devices": out})
	})

	s.router.GET("/devices/:name", func(c *gin.Context) {
		l, ok := s.links[c.Param("name")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		c.JSON(http.StatusOK, view(l))
	})

	s.router.PUT("/devices/:name/configuration", s.authorize, func(c *gin.Context) {
		l, ok := s.links[c.Param("name")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		var body map[string]map[string]float64
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg, err := protocol.ParseConfiguration(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
		defer cancel()
		applied, err := l.SetSensorDataConfigurations(ctx, cfg)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"configuration": applied.Names()})
	})

	s.router.GET("/pair/pressure", func(c *gin.Context) {
		if s.pair == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pair configured"})
			return
		}
		c.JSON(http.StatusOK, s.pair.Latest())
	})
}

// authorize reads the validator per request so SetToken applies after routes
// are registered.
func (s *Server) authorize(c *gin.Context) {
	auth.Require(s.auth)(c)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, transport.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
