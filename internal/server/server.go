// Package server is the HTTP API over the connected devices and the pair
// aggregate.
package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/danmuck/stridelink/internal/auth"
	"github.com/danmuck/stridelink/internal/observability"
	"github.com/danmuck/stridelink/internal/pair"
	"github.com/danmuck/stridelink/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Server struct {
	Addr     string
	Appeared time.Time

	router  *gin.Engine
	links   map[string]transport.Link
	names   []string
	pair    *pair.Aggregator
	timeout time.Duration
	auth    auth.Validator
}

// New builds the router. agg may be nil when no pair is configured.
func New(addr string, corsOrigins []string, links []transport.Link, agg *pair.Aggregator) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Addr:     addr,
		Appeared: time.Now(),
		router:   r,
		links:    make(map[string]transport.Link, len(links)),
		pair:     agg,
		timeout:  5 * time.Second,
	}
	for _, l := range links {
		name := l.Device().Label()
		s.links[name] = l
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	s.RegisterRoutes()
	return s
}

// SetToken guards the write routes with a bearer token. Empty disables the
// guard.
func (s *Server) SetToken(token string) {
	if token == "" {
		s.auth = nil
		return
	}
	s.auth = auth.StaticToken{Token: token}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the API until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("server.Server.Serve addr=%s devices=%d", s.Addr, len(s.names))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
