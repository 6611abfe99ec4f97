// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"funnel-coach/internal/common/config"
	apperrors "funnel-coach/internal/common/errors"
	"funnel-coach/internal/common/logger"
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Analyze      gin.HandlerFunc
	AIConfigured bool
	// Cache is nil when the result cache is disabled.
	Cache Pinger
	// Gatherer backs /metrics. Defaults to the Prometheus default gatherer.
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg    *config.Config
	deps   Deps
	log    logger.Logger
	router *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, deps Deps, log logger.Logger) *Server {
	s := &Server{cfg: cfg, deps: deps, log: log}
	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           s.router,
		ReadTimeout:       config.GetDuration(cfg.Server.ReadTimeout),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      config.GetDuration(cfg.Server.WriteTimeout),
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	errs := apperrors.NewErrorHandler(s.log)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.SetHTMLTemplate(loadTemplates())

	r.Use(RequestIDMiddleware(s.log))
	r.Use(recovery(errs, s.log))
	r.Use(LoggerMiddleware(s.log))
	r.Use(MetricsMiddleware())

	r.NoRoute(notFound(errs))
	r.NoMethod(methodNotAllowed(errs))

	r.GET("/", s.index)
	r.GET("/health", s.health)
	r.GET("/ready", s.ready)

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if s.deps.Analyze != nil {
		r.POST("/analyze", s.deps.Analyze)
	}
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", map[string]interface{}{
			"address": fmt.Sprintf("http://%s", s.http.Addr),
		})
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutdown signal received, draining requests", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(s.cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("Server shutdown completed successfully", nil)
	return nil
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Name":    s.cfg.App.Name,
		"Version": s.cfg.App.Version,
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ready reports 503 only when an enabled cache is unreachable. A missing API
// key is reported but does not take the instance out of rotation.
func (s *Server) ready(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":       "ready",
		"aiConfigured": s.deps.AIConfigured,
		"cache":        "disabled",
		"time":         time.Now().Format(time.RFC3339),
	}

	if s.deps.Cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Cache.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "not ready"
			body["cache"] = "unreachable"
			logger.FromContext(c.Request.Context(), s.log).Warn("Readiness check failed", map[string]interface{}{"error": err})
		} else {
			body["cache"] = "ok"
		}
	}

	c.JSON(status, body)
}
