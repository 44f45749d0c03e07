// Package api exposes the latest snapshot over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/app"
	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/logger"
	"github.com/deusflow/pacwatch/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Snapshots is the part of the refresher the API reads from.
type Snapshots interface {
	Snapshot() *app.Snapshot
	Trigger(ctx context.Context)
}

// Options wires a Server.
type Options struct {
	Addr        string
	Debug       bool
	Snapshots   Snapshots
	Reference   *config.Reference
	Metrics     *metrics.Metrics
	ResultLimit int
	Now         func() time.Time
	Logger      *zap.Logger

	// SentimentStats, when set, adds the sentiment backend's counters to /stats.
	SentimentStats func() map[string]interface{}
}

// Server is the HTTP front of a running watch.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *zap.Logger

	snapshots   Snapshots
	reference   *config.Reference
	metrics     *metrics.Metrics
	resultLimit int
	now         func() time.Time

	sentimentStats func() map[string]interface{}

	// background work started by requests outlives the request
	baseCtx context.Context
}

func NewServer(opts Options) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		router:      gin.New(),
		logger:      logger.OrNop(opts.Logger),
		snapshots:   opts.Snapshots,
		reference:   opts.Reference,
		metrics:     opts.Metrics,
		resultLimit: opts.ResultLimit,
		now:         now,
		baseCtx:     context.Background(),

		sentimentStats: opts.SentimentStats,
	}
	s.router.Use(gin.Recovery(), requestLogger(s.logger))
	s.routes()

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	s.router.GET("/stats", s.stats)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.GET("/articles", s.listArticles)
	v1.GET("/sources", s.listSources)
	v1.GET("/taxonomy", s.taxonomy)
	v1.POST("/refresh", s.refresh)
	v1.GET("/mgrs", s.convertMGRS)
	v1.GET("/relationships", s.listRelationships)
	v1.GET("/report", s.report)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			log.Warn("HTTP request with errors", append(fields, zap.Strings("errors", c.Errors.Errors()))...)
			return
		}
		log.Debug("HTTP request", fields...)
	}
}
