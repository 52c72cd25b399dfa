// Package server exposes health, status and Prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lepinkainen/subwatch/internal/watchlist"
	"github.com/lepinkainen/subwatch/pkg/database"
)

// RegistryStats reports watchlist totals.
type RegistryStats interface {
	Stats() watchlist.Stats
}

// SchedulerStats reports running pollers.
type SchedulerStats interface {
	Active() int
}

// DatabaseInfo describes the backing database.
type DatabaseInfo interface {
	GetInfo(ctx context.Context) (*database.Info, error)
}

// CacheStats reports existence cache usage.
type CacheStats interface {
	Stats(ctx context.Context) (*database.CacheStats, error)
}

// Deps are the components the status endpoints read. Database and Cache
// are nil when storage is not SQLite.
type Deps struct {
	Registry  RegistryStats
	Scheduler SchedulerStats
	Database  DatabaseInfo
	Cache     CacheStats
}

// Handler serves the status endpoints.
type Handler struct {
	deps    Deps
	started time.Time
}

// NewServer creates a new HTTP server with all routes configured
func NewServer(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())

	h := &Handler{deps: deps, started: time.Now()}
	r.GET("/health", h.HealthCheck)
	r.GET("/stats", h.GetStats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

// HealthCheck answers liveness checks.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// GetStats reports watchlist, scheduler and storage figures.
func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	resp := gin.H{}

	if h.deps.Registry != nil {
		resp["watchlist"] = h.deps.Registry.Stats()
	}
	if h.deps.Scheduler != nil {
		resp["active_pollers"] = h.deps.Scheduler.Active()
	}
	if h.deps.Database != nil {
		info, err := h.deps.Database.GetInfo(ctx)
		if err != nil {
			h.fail(c, "database", err)
			return
		}
		resp["database"] = info
	}
	if h.deps.Cache != nil {
		stats, err := h.deps.Cache.Stats(ctx)
		if err != nil {
			h.fail(c, "cache", err)
			return
		}
		resp["cache"] = stats
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) fail(c *gin.Context, part string, err error) {
	slog.Error("Failed to collect stats", "part", part, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to collect " + part + " stats"})
}

// Serve runs the server on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
