// Package server exposes the latest refreshed forecast over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/roemer/goventusky"
	"go.uber.org/zap"
)

// Health statuses reported by GET /health.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ForecastProvider is the read side of the refresher.
type ForecastProvider interface {
	Latest() (*ventusky.ForecastResult, bool)
	Status() ventusky.RefreshStatus
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Refresh ventusky.RefreshStatus `json:"refresh"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	provider ForecastProvider
	logger   *zap.Logger
}

// NewRouter builds the gin engine. gatherer may be nil to omit /metrics.
func NewRouter(provider ForecastProvider, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{provider: provider, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	router.GET("/health", h.health)
	forecast := router.Group("/forecast")
	forecast.GET("", h.forecast)
	forecast.GET("/current", h.current)
	forecast.GET("/daily", h.daily)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

func (h *handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (h *handler) health(c *gin.Context) {
	status := h.provider.Status()
	response := HealthResponse{Status: StatusHealthy, Refresh: status}
	switch {
	case !status.Available:
		response.Status = StatusUnhealthy
		c.JSON(http.StatusServiceUnavailable, response)
		return
	case status.LastError != "":
		response.Status = StatusDegraded
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) forecast(c *gin.Context) {
	result, ok := h.latest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) current(c *gin.Context) {
	result, ok := h.latest(c)
	if !ok {
		return
	}
	slot, ok := result.Current()
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no hourly data in the latest forecast"})
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (h *handler) daily(c *gin.Context) {
	result, ok := h.latest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result.DailySummaries())
}

func (h *handler) latest(c *gin.Context) (*ventusky.ForecastResult, bool) {
	result, ok := h.provider.Latest()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "forecast not available yet"})
		return nil, false
	}
	return result, true
}
