// Package api serves backtests over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"modquant-lab/internal/config"
	"modquant-lab/internal/metrics"
	"modquant-lab/internal/observability"
	"modquant-lab/internal/pipeline"
	"modquant-lab/internal/reporting"
	"modquant-lab/internal/verification"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds POST bodies; ledgers are small text files.
const maxBodyBytes = 32 << 20

// Server holds the stores and defaults behind the HTTP API.
type Server struct {
	defaults   config.Backtest
	stores     pipeline.Stores
	reportGen  *reporting.Generator
	aggregator *metrics.Aggregator
	verifier   verification.Verifier
	log        logrus.FieldLogger
}

// New creates a server. defaults are the backtest parameters that request
// overrides are applied to.
func New(defaults config.Backtest, stores pipeline.Stores, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		defaults:   defaults,
		stores:     stores,
		reportGen:  reporting.NewGenerator(stores.Runs, stores.Ledgers).WithMinSelected(defaults.MinSelected),
		aggregator: metrics.NewAggregator(stores.Segments, stores.Runs),
		verifier:   verification.NewReplayVerifier(stores.Runs, stores.Segments, log),
		log:        log,
	}
}

// Router builds the gin engine.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.observe())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/backtests", s.handleBacktest)
	v1.GET("/runs/:id", s.handleRunGet)
	v1.GET("/runs/:id/verify", s.handleRunVerify)
	v1.GET("/ledgers/:id/runs", s.handleLedgerRuns)
	v1.GET("/ledgers/:id/segments/:segmentation/summary", s.handleLedgerSummary)

	return r
}

// requestID reuses the caller's request ID or assigns a new one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// observe logs and counts every request by route template.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		observability.RecordHTTPRequest(c.Request.Method, route, status)

		entry := s.log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"elapsed":    time.Since(start).String(),
		})
		if status >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Debug("request served")
		}
	}
}
