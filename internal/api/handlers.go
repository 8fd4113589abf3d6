package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/config"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/follow"
	"modquant-lab/internal/ledger"
	"modquant-lab/internal/metrics"
	"modquant-lab/internal/pipeline"
	"modquant-lab/internal/reporting"
	"modquant-lab/internal/storage"
	"modquant-lab/internal/verification"
)

// Params are per-request overrides of the server's backtest defaults.
// Unset fields keep the default.
type Params struct {
	Segmentation  *string  `json:"segmentation"`
	ReversalRun   *int     `json:"reversal_run"`
	LossThreshold *int     `json:"loss_threshold"`
	StopPolicy    *string  `json:"stop_policy"`
	TargetWinRate *float64 `json:"target_win_rate"`
	Format        *string  `json:"format"`
	Delimiter     *string  `json:"delimiter"`
}

// BacktestRequest holds exactly one of Ledger, Segments or Labels.
type BacktestRequest struct {
	Name     string `json:"name"`
	Ledger   string `json:"ledger"`   // trade ledger text
	Segments string `json:"segments"` // segment ledger CSV
	Labels   string `json:"labels"`   // W/L sequence
	Params   Params `json:"params"`
}

// BacktestResponse is returned by POST /v1/backtests.
type BacktestResponse struct {
	RequestID string            `json:"request_id"`
	RunID     string            `json:"run_id"`
	Reused    bool              `json:"ledger_reused"`
	RunStored bool              `json:"run_stored"`
	Results   *backtest.Results `json:"results"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

func (s *Server) fail(c *gin.Context, code int, err error) {
	c.JSON(code, errorResponse{RequestID: c.GetString("request_id"), Error: err.Error()})
}

func (req *BacktestRequest) input() (domain.LedgerKind, string, error) {
	var kind domain.LedgerKind
	var content string
	n := 0
	if req.Ledger != "" {
		kind, content = domain.LedgerKindTrades, req.Ledger
		n++
	}
	if req.Segments != "" {
		kind, content = domain.LedgerKindSegments, req.Segments
		n++
	}
	if req.Labels != "" {
		kind, content = domain.LedgerKindLabels, req.Labels
		n++
	}
	if n != 1 {
		return "", "", errors.New("exactly one of ledger, segments or labels is required")
	}
	return kind, content, nil
}

// apply merges the overrides into a copy of the defaults.
func (p Params) apply(defaults config.Backtest) config.Backtest {
	b := defaults
	if p.Segmentation != nil {
		b.Segmentation = *p.Segmentation
	}
	if p.ReversalRun != nil {
		b.ReversalRun = *p.ReversalRun
	}
	if p.LossThreshold != nil {
		b.LossThreshold = *p.LossThreshold
	}
	if p.StopPolicy != nil {
		b.StopPolicy = *p.StopPolicy
	}
	if p.TargetWinRate != nil {
		v := *p.TargetWinRate
		b.TargetWinRate = &v
	}
	if p.Format != nil {
		b.Format = *p.Format
	}
	if p.Delimiter != nil {
		b.Delimiter = *p.Delimiter
	}
	return b
}

func (s *Server) handleBacktest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	kind, content, err := req.input()
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	cfg := config.Config{Backtest: req.Params.apply(s.defaults)}
	bc, err := cfg.BacktestConfig()
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	name := req.Name
	if name == "" {
		name = "request-" + c.GetString("request_id")
	}
	log := s.log.WithField("request_id", c.GetString("request_id"))
	out, err := pipeline.New(bc, s.stores, "", log).Run(c.Request.Context(), name, kind, strings.NewReader(content))
	if err != nil {
		var cfgErr *follow.ConfigError
		switch {
		case errors.Is(err, ledger.ErrEmptyInput), errors.As(err, &cfgErr):
			s.fail(c, http.StatusUnprocessableEntity, err)
		default:
			s.fail(c, http.StatusInternalServerError, err)
		}
		return
	}

	c.JSON(http.StatusOK, BacktestResponse{
		RequestID: c.GetString("request_id"),
		RunID:     out.Run.RunID,
		Reused:    out.Reused,
		RunStored: out.RunStored,
		Results:   out.Results,
	})
}

func (s *Server) handleRunGet(c *gin.Context) {
	report, err := s.reportGen.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}

	switch c.Query("format") {
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(reporting.RenderMarkdown(report)))
	case "csv":
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(reporting.RenderSummaryCSV(report)))
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (s *Server) handleRunVerify(c *gin.Context) {
	result, err := s.verifier.VerifyRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, verification.ErrRunNotFound) {
			s.fail(c, http.StatusNotFound, err)
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLedgerRuns(c *gin.Context) {
	rows, err := s.aggregator.Sensitivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	if c.Query("format") == "markdown" || c.Query("format") == "md" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(reporting.RenderSensitivityMarkdown(c.Param("id"), rows)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ledger_id": c.Param("id"), "runs": rows})
}

func (s *Server) handleLedgerSummary(c *gin.Context) {
	agg, err := s.aggregator.ComputeAggregate(c.Request.Context(), c.Param("id"), c.Param("segmentation"))
	if err != nil {
		if errors.Is(err, metrics.ErrNoSegments) {
			s.fail(c, http.StatusNotFound, err)
			return
		}
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.fail(c, http.StatusNotFound, err)
		return
	}
	s.fail(c, http.StatusInternalServerError, err)
}
