package termsheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"vc_termsheet/pkg/core/config"
	"vc_termsheet/pkg/core/ledger"
	"vc_termsheet/pkg/core/report"
	"vc_termsheet/pkg/core/scenario"
	"vc_termsheet/pkg/core/store"
	"vc_termsheet/pkg/core/utils"
	"vc_termsheet/pkg/core/valuation"
	"vc_termsheet/pkg/core/waterfall"
)

const maxBodyBytes = 1 << 20

// Request is the body of every /api/termsheet endpoint. Either an inline
// scenario or the ID of a stored one must be given.
type Request struct {
	Scenario   *scenario.Scenario `json:"scenario,omitempty"`
	ScenarioID string             `json:"scenario_id,omitempty"`
	ExitValue  *float64           `json:"exit_value,omitempty"`
	Round      string             `json:"round,omitempty"`
	Format     string             `json:"format,omitempty"` // report: markdown | html
}

type PayoffResponse struct {
	ExitValue float64                     `json:"exit_value"`
	Mode      waterfall.Mode              `json:"mode"`
	Payoffs   map[string]waterfall.Payoff `json:"payoffs"`
}

type ValuationResponse struct {
	RunID    string                     `json:"run_id,omitempty"`
	Rows     []valuation.RoundValuation `json:"rows"`
	Formulas []valuation.FormulaEntry   `json:"formulas"`
}

// Handler holds dependencies for term-sheet endpoints
type Handler struct {
	Config *config.Manager
	Store  *store.ScenarioStore // optional
	Logger *zap.Logger
}

// NewHandler creates a new term-sheet handler
func NewHandler(cfg *config.Manager, st *store.ScenarioStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Config: cfg, Store: st, Logger: logger}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/termsheet/order", h.HandleOrder)
	mux.HandleFunc("/api/termsheet/points", h.HandlePoints)
	mux.HandleFunc("/api/termsheet/payoffs", h.HandlePayoffs)
	mux.HandleFunc("/api/termsheet/diagram", h.HandleDiagram)
	mux.HandleFunc("/api/termsheet/valuation", h.HandleValuation)
	mux.HandleFunc("/api/termsheet/breakeven", h.HandleBreakeven)
	mux.HandleFunc("/api/termsheet/report", h.HandleReport)
	mux.HandleFunc("/api/scenarios", h.HandleScenarios)
	mux.HandleFunc("/api/scenarios/{id}", h.HandleScenario)
	mux.HandleFunc("/api/runs/{id}", h.HandleRun)
}

func (h *Handler) HandleOrder(w http.ResponseWriter, r *http.Request) {
	_, s, ok := h.begin(w, r)
	if !ok {
		return
	}
	writeJSON(w, waterfall.ResolveConversionOrder(s.Ledger.Rounds))
}

func (h *Handler) HandlePoints(w http.ResponseWriter, r *http.Request) {
	_, s, ok := h.begin(w, r)
	if !ok {
		return
	}
	writeJSON(w, waterfall.ConversionSchedule(s.Ledger.Rounds, s.Ledger.FounderShares))
}

func (h *Handler) HandlePayoffs(w http.ResponseWriter, r *http.Request) {
	req, s, ok := h.begin(w, r)
	if !ok {
		return
	}

	exit := exitValue(req, s)
	if exit < 0 {
		http.Error(w, "exit_value must be non-negative", http.StatusBadRequest)
		return
	}
	mode := h.Config.Options().PayoffMode
	h.Logger.Info("payoffs", zap.String("scenario", s.Name), zap.Float64("exit_value", exit), zap.String("mode", string(mode)))

	writeJSON(w, PayoffResponse{
		ExitValue: exit,
		Mode:      mode,
		Payoffs:   waterfall.Payoffs(mode, exit, s.Ledger.Rounds, s.Ledger.FounderShares),
	})
}

func (h *Handler) HandleDiagram(w http.ResponseWriter, r *http.Request) {
	_, s, ok := h.begin(w, r)
	if !ok {
		return
	}
	d, err := waterfall.ExitDiagram(r.Context(), s.Ledger.Rounds, s.Ledger.FounderShares, h.Config.DiagramOptions())
	if err != nil {
		h.fail(w, "diagram", err)
		return
	}
	writeJSON(w, d)
}

func (h *Handler) HandleValuation(w http.ResponseWriter, r *http.Request) {
	req, s, ok := h.begin(w, r)
	if !ok {
		return
	}

	start := time.Now()
	opts := h.Config.Options()
	rows, err := valuation.ValueAll(r.Context(), s.Ledger, s.Assumptions, s.Fund, opts)
	if err != nil {
		h.fail(w, "valuation", err)
		return
	}
	resp := ValuationResponse{Rows: rows, Formulas: valuation.Formula(s.Ledger.Rounds, s.Ledger.FounderShares)}

	if h.Store != nil {
		run, err := h.Store.SaveRun(r.Context(), req.ScenarioID, engineLabels(h.Config.Engine()), rows)
		if err != nil {
			h.Logger.Warn("failed to save run", zap.Error(err))
		} else {
			resp.RunID = run.ID
		}
	}

	h.Logger.Info("valuation",
		zap.String("scenario", s.Name),
		zap.Int("rounds", len(rows)),
		zap.String("option_model", string(opts.Pricer.Model)),
		zap.Duration("elapsed", time.Since(start)),
	)
	writeJSON(w, resp)
}

func (h *Handler) HandleBreakeven(w http.ResponseWriter, r *http.Request) {
	req, s, ok := h.begin(w, r)
	if !ok {
		return
	}
	be, err := valuation.FindBreakevenValuation(req.Round, s.Ledger.Rounds, s.Ledger.FounderShares, s.Assumptions, s.Fund, h.Config.Options())
	if err != nil {
		h.fail(w, "breakeven", err)
		return
	}
	h.Logger.Info("breakeven", zap.String("round", be.Round), zap.Float64("valuation", be.Valuation))
	writeJSON(w, be)
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	req, s, ok := h.begin(w, r)
	if !ok {
		return
	}
	var rep *report.Report
	var err error
	if req.ExitValue != nil {
		if *req.ExitValue < 0 {
			http.Error(w, "exit_value must be non-negative", http.StatusBadRequest)
			return
		}
		rep, err = report.BuildAt(r.Context(), s, *req.ExitValue, h.Config.Options())
	} else {
		rep, err = report.Build(r.Context(), s, h.Config.Options())
	}
	if err != nil {
		h.fail(w, "report", err)
		return
	}

	switch req.Format {
	case "html":
		html, err := rep.HTML()
		if err != nil {
			h.fail(w, "report", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, html)
	case "json":
		writeJSON(w, rep)
	default:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, rep.Markdown())
	}
}

// HandleScenarios stores a scenario (POST) or lists stored ones (GET).
// POST bodies may be YAML, JSON or Hjson; ?format= overrides detection.
func (h *Handler) HandleScenarios(w http.ResponseWriter, r *http.Request) {
	if cors(w, r) {
		return
	}
	if h.Store == nil {
		http.Error(w, "scenario store not configured", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := h.Store.ListScenarios(r.Context())
		if err != nil {
			h.fail(w, "list scenarios", err)
			return
		}
		writeJSON(w, list)
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		s, err := scenario.Decode(body, bodyFormat(r))
		if err != nil {
			h.fail(w, "decode scenario", err)
			return
		}
		rec, err := h.Store.SaveScenario(r.Context(), s)
		if err != nil {
			h.fail(w, "save scenario", err)
			return
		}
		h.Logger.Info("scenario saved", zap.String("id", rec.ID), zap.String("name", rec.Name))
		writeJSONStatus(w, http.StatusCreated, rec)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleScenario(w http.ResponseWriter, r *http.Request) {
	if cors(w, r) {
		return
	}
	if h.Store == nil {
		http.Error(w, "scenario store not configured", http.StatusServiceUnavailable)
		return
	}
	rec, err := h.Store.GetScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "get scenario", err)
		return
	}
	writeJSON(w, rec)
}

func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if cors(w, r) {
		return
	}
	if h.Store == nil {
		http.Error(w, "scenario store not configured", http.StatusServiceUnavailable)
		return
	}
	rec, err := h.Store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "get run", err)
		return
	}
	writeJSON(w, rec)
}

// begin handles CORS, decodes the request and resolves its scenario. It
// writes the error response itself and reports false on failure.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request) (Request, scenario.Scenario, bool) {
	if cors(w, r) {
		return Request{}, scenario.Scenario{}, false
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return Request{}, scenario.Scenario{}, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return Request{}, scenario.Scenario{}, false
	}
	req, _, err := utils.SmartParse[Request](body)
	if err != nil {
		h.fail(w, "decode request", err)
		return Request{}, scenario.Scenario{}, false
	}

	var s scenario.Scenario
	switch {
	case req.Scenario != nil:
		s = *req.Scenario
		if err := s.Validate(); err != nil {
			h.fail(w, "validate scenario", err)
			return Request{}, scenario.Scenario{}, false
		}
	case req.ScenarioID != "" && h.Store != nil:
		rec, err := h.Store.GetScenario(r.Context(), req.ScenarioID)
		if err != nil {
			h.fail(w, "load scenario", err)
			return Request{}, scenario.Scenario{}, false
		}
		s = rec.Scenario
	default:
		http.Error(w, "scenario or scenario_id required", http.StatusBadRequest)
		return Request{}, scenario.Scenario{}, false
	}
	return req, s, true
}

// fail maps engine and store errors to HTTP status codes.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrRoundNotFound),
		errors.Is(err, store.ErrScenarioNotFound),
		errors.Is(err, store.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidLedger),
		errors.Is(err, utils.ErrUnparseable):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error(op+" failed", zap.Error(err))
	} else {
		h.Logger.Debug(op+" rejected", zap.Error(err), zap.Int("status", status))
	}
	http.Error(w, fmt.Sprintf("%s: %v", op, err), status)
}

func cors(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func exitValue(req Request, s scenario.Scenario) float64 {
	switch {
	case req.ExitValue != nil:
		return *req.ExitValue
	case s.Assumptions.ExitValuation > 0:
		return s.Assumptions.ExitValuation
	default:
		return s.Assumptions.CurrentValuation
	}
}

func bodyFormat(r *http.Request) scenario.Format {
	if f := r.URL.Query().Get("format"); f != "" {
		return scenario.Format(f)
	}
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "application/json"):
		return scenario.FormatJSON
	case strings.HasPrefix(ct, "application/hjson"):
		return scenario.FormatHJSON
	}
	return scenario.FormatYAML
}

func engineLabels(e config.EngineConfig) map[string]string {
	return map[string]string{
		"option_model": e.OptionModel,
		"cdf":          e.CDF,
		"split_mode":   e.SplitMode,
		"payoff_mode":  e.PayoffMode,
	}
}
