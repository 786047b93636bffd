package config

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	coreConfig "vc_termsheet/pkg/core/config"
	"vc_termsheet/pkg/core/option"
	"vc_termsheet/pkg/core/valuation"
	"vc_termsheet/pkg/core/waterfall"
)

type Response struct {
	Engine    coreConfig.EngineConfig `json:"engine"`
	Available Available               `json:"available"`
}

// Available lists the accepted values of each switchable setting.
type Available struct {
	OptionModels []string `json:"option_models"`
	CDFs         []string `json:"cdfs"`
	SplitModes   []string `json:"split_modes"`
	PayoffModes  []string `json:"payoff_modes"`
}

var available = Available{
	OptionModels: []string{string(option.ModelRandomExpiration), string(option.ModelBlackScholes)},
	CDFs:         []string{string(option.CDFApprox), string(option.CDFExact)},
	SplitModes:   []string{string(valuation.SplitHurdle), string(valuation.SplitFlat)},
	PayoffModes:  []string{string(waterfall.ModeIndependent), string(waterfall.ModeSequential)},
}

// Handler holds dependencies for config endpoints
type Handler struct {
	Manager *coreConfig.Manager
	Logger  *zap.Logger
}

// NewHandler creates a new config handler
func NewHandler(mgr *coreConfig.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Manager: mgr, Logger: logger}
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	resp := Response{
		Engine:    h.Manager.Engine(),
		Available: available,
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req coreConfig.Switch
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	engine, err := h.Manager.Apply(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.Logger.Info("engine switched",
		zap.String("option_model", engine.OptionModel),
		zap.String("cdf", engine.CDF),
		zap.String("split_mode", engine.SplitMode),
		zap.String("payoff_mode", engine.PayoffMode),
	)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Response{Engine: engine, Available: available})
}
