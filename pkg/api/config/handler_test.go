package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	coreConfig "vc_termsheet/pkg/core/config"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	mgr, err := coreConfig.NewManager(coreConfig.Default().Engine)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return NewHandler(mgr, nil)
}

func TestHandleConfig(t *testing.T) {
	h := newHandler(t)
	rec := httptest.NewRecorder()
	h.HandleConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Engine.OptionModel != "re" || resp.Engine.CDF != "approx" {
		t.Errorf("Unexpected engine %+v", resp.Engine)
	}
	if len(resp.Available.OptionModels) != 2 {
		t.Errorf("Expected 2 option models, got %v", resp.Available.OptionModels)
	}
}

func TestHandleSwitch(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"option_model": "bs", "split_mode": "flat"}`)
	h.HandleSwitch(rec, httptest.NewRequest(http.MethodPost, "/api/config/switch", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if e := h.Manager.Engine(); e.OptionModel != "bs" || e.SplitMode != "flat" || e.CDF != "approx" {
		t.Errorf("Unexpected engine after switch %+v", e)
	}

	rec = httptest.NewRecorder()
	h.HandleSwitch(rec, httptest.NewRequest(http.MethodPost, "/api/config/switch", strings.NewReader(`{"cdf": "erf"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown cdf, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleSwitch(rec, httptest.NewRequest(http.MethodPost, "/api/config/switch", strings.NewReader(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad body, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleSwitch(rec, httptest.NewRequest(http.MethodOptions, "/api/config/switch", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected CORS preflight to succeed, got %d", rec.Code)
	}
}
