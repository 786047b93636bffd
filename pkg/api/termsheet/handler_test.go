package termsheet

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	"vc_termsheet/pkg/core/config"
	"vc_termsheet/pkg/core/ledger"
	"vc_termsheet/pkg/core/scenario"
	"vc_termsheet/pkg/core/store"
	"vc_termsheet/pkg/core/valuation"
	"vc_termsheet/pkg/core/waterfall"
)

func newServer(t *testing.T, withStore bool) (*Handler, *httptest.Server) {
	t.Helper()
	mgr, err := config.NewManager(config.Default().Engine)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	var st *store.ScenarioStore
	if withStore {
		st, err = store.NewScenarioStore(nil, t.TempDir())
		if err != nil {
			t.Fatalf("NewScenarioStore: %v", err)
		}
	}
	h := NewHandler(mgr, st, nil)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return h, srv
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected success, got %d", resp.StatusCode)
	}
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func defaultScenario() *scenario.Scenario {
	s := scenario.Default()
	return &s
}

func TestOrderAndPoints(t *testing.T) {
	_, srv := newServer(t, false)

	order := decode[[]waterfall.OrderEntry](t, post(t, srv.URL+"/api/termsheet/order", Request{Scenario: defaultScenario()}))
	if diff := cmp.Diff([]waterfall.OrderEntry{{Name: "Series A", RVPS: 4}}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	points := decode[[]waterfall.ConversionPoint](t, post(t, srv.URL+"/api/termsheet/points", Request{Scenario: defaultScenario()}))
	if len(points) != 1 || math.Abs(points[0].ConversionPoint-60) > 1e-9 {
		t.Errorf("Expected conversion point 60, got %+v", points)
	}
}

func TestPayoffs(t *testing.T) {
	_, srv := newServer(t, false)

	exit := 50.0
	resp := decode[PayoffResponse](t, post(t, srv.URL+"/api/termsheet/payoffs", Request{Scenario: defaultScenario(), ExitValue: &exit}))
	if resp.ExitValue != 50 || resp.Mode != waterfall.ModeIndependent {
		t.Errorf("Unexpected response %+v", resp)
	}
	if a := resp.Payoffs["Series A"].Total; math.Abs(a-20) > 1e-9 {
		t.Errorf("Expected Series A 20, got %f", a)
	}
	if f := resp.Payoffs[ledger.FoundersParty].Total; math.Abs(f-30) > 1e-9 {
		t.Errorf("Expected founders 30, got %f", f)
	}

	// no exit_value: falls back to the scenario's exit valuation (100)
	resp = decode[PayoffResponse](t, post(t, srv.URL+"/api/termsheet/payoffs", Request{Scenario: defaultScenario()}))
	if f := resp.Payoffs[ledger.FoundersParty].Total; math.Abs(f-200.0/3) > 1e-9 {
		t.Errorf("Expected founders 66.67, got %f", f)
	}

	neg := -1.0
	if r := post(t, srv.URL+"/api/termsheet/payoffs", Request{Scenario: defaultScenario(), ExitValue: &neg}); r.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative exit, got %d", r.StatusCode)
	}
}

func TestDiagram(t *testing.T) {
	_, srv := newServer(t, false)
	d := decode[waterfall.Diagram](t, post(t, srv.URL+"/api/termsheet/diagram", Request{Scenario: defaultScenario()}))
	if len(d.ExitValues) != waterfall.DefaultDiagramPoints {
		t.Errorf("Expected %d points, got %d", waterfall.DefaultDiagramPoints, len(d.ExitValues))
	}
	if len(d.Series["Series A"]) != len(d.ExitValues) {
		t.Errorf("Series length mismatch")
	}
}

func TestBreakevenErrors(t *testing.T) {
	_, srv := newServer(t, false)

	if r := post(t, srv.URL+"/api/termsheet/breakeven", Request{Scenario: defaultScenario(), Round: "Series Z"}); r.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown round, got %d", r.StatusCode)
	}

	be := decode[valuation.Breakeven](t, post(t, srv.URL+"/api/termsheet/breakeven", Request{Scenario: defaultScenario()}))
	if be.Round != "Series A" || be.Valuation <= 10 || be.Valuation >= 10000 {
		t.Errorf("Unexpected breakeven %+v", be)
	}
}

func TestRequestValidation(t *testing.T) {
	_, srv := newServer(t, false)

	if r := post(t, srv.URL+"/api/termsheet/order", Request{}); r.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without scenario, got %d", r.StatusCode)
	}

	bad := scenario.Default()
	bad.Ledger.Rounds[0].Shares = -5
	if r := post(t, srv.URL+"/api/termsheet/order", Request{Scenario: &bad}); r.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid ledger, got %d", r.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/api/termsheet/order")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", resp.StatusCode)
	}
}

func TestValuationStoresRun(t *testing.T) {
	h, srv := newServer(t, true)

	resp := decode[ValuationResponse](t, post(t, srv.URL+"/api/termsheet/valuation", Request{Scenario: defaultScenario()}))
	if len(resp.Rows) != 1 || resp.Rows[0].Round != "Series A" {
		t.Fatalf("Unexpected rows %+v", resp.Rows)
	}
	if resp.RunID == "" {
		t.Fatal("Expected run to be stored")
	}

	run, err := h.Store.GetRun(t.Context(), resp.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if diff := cmp.Diff(resp.Rows, run.Rows); diff != "" {
		t.Errorf("stored rows mismatch (-want +got):\n%s", diff)
	}
	if run.Engine["option_model"] != "re" {
		t.Errorf("Expected engine labels, got %v", run.Engine)
	}
}

func TestScenarioLifecycle(t *testing.T) {
	_, srv := newServer(t, true)

	doc := `
name: seed
ledger:
  founder_shares: 10
  rounds:
    - {name: Series A, active: true, security: CP, investment: 20, shares: 5, liquidation_pref: 1}
assumptions:
  current_valuation: 100
  volatility: 0.9
  risk_free_rate: 0.05
  holding_period: 5
`
	resp, err := http.Post(srv.URL+"/api/scenarios", "application/x-yaml", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	rec := decode[store.ScenarioRecord](t, resp)

	got, err := http.Get(srv.URL + "/api/scenarios/" + rec.ID)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer got.Body.Close()
	fetched := decode[store.ScenarioRecord](t, got)
	if fetched.Name != "seed" || len(fetched.Scenario.Ledger.Rounds) != 1 {
		t.Errorf("Unexpected record %+v", fetched)
	}

	// compute against the stored scenario
	points := decode[[]waterfall.ConversionPoint](t, post(t, srv.URL+"/api/termsheet/points", Request{ScenarioID: rec.ID}))
	if len(points) != 1 || math.Abs(points[0].ConversionPoint-60) > 1e-9 {
		t.Errorf("Expected conversion point 60, got %+v", points)
	}

	missing, err := http.Get(srv.URL + "/api/scenarios/6f1c1f3e-8d1b-4b43-9a43-3c2f7c0e0b1a")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", missing.StatusCode)
	}

	list, err := http.Get(srv.URL + "/api/scenarios")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer list.Body.Close()
	if records := decode[[]store.ScenarioRecord](t, list); len(records) != 1 {
		t.Errorf("Expected 1 stored scenario, got %d", len(records))
	}
}

func TestScenariosWithoutStore(t *testing.T) {
	_, srv := newServer(t, false)
	resp, err := http.Get(srv.URL + "/api/scenarios")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestReportHTML(t *testing.T) {
	_, srv := newServer(t, false)

	resp := post(t, srv.URL+"/api/termsheet/report", Request{Scenario: defaultScenario(), Format: "html"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected html content type, got %s", ct)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if title := doc.Find("h1").Text(); title != "Term Sheet Analysis: default" {
		t.Errorf("Unexpected title %q", title)
	}
	if n := doc.Find("table").Length(); n != 4 {
		t.Errorf("Expected 4 tables, got %d", n)
	}
}

func TestHandEditedRequestBody(t *testing.T) {
	_, srv := newServer(t, false)

	body := `{
  "scenario": {
    "ledger": {
      "founder_shares": 10,
      "rounds": [{"name": "Series A", "active": true, "investment": 20, "shares": 5, "liquidation_pref": 1,},],
    },
  },
}`
	resp, err := http.Post(srv.URL+"/api/termsheet/order", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	order := decode[[]waterfall.OrderEntry](t, resp)
	if len(order) != 1 || order[0].Name != "Series A" {
		t.Errorf("Unexpected order %+v", order)
	}
}

func TestReportExplicitExit(t *testing.T) {
	_, srv := newServer(t, false)

	zero := 0.0
	resp := post(t, srv.URL+"/api/termsheet/report", Request{Scenario: defaultScenario(), ExitValue: &zero, Format: "json"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var rep struct {
		ExitValue float64                     `json:"exit_value"`
		Payoffs   map[string]waterfall.Payoff `json:"payoffs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.ExitValue != 0 {
		t.Errorf("Expected exit 0 to be honoured, got %f", rep.ExitValue)
	}
	if a := rep.Payoffs["Series A"].Total; a != 0 {
		t.Errorf("Expected Series A 0 at a zero exit, got %f", a)
	}

	neg := -10.0
	if r := post(t, srv.URL+"/api/termsheet/report", Request{Scenario: defaultScenario(), ExitValue: &neg}); r.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative exit, got %d", r.StatusCode)
	}
}

func TestUnknownSecurityIsReported(t *testing.T) {
	_, srv := newServer(t, false)

	body := `{"scenario": {"ledger": {"founder_shares": 10, "rounds": [{"name": "Series A", "active": true, "security": "XYZ", "investment": 20, "shares": 5}]}}}`
	resp, err := http.Post(srv.URL+"/api/termsheet/order", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}
	msg, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), `unknown security type "XYZ"`) {
		t.Errorf("Expected the rejected field in the error, got %q", msg)
	}
}
