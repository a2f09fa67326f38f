package scenario_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/antiwork/flexile-sub003/internal/model"
	"github.com/antiwork/flexile-sub003/internal/scenario"
	"github.com/antiwork/flexile-sub003/internal/store"
	"github.com/antiwork/flexile-sub003/internal/waterfall"
)

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*scenario.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	svc := scenario.NewService(ms, waterfall.New(nil), nil)

	r := chi.NewRouter()
	r.Post("/api/v1/calculate", svc.Calculate)
	r.Post("/api/v1/validate", svc.Validate)
	r.Get("/api/v1/captables", svc.ListCapTables)
	r.Post("/api/v1/captables", svc.CreateCapTable)
	r.Get("/api/v1/captables/{capTableID}", svc.GetCapTable)
	r.Get("/api/v1/captables/{capTableID}/scenarios", svc.ListScenarios)
	r.Post("/api/v1/scenarios", svc.SaveScenario)
	r.Get("/api/v1/scenarios/{scenarioID}", svc.GetScenario)
	r.Get("/api/v1/scenarios/{scenarioID}/payouts", svc.GetScenarioPayouts)

	return svc, ms, r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- Stateless calculation ---

func TestCalculateEndpoint_Simple(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/calculate", scenario.CalculateRequest{
		ExitAmountCents: cents(200000000),
		ExitDate:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Structure:       testStructure(),
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp scenario.CalculateResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if len(resp.Payouts) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(resp.Payouts))
	}
	if !resp.TotalDistributedCents.Equal(cents(200000000)) {
		t.Errorf("expected $2M distributed, got %s", resp.TotalDistributedCents)
	}
	if !resp.UndistributedCents.IsZero() {
		t.Errorf("expected zero undistributed, got %s", resp.UndistributedCents)
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("clean structure should have no warnings, got %v", resp.Warnings)
	}
}

func TestCalculateEndpoint_NonPositiveExit(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/calculate", scenario.CalculateRequest{
		ExitAmountCents: cents(0),
		Structure:       testStructure(),
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for non-positive exit, got %d", w.Code)
	}
}

func TestCalculateEndpoint_NoEquity(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/calculate", scenario.CalculateRequest{
		ExitAmountCents: cents(100000000),
		Structure: model.EquityStructure{
			Investors: []model.Investor{{ID: "a", Name: "A"}},
		},
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for empty structure, got %d", w.Code)
	}
}

func TestCalculateEndpoint_InvalidBody(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/v1/calculate", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

// --- Cap table CRUD ---

func TestCreateCapTable_AndGet(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/captables", scenario.CreateCapTableRequest{
		Name:      "Acme Inc",
		Structure: testStructure(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var ct model.CapTable
	json.Unmarshal(w.Body.Bytes(), &ct)
	if ct.ID == "" {
		t.Fatal("expected generated cap table ID")
	}
	if ct.Name != "Acme Inc" {
		t.Errorf("unexpected name %q", ct.Name)
	}

	w = doJSON(t, router, "GET", "/api/v1/captables/"+ct.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got model.CapTable
	json.Unmarshal(w.Body.Bytes(), &got)
	if len(got.Structure.ShareHoldings) != 2 {
		t.Errorf("expected structure round-trip, got %d holdings", len(got.Structure.ShareHoldings))
	}
}

func TestCreateCapTable_MissingName(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/captables", scenario.CreateCapTableRequest{
		Structure: testStructure(),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", w.Code)
	}
}

func TestGetCapTable_NotFound(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/captables/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListCapTables(t *testing.T) {
	_, _, router := newTestEnv(t)

	doJSON(t, router, "POST", "/api/v1/captables", scenario.CreateCapTableRequest{
		Name: "One", Structure: testStructure(),
	})
	doJSON(t, router, "POST", "/api/v1/captables", scenario.CreateCapTableRequest{
		Name: "Two", Structure: testStructure(),
	})

	w := doJSON(t, router, "GET", "/api/v1/captables", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var tables []model.CapTable
	json.Unmarshal(w.Body.Bytes(), &tables)
	if len(tables) != 2 {
		t.Errorf("expected 2 cap tables, got %d", len(tables))
	}
}

// --- Scenario persistence ---

func createCapTable(t *testing.T, router chi.Router) model.CapTable {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/captables", scenario.CreateCapTableRequest{
		Name: "Acme Inc", Structure: testStructure(),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("failed to create cap table: %d %s", w.Code, w.Body.String())
	}
	var ct model.CapTable
	json.Unmarshal(w.Body.Bytes(), &ct)
	return ct
}

func TestSaveScenario_PersistsScenarioAndPayouts(t *testing.T) {
	_, _, router := newTestEnv(t)
	ct := createCapTable(t, router)

	w := doJSON(t, router, "POST", "/api/v1/scenarios", scenario.SaveScenarioRequest{
		CapTableID:      ct.ID,
		Name:            "Acquisition at $2M",
		ExitAmountCents: cents(200000000),
		ExitDate:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp scenario.SaveScenarioResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Scenario.Status != model.ScenarioSaved {
		t.Errorf("expected saved status, got %s", resp.Scenario.Status)
	}
	if len(resp.Result.Payouts) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(resp.Result.Payouts))
	}

	// Scenario is retrievable.
	w = doJSON(t, router, "GET", "/api/v1/scenarios/"+resp.Scenario.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", w.Code)
	}
	var sc model.Scenario
	json.Unmarshal(w.Body.Bytes(), &sc)
	if !sc.ExitAmountCents.Equal(cents(200000000)) {
		t.Errorf("expected exit amount round-trip, got %s", sc.ExitAmountCents)
	}

	// Payouts are retrievable.
	w = doJSON(t, router, "GET", "/api/v1/scenarios/"+resp.Scenario.ID+"/payouts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on payouts, got %d", w.Code)
	}
	var payouts []model.Payout
	json.Unmarshal(w.Body.Bytes(), &payouts)
	if len(payouts) != 2 {
		t.Errorf("expected 2 persisted payouts, got %d", len(payouts))
	}

	// Scenario appears in the cap table listing.
	w = doJSON(t, router, "GET", "/api/v1/captables/"+ct.ID+"/scenarios", nil)
	var scenarios []model.Scenario
	json.Unmarshal(w.Body.Bytes(), &scenarios)
	if len(scenarios) != 1 {
		t.Errorf("expected 1 scenario for cap table, got %d", len(scenarios))
	}
}

func TestSaveScenario_CapTableNotFound(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/scenarios", scenario.SaveScenarioRequest{
		CapTableID:      "nope",
		Name:            "Orphan",
		ExitAmountCents: cents(100000000),
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown cap table, got %d", w.Code)
	}
}

func TestSaveScenario_InvalidExitAmount(t *testing.T) {
	_, _, router := newTestEnv(t)
	ct := createCapTable(t, router)

	w := doJSON(t, router, "POST", "/api/v1/scenarios", scenario.SaveScenarioRequest{
		CapTableID:      ct.ID,
		Name:            "Broken",
		ExitAmountCents: cents(-5),
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for negative exit, got %d", w.Code)
	}

	// Nothing was persisted.
	w = doJSON(t, router, "GET", "/api/v1/captables/"+ct.ID+"/scenarios", nil)
	var scenarios []model.Scenario
	json.Unmarshal(w.Body.Bytes(), &scenarios)
	if len(scenarios) != 0 {
		t.Errorf("failed save should persist nothing, got %d scenarios", len(scenarios))
	}
}

// --- Validation endpoint ---

func TestValidateEndpoint_ReturnsWarnings(t *testing.T) {
	_, _, router := newTestEnv(t)

	s := testStructure()
	s.Investors = append(s.Investors, model.Investor{ID: "idle", Name: "Idle"})

	w := doJSON(t, router, "POST", "/api/v1/validate", s)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp scenario.ValidateResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", resp.Warnings)
	}
}

func TestValidateEndpoint_CleanStructure(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/validate", testStructure())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp scenario.ValidateResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", resp.Warnings)
	}
}
