// Package scenario — HTTP handlers for stateless calculation, cap table and
// scenario persistence, and structural validation.
//
// All monetary values use shopspring/decimal — never float64 for money.
package scenario

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/antiwork/flexile-sub003/internal/metrics"
	"github.com/antiwork/flexile-sub003/internal/model"
	"github.com/antiwork/flexile-sub003/internal/store"
	"github.com/antiwork/flexile-sub003/internal/validate"
	"github.com/antiwork/flexile-sub003/internal/waterfall"
)

// Service handles cap table, scenario, and calculation requests. Each
// calculation is stateless and independent; concurrent requests are safe
// because the calculator is a pure function over its input.
type Service struct {
	store store.Store
	calc  *waterfall.Calculator
	wsHub *WSHub // optional WebSocket hub for result broadcasts
}

// NewService creates a new scenario service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, calc *waterfall.Calculator, hub *WSHub) *Service {
	if calc == nil {
		calc = waterfall.New(nil)
	}
	return &Service{
		store: st,
		calc:  calc,
		wsHub: hub,
	}
}

// --- Request/Response types ---

// CalculateRequest is the JSON body for POST /calculate.
type CalculateRequest struct {
	ExitAmountCents decimal.Decimal       `json:"exit_amount_cents"`
	ExitDate        time.Time             `json:"exit_date"`
	Structure       model.EquityStructure `json:"structure"`
}

// CalculateResponse is the calculation result plus structural warnings.
type CalculateResponse struct {
	Payouts               []model.Payout  `json:"payouts"`
	TotalDistributedCents decimal.Decimal `json:"total_distributed_cents"`
	UndistributedCents    decimal.Decimal `json:"undistributed_cents"`
	CalculationTimeMs     float64         `json:"calculation_time_ms"`
	Warnings              []string        `json:"warnings"`
}

// CreateCapTableRequest is the JSON body for POST /captables.
type CreateCapTableRequest struct {
	Name      string                `json:"name"`
	Structure model.EquityStructure `json:"structure"`
}

// SaveScenarioRequest is the JSON body for POST /scenarios. The scenario is
// calculated against its cap table and persisted together with its payouts.
type SaveScenarioRequest struct {
	CapTableID      string          `json:"cap_table_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	ExitAmountCents decimal.Decimal `json:"exit_amount_cents"`
	ExitDate        time.Time       `json:"exit_date"`
}

// SaveScenarioResponse returns the persisted scenario and its payouts.
type SaveScenarioResponse struct {
	Scenario model.Scenario    `json:"scenario"`
	Result   CalculateResponse `json:"result"`
}

// ValidateResponse is the JSON body returned from POST /validate.
type ValidateResponse struct {
	Warnings []string `json:"warnings"`
}

// --- HTTP Handlers ---

// Calculate handles POST /api/v1/calculate
// Runs a stateless waterfall over a request-supplied structure.
func (s *Service) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := s.runCalculation(req.ExitAmountCents, req.ExitDate, req.Structure, "")
	if err != nil {
		writeError(w, err.Error(), calculationStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateCapTable handles POST /api/v1/captables
func (s *Service) CreateCapTable(w http.ResponseWriter, r *http.Request) {
	var req CreateCapTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	ct := &model.CapTable{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Structure: req.Structure,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateCapTable(r.Context(), ct); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Info("cap table created",
		"id", ct.ID,
		"name", ct.Name,
		"investors", len(ct.Structure.Investors),
		"share_classes", len(ct.Structure.ShareClasses),
		"holdings", len(ct.Structure.ShareHoldings),
	)

	writeJSON(w, http.StatusCreated, ct)
}

// GetCapTable handles GET /api/v1/captables/{capTableID}
func (s *Service) GetCapTable(w http.ResponseWriter, r *http.Request) {
	ct, err := s.store.GetCapTable(r.Context(), chi.URLParam(r, "capTableID"))
	if err != nil {
		writeError(w, "cap table not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ct)
}

// ListCapTables handles GET /api/v1/captables
func (s *Service) ListCapTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.ListCapTables(r.Context())
	if err != nil {
		writeError(w, "failed to list cap tables", http.StatusInternalServerError)
		return
	}
	if tables == nil {
		tables = []model.CapTable{}
	}
	writeJSON(w, http.StatusOK, tables)
}

// SaveScenario handles POST /api/v1/scenarios
// Calculates the scenario against its cap table and persists both the
// scenario and its payouts.
func (s *Service) SaveScenario(w http.ResponseWriter, r *http.Request) {
	var req SaveScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	ct, err := s.store.GetCapTable(ctx, req.CapTableID)
	if err != nil {
		writeError(w, "cap table not found: "+req.CapTableID, http.StatusNotFound)
		return
	}

	sc := model.Scenario{
		ID:              uuid.New().String(),
		CapTableID:      req.CapTableID,
		Name:            req.Name,
		Description:     req.Description,
		ExitAmountCents: req.ExitAmountCents,
		ExitDate:        req.ExitDate,
		Status:          model.ScenarioSaved,
		CreatedAt:       time.Now().UTC(),
	}

	resp, err := s.runCalculation(sc.ExitAmountCents, sc.ExitDate, ct.Structure, sc.ID)
	if err != nil {
		writeError(w, err.Error(), calculationStatus(err))
		return
	}

	if err := s.store.SaveScenario(ctx, &sc); err != nil {
		writeError(w, "failed to save scenario", http.StatusInternalServerError)
		return
	}
	if err := s.store.ReplacePayouts(ctx, sc.ID, resp.Payouts); err != nil {
		writeError(w, "failed to save payouts", http.StatusInternalServerError)
		return
	}

	slog.Info("scenario saved",
		"id", sc.ID,
		"cap_table", sc.CapTableID,
		"exit_amount_cents", sc.ExitAmountCents.String(),
		"payouts", len(resp.Payouts),
	)

	writeJSON(w, http.StatusCreated, SaveScenarioResponse{Scenario: sc, Result: *resp})
}

// GetScenario handles GET /api/v1/scenarios/{scenarioID}
func (s *Service) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScenario(r.Context(), chi.URLParam(r, "scenarioID"))
	if err != nil {
		writeError(w, "scenario not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// ListScenarios handles GET /api/v1/captables/{capTableID}/scenarios
func (s *Service) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := s.store.ListScenariosByCapTable(r.Context(), chi.URLParam(r, "capTableID"))
	if err != nil {
		writeError(w, "failed to list scenarios", http.StatusInternalServerError)
		return
	}
	if scenarios == nil {
		scenarios = []model.Scenario{}
	}
	writeJSON(w, http.StatusOK, scenarios)
}

// GetScenarioPayouts handles GET /api/v1/scenarios/{scenarioID}/payouts
func (s *Service) GetScenarioPayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := s.store.GetPayoutsByScenario(r.Context(), chi.URLParam(r, "scenarioID"))
	if err != nil {
		writeError(w, "failed to get payouts", http.StatusInternalServerError)
		return
	}
	if payouts == nil {
		payouts = []model.Payout{}
	}
	writeJSON(w, http.StatusOK, payouts)
}

// Validate handles POST /api/v1/validate
// Returns structural warnings for a request-supplied structure.
func (s *Service) Validate(w http.ResponseWriter, r *http.Request) {
	var structure model.EquityStructure
	if err := json.NewDecoder(r.Body).Decode(&structure); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	warnings := validate.Check(structure)
	metrics.ValidationWarnings.Add(float64(len(warnings)))
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Warnings: warnings})
}

// --- Internals ---

// runCalculation executes one waterfall with metrics and WS broadcast.
func (s *Service) runCalculation(exitCents decimal.Decimal, exitDate time.Time, structure model.EquityStructure, scenarioID string) (*CalculateResponse, error) {
	warnings := validate.Check(structure)
	metrics.ValidationWarnings.Add(float64(len(warnings)))
	if warnings == nil {
		warnings = []string{}
	}

	result, err := s.calc.Calculate(waterfall.Input{
		ExitAmountCents: exitCents,
		ExitDate:        exitDate,
		Structure:       structure,
	})
	if err != nil {
		if isInputError(err) {
			metrics.CalculationsTotal.WithLabelValues("invalid_input").Inc()
		} else {
			metrics.CalculationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.CalculationsTotal.WithLabelValues("ok").Inc()
	metrics.CalculationDuration.Observe(result.CalculationTime.Seconds())
	if result.UndistributedCents.IsPositive() {
		metrics.UndistributedRemainders.Inc()
	}

	slog.Info("waterfall calculated",
		"scenario", scenarioID,
		"exit_amount_cents", exitCents.String(),
		"distributed_cents", result.TotalDistributedCents.String(),
		"undistributed_cents", result.UndistributedCents.String(),
		"payouts", len(result.Payouts),
		"duration", result.CalculationTime,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:                  "calculation_completed",
			ScenarioID:            scenarioID,
			ExitAmountCents:       exitCents.String(),
			TotalDistributedCents: result.TotalDistributedCents.String(),
			UndistributedCents:    result.UndistributedCents.String(),
			PayoutCount:           len(result.Payouts),
		})
	}

	return &CalculateResponse{
		Payouts:               result.Payouts,
		TotalDistributedCents: result.TotalDistributedCents,
		UndistributedCents:    result.UndistributedCents,
		CalculationTimeMs:     float64(result.CalculationTime.Microseconds()) / 1000.0,
		Warnings:              warnings,
	}, nil
}

// isInputError reports whether err is a typed precondition failure the
// caller can fix, as opposed to an internal fault.
func isInputError(err error) bool {
	return errors.Is(err, waterfall.ErrNonPositiveExit) ||
		errors.Is(err, waterfall.ErrNonIntegerExit) ||
		errors.Is(err, waterfall.ErrNoEquity)
}

// calculationStatus maps calculation errors to HTTP status codes.
func calculationStatus(err error) int {
	if isInputError(err) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
