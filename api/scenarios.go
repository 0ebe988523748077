/*
scenarios.go - Saved what-if scenarios and comparison

PURPOSE:
  CRUD for saved scenario configurations plus the comparison endpoint.
  A scenario is a named, self-contained rule set over a window; it
  never references the live plan, so edits to production rules cannot
  drift a saved comparison.

ENDPOINTS:
  GET    /api/scenarios?ventureId={id}   - List a venture's scenarios
  POST   /api/scenarios                  - Save a scenario
  GET    /api/scenarios/{id}             - Fetch one scenario
  DELETE /api/scenarios/{id}             - Delete a scenario
  POST   /api/scenarios/compare          - Run 2-3 saved scenarios

COMPARISON SEMANTICS:
  A scenario that cannot run (bad window, malformed rule) produces a
  null result with a reason instead of failing the whole comparison.
  Outcomes come back in request order after deduplication.

SEE ALSO:
  - engine/scenario.go: The comparator itself
  - simulate.go: Ad-hoc simulation without saving anything
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// CRUD
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}
	ventureID, ok := queryInt64(r, "ventureId")
	if !ok {
		writeError(w, http.StatusBadRequest, "ventureId query parameter required", nil)
		return
	}
	if !scope.CanViewVenture(ventureID) {
		writeError(w, http.StatusForbidden, "Not allowed to view this venture", nil)
		return
	}

	records, err := h.Store.ListScenarios(r.Context(), ventureID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scenarios", err)
		return
	}

	dtos := make([]ScenarioDTO, 0, len(records))
	for _, rec := range records {
		dto, err := toScenarioDTO(rec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Corrupt scenario config", err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}
	if !scope.IsLeadership() {
		writeError(w, http.StatusForbidden, "Leadership role required", nil)
		return
	}

	var req CreateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.VentureID <= 0 {
		writeError(w, http.StatusBadRequest, "venture_id is required", nil)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if len(req.Config.Rules) == 0 {
		writeError(w, http.StatusBadRequest, "config.rules must not be empty", nil)
		return
	}
	// Reject unparseable configs at save time so comparison-time
	// failures are limited to window problems.
	if _, err := h.Factory.ParseRules(req.Config.Rules); err != nil {
		h.engineError(w, "Invalid scenario rules", err)
		return
	}

	configJSON, err := json.Marshal(req.Config)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode config", err)
		return
	}

	rec := sqlite.ScenarioRecord{
		ID:         uuid.New().String(),
		VentureID:  req.VentureID,
		Name:       req.Name,
		ConfigJSON: string(configJSON),
		CreatedBy:  scope.User.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Store.SaveScenario(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save scenario", err)
		return
	}

	dto, err := toScenarioDTO(rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Corrupt scenario config", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := h.Store.GetScenario(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Scenario not found", nil)
		return
	}
	if !scope.CanViewVenture(rec.VentureID) {
		writeError(w, http.StatusForbidden, "Not allowed to view this venture", nil)
		return
	}

	dto, err := toScenarioDTO(*rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Corrupt scenario config", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}
	if !scope.IsLeadership() {
		writeError(w, http.StatusForbidden, "Leadership role required", nil)
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := h.Store.GetScenario(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Scenario not found", nil)
		return
	}

	if err := h.Store.DeleteScenario(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete scenario", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// COMPARISON
// =============================================================================

// CompareScenarios loads the requested saved scenarios and runs them
// through the comparator. Unknown ids fail the request; a scenario
// that loads but cannot run soft-fails inside the response.
func (h *Handler) CompareScenarios(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}

	var req CompareScenariosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scenarios := make([]engine.Scenario, 0, len(req.ScenarioIDs))
	for _, id := range req.ScenarioIDs {
		rec, err := h.Store.GetScenario(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "Scenario not found: "+id, nil)
			return
		}
		if !scope.CanViewVenture(rec.VentureID) {
			writeError(w, http.StatusForbidden, "Not allowed to view this venture", nil)
			return
		}
		sc, err := h.scenarioFromRecord(*rec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Corrupt scenario config", err)
			return
		}
		scenarios = append(scenarios, sc)
	}

	outcomes, err := h.Engine.Compare(r.Context(), scenarios)
	if err != nil {
		h.engineError(w, "Comparison failed", err)
		return
	}

	dtos := make([]ScenarioOutcomeDTO, len(outcomes))
	for i, o := range outcomes {
		dtos[i] = ScenarioOutcomeDTO{
			ScenarioID: string(o.ScenarioID),
			Name:       o.Name,
			VentureID:  int64(o.VentureID),
			Result:     toScenarioSummaryDTO(o.Result),
			Reason:     o.Reason,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// scenarioFromRecord decodes a stored scenario into engine form. Rules
// are re-parsed through the factory; a config that no longer parses is
// surfaced as an error rather than silently skipped.
func (h *Handler) scenarioFromRecord(rec sqlite.ScenarioRecord) (engine.Scenario, error) {
	var cfg ScenarioConfigJSON
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &cfg); err != nil {
		return engine.Scenario{}, err
	}

	rules, err := h.Factory.ParseRules(cfg.Rules)
	if err != nil {
		return engine.Scenario{}, err
	}

	gates := make(map[engine.QualificationID]engine.Qualification, len(cfg.Qualifications))
	for _, qj := range cfg.Qualifications {
		q := h.Factory.ParseQualification(qj)
		gates[q.ID] = q
	}

	userIDs := make([]engine.UserID, len(cfg.UserIDs))
	for i, id := range cfg.UserIDs {
		userIDs[i] = engine.UserID(id)
	}

	return engine.Scenario{
		ID:             engine.ScenarioID(rec.ID),
		Name:           rec.Name,
		VentureID:      engine.VentureID(rec.VentureID),
		From:           cfg.From,
		To:             cfg.To,
		UserIDs:        userIDs,
		Rules:          rules,
		Qualifications: gates,
	}, nil
}

func toScenarioDTO(rec sqlite.ScenarioRecord) (ScenarioDTO, error) {
	var cfg ScenarioConfigJSON
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &cfg); err != nil {
		return ScenarioDTO{}, err
	}
	return ScenarioDTO{
		ID:        rec.ID,
		VentureID: rec.VentureID,
		Name:      rec.Name,
		Config:    cfg,
		CreatedBy: rec.CreatedBy,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}, nil
}
