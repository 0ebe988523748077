/*
handlers.go - HTTP API handlers for the incentive engine

PURPOSE:
  Exposes the incentive computation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Plans:
    GET    /api/plans?ventureId=         List plans for a venture
    POST   /api/plans                    Create plan
    GET    /api/plans/{id}               Get plan with rules
    PUT    /api/plans/{id}               Update plan (incl. deactivate)

  Rules:
    GET    /api/rules?planId=            List rules for a plan
    POST   /api/rules                    Create rule from JSON
    PUT    /api/rules/{id}               Update rule
    DELETE /api/rules/{id}               Delete rule

  Qualifications:
    GET    /api/qualifications?planId=   List threshold gates
    POST   /api/qualifications           Create gate

  Reporting, simulation, scenarios, and jobs live in their own files.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (also the metric provider and directory)
  - Engine: Day/window/scenario computation
  - Factory: JSON to Rule conversion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, bad rule config
  - 401: Missing/unknown caller
  - 403: Caller out of scope
  - 404: Resource not found
  - 500: Internal errors
  Config errors are logged with rule id and calc type so operators can
  fix the plan; raw internals are never leaked to clients.

SEE ALSO:
  - dto.go: Request/response data structures
  - scope.go: Caller resolution and visibility
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *engine.Engine
	Factory *factory.RuleFactory
}

// NewHandler creates a new handler with the given store. The store
// doubles as the engine's metric provider and user directory.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:   store,
		Engine:  engine.New(store, store),
		Factory: factory.NewRuleFactory(),
	}
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns a venture's plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	ventureID, ok := queryInt64(r, "ventureId")
	if !ok {
		writeError(w, http.StatusBadRequest, "ventureId query parameter required", nil)
		return
	}

	plans, err := h.Store.ListPlans(r.Context(), engine.VentureID(ventureID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlan creates a new plan.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.VentureID <= 0 || req.Name == "" {
		writeError(w, http.StatusBadRequest, "venture_id and name are required", nil)
		return
	}

	from, err := engine.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from (use YYYY-MM-DD)", err)
		return
	}

	plan := engine.Plan{
		VentureID:     engine.VentureID(req.VentureID),
		Name:          req.Name,
		Description:   req.Description,
		Currency:      req.Currency,
		IsActive:      true,
		EffectiveFrom: from,
	}
	if plan.Currency == "" {
		plan.Currency = "USD"
	}
	if req.EffectiveTo != "" {
		to, err := engine.ParseDate(req.EffectiveTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_to (use YYYY-MM-DD)", err)
			return
		}
		plan.EffectiveTo = to
	}

	id, err := h.Store.SavePlan(r.Context(), plan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create plan", err)
		return
	}
	plan.ID = id
	writeJSON(w, http.StatusCreated, toPlanDTO(plan))
}

// GetPlan returns a single plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid plan id", nil)
		return
	}

	plan, err := h.Store.GetPlan(r.Context(), engine.PlanID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*plan))
}

// UpdatePlan updates a plan. Setting is_active=false is the only
// retirement path; plans are never deleted so history stays auditable.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid plan id", nil)
		return
	}

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan, err := h.Store.GetPlan(r.Context(), engine.PlanID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}

	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.Description != nil {
		plan.Description = *req.Description
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}

	if _, err := h.Store.SavePlan(r.Context(), *plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*plan))
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns a plan's rules in wire form.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	planID, ok := queryInt64(r, "planId")
	if !ok {
		writeError(w, http.StatusBadRequest, "planId query parameter required", nil)
		return
	}

	rules, err := h.Store.ListRules(r.Context(), engine.PlanID(planID), false)
	if err != nil {
		h.engineError(w, "Failed to list rules", err)
		return
	}

	dtos := make([]factory.RuleJSON, len(rules))
	for i, rule := range rules {
		dtos[i] = h.Factory.ToJSON(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRule creates a rule from its JSON form. Malformed
// configuration is rejected here, at construction - the engine never
// sees a rule it cannot compute.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if rj.PlanID <= 0 {
		writeError(w, http.StatusBadRequest, "plan_id is required", nil)
		return
	}

	rj.ID = 0 // ids are assigned by the store
	rule, err := h.Factory.ParseRule(rj)
	if err != nil {
		h.engineError(w, "Invalid rule configuration", err)
		return
	}

	id, err := h.Store.SaveRule(r.Context(), rule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create rule", err)
		return
	}
	rule.ID = id
	writeJSON(w, http.StatusCreated, h.Factory.ToJSON(rule))
}

// UpdateRule replaces a rule wholesale.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid rule id", nil)
		return
	}

	existing, err := h.Store.GetRule(r.Context(), engine.RuleID(id))
	if err != nil {
		h.engineError(w, "Failed to get rule", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Rule not found", nil)
		return
	}

	var rj factory.RuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rj.ID = id
	if rj.PlanID == 0 {
		rj.PlanID = int64(existing.PlanID)
	}

	rule, err := h.Factory.ParseRule(rj)
	if err != nil {
		h.engineError(w, "Invalid rule configuration", err)
		return
	}

	if _, err := h.Store.SaveRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update rule", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(rule))
}

// DeleteRule removes a rule. Unlike plans, rules may be deleted: the
// full-replace write model means historical days keep their stored
// breakdowns regardless.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid rule id", nil)
		return
	}
	if err := h.Store.DeleteRule(r.Context(), engine.RuleID(id)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// QUALIFICATION HANDLERS
// =============================================================================

// ListQualifications returns a plan's threshold gates.
func (h *Handler) ListQualifications(w http.ResponseWriter, r *http.Request) {
	planID, ok := queryInt64(r, "planId")
	if !ok {
		writeError(w, http.StatusBadRequest, "planId query parameter required", nil)
		return
	}

	gates, err := h.Store.PlanQualifications(r.Context(), engine.PlanID(planID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list qualifications", err)
		return
	}

	dtos := make([]QualificationDTO, 0, len(gates))
	for _, q := range gates {
		dtos = append(dtos, toQualificationDTO(q))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateQualification creates a threshold gate.
func (h *Handler) CreateQualification(w http.ResponseWriter, r *http.Request) {
	var qj factory.QualificationJSON
	if err := json.NewDecoder(r.Body).Decode(&qj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if qj.PlanID <= 0 || qj.MetricKey == "" {
		writeError(w, http.StatusBadRequest, "plan_id and metric_key are required", nil)
		return
	}

	qj.ID = 0
	q := h.Factory.ParseQualification(qj)
	id, err := h.Store.SaveQualification(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create qualification", err)
		return
	}
	q.ID = id
	writeJSON(w, http.StatusCreated, toQualificationDTO(q))
}

// =============================================================================
// USER / VENTURE HANDLERS
// =============================================================================

// ListVentures returns all ventures.
func (h *Handler) ListVentures(w http.ResponseWriter, r *http.Request) {
	ventures, err := h.Store.ListVentures(r.Context(), false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list ventures", err)
		return
	}

	dtos := make([]VentureDTO, len(ventures))
	for i, v := range ventures {
		dtos[i] = VentureDTO{ID: v.ID, Name: v.Name, Type: v.Type, IsActive: v.IsActive}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListVentureUsers returns a venture's members.
func (h *Handler) ListVentureUsers(w http.ResponseWriter, r *http.Request) {
	ventureID, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid venture id", nil)
		return
	}

	records, err := h.Store.VentureUserRecords(r.Context(), ventureID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(records))
	for i, u := range records {
		dtos[i] = UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// planContext loads everything needed to compute under a venture's
// active plan as of a date: the selected plan, its enabled rules, and
// its qualifications.
func (h *Handler) planContext(ctx context.Context, ventureID engine.VentureID, asOf engine.Date) (*engine.Plan, []engine.Rule, map[engine.QualificationID]engine.Qualification, error) {
	plans, err := h.Store.ActivePlans(ctx, ventureID)
	if err != nil {
		return nil, nil, nil, err
	}
	plan, err := engine.SelectActivePlan(plans, asOf)
	if err != nil {
		return nil, nil, nil, err
	}
	rules, err := h.Store.ListRules(ctx, plan.ID, true)
	if err != nil {
		return nil, nil, nil, err
	}
	gates, err := h.Store.PlanQualifications(ctx, plan.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return plan, rules, gates, nil
}

// engineError maps engine errors to HTTP statuses. Config errors are
// logged with their detail; clients see a stable message.
func (h *Handler) engineError(w http.ResponseWriter, message string, err error) {
	var ce *engine.ConfigError
	if errors.As(err, &ce) {
		log.Printf("[API] rule config error: rule=%d calcType=%s: %s", ce.RuleID, ce.CalcType, ce.Reason)
	}

	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrAmbiguousPlan):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func queryInt64(r *http.Request, key string) (int64, bool) {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return v, err == nil && v > 0
}

func pathInt64(r *http.Request, key string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	return v, err == nil && v > 0
}

// parseWindow reads from/to query parameters, defaulting to the last
// 30 days ending yesterday.
func parseWindow(r *http.Request) (engine.Window, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	to := engine.Yesterday()
	from := to.AddDays(-29)

	var err error
	if toStr != "" {
		if to, err = engine.ParseDate(toStr); err != nil {
			return engine.Window{}, err
		}
	}
	if fromStr != "" {
		if from, err = engine.ParseDate(fromStr); err != nil {
			return engine.Window{}, err
		}
	}
	w := engine.Window{From: from, To: to}
	if !w.Valid() {
		return engine.Window{}, engine.ErrInvalidWindow
	}
	return w, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
