/*
simulate.go - Ad-hoc window simulation

PURPOSE:
  POST /api/simulate runs the window reducer over metrics without ever
  writing to incentive_daily. Three modes:

    current_plan              - the venture's active plan as-is
    custom_rules              - a request-supplied rule set
    compare_current_vs_custom - both, plus a per-user diff

  Simulation is the safe path for "what would we have paid" questions;
  the commit path is POST /api/incentives/run (reports.go).

SEE ALSO:
  - scenarios.go: Saved, named configurations compared side by side
  - engine/window.go: The reducer doing the actual work
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
)

// Simulation modes.
const (
	ModeCurrentPlan = "current_plan"
	ModeCustomRules = "custom_rules"
	ModeCompare     = "compare_current_vs_custom"
)

func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}
	if !scope.IsLeadership() {
		writeError(w, http.StatusForbidden, "Leadership role required", nil)
		return
	}

	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.VentureID <= 0 {
		writeError(w, http.StatusBadRequest, "venture_id is required", nil)
		return
	}
	if !scope.CanViewVenture(req.VentureID) {
		writeError(w, http.StatusForbidden, "Not allowed to view this venture", nil)
		return
	}

	from, err := engine.ParseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := engine.ParseDate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}
	window := engine.Window{From: from, To: to}
	if !window.Valid() {
		writeError(w, http.StatusBadRequest, "from must not be after to", nil)
		return
	}

	ventureID := engine.VentureID(req.VentureID)
	users, err := h.simulationUsers(r, ventureID, req.UserIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load venture users", err)
		return
	}

	resp := SimulateResponse{
		Mode:      req.Mode,
		VentureID: req.VentureID,
		From:      window.From.String(),
		To:        window.To.String(),
	}

	needBaseline := req.Mode == ModeCurrentPlan || req.Mode == ModeCompare
	needCustom := req.Mode == ModeCustomRules || req.Mode == ModeCompare
	if !needBaseline && !needCustom {
		writeError(w, http.StatusBadRequest, "mode must be current_plan, custom_rules, or compare_current_vs_custom", nil)
		return
	}
	if needCustom && len(req.Rules) == 0 {
		writeError(w, http.StatusBadRequest, "rules must not be empty for this mode", nil)
		return
	}

	if needBaseline {
		_, rules, gates, err := h.planContext(r.Context(), ventureID, to)
		if err != nil {
			h.engineError(w, "No computable plan for venture", err)
			return
		}
		result, err := h.Engine.ComputeWindow(r.Context(), engine.WindowInput{
			VentureID:      ventureID,
			Window:         window,
			Rules:          rules,
			Users:          users,
			Qualifications: gates,
		})
		if err != nil {
			h.engineError(w, "Baseline simulation failed", err)
			return
		}
		resp.Baseline = toSimulationSideDTO(result)
	}

	if needCustom {
		rules, err := h.Factory.ParseRules(req.Rules)
		if err != nil {
			h.engineError(w, "Invalid simulation rules", err)
			return
		}
		result, err := h.Engine.ComputeWindow(r.Context(), engine.WindowInput{
			VentureID: ventureID,
			Window:    window,
			Rules:     rules,
			Users:     users,
		})
		if err != nil {
			h.engineError(w, "Simulation failed", err)
			return
		}
		resp.Simulated = toSimulationSideDTO(result)
	}

	if req.Mode == ModeCompare {
		resp.Diff = diffSides(users, resp.Baseline, resp.Simulated)
	}

	writeJSON(w, http.StatusOK, resp)
}

// simulationUsers loads the venture roster, optionally narrowed to a
// requested subset. Unknown ids in the subset are ignored rather than
// rejected; they simply contribute nothing.
func (h *Handler) simulationUsers(r *http.Request, ventureID engine.VentureID, subset []int64) ([]engine.User, error) {
	users, err := h.Store.VentureUsers(r.Context(), ventureID)
	if err != nil {
		return nil, err
	}
	if len(subset) == 0 {
		return users, nil
	}

	want := make(map[engine.UserID]bool, len(subset))
	for _, id := range subset {
		want[engine.UserID(id)] = true
	}
	narrowed := make([]engine.User, 0, len(subset))
	for _, u := range users {
		if want[u.ID] {
			narrowed = append(narrowed, u)
		}
	}
	return narrowed, nil
}

func toSimulationSideDTO(result *engine.WindowResult) *SimulationSideDTO {
	perUser := make([]UserTotalDTO, len(result.Users))
	var daily []UserDayDTO
	for i, u := range result.Users {
		perUser[i] = UserTotalDTO{
			UserID:            int64(u.UserID),
			TotalAmount:       u.Total.String(),
			DaysWithIncentive: u.DaysWithIncentive,
		}
		for _, d := range u.Daily {
			daily = append(daily, UserDayDTO{
				UserID: int64(u.UserID),
				Date:   d.Date.String(),
				Amount: d.Amount.String(),
			})
		}
	}
	return &SimulationSideDTO{
		TotalAmount: result.TotalAmount().String(),
		PerUser:     perUser,
		Daily:       daily,
	}
}

// diffSides pairs baseline and simulated totals per user. Both sides
// cover the same roster, so a user missing from one side diffs
// against zero.
func diffSides(users []engine.User, baseline, simulated *SimulationSideDTO) []UserDiffDTO {
	base := make(map[int64]decimal.Decimal, len(baseline.PerUser))
	for _, u := range baseline.PerUser {
		if v, err := decimal.NewFromString(u.TotalAmount); err == nil {
			base[u.UserID] = v
		}
	}
	sim := make(map[int64]decimal.Decimal, len(simulated.PerUser))
	for _, u := range simulated.PerUser {
		if v, err := decimal.NewFromString(u.TotalAmount); err == nil {
			sim[u.UserID] = v
		}
	}

	diffs := make([]UserDiffDTO, 0, len(users))
	for _, u := range users {
		id := int64(u.ID)
		b, s := base[id], sim[id]
		diffs = append(diffs, UserDiffDTO{
			UserID:    id,
			Baseline:  b.String(),
			Simulated: s.String(),
			Delta:     s.Sub(b).String(),
		})
	}
	return diffs
}
