/*
reports.go - Reporting endpoints over stored daily results

PURPOSE:
  Read paths for committed incentive data: personal history, per-user
  drilldowns, venture leaderboards, and the gamification view. All of
  these read incentive_daily only - they never recompute.

SCOPING:
  Every endpoint resolves the caller (scope.go). "my" endpoints are
  self-scoped; user/venture endpoints require leadership visibility.

COMMIT:
  POST /api/incentives/run computes one venture/day under the active
  plan and persists it with full-replace semantics. Leadership only.

SEE ALSO:
  - jobs.go: The batch variant across all active ventures
  - engine/window.go: Streaks / rank / badge primitives reused here
*/
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// PERSONAL REPORTS
// =============================================================================

// GetMyIncentives returns the caller's stored daily results across all
// their ventures, oldest first, with a running total.
func (h *Handler) GetMyIncentives(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	rows, err := h.Store.LoadUserWindow(r.Context(), engine.UserID(scope.User.ID), window.From, window.To)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load incentives", err)
		return
	}

	running := decimal.Zero
	dtos := make([]DailyIncentiveDTO, len(rows))
	for i, row := range rows {
		running = running.Add(row.Amount)
		dto := toDailyDTO(row)
		dto.RunningTotal = running.String()
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMyGamification returns streaks, rank, percentile, and badges for
// the caller within one venture's window.
func (h *Handler) GetMyGamification(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}

	ventureID, ok := queryInt64(r, "ventureId")
	if !ok {
		writeError(w, http.StatusBadRequest, "ventureId query parameter required", nil)
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	rows, err := h.Store.LoadVentureRange(r.Context(), engine.VentureID(ventureID), window.From, window.To)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load incentives", err)
		return
	}

	// Per-user totals for ranking and the caller's full daily series
	// (zero-filled so streaks see every calendar day).
	userID := engine.UserID(scope.User.ID)
	totals := make(map[engine.UserID]decimal.Decimal)
	byDate := make(map[engine.Date]decimal.Decimal)
	daysWith := 0
	total := decimal.Zero

	for _, row := range rows {
		totals[row.UserID] = totals[row.UserID].Add(row.Amount)
		if row.UserID == userID {
			byDate[row.Date] = row.Amount
			total = total.Add(row.Amount)
			if !row.Amount.IsZero() {
				daysWith++
			}
		}
	}
	if _, ok := totals[userID]; !ok {
		totals[userID] = decimal.Zero
	}

	daily := make([]engine.DayAmount, 0, window.Len())
	for _, d := range window.Days() {
		daily = append(daily, engine.DayAmount{Date: d, Amount: byDate[d]})
	}

	current, longest := engine.Streaks(daily)
	rank, totalUsers, percentile := engine.RankAndPercentile(totals, userID)

	writeJSON(w, http.StatusOK, GamificationDTO{
		UserID:            scope.User.ID,
		From:              window.From.String(),
		To:                window.To.String(),
		TotalAmount:       total.String(),
		DaysWithIncentive: daysWith,
		CurrentStreak:     current,
		LongestStreak:     longest,
		Rank:              rank,
		TotalUsers:        totalUsers,
		Percentile:        percentile,
		Badges:            engine.BadgesFor(current, daysWith, percentile),
	})
}

// =============================================================================
// LEADERSHIP REPORTS
// =============================================================================

// GetUserDaily returns one user's stored days in a venture.
func (h *Handler) GetUserDaily(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}

	userID, ok := queryInt64(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "userId query parameter required", nil)
		return
	}
	ventureID, ok := queryInt64(r, "ventureId")
	if !ok {
		writeError(w, http.StatusBadRequest, "ventureId query parameter required", nil)
		return
	}
	if !scope.CanViewUser(userID) {
		writeError(w, http.StatusForbidden, "Not allowed to view this user", nil)
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	rows, err := h.Store.LoadUserRange(r.Context(), engine.VentureID(ventureID), engine.UserID(userID), window.From, window.To)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load incentives", err)
		return
	}

	dtos := make([]DailyIncentiveDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toDailyDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUserTimeseries returns one user's per-day amounts, zero-filled
// across the whole window for charting.
func (h *Handler) GetUserTimeseries(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}

	userID, ok := queryInt64(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "userId query parameter required", nil)
		return
	}
	ventureID, ok := queryInt64(r, "ventureId")
	if !ok {
		writeError(w, http.StatusBadRequest, "ventureId query parameter required", nil)
		return
	}
	if !scope.CanViewUser(userID) {
		writeError(w, http.StatusForbidden, "Not allowed to view this user", nil)
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	rows, err := h.Store.LoadUserRange(r.Context(), engine.VentureID(ventureID), engine.UserID(userID), window.From, window.To)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load incentives", err)
		return
	}

	byDate := make(map[engine.Date]decimal.Decimal, len(rows))
	for _, row := range rows {
		byDate[row.Date] = row.Amount
	}

	series := make([]UserDayDTO, 0, window.Len())
	for _, d := range window.Days() {
		series = append(series, UserDayDTO{
			UserID: userID,
			Date:   d.String(),
			Amount: byDate[d].String(),
		})
	}
	writeJSON(w, http.StatusOK, series)
}

// GetVentureSummary returns the per-user leaderboard for a venture
// window, sorted by total descending.
func (h *Handler) GetVentureSummary(w http.ResponseWriter, r *http.Request) {
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

	window, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	rows, err := h.Store.LoadVentureRange(r.Context(), engine.VentureID(ventureID), window.From, window.To)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load incentives", err)
		return
	}

	type agg struct {
		total decimal.Decimal
		days  int
	}
	byUser := make(map[engine.UserID]*agg)
	grand := decimal.Zero
	for _, row := range rows {
		a, ok := byUser[row.UserID]
		if !ok {
			a = &agg{}
			byUser[row.UserID] = a
		}
		a.total = a.total.Add(row.Amount)
		if !row.Amount.IsZero() {
			a.days++
		}
		grand = grand.Add(row.Amount)
	}

	names := make(map[int64]string)
	if records, err := h.Store.VentureUserRecords(r.Context(), ventureID); err == nil {
		for _, u := range records {
			names[u.ID] = u.Name
		}
	}

	users := make([]UserTotalDTO, 0, len(byUser))
	for id, a := range byUser {
		users = append(users, UserTotalDTO{
			UserID:            int64(id),
			Name:              names[int64(id)],
			TotalAmount:       a.total.String(),
			DaysWithIncentive: a.days,
		})
	}
	sort.Slice(users, func(i, j int) bool {
		ti, _ := decimal.NewFromString(users[i].TotalAmount)
		tj, _ := decimal.NewFromString(users[j].TotalAmount)
		if !ti.Equal(tj) {
			return ti.GreaterThan(tj)
		}
		return users[i].UserID < users[j].UserID
	})

	writeJSON(w, http.StatusOK, VentureSummaryDTO{
		VentureID:   ventureID,
		From:        window.From.String(),
		To:          window.To.String(),
		TotalAmount: grand.String(),
		Users:       users,
	})
}

// =============================================================================
// COMMIT
// =============================================================================

// RunIncentives computes and persists one venture/day under the active
// plan. Rerunning the same day replaces it wholesale.
func (h *Handler) RunIncentives(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}
	if !scope.IsLeadership() {
		writeError(w, http.StatusForbidden, "Leadership role required", nil)
		return
	}

	var req RunIncentivesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.VentureID <= 0 {
		writeError(w, http.StatusBadRequest, "venture_id is required", nil)
		return
	}

	date := engine.Yesterday()
	if req.Date != "" {
		var err error
		if date, err = engine.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
	}

	ventureID := engine.VentureID(req.VentureID)
	plan, rules, gates, err := h.planContext(r.Context(), ventureID, date)
	if err != nil {
		h.engineError(w, "No computable plan for venture", err)
		return
	}

	users, err := h.Store.VentureUsers(r.Context(), ventureID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load venture users", err)
		return
	}

	results, err := h.Engine.ComputeDay(r.Context(), engine.DayInput{
		VentureID:      ventureID,
		Date:           date,
		Rules:          rules,
		Users:          users,
		Qualifications: gates,
	})
	if err != nil {
		h.engineError(w, "Computation failed", err)
		return
	}

	now := time.Now()
	stored := make([]engine.DailyResult, 0, len(results))
	total := decimal.Zero
	paid := 0
	for _, res := range results {
		total = total.Add(res.Amount)
		if !res.Amount.IsZero() {
			paid++
		}
		stored = append(stored, engine.DailyResult{
			VentureID:  ventureID,
			UserID:     res.UserID,
			Date:       date,
			Amount:     res.Amount,
			Currency:   plan.Currency,
			Breakdown:  res.Breakdown,
			ComputedAt: now,
		})
	}

	if err := h.Store.ReplaceVentureDay(r.Context(), ventureID, date, stored); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist results", err)
		return
	}

	writeJSON(w, http.StatusOK, RunIncentivesResponse{
		VentureID:   req.VentureID,
		Date:        date.String(),
		PlanID:      int64(plan.ID),
		UsersPaid:   paid,
		UsersTotal:  len(results),
		TotalAmount: total.String(),
	})
}
