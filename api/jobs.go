/*
jobs.go - Batch daily incentive computation

PURPOSE:
  The daily incentive job: compute and persist one day's incentives for
  every active venture (or a single venture) under each venture's
  active plan. Exposed over HTTP for manual runs and reused by the
  scheduler for the nightly run.

ENDPOINTS:
  POST /api/admin/jobs/incentive-daily - Run the job now
  GET  /api/admin/jobs                 - Recent job audit rows

FAILURE ISOLATION:
  One venture failing (no plan, bad rule config) never blocks the
  others. Ventures with no selectable plan are counted as skipped;
  hard failures are collected into the stats. Every run - manual or
  scheduled, dry or committed - writes a job_run_logs row.

SEE ALSO:
  - scheduler.go: The nightly trigger for this job
  - reports.go:   Single venture/day commit (RunIncentives)
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/store/sqlite"
)

const jobNameIncentiveDaily = "incentive-daily"

// =============================================================================
// HTTP SURFACE
// =============================================================================

func (h *Handler) RunIncentiveJob(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}
	if !scope.IsLeadership() {
		writeError(w, http.StatusForbidden, "Leadership role required", nil)
		return
	}

	var req RunJobRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	date := engine.Yesterday()
	if req.Date != "" {
		var err error
		if date, err = engine.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
	}

	stats, err := h.RunDailyJob(r.Context(), date, req.VentureID, req.DryRun)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Job failed", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) ListJobRuns(w http.ResponseWriter, r *http.Request) {
	scope := h.requireScope(w, r)
	if scope == nil {
		return
	}
	if !scope.IsLeadership() {
		writeError(w, http.StatusForbidden, "Leadership role required", nil)
		return
	}

	limit := 0
	if v, ok := queryInt64(r, "limit"); ok {
		limit = int(v)
	}
	logs, err := h.Store.ListJobRunLogs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list job runs", err)
		return
	}

	dtos := make([]JobRunLogDTO, len(logs))
	for i, j := range logs {
		dtos[i] = toJobRunLogDTO(j)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// JOB RUNNER
// =============================================================================

// RunDailyJob computes one day for the selected ventures and writes an
// audit row. ventureID nil means every active venture. DryRun computes
// everything but persists nothing (including no replacement of
// previously committed rows).
func (h *Handler) RunDailyJob(ctx context.Context, date engine.Date, ventureID *int64, dryRun bool) (JobStatsDTO, error) {
	startedAt := time.Now()
	stats := JobStatsDTO{Date: date.String(), DryRun: dryRun}

	var ventures []sqlite.Venture
	if ventureID != nil {
		v, err := h.Store.GetVenture(ctx, *ventureID)
		if err != nil {
			return stats, err
		}
		if v == nil {
			return stats, fmt.Errorf("venture %d not found", *ventureID)
		}
		ventures = []sqlite.Venture{*v}
	} else {
		var err error
		if ventures, err = h.Store.ListVentures(ctx, true); err != nil {
			return stats, err
		}
	}
	stats.VenturesTotal = len(ventures)

	total := decimal.Zero
	for _, v := range ventures {
		paid, amount, err := h.runVentureDay(ctx, engine.VentureID(v.ID), date, dryRun)
		switch {
		case errors.Is(err, engine.ErrNoActivePlan):
			stats.VenturesSkipped++
			log.Printf("[Job] %s: venture=%d date=%s skipped: no active plan", jobNameIncentiveDaily, v.ID, date)
		case err != nil:
			stats.VenturesFailed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("venture %d: %v", v.ID, err))
			log.Printf("[Job] %s: venture=%d date=%s failed: %v", jobNameIncentiveDaily, v.ID, date, err)
		default:
			stats.VenturesOK++
			stats.UsersPaid += paid
			total = total.Add(amount)
		}
	}
	stats.TotalAmount = total.String()

	h.logJobRun(ctx, ventureID, startedAt, stats)
	return stats, nil
}

// runVentureDay is one venture's slice of the job: resolve the plan,
// compute the day, persist with full-replace semantics.
func (h *Handler) runVentureDay(ctx context.Context, ventureID engine.VentureID, date engine.Date, dryRun bool) (paid int, total decimal.Decimal, err error) {
	plan, rules, gates, err := h.planContext(ctx, ventureID, date)
	if err != nil {
		return 0, decimal.Zero, err
	}

	users, err := h.Store.VentureUsers(ctx, ventureID)
	if err != nil {
		return 0, decimal.Zero, err
	}

	results, err := h.Engine.ComputeDay(ctx, engine.DayInput{
		VentureID:      ventureID,
		Date:           date,
		Rules:          rules,
		Users:          users,
		Qualifications: gates,
	})
	if err != nil {
		return 0, decimal.Zero, err
	}

	now := time.Now()
	total = decimal.Zero
	stored := make([]engine.DailyResult, 0, len(results))
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

	if dryRun {
		return paid, total, nil
	}
	if err := h.Store.ReplaceVentureDay(ctx, ventureID, date, stored); err != nil {
		return 0, decimal.Zero, err
	}
	return paid, total, nil
}

func (h *Handler) logJobRun(ctx context.Context, ventureID *int64, startedAt time.Time, stats JobStatsDTO) {
	status := "completed"
	if stats.VenturesFailed > 0 {
		status = "completed_with_errors"
	}
	statsJSON, _ := json.Marshal(stats)

	entry := sqlite.JobRunLog{
		ID:        uuid.New().String(),
		VentureID: ventureID,
		JobName:   jobNameIncentiveDaily,
		Status:    status,
		StartedAt: startedAt,
		EndedAt:   time.Now(),
		StatsJSON: string(statsJSON),
	}
	if len(stats.Errors) > 0 {
		entry.Error = stats.Errors[0]
	}
	if err := h.Store.SaveJobRunLog(ctx, entry); err != nil {
		log.Printf("[Job] %s: failed to write audit row: %v", jobNameIncentiveDaily, err)
	}
}
