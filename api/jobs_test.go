/*
jobs_test.go - Tests for the daily incentive job and demo loaders

Tests for:
- Batch run across ventures with skip/fail isolation
- Dry runs computing without persisting
- Job audit rows
- Demo loading
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/store/sqlite"
)

func TestRunDailyJob_CommitsAndLogs(t *testing.T) {
	// GIVEN: A venture with an active plan and one day of loads
	store, router := newTestAPI(t)
	seedActivePlan(t, store)
	date := dateMustParse(t, "2025-06-01")
	seedDeliveredLoad(t, store, "L1", 2, date, 1000)

	// WHEN: Running the job for that day
	rec := doRequest(t, router, "POST", "/api/admin/jobs/incentive-daily", RunJobRequest{
		Date: "2025-06-01",
	}, 1)
	assertStatus(t, rec, http.StatusOK)

	// THEN: Stats report the venture, and results are stored
	var stats JobStatsDTO
	decodeBody(t, rec, &stats)
	if stats.VenturesOK != 1 {
		t.Errorf("Expected 1 venture ok, got %d", stats.VenturesOK)
	}
	if stats.UsersPaid != 1 {
		t.Errorf("Expected 1 user paid, got %d", stats.UsersPaid)
	}
	assertAmountString(t, stats.TotalAmount, "20")

	rows, err := store.LoadVentureRange(context.Background(), 1, date, date)
	if err != nil {
		t.Fatalf("Failed to load results: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("Expected stored results after job run")
	}

	// AND: An audit row exists
	logs, err := store.ListJobRunLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failed to list job logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("Expected 1 job log, got %d", len(logs))
	}
	if logs[0].JobName != jobNameIncentiveDaily {
		t.Errorf("Expected job name %q, got %q", jobNameIncentiveDaily, logs[0].JobName)
	}
	if logs[0].Status != "completed" {
		t.Errorf("Expected status completed, got %q", logs[0].Status)
	}
}

func TestRunDailyJob_DryRunPersistsNothing(t *testing.T) {
	// GIVEN: A computable day
	store, router := newTestAPI(t)
	seedActivePlan(t, store)
	date := dateMustParse(t, "2025-06-01")
	seedDeliveredLoad(t, store, "L1", 2, date, 1000)

	// WHEN: Running a dry run
	rec := doRequest(t, router, "POST", "/api/admin/jobs/incentive-daily", RunJobRequest{
		Date:   "2025-06-01",
		DryRun: true,
	}, 1)
	assertStatus(t, rec, http.StatusOK)

	// THEN: Stats are computed but nothing is stored
	var stats JobStatsDTO
	decodeBody(t, rec, &stats)
	assertAmountString(t, stats.TotalAmount, "20")
	if !stats.DryRun {
		t.Error("Expected dry_run flag in stats")
	}

	rows, err := store.LoadVentureRange(context.Background(), 1, date, date)
	if err != nil {
		t.Fatalf("Failed to load results: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Dry run must not persist, found %d rows", len(rows))
	}
}

func TestRunDailyJob_SkipsVentureWithoutPlan(t *testing.T) {
	// GIVEN: A venture with no plan at all
	_, router := newTestAPI(t)

	// WHEN: Running the job
	rec := doRequest(t, router, "POST", "/api/admin/jobs/incentive-daily", RunJobRequest{
		Date: "2025-06-01",
	}, 1)
	assertStatus(t, rec, http.StatusOK)

	// THEN: The venture is counted as skipped, not failed
	var stats JobStatsDTO
	decodeBody(t, rec, &stats)
	if stats.VenturesSkipped != 1 {
		t.Errorf("Expected 1 venture skipped, got %d", stats.VenturesSkipped)
	}
	if stats.VenturesFailed != 0 {
		t.Errorf("Expected 0 ventures failed, got %d", stats.VenturesFailed)
	}
}

func TestRunDailyJob_SingleVentureScope(t *testing.T) {
	// GIVEN: Two ventures, only one selected
	store, router := newTestAPI(t)
	seedActivePlan(t, store)
	other := sqlite.Venture{ID: 2, Name: "Other", Type: "BPO", IsActive: true}
	if err := store.SaveVenture(context.Background(), other); err != nil {
		t.Fatalf("Failed to save venture: %v", err)
	}
	date := dateMustParse(t, "2025-06-01")
	seedDeliveredLoad(t, store, "L1", 2, date, 1000)

	// WHEN: Running the job for venture 1 only
	ventureID := int64(1)
	rec := doRequest(t, router, "POST", "/api/admin/jobs/incentive-daily", RunJobRequest{
		VentureID: &ventureID,
		Date:      "2025-06-01",
	}, 1)
	assertStatus(t, rec, http.StatusOK)

	// THEN: Only one venture was considered
	var stats JobStatsDTO
	decodeBody(t, rec, &stats)
	if stats.VenturesTotal != 1 {
		t.Errorf("Expected 1 venture in scope, got %d", stats.VenturesTotal)
	}
	assertAmountString(t, stats.TotalAmount, "20")
}

func TestRunDailyJob_MemberForbidden(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doRequest(t, router, "POST", "/api/admin/jobs/incentive-daily", RunJobRequest{
		Date: "2025-06-01",
	}, 2)

	assertStatus(t, rec, http.StatusForbidden)
}

// =============================================================================
// DEMO
// =============================================================================

func TestLoadDemo_FreightBasics(t *testing.T) {
	// GIVEN: A fresh API
	store, router := newTestAPI(t)

	// WHEN: Loading the freight demo
	rec := doRequest(t, router, "POST", "/api/demo/load", map[string]string{
		"demo_id": "freight-basics",
	}, 0)
	assertStatus(t, rec, http.StatusOK)

	// THEN: The demo venture has an active plan with all four calc types
	plans, err := store.ActivePlans(context.Background(), 1)
	if err != nil {
		t.Fatalf("Failed to list plans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("Expected 1 active plan, got %d", len(plans))
	}
	rules, err := store.ListRules(context.Background(), plans[0].ID, true)
	if err != nil {
		t.Fatalf("Failed to list rules: %v", err)
	}
	if len(rules) != 4 {
		t.Fatalf("Expected 4 rules, got %d", len(rules))
	}

	// AND: A committed run over demo data pays out
	resp := commitDay(t, router, engine.Today().AddDays(-2).String())
	if resp.UsersPaid == 0 {
		t.Error("Expected demo data to produce payouts")
	}
}

func TestLoadDemo_UnknownRejected(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doRequest(t, router, "POST", "/api/demo/load", map[string]string{
		"demo_id": "nope",
	}, 0)

	assertStatus(t, rec, http.StatusBadRequest)
}

func TestResetDemo_ClearsData(t *testing.T) {
	// GIVEN: Loaded demo data
	store, router := newTestAPI(t)
	rec := doRequest(t, router, "POST", "/api/demo/load", map[string]string{
		"demo_id": "freight-basics",
	}, 0)
	assertStatus(t, rec, http.StatusOK)

	// WHEN: Resetting
	rec = doRequest(t, router, "POST", "/api/demo/reset", nil, 0)
	assertStatus(t, rec, http.StatusOK)

	// THEN: No ventures remain
	ventures, err := store.ListVentures(context.Background(), false)
	if err != nil {
		t.Fatalf("Failed to list ventures: %v", err)
	}
	if len(ventures) != 0 {
		t.Errorf("Expected empty database after reset, got %d ventures", len(ventures))
	}
}
