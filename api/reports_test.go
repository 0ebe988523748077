/*
reports_test.go - Tests for the commit path and reporting endpoints

Tests for:
- POST /api/incentives/run (full-replace commit, leadership only)
- Personal history with running totals
- Venture summary ordering
- Gamification over stored rows
*/
package api

import (
	"net/http"
	"testing"
)

func commitDay(t *testing.T, router http.Handler, date string) RunIncentivesResponse {
	t.Helper()
	rec := doRequest(t, router, "POST", "/api/incentives/run", RunIncentivesRequest{
		VentureID: 1,
		Date:      date,
	}, 1)
	assertStatus(t, rec, http.StatusOK)
	var resp RunIncentivesResponse
	decodeBody(t, rec, &resp)
	return resp
}

func TestRunIncentives_CommitsDay(t *testing.T) {
	// GIVEN: A plan paying 2% of revenue and one $1000 delivered load
	store, router := newTestAPI(t)
	seedActivePlan(t, store)
	seedDeliveredLoad(t, store, "L1", 2, dateMustParse(t, "2025-06-01"), 1000)

	// WHEN: Leadership commits the day
	resp := commitDay(t, router, "2025-06-01")

	// THEN: marcus is paid $20; the roster count includes zero earners
	if resp.UsersPaid != 1 {
		t.Errorf("Expected 1 user paid, got %d", resp.UsersPaid)
	}
	if resp.UsersTotal != 3 {
		t.Errorf("Expected 3 users in roster, got %d", resp.UsersTotal)
	}
	assertAmountString(t, resp.TotalAmount, "20")
}

func TestRunIncentives_MemberForbidden(t *testing.T) {
	// GIVEN: A broker caller
	store, router := newTestAPI(t)
	seedActivePlan(t, store)

	// WHEN: marcus tries to commit
	rec := doRequest(t, router, "POST", "/api/incentives/run", RunIncentivesRequest{
		VentureID: 1,
		Date:      "2025-06-01",
	}, 2)

	// THEN: 403
	assertStatus(t, rec, http.StatusForbidden)
}

func TestRunIncentives_RerunReplaces(t *testing.T) {
	// GIVEN: A committed day
	store, router := newTestAPI(t)
	seedActivePlan(t, store)
	seedDeliveredLoad(t, store, "L1", 2, dateMustParse(t, "2025-06-01"), 1000)
	commitDay(t, router, "2025-06-01")

	// WHEN: Another load lands late and the day is rerun
	seedDeliveredLoad(t, store, "L2", 2, dateMustParse(t, "2025-06-01"), 500)
	resp := commitDay(t, router, "2025-06-01")

	// THEN: The stored day reflects the rerun, not the sum of both runs
	assertAmountString(t, resp.TotalAmount, "30")

	rec := doRequest(t, router, "GET", "/api/incentives/my?from=2025-06-01&to=2025-06-01", nil, 2)
	assertStatus(t, rec, http.StatusOK)
	var days []DailyIncentiveDTO
	decodeBody(t, rec, &days)
	if len(days) != 1 {
		t.Fatalf("Expected 1 stored day, got %d", len(days))
	}
	assertAmountString(t, days[0].Amount, "30")
}

func TestGetMyIncentives_RunningTotal(t *testing.T) {
	// GIVEN: Two committed days of $20 and $10
	store, router := newTestAPI(t)
	seedActivePlan(t, store)
	seedDeliveredLoad(t, store, "L1", 2, dateMustParse(t, "2025-06-01"), 1000)
	seedDeliveredLoad(t, store, "L2", 2, dateMustParse(t, "2025-06-02"), 500)
	commitDay(t, router, "2025-06-01")
	commitDay(t, router, "2025-06-02")

	// WHEN: marcus reads their own history
	rec := doRequest(t, router, "GET", "/api/incentives/my?from=2025-06-01&to=2025-06-02", nil, 2)
	assertStatus(t, rec, http.StatusOK)

	// THEN: Oldest first with a running total
	var days []DailyIncentiveDTO
	decodeBody(t, rec, &days)
	if len(days) != 2 {
		t.Fatalf("Expected 2 days, got %d", len(days))
	}
	if days[0].Date != "2025-06-01" {
		t.Errorf("Expected oldest day first, got %s", days[0].Date)
	}
	assertAmountString(t, days[0].RunningTotal, "20")
	assertAmountString(t, days[1].RunningTotal, "30")
}

func TestGetUserTimeseries_ZeroFilled(t *testing.T) {
	// GIVEN: One committed day inside a three-day window
	store, router := newTestAPI(t)
	seedActivePlan(t, store)
	seedDeliveredLoad(t, store, "L1", 2, dateMustParse(t, "2025-06-02"), 1000)
	commitDay(t, router, "2025-06-02")

	// WHEN: Leadership requests the timeseries
	rec := doRequest(t, router, "GET", "/api/incentives/user-timeseries?userId=2&ventureId=1&from=2025-06-01&to=2025-06-03", nil, 1)
	assertStatus(t, rec, http.StatusOK)

	// THEN: Every calendar day appears, zeros included
	var series []UserDayDTO
	decodeBody(t, rec, &series)
	if len(series) != 3 {
		t.Fatalf("Expected 3 days, got %d", len(series))
	}
	assertAmountString(t, series[0].Amount, "0")
	assertAmountString(t, series[1].Amount, "20")
	assertAmountString(t, series[2].Amount, "0")
}

func TestVentureSummary_SortedByTotal(t *testing.T) {
	// GIVEN: marcus out-earning dana over two days
	store, router := newTestAPI(t)
	seedActivePlan(t, store)
	seedDeliveredLoad(t, store, "L1", 2, dateMustParse(t, "2025-06-01"), 2000)
	seedDeliveredLoad(t, store, "L2", 3, dateMustParse(t, "2025-06-01"), 1000)
	commitDay(t, router, "2025-06-01")

	// WHEN: Leadership requests the summary
	rec := doRequest(t, router, "GET", "/api/incentives/venture-summary?ventureId=1&from=2025-06-01&to=2025-06-01", nil, 1)
	assertStatus(t, rec, http.StatusOK)

	// THEN: Users are ordered by total descending
	var summary VentureSummaryDTO
	decodeBody(t, rec, &summary)
	assertAmountString(t, summary.TotalAmount, "60")
	if len(summary.Users) < 2 {
		t.Fatalf("Expected at least 2 users, got %d", len(summary.Users))
	}
	if summary.Users[0].UserID != 2 {
		t.Errorf("Expected marcus first, got user %d", summary.Users[0].UserID)
	}
	assertAmountString(t, summary.Users[0].TotalAmount, "40")
	assertAmountString(t, summary.Users[1].TotalAmount, "20")
}

func TestVentureSummary_MemberForbidden(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doRequest(t, router, "GET", "/api/incentives/venture-summary?ventureId=1&from=2025-06-01&to=2025-06-01", nil, 2)

	assertStatus(t, rec, http.StatusForbidden)
}

func TestGamification_StreakAndRank(t *testing.T) {
	// GIVEN: marcus earning on three consecutive days, dana on one
	store, router := newTestAPI(t)
	seedActivePlan(t, store)
	seedDeliveredLoad(t, store, "L1", 2, dateMustParse(t, "2025-06-01"), 1000)
	seedDeliveredLoad(t, store, "L2", 2, dateMustParse(t, "2025-06-02"), 1000)
	seedDeliveredLoad(t, store, "L3", 2, dateMustParse(t, "2025-06-03"), 1000)
	seedDeliveredLoad(t, store, "L4", 3, dateMustParse(t, "2025-06-02"), 500)
	for _, d := range []string{"2025-06-01", "2025-06-02", "2025-06-03"} {
		commitDay(t, router, d)
	}

	// WHEN: marcus reads their gamification view
	rec := doRequest(t, router, "GET", "/api/incentives/gamification/my?ventureId=1&from=2025-06-01&to=2025-06-03", nil, 2)
	assertStatus(t, rec, http.StatusOK)

	// THEN: Streak covers all three days and marcus ranks first
	var g GamificationDTO
	decodeBody(t, rec, &g)
	if g.CurrentStreak != 3 {
		t.Errorf("Expected current streak 3, got %d", g.CurrentStreak)
	}
	if g.LongestStreak != 3 {
		t.Errorf("Expected longest streak 3, got %d", g.LongestStreak)
	}
	if g.Rank != 1 {
		t.Errorf("Expected rank 1, got %d", g.Rank)
	}
	if g.Percentile != 100 {
		t.Errorf("Expected percentile 100, got %d", g.Percentile)
	}
	if g.DaysWithIncentive != 3 {
		t.Errorf("Expected 3 days with incentive, got %d", g.DaysWithIncentive)
	}
}
