/*
handlers_test.go - Tests for plan/rule CRUD and caller scoping

Tests for:
- Caller resolution via X-User-ID (401 on missing/unknown)
- Plan creation, update, deactivate-not-delete
- Rule creation with config validation at the boundary
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/freight"
	"github.com/warp/incentive-engine/store/sqlite"
)

// newTestAPI builds a router over an in-memory store seeded with one
// freight venture: ava (CEO), marcus and dana (brokers).
func newTestAPI(t *testing.T) (*sqlite.Store, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if err := store.SaveVenture(ctx, sqlite.Venture{ID: 1, Name: "Freight", Type: "FREIGHT", IsActive: true}); err != nil {
		t.Fatalf("Failed to save venture: %v", err)
	}
	users := []sqlite.UserRecord{
		{ID: 1, Name: "ava", Role: RoleCEO},
		{ID: 2, Name: "marcus", Role: "BROKER"},
		{ID: 3, Name: "dana", Role: "BROKER"},
	}
	for _, u := range users {
		if err := store.SaveUser(ctx, u); err != nil {
			t.Fatalf("Failed to save user: %v", err)
		}
		if err := store.AssignUserToVenture(ctx, u.ID, 1); err != nil {
			t.Fatalf("Failed to assign user: %v", err)
		}
	}

	return store, NewRouter(NewHandler(store))
}

// seedActivePlan installs a plan with a single 2% of loads_revenue rule.
func seedActivePlan(t *testing.T, store *sqlite.Store) engine.PlanID {
	t.Helper()
	ctx := context.Background()
	planID, err := store.SavePlan(ctx, engine.Plan{
		VentureID:     1,
		Name:          "Standard",
		Currency:      "USD",
		IsActive:      true,
		EffectiveFrom: engine.NewDate(2025, 1, 1),
	})
	if err != nil {
		t.Fatalf("Failed to save plan: %v", err)
	}
	_, err = store.SaveRule(ctx, engine.Rule{
		PlanID:    planID,
		MetricKey: freight.MetricLoadsRevenue,
		Calc:      engine.PercentOfMetric{Rate: decimal.NewFromFloat(0.02)},
		Currency:  "USD",
		IsEnabled: true,
	})
	if err != nil {
		t.Fatalf("Failed to save rule: %v", err)
	}
	return planID
}

func seedDeliveredLoad(t *testing.T, store *sqlite.Store, id string, userID engine.UserID, date engine.Date, amount int64) {
	t.Helper()
	err := store.SaveLoad(context.Background(), freight.Load{
		ID:          id,
		VentureID:   1,
		CreatedBy:   userID,
		Status:      freight.StatusDelivered,
		BillingDate: date,
		BillAmount:  decimal.NewFromInt(amount),
		Miles:       decimal.NewFromInt(100),
		Margin:      decimal.NewFromInt(amount / 10),
	})
	if err != nil {
		t.Fatalf("Failed to save load: %v", err)
	}
}

func dateMustParse(t *testing.T, s string) engine.Date {
	t.Helper()
	d, err := engine.ParseDate(s)
	if err != nil {
		t.Fatalf("Bad date %q: %v", s, err)
	}
	return d
}

// doRequest runs one request through the router as the given caller.
// userID 0 omits the header.
func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func assertAmountString(t *testing.T, got, want string) {
	t.Helper()
	g, err := decimal.NewFromString(got)
	if err != nil {
		t.Fatalf("Bad amount %q: %v", got, err)
	}
	w, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("Bad expected amount %q: %v", want, err)
	}
	if !g.Equal(w) {
		t.Errorf("Expected amount %s, got %s", want, got)
	}
}

// =============================================================================
// SCOPING
// =============================================================================

func TestScope_MissingCallerRejected(t *testing.T) {
	// GIVEN: A seeded API
	_, router := newTestAPI(t)

	// WHEN: Calling a scoped endpoint without X-User-ID
	rec := doRequest(t, router, "GET", "/api/incentives/my", nil, 0)

	// THEN: 401
	assertStatus(t, rec, http.StatusUnauthorized)
}

func TestScope_UnknownCallerRejected(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doRequest(t, router, "GET", "/api/incentives/my", nil, 999)

	assertStatus(t, rec, http.StatusUnauthorized)
}

func TestScope_MemberCannotViewOtherUser(t *testing.T) {
	// GIVEN: marcus (a broker, not leadership)
	_, router := newTestAPI(t)

	// WHEN: marcus asks for dana's daily report
	rec := doRequest(t, router, "GET", "/api/incentives/user-daily?userId=3&ventureId=1&from=2025-06-01&to=2025-06-02", nil, 2)

	// THEN: 403
	assertStatus(t, rec, http.StatusForbidden)
}

func TestScope_LeadershipCanViewOtherUser(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doRequest(t, router, "GET", "/api/incentives/user-daily?userId=3&ventureId=1&from=2025-06-01&to=2025-06-02", nil, 1)

	assertStatus(t, rec, http.StatusOK)
}

// =============================================================================
// PLANS
// =============================================================================

func TestCreatePlan_RoundTrip(t *testing.T) {
	// GIVEN: A seeded API
	_, router := newTestAPI(t)

	// WHEN: Creating a plan
	rec := doRequest(t, router, "POST", "/api/plans", CreatePlanRequest{
		VentureID:     1,
		Name:          "Q3 Plan",
		Currency:      "USD",
		EffectiveFrom: "2025-07-01",
	}, 1)
	assertStatus(t, rec, http.StatusCreated)

	var plan PlanDTO
	decodeBody(t, rec, &plan)
	if plan.ID == 0 {
		t.Fatal("Expected assigned plan id")
	}
	if !plan.IsActive {
		t.Error("New plan should be active")
	}

	// THEN: It is listed for the venture
	rec = doRequest(t, router, "GET", "/api/plans?ventureId=1", nil, 1)
	assertStatus(t, rec, http.StatusOK)
	var plans []PlanDTO
	decodeBody(t, rec, &plans)
	if len(plans) != 1 {
		t.Fatalf("Expected 1 plan, got %d", len(plans))
	}
}

func TestUpdatePlan_DeactivateNotDelete(t *testing.T) {
	// GIVEN: An active plan
	store, router := newTestAPI(t)
	planID := seedActivePlan(t, store)

	// WHEN: Deactivating it
	active := false
	rec := doRequest(t, router, "PUT", fmt.Sprintf("/api/plans/%d", planID), UpdatePlanRequest{IsActive: &active}, 1)
	assertStatus(t, rec, http.StatusOK)

	// THEN: The plan still exists but is inactive
	rec = doRequest(t, router, "GET", fmt.Sprintf("/api/plans/%d", planID), nil, 1)
	assertStatus(t, rec, http.StatusOK)
	var plan PlanDTO
	decodeBody(t, rec, &plan)
	if plan.IsActive {
		t.Error("Plan should be inactive after update")
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doRequest(t, router, "GET", "/api/plans/42", nil, 1)

	assertStatus(t, rec, http.StatusNotFound)
}

// =============================================================================
// RULES
// =============================================================================

func TestCreateRule_Valid(t *testing.T) {
	// GIVEN: An active plan
	store, router := newTestAPI(t)
	planID := seedActivePlan(t, store)

	// WHEN: Adding a flat-per-unit rule
	rate := 50.0
	rec := doRequest(t, router, "POST", "/api/rules", factory.RuleJSON{
		PlanID:    int64(planID),
		MetricKey: freight.MetricLoadsCompleted,
		CalcType:  string(engine.CalcFlatPerUnit),
		Rate:      &rate,
	}, 1)
	assertStatus(t, rec, http.StatusCreated)

	// THEN: Both rules are listed
	rec = doRequest(t, router, "GET", fmt.Sprintf("/api/rules?planId=%d", planID), nil, 1)
	assertStatus(t, rec, http.StatusOK)
	var rules []factory.RuleJSON
	decodeBody(t, rec, &rules)
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}
}

func TestCreateRule_MalformedRejected(t *testing.T) {
	// GIVEN: An active plan
	store, router := newTestAPI(t)
	planID := seedActivePlan(t, store)

	// WHEN: Posting a rule with an unknown calc type
	rec := doRequest(t, router, "POST", "/api/rules", factory.RuleJSON{
		PlanID:    int64(planID),
		MetricKey: freight.MetricLoadsCompleted,
		CalcType:  "GEOMETRIC_MEAN",
	}, 1)

	// THEN: Rejected at the boundary, nothing stored
	assertStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, router, "GET", fmt.Sprintf("/api/rules?planId=%d", planID), nil, 1)
	var rules []factory.RuleJSON
	decodeBody(t, rec, &rules)
	if len(rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rules))
	}
}

func TestDeleteRule(t *testing.T) {
	store, router := newTestAPI(t)
	planID := seedActivePlan(t, store)

	rec := doRequest(t, router, "GET", fmt.Sprintf("/api/rules?planId=%d", planID), nil, 1)
	var rules []factory.RuleJSON
	decodeBody(t, rec, &rules)
	if len(rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rules))
	}

	rec = doRequest(t, router, "DELETE", fmt.Sprintf("/api/rules/%d", rules[0].ID), nil, 1)
	assertStatus(t, rec, http.StatusNoContent)

	rec = doRequest(t, router, "GET", fmt.Sprintf("/api/rules?planId=%d", planID), nil, 1)
	decodeBody(t, rec, &rules)
	if len(rules) != 0 {
		t.Fatalf("Expected 0 rules after delete, got %d", len(rules))
	}
}
