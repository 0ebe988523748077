package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/engine/store"
)

const testVenture = engine.VentureID(1)

func newTestEngine() (*engine.Engine, *store.Memory) {
	mem := store.NewMemory()
	return engine.New(mem, mem), mem
}

func jan(day int) engine.Date {
	return engine.NewDate(2025, time.January, day)
}

// =============================================================================
// DAY AGGREGATOR TESTS
// =============================================================================

func TestComputeDay_SumsRuleContributions(t *testing.T) {
	// GIVEN: One broker with revenue 1000 and 3 delivered loads, a 2%
	//        revenue rule and a $50/load rule
	// WHEN: Computing the day
	// THEN: Total is 170 with both contributions in the breakdown

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})

	m := engine.MetricSet{}
	m.Set("loads_revenue", dec(1000))
	m.Set("loads_completed", dec(3))
	mem.SetMetrics(testVenture, 10, jan(15), m)

	results, err := eng.ComputeDay(context.Background(), engine.DayInput{
		VentureID: testVenture,
		Date:      jan(15),
		Rules: []engine.Rule{
			percentRule(1, "loads_revenue", 0.02),
			flatRule(2, "loads_completed", 50),
		},
		Users: []engine.User{{ID: 10, Role: "BROKER"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	assertAmount(t, results[0].Amount, 170)
	if len(results[0].Breakdown) != 2 {
		t.Errorf("expected 2 contributions, got %d", len(results[0].Breakdown))
	}
}

func TestComputeDay_UserWithNoMetrics_AppearsWithZero(t *testing.T) {
	// Every requested user appears in the output, even with nothing to
	// pay. Silence is not a valid answer for a payroll-adjacent system.

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})
	mem.AddUser(testVenture, engine.User{ID: 11, Role: "BROKER"})
	mem.SetMetrics(testVenture, 10, jan(15), metricsWith("loads_revenue", 1000))

	results, err := eng.ComputeDay(context.Background(), engine.DayInput{
		VentureID: testVenture,
		Date:      jan(15),
		Rules:     []engine.Rule{percentRule(1, "loads_revenue", 0.02)},
		Users: []engine.User{
			{ID: 10, Role: "BROKER"},
			{ID: 11, Role: "BROKER"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	assertAmount(t, results[1].Amount, 0)
	if len(results[1].Breakdown) != 0 {
		t.Errorf("zero day must have empty breakdown, got %v", results[1].Breakdown)
	}
}

func TestComputeDay_RoleRestriction(t *testing.T) {
	// GIVEN: A broker and a dispatcher, rule keyed to BROKER via input
	// WHEN: Computing restricted to BROKER
	// THEN: Only the broker appears

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})
	mem.AddUser(testVenture, engine.User{ID: 11, Role: "DISPATCHER"})

	results, err := eng.ComputeDay(context.Background(), engine.DayInput{
		VentureID:      testVenture,
		Date:           jan(15),
		Rules:          []engine.Rule{percentRule(1, "loads_revenue", 0.02)},
		Users:          []engine.User{{ID: 10, Role: "BROKER"}, {ID: 11, Role: "DISPATCHER"}},
		RestrictToRole: "BROKER",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].UserID != 10 {
		t.Fatalf("expected only user 10, got %v", results)
	}
}

func TestComputeDay_RuleRoleKey_FiltersPerRule(t *testing.T) {
	// A rule with a role key only pays users of that role; other users
	// still appear with zero.

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})
	mem.AddUser(testVenture, engine.User{ID: 11, Role: "DISPATCHER"})
	mem.SetMetrics(testVenture, 10, jan(15), metricsWith("loads_completed", 2))
	mem.SetMetrics(testVenture, 11, jan(15), metricsWith("loads_completed", 2))

	rule := flatRule(1, "loads_completed", 50)
	rule.RoleKey = "BROKER"

	results, err := eng.ComputeDay(context.Background(), engine.DayInput{
		VentureID: testVenture,
		Date:      jan(15),
		Rules:     []engine.Rule{rule},
		Users:     []engine.User{{ID: 10, Role: "BROKER"}, {ID: 11, Role: "DISPATCHER"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertAmount(t, results[0].Amount, 100)
	assertAmount(t, results[1].Amount, 0)
}

func TestComputeDay_Idempotent(t *testing.T) {
	// Same inputs, same outputs. Twice.

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})
	mem.SetMetrics(testVenture, 10, jan(15), metricsWith("loads_revenue", 1234.56))

	in := engine.DayInput{
		VentureID: testVenture,
		Date:      jan(15),
		Rules:     []engine.Rule{percentRule(1, "loads_revenue", 0.02)},
		Users:     []engine.User{{ID: 10, Role: "BROKER"}},
	}

	first, err := eng.ComputeDay(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := eng.ComputeDay(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !first[0].Amount.Equal(second[0].Amount) {
		t.Errorf("recompute changed the total: %v vs %v", first[0].Amount, second[0].Amount)
	}
}

func TestComputeDay_RoundsTotalToCents(t *testing.T) {
	// Rounding happens once, at the day total.

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})
	mem.SetMetrics(testVenture, 10, jan(15), metricsWith("loads_revenue", 333.333))

	results, err := eng.ComputeDay(context.Background(), engine.DayInput{
		VentureID: testVenture,
		Date:      jan(15),
		Rules:     []engine.Rule{percentRule(1, "loads_revenue", 0.02)},
		Users:     []engine.User{{ID: 10, Role: "BROKER"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 333.333 * 0.02 = 6.66666 -> 6.67
	assertAmount(t, results[0].Amount, 6.67)
}

func TestComputeDay_InvalidRules_RejectedUpfront(t *testing.T) {
	eng, _ := newTestEngine()

	_, err := eng.ComputeDay(context.Background(), engine.DayInput{
		VentureID: testVenture,
		Date:      jan(15),
		Rules:     []engine.Rule{{ID: 1, MetricKey: "x", IsEnabled: true}},
		Users:     []engine.User{{ID: 10}},
	})
	if !engine.IsConfigError(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestComputeDay_QualificationGate(t *testing.T) {
	// GIVEN: A deal bonus gated on 30+ dials; agent A has 35 dials,
	//        agent B has 12
	// WHEN: Computing the day
	// THEN: Only A is paid

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 20, Role: "AGENT"})
	mem.AddUser(testVenture, engine.User{ID: 21, Role: "AGENT"})

	a := engine.MetricSet{}
	a.Set("bpo_dials", dec(35))
	a.Set("bpo_deals", dec(2))
	mem.SetMetrics(testVenture, 20, jan(15), a)

	b := engine.MetricSet{}
	b.Set("bpo_dials", dec(12))
	b.Set("bpo_deals", dec(2))
	mem.SetMetrics(testVenture, 21, jan(15), b)

	rule := flatRule(1, "bpo_deals", 25)
	rule.QualificationID = 7

	results, err := eng.ComputeDay(context.Background(), engine.DayInput{
		VentureID: testVenture,
		Date:      jan(15),
		Rules:     []engine.Rule{rule},
		Users:     []engine.User{{ID: 20, Role: "AGENT"}, {ID: 21, Role: "AGENT"}},
		Qualifications: map[engine.QualificationID]engine.Qualification{
			7: {ID: 7, Name: "min dials", MetricKey: "bpo_dials", MinValue: dec(30)},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertAmount(t, results[0].Amount, 50)
	assertAmount(t, results[1].Amount, 0)
}
