package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/engine/store"
)

func validScenario(id string, rate float64) engine.Scenario {
	return engine.Scenario{
		ID:        engine.ScenarioID(id),
		Name:      "scenario " + id,
		VentureID: testVenture,
		From:      "2025-01-01",
		To:        "2025-01-05",
		Rules:     []engine.Rule{percentRule(1, "loads_revenue", rate)},
	}
}

// =============================================================================
// SCENARIO COMPARATOR TESTS
// =============================================================================

func TestCompare_TooFewScenarios(t *testing.T) {
	eng, _ := newTestEngine()

	_, err := eng.Compare(context.Background(), []engine.Scenario{validScenario("a", 0.02)})
	if !errors.Is(err, engine.ErrScenarioCount) {
		t.Fatalf("expected ErrScenarioCount, got %v", err)
	}
}

func TestCompare_TooManyScenarios(t *testing.T) {
	eng, _ := newTestEngine()

	_, err := eng.Compare(context.Background(), []engine.Scenario{
		validScenario("a", 0.01),
		validScenario("b", 0.02),
		validScenario("c", 0.03),
		validScenario("d", 0.04),
	})
	if !errors.Is(err, engine.ErrScenarioCount) {
		t.Fatalf("expected ErrScenarioCount, got %v", err)
	}
}

func TestCompare_DuplicatesDeduplicatedBeforeCount(t *testing.T) {
	// GIVEN: Three scenarios where two share an id
	// WHEN: Comparing
	// THEN: The duplicate collapses, leaving a valid 2-way comparison

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})

	outcomes, err := eng.Compare(context.Background(), []engine.Scenario{
		validScenario("a", 0.01),
		validScenario("a", 0.05), // ignored: same id as the first
		validScenario("b", 0.02),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].ScenarioID != "a" || outcomes[1].ScenarioID != "b" {
		t.Errorf("caller order not preserved: %v", outcomes)
	}
}

func TestCompare_HigherRateWins(t *testing.T) {
	// Same data, doubled rate, doubled payout.

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})
	mem.SetMetrics(testVenture, 10, jan(2), metricsWith("loads_revenue", 1000))

	outcomes, err := eng.Compare(context.Background(), []engine.Scenario{
		validScenario("base", 0.02),
		validScenario("double", 0.04),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base, double := outcomes[0], outcomes[1]
	if base.Result == nil || double.Result == nil {
		t.Fatalf("expected both scenarios to run: %+v", outcomes)
	}
	assertAmount(t, base.Result.TotalAmount, 20)
	assertAmount(t, double.Result.TotalAmount, 40)
	if double.Result.TotalDays != 5 {
		t.Errorf("expected 5 days, got %d", double.Result.TotalDays)
	}
}

func TestCompare_MalformedScenario_SoftFails(t *testing.T) {
	// GIVEN: Two valid scenarios plus one with a broken date
	// WHEN: Comparing
	// THEN: All three outcomes return; the broken one carries a reason
	//       and a nil result, the others are unaffected

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})

	broken := validScenario("broken", 0.02)
	broken.From = "not-a-date"

	outcomes, err := eng.Compare(context.Background(), []engine.Scenario{
		validScenario("a", 0.01),
		broken,
		validScenario("b", 0.02),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	if outcomes[0].Result == nil || outcomes[2].Result == nil {
		t.Error("valid scenarios must still run")
	}
	if outcomes[1].Result != nil {
		t.Error("broken scenario must have nil result")
	}
	if outcomes[1].Reason == "" {
		t.Error("broken scenario must carry a reason")
	}
}

func TestCompare_MissingVenture_SoftFails(t *testing.T) {
	eng, _ := newTestEngine()

	noVenture := validScenario("x", 0.02)
	noVenture.VentureID = 0

	outcomes, err := eng.Compare(context.Background(), []engine.Scenario{
		noVenture,
		validScenario("y", 0.02),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcomes[0].Result != nil || outcomes[0].Reason == "" {
		t.Errorf("expected soft failure, got %+v", outcomes[0])
	}
}

func TestCompare_UserSubset(t *testing.T) {
	// A scenario restricted to one user ignores everyone else.

	eng, mem := newTestEngine()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})
	mem.AddUser(testVenture, engine.User{ID: 11, Role: "BROKER"})
	mem.SetMetrics(testVenture, 10, jan(2), metricsWith("loads_revenue", 1000))
	mem.SetMetrics(testVenture, 11, jan(2), metricsWith("loads_revenue", 1000))

	restricted := validScenario("solo", 0.02)
	restricted.UserIDs = []engine.UserID{10}

	outcomes, err := eng.Compare(context.Background(), []engine.Scenario{
		restricted,
		validScenario("all", 0.02),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcomes[0].Result.TotalUsers != 1 {
		t.Errorf("expected 1 user in restricted scenario, got %d", outcomes[0].Result.TotalUsers)
	}
	if outcomes[1].Result.TotalUsers != 2 {
		t.Errorf("expected 2 users in open scenario, got %d", outcomes[1].Result.TotalUsers)
	}
	assertAmount(t, outcomes[0].Result.TotalAmount, 20)
	assertAmount(t, outcomes[1].Result.TotalAmount, 40)
}

func TestCompare_CanceledContext_FailsWholeCompare(t *testing.T) {
	eng, _ := newTestEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Compare(ctx, []engine.Scenario{
		validScenario("a", 0.01),
		validScenario("b", 0.02),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// cancelingMetrics cancels its context on the first metric read, so
// the cancellation surfaces from inside a window computation rather
// than before the comparison starts.
type cancelingMetrics struct {
	cancel context.CancelFunc
}

func (p *cancelingMetrics) GetMetrics(ctx context.Context, _ engine.VentureID, _ engine.UserID, _ engine.Date) (engine.MetricSet, error) {
	p.cancel()
	return engine.MetricSet{}, ctx.Err()
}

func TestCompare_CancellationMidComputation_FailsWholeCompare(t *testing.T) {
	// GIVEN: A metric provider whose context expires while the first
	//        scenario's window is being computed
	// WHEN: Comparing two otherwise valid scenarios
	// THEN: Compare fails with the context error; the cancellation is
	//       never downgraded to a per-scenario soft failure

	mem := store.NewMemory()
	mem.AddUser(testVenture, engine.User{ID: 10, Role: "BROKER"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := engine.New(&cancelingMetrics{cancel: cancel}, mem)

	outcomes, err := eng.Compare(ctx, []engine.Scenario{
		validScenario("a", 0.01),
		validScenario("b", 0.02),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if outcomes != nil {
		t.Fatalf("expected no outcomes on cancellation, got %v", outcomes)
	}
}
