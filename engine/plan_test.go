package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/incentive-engine/engine"
)

func plan(id int64, from engine.Date, active bool) engine.Plan {
	return engine.Plan{
		ID:            engine.PlanID(id),
		VentureID:     testVenture,
		Name:          "plan",
		Currency:      "USD",
		IsActive:      active,
		EffectiveFrom: from,
	}
}

func TestSelectActivePlan_LatestEffectiveFromWins(t *testing.T) {
	// GIVEN: Two active overlapping plans, one newer
	// WHEN: Selecting as of a covered date
	// THEN: The plan with the later effective-from wins

	plans := []engine.Plan{
		plan(1, engine.NewDate(2025, time.January, 1), true),
		plan(2, engine.NewDate(2025, time.March, 1), true),
	}

	selected, err := engine.SelectActivePlan(plans, engine.NewDate(2025, time.June, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.ID != 2 {
		t.Errorf("expected plan 2, got %d", selected.ID)
	}
}

func TestSelectActivePlan_InactiveIgnored(t *testing.T) {
	plans := []engine.Plan{
		plan(1, engine.NewDate(2025, time.January, 1), true),
		plan(2, engine.NewDate(2025, time.March, 1), false),
	}

	selected, err := engine.SelectActivePlan(plans, engine.NewDate(2025, time.June, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.ID != 1 {
		t.Errorf("expected plan 1, got %d", selected.ID)
	}
}

func TestSelectActivePlan_RespectsEffectiveTo(t *testing.T) {
	expired := plan(1, engine.NewDate(2025, time.January, 1), true)
	expired.EffectiveTo = engine.NewDate(2025, time.February, 28)

	_, err := engine.SelectActivePlan([]engine.Plan{expired}, engine.NewDate(2025, time.June, 1))
	if !errors.Is(err, engine.ErrNoActivePlan) {
		t.Fatalf("expected ErrNoActivePlan, got %v", err)
	}
}

func TestSelectActivePlan_EqualEffectiveFrom_Ambiguous(t *testing.T) {
	// GIVEN: Two active plans sharing the same effective-from
	// WHEN: Selecting
	// THEN: Refuse rather than guess

	plans := []engine.Plan{
		plan(1, engine.NewDate(2025, time.January, 1), true),
		plan(2, engine.NewDate(2025, time.January, 1), true),
	}

	_, err := engine.SelectActivePlan(plans, engine.NewDate(2025, time.June, 1))
	if !errors.Is(err, engine.ErrAmbiguousPlan) {
		t.Fatalf("expected ErrAmbiguousPlan, got %v", err)
	}
}

func TestSelectActivePlan_NoPlans(t *testing.T) {
	_, err := engine.SelectActivePlan(nil, engine.Today())
	if !errors.Is(err, engine.ErrNoActivePlan) {
		t.Fatalf("expected ErrNoActivePlan, got %v", err)
	}
}

func TestDateWindow_LenAndContains(t *testing.T) {
	w := engine.Window{
		From: engine.NewDate(2025, time.January, 1),
		To:   engine.NewDate(2025, time.January, 10),
	}

	if w.Len() != 10 {
		t.Errorf("expected window length 10, got %d", w.Len())
	}
	if !w.Contains(engine.NewDate(2025, time.January, 10)) {
		t.Error("window must include its end date")
	}
	if w.Contains(engine.NewDate(2025, time.January, 11)) {
		t.Error("window must exclude dates past its end")
	}
}
