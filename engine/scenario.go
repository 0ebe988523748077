/*
scenario.go - What-if comparison of hypothetical rule sets

PURPOSE:
  Runs 2-3 named rule sets over historical windows and places the
  resulting aggregates side by side, so leadership can answer "what
  would we have paid under plan A vs plan B" before adopting either.
  Scenarios are throwaway configurations; they never affect real
  payouts.

FAILURE SEMANTICS:
  Per-scenario soft failure. A structurally invalid scenario (missing
  venture/window/rules, bad dates, to before from) yields a nil Result
  with a reason for that scenario only; the other scenarios still run.
  This is a validation outcome. A context deadline, by contrast, fails
  the whole comparison coarsely - no partial-scenario success.

ORDERING:
  Scenario results preserve caller order. That ordering is a visible
  contract; within each scenario, per-user results are keyed, not
  ordered.

SEE ALSO:
  - window.go: Each scenario runs one window reduction
*/
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCENARIO - A saved hypothetical configuration
// =============================================================================

// Scenario is a self-contained simulation input: its own venture,
// window, user subset, and complete rule list. Scenarios are not
// diffed against each other at the rule level; each runs independently.
//
// From/To are carried as raw strings: date validity is a per-scenario
// concern resolved softly during comparison, not a precondition.
type Scenario struct {
	ID        ScenarioID
	Name      string
	VentureID VentureID
	From      string
	To        string

	// UserIDs restricts computation to a subset. Empty means every
	// venture user.
	UserIDs []UserID

	Rules          []Rule
	Qualifications map[QualificationID]Qualification
}

// ScenarioUserSummary is one user's aggregate under one scenario.
type ScenarioUserSummary struct {
	UserID            UserID
	TotalAmount       decimal.Decimal
	DaysWithIncentive int
	AvgPerDay         decimal.Decimal
}

// ScenarioSummary is a scenario's aggregate outcome.
type ScenarioSummary struct {
	TotalAmount decimal.Decimal
	TotalUsers  int
	TotalDays   int
	PerUser     []ScenarioUserSummary
}

// ScenarioOutcome pairs a scenario with either its summary or the
// reason it could not run. Exactly one of Result/Reason is meaningful;
// a nil Result with a non-empty Reason is the per-scenario soft
// failure the comparison contract promises.
type ScenarioOutcome struct {
	ScenarioID ScenarioID
	Name       string
	VentureID  VentureID
	Result     *ScenarioSummary
	Reason     string
}

// =============================================================================
// COMPARATOR
// =============================================================================

// Compare runs each scenario through the window reducer and returns
// their aggregates in caller order. Duplicate ids are deduplicated
// before the 2-3 count check.
func (e *Engine) Compare(ctx context.Context, scenarios []Scenario) ([]ScenarioOutcome, error) {
	seen := make(map[ScenarioID]bool, len(scenarios))
	unique := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		unique = append(unique, s)
	}

	if len(unique) < 2 || len(unique) > 3 {
		return nil, ErrScenarioCount
	}

	outcomes := make([]ScenarioOutcome, 0, len(unique))
	for _, s := range unique {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome, err := e.runScenario(ctx, s)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// runScenario returns a soft outcome for scenario-input problems and a
// hard error for context cancellation, which must fail the whole
// comparison rather than masquerade as one scenario's failure.
func (e *Engine) runScenario(ctx context.Context, s Scenario) (ScenarioOutcome, error) {
	outcome := ScenarioOutcome{ScenarioID: s.ID, Name: s.Name, VentureID: s.VentureID}

	soft := func(reason string) (ScenarioOutcome, error) {
		outcome.Result = nil
		outcome.Reason = reason
		return outcome, nil
	}

	if s.VentureID <= 0 {
		return soft("missing ventureId")
	}
	if len(s.Rules) == 0 {
		return soft("missing rules")
	}

	from, err := ParseDate(s.From)
	if err != nil {
		return soft("invalid from date")
	}
	to, err := ParseDate(s.To)
	if err != nil {
		return soft("invalid to date")
	}
	window := Window{From: from, To: to}
	if !window.Valid() {
		return soft("to date before from date")
	}
	if max := e.MaxWindowDays; max > 0 && window.Len() > max {
		return soft(fmt.Sprintf("window of %d days exceeds maximum of %d", window.Len(), max))
	}
	if err := ValidateRules(s.Rules, s.Qualifications); err != nil {
		return soft(err.Error())
	}

	users, err := e.scenarioUsers(ctx, s)
	if err != nil {
		if isContextErr(err) {
			return outcome, err
		}
		// Directory failure is a store problem, not scenario input;
		// still soft so one venture's outage doesn't block comparing
		// the others.
		return soft("venture users unavailable")
	}

	result, err := e.ComputeWindow(ctx, WindowInput{
		VentureID:      s.VentureID,
		Window:         window,
		Rules:          s.Rules,
		Users:          users,
		Qualifications: s.Qualifications,
	})
	if err != nil {
		if isContextErr(err) {
			return outcome, err
		}
		return soft(err.Error())
	}

	outcome.Result = summarize(result)
	return outcome, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) scenarioUsers(ctx context.Context, s Scenario) ([]User, error) {
	users, err := e.Directory.VentureUsers(ctx, s.VentureID)
	if err != nil {
		return nil, err
	}
	if len(s.UserIDs) == 0 {
		return users, nil
	}

	wanted := make(map[UserID]bool, len(s.UserIDs))
	for _, id := range s.UserIDs {
		wanted[id] = true
	}
	subset := make([]User, 0, len(s.UserIDs))
	for _, u := range users {
		if wanted[u.ID] {
			subset = append(subset, u)
		}
	}
	return subset, nil
}

func summarize(result *WindowResult) *ScenarioSummary {
	summary := &ScenarioSummary{
		TotalAmount: decimal.Zero,
		TotalUsers:  len(result.Users),
		TotalDays:   result.Window.Len(),
	}

	days := decimal.NewFromInt(int64(result.Window.Len()))
	for _, u := range result.Users {
		summary.TotalAmount = summary.TotalAmount.Add(u.Total)
		avg := decimal.Zero
		if !days.IsZero() {
			avg = u.Total.DivRound(days, 2)
		}
		summary.PerUser = append(summary.PerUser, ScenarioUserSummary{
			UserID:            u.UserID,
			TotalAmount:       u.Total,
			DaysWithIncentive: u.DaysWithIncentive,
			AvgPerDay:         avg,
		})
	}
	return summary
}
