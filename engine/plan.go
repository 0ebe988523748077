/*
plan.go - Incentive plans and active-plan selection

PURPOSE:
  A plan is a named, versioned rule container scoped to one venture.
  Plans are deactivated rather than deleted; at most one active plan is
  authoritative for "current" computations on any given day.

SELECTION:
  SelectActivePlan is a pure function: given all of a venture's plans
  and an as-of date, it picks the active plan whose effective range
  covers the date, preferring the latest EffectiveFrom. Two active
  plans sharing the same EffectiveFrom is ambiguous configuration and
  is rejected rather than broken by database ordering.
*/
package engine

// Plan is a named incentive configuration scoped to one venture.
// EffectiveTo is open-ended when zero.
type Plan struct {
	ID            PlanID
	VentureID     VentureID
	Name          string
	Description   string
	Currency      string
	IsActive      bool
	EffectiveFrom Date
	EffectiveTo   Date
}

// Covers reports whether the plan's effective range contains the date.
func (p Plan) Covers(asOf Date) bool {
	if p.EffectiveFrom.After(asOf) {
		return false
	}
	if !p.EffectiveTo.IsZero() && p.EffectiveTo.Before(asOf) {
		return false
	}
	return true
}

// SelectActivePlan returns the authoritative plan for a venture on the
// given date: the active plan covering asOf with the latest
// EffectiveFrom. Returns ErrNoActivePlan when nothing matches and
// ErrAmbiguousPlan when two candidates tie on EffectiveFrom.
func SelectActivePlan(plans []Plan, asOf Date) (*Plan, error) {
	var selected *Plan
	ambiguous := false

	for i := range plans {
		p := &plans[i]
		if !p.IsActive || !p.Covers(asOf) {
			continue
		}
		switch {
		case selected == nil:
			selected = p
		case p.EffectiveFrom.After(selected.EffectiveFrom):
			selected = p
			ambiguous = false
		case p.EffectiveFrom.Equal(selected.EffectiveFrom):
			ambiguous = true
		}
	}

	if selected == nil {
		return nil, ErrNoActivePlan
	}
	if ambiguous {
		return nil, ErrAmbiguousPlan
	}
	return selected, nil
}
