/*
Package engine implements the incentive computation and simulation engine.

PURPOSE:
  This package answers one question: given a configurable incentive plan
  (a set of rules) and a window of underlying business metrics (loads,
  revenue, miles, calls, ...), what amount does each qualifying user earn
  each day? It also runs multiple hypothetical rule sets over the same
  historical window and compares their payout outcomes before a plan is
  adopted.

KEY CONCEPTS IN THIS FILE (types.go):
  - MetricSet: Per-user, per-day numeric facts a rule reads
  - Calc: Tagged calculation variant (one per calcType)
  - Rule: One calculation + metric + rate within a plan
  - Qualification: Threshold gate that must be met before a rule pays
  - User: The minimal identity the engine needs (id + role)

DESIGN PRINCIPLES:
  1. Purity: ComputeDay/ComputeWindow are deterministic over their inputs
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Tagged Calc variants instead of loose config maps,
     so invalid configurations fail at construction, not at evaluation
  4. Default-safe zeroes: A missing metric is 0, never an error

DATA FLOW:
  MetricProvider -> Evaluate -> ComputeDay -> ComputeWindow -> Compare

SEE ALSO:
  - rule.go: Rule evaluation and load-time validation
  - day.go: Per-day fan-out across rules and users
  - window.go: Date-range reduction (totals, streaks, rank)
  - scenario.go: Side-by-side what-if comparison
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type VentureID int64
type UserID int64
type PlanID int64
type RuleID int64
type QualificationID int64
type ScenarioID string

// =============================================================================
// METRIC SET - Raw business facts for one user on one day
// =============================================================================

// MetricSet maps a metric key (e.g. "loads_revenue") to its value for
// one user on one day. An absent key reads as zero; the engine treats
// missing data as a safe default, never as an error.
type MetricSet map[string]decimal.Decimal

// Get returns the value for a metric key, or zero when absent.
func (m MetricSet) Get(key string) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	if v, ok := m[key]; ok {
		return v
	}
	return decimal.Zero
}

// Add accumulates a value into a metric key.
func (m MetricSet) Add(key string, v decimal.Decimal) {
	m[key] = m.Get(key).Add(v)
}

// Set overwrites a metric key.
func (m MetricSet) Set(key string, v decimal.Decimal) {
	m[key] = v
}

// MergeMetricSets folds the source buckets into dst, accumulating
// per-user values key by key.
func MergeMetricSets(dst, src map[UserID]MetricSet) {
	for userID, bucket := range src {
		existing, ok := dst[userID]
		if !ok {
			existing = MetricSet{}
			dst[userID] = existing
		}
		for key, v := range bucket {
			existing.Add(key, v)
		}
	}
}

// =============================================================================
// CALC - Tagged calculation variants (the closed calcType set)
// =============================================================================

type CalcType string

const (
	CalcPercentOfMetric   CalcType = "PERCENT_OF_METRIC"
	CalcFlatPerUnit       CalcType = "FLAT_PER_UNIT"
	CalcCurrencyPerDollar CalcType = "CURRENCY_PER_DOLLAR"
	CalcBonusOnTarget     CalcType = "BONUS_ON_TARGET"
)

// Calc is the calculation a rule performs. Exactly one concrete variant
// exists per CalcType; there is no generic config map. A rule whose Calc
// is nil is a configuration error and is rejected at load time.
type Calc interface {
	Type() CalcType
}

// PercentOfMetric pays metric x rate, where rate is a fraction
// (0.02 = 2%).
type PercentOfMetric struct {
	Rate decimal.Decimal
}

func (PercentOfMetric) Type() CalcType { return CalcPercentOfMetric }

// FlatPerUnit pays count x rate, where rate is currency-per-unit.
type FlatPerUnit struct {
	Rate decimal.Decimal
}

func (FlatPerUnit) Type() CalcType { return CalcFlatPerUnit }

// CurrencyPerDollar pays metric x rate. Same formula shape as
// PercentOfMetric; the distinction is the semantic metric type
// (e.g. cents per mile rather than a fraction of revenue).
type CurrencyPerDollar struct {
	Rate decimal.Decimal
}

func (CurrencyPerDollar) Type() CalcType { return CalcCurrencyPerDollar }

// BonusOnTarget pays Bonus once when the threshold metric reaches
// Threshold, zero otherwise. A step function, not prorated.
// MetricKey optionally overrides the rule's metric as the threshold
// source; empty means use the rule's own metric.
type BonusOnTarget struct {
	MetricKey string
	Threshold decimal.Decimal
	Bonus     decimal.Decimal
}

func (BonusOnTarget) Type() CalcType { return CalcBonusOnTarget }

// =============================================================================
// RULE - One calculation within a plan
// =============================================================================

// Rule belongs to exactly one plan and reads exactly one metric.
type Rule struct {
	ID     RuleID
	PlanID PlanID

	// RoleKey scopes the rule to one job role. Empty applies to all.
	RoleKey string

	// MetricKey names the metric this rule reads.
	MetricKey string

	// Calc is the tagged calculation variant. Never nil for a valid rule.
	Calc Calc

	Currency  string
	IsEnabled bool

	// QualificationID links to a threshold gate. Zero means none.
	QualificationID QualificationID
}

// CalcType returns the rule's calculation kind, or empty when the rule
// is misconfigured (nil Calc).
func (r Rule) CalcType() CalcType {
	if r.Calc == nil {
		return ""
	}
	return r.Calc.Type()
}

// Qualification gates a rule: the rule is only evaluated for a user/day
// when metrics[MetricKey] >= MinValue for that user/day.
type Qualification struct {
	ID        QualificationID
	PlanID    PlanID
	Name      string
	MetricKey string
	MinValue  decimal.Decimal
}

// Met reports whether the gate condition holds for the given metrics.
func (q Qualification) Met(metrics MetricSet) bool {
	return metrics.Get(q.MetricKey).GreaterThanOrEqual(q.MinValue)
}

// =============================================================================
// USER - The minimal identity the engine needs
// =============================================================================

// User carries the two facts the engine reads: identity and role.
// Everything else about a user (name, email, venture membership) lives
// at the persistence boundary.
type User struct {
	ID   UserID
	Role string
}

// =============================================================================
// OUTCOME - Result of evaluating one rule for one user/day
// =============================================================================

// Outcome is the verdict of a single rule evaluation. Fired is false
// when the rule is disabled, unqualified, or paid nothing.
type Outcome struct {
	Amount decimal.Decimal
	Fired  bool
}
