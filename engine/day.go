/*
day.go - Day aggregation: fan rules out across users, fold into totals

PURPOSE:
  For one venture and one calendar day, evaluates every applicable rule
  for every eligible user and folds the results into one amount per
  user, plus a per-rule breakdown for auditability.

PURITY & DETERMINISM:
  ComputeDay has no side effects; persistence belongs to the caller.
  Given the same rules and metrics it produces identical output on
  every run: users are processed in id order, contributions accumulate
  left-to-right in rule order, and the day total is rounded to 2
  decimal places exactly once.

MISSING DATA:
  A user whose metrics cannot be fetched is computed against an empty
  MetricSet (all zeroes). One user's missing day never fails the whole
  computation. Users with zero firing rules still appear with amount 0,
  so "earned nothing today" is distinguishable from "not evaluated".

SEE ALSO:
  - rule.go: Single-rule evaluation
  - window.go: Runs this once per day across a date range
*/
package engine

import (
	"context"
	"log"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// MetricProvider resolves the raw business metric values a rule can
// reference for a venture/user/day. Implementations sit at the storage
// boundary; the engine only ever reads from it.
type MetricProvider interface {
	// GetMetrics returns the metric values for one user on one day.
	// An absent key is zero; implementations should return an empty
	// set rather than an error when a user simply has no activity.
	GetMetrics(ctx context.Context, ventureID VentureID, userID UserID, date Date) (MetricSet, error)
}

// DayMetricProvider extends MetricProvider with a batched per-day
// fetch. ComputeDay prefers this when available: one storage pass per
// day instead of one per user.
type DayMetricProvider interface {
	MetricProvider

	// GetDayMetrics returns metric buckets for every user with
	// activity in the venture on the given day.
	GetDayMetrics(ctx context.Context, ventureID VentureID, date Date) (map[UserID]MetricSet, error)
}

// UserDirectory lists the users eligible for computation in a venture.
// Venture membership and role scoping are resolved at this boundary;
// the engine trusts the list it is given.
type UserDirectory interface {
	VentureUsers(ctx context.Context, ventureID VentureID) ([]User, error)
}

// =============================================================================
// DAY AGGREGATOR
// =============================================================================

// Engine computes incentive payouts. It holds no mutable state between
// invocations: rules and metrics are read fresh per call, which makes
// any instance able to serve any request.
type Engine struct {
	Metrics   MetricProvider
	Directory UserDirectory

	// MaxWindowDays caps ComputeWindow ranges. Scenario comparison may
	// legitimately need longer windows, so this is configuration, not
	// a constant.
	MaxWindowDays int

	// Concurrency bounds the per-day worker pool in ComputeWindow.
	// 1 means sequential; days are independent, so concurrency is a
	// latency optimization only.
	Concurrency int
}

const (
	DefaultMaxWindowDays = 90
	DefaultConcurrency   = 4
)

// New creates an engine with default limits.
func New(metrics MetricProvider, directory UserDirectory) *Engine {
	return &Engine{
		Metrics:       metrics,
		Directory:     directory,
		MaxWindowDays: DefaultMaxWindowDays,
		Concurrency:   DefaultConcurrency,
	}
}

// DayInput describes one day's computation.
type DayInput struct {
	VentureID VentureID
	Date      Date
	Rules     []Rule
	Users     []User

	// Qualifications resolves QualificationID references on the rules.
	Qualifications map[QualificationID]Qualification

	// RestrictToRole, when set, limits computation to users of that role.
	RestrictToRole string
}

// Contribution is one rule's share of a user's day total.
type Contribution struct {
	RuleID RuleID
	Amount decimal.Decimal
}

// UserDayResult is one user's payout for one day with its breakdown.
type UserDayResult struct {
	UserID    UserID
	Date      Date
	Amount    decimal.Decimal
	Breakdown []Contribution
}

// ComputeDay evaluates all applicable rules for all eligible users on
// one day. The result is sorted by user id; consumers must not read
// meaning into ordering beyond that.
func (e *Engine) ComputeDay(ctx context.Context, in DayInput) ([]UserDayResult, error) {
	if err := ValidateRules(in.Rules, in.Qualifications); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buckets := e.fetchDayMetrics(ctx, in)

	users := make([]User, 0, len(in.Users))
	for _, u := range in.Users {
		if in.RestrictToRole != "" && u.Role != in.RestrictToRole {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	results := make([]UserDayResult, 0, len(users))
	for _, user := range users {
		metrics := buckets[user.ID]
		if metrics == nil {
			metrics = MetricSet{}
		}

		total := decimal.Zero
		var breakdown []Contribution
		for _, rule := range in.Rules {
			if rule.RoleKey != "" && rule.RoleKey != user.Role {
				continue
			}

			qualified := true
			if rule.QualificationID != 0 {
				qualified = in.Qualifications[rule.QualificationID].Met(metrics)
			}

			outcome := Evaluate(rule, metrics, qualified)
			if !outcome.Fired {
				continue
			}
			total = total.Add(outcome.Amount)
			breakdown = append(breakdown, Contribution{RuleID: rule.ID, Amount: outcome.Amount})
		}

		results = append(results, UserDayResult{
			UserID:    user.ID,
			Date:      in.Date,
			Amount:    total.Round(2),
			Breakdown: breakdown,
		})
	}

	return results, nil
}

// fetchDayMetrics reads metric buckets for the day, preferring the
// batched provider. Per-user fetch failures degrade to an empty set so
// one unavailable user/day never sinks the computation.
func (e *Engine) fetchDayMetrics(ctx context.Context, in DayInput) map[UserID]MetricSet {
	if batch, ok := e.Metrics.(DayMetricProvider); ok {
		buckets, err := batch.GetDayMetrics(ctx, in.VentureID, in.Date)
		if err != nil {
			log.Printf("[Engine] day metrics unavailable for venture %d on %s: %v", in.VentureID, in.Date, err)
			return map[UserID]MetricSet{}
		}
		return buckets
	}

	buckets := make(map[UserID]MetricSet, len(in.Users))
	for _, user := range in.Users {
		metrics, err := e.Metrics.GetMetrics(ctx, in.VentureID, user.ID, in.Date)
		if err != nil {
			log.Printf("[Engine] metrics unavailable for user %d on %s: %v", user.ID, in.Date, err)
			continue
		}
		buckets[user.ID] = metrics
	}
	return buckets
}
