/*
store.go - Persistence interface for computed daily results

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  itself never writes; callers (the commit endpoint, the daily job)
  persist window output through this interface.

FULL-REPLACE CONTRACT:
  A daily result is addressed by the composite key (venture, user,
  date) and is always replaced wholesale - never patched field by
  field. Recomputing a day with a smaller rule set must leave no
  residual contributions from removed rules. Full-replace also makes
  retries safe: a failed write is simply re-issued.

IMPLEMENTATIONS:
  - store/sqlite: production store (also the MetricProvider)
  - engine/store: in-memory store for tests and dev
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DailyResult is the persisted form of one user's computed day.
type DailyResult struct {
	VentureID  VentureID
	UserID     UserID
	Date       Date
	Amount     decimal.Decimal
	Currency   string
	Breakdown  []Contribution
	ComputedAt time.Time
}

// DailyStore persists computed results with full-replace semantics.
type DailyStore interface {
	// UpsertDailyResult replaces the (venture, user, date) record
	// wholesale. Never a partial update.
	UpsertDailyResult(ctx context.Context, result DailyResult) error

	// ReplaceVentureDay atomically clears every record for the
	// venture/date and writes the given set. This is the commit path
	// for whole-day recomputation: plans that no longer pay a user
	// must leave nothing behind.
	ReplaceVentureDay(ctx context.Context, ventureID VentureID, date Date, results []DailyResult) error

	// LoadUserRange returns one user's results in [from, to] for a
	// venture, ordered by date.
	LoadUserRange(ctx context.Context, ventureID VentureID, userID UserID, from, to Date) ([]DailyResult, error)

	// LoadUserWindow returns one user's results in [from, to] across
	// all ventures, ordered by date.
	LoadUserWindow(ctx context.Context, userID UserID, from, to Date) ([]DailyResult, error)

	// LoadVentureRange returns every user's results in [from, to] for
	// a venture.
	LoadVentureRange(ctx context.Context, ventureID VentureID, from, to Date) ([]DailyResult, error)
}
