/*
window.go - Window reduction: per-day series into totals, streaks, rank

PURPOSE:
  Runs the day aggregator across a contiguous inclusive date range and
  folds each user's daily series into a total, a days-with-incentive
  count, streaks, venture-relative rank/percentile, and presentational
  badges.

CONCURRENCY:
  Days are independent (no shared mutable state), so per-day
  computations run on a bounded worker pool sized by Engine.Concurrency.
  Sequential execution is equally correct; the pool only shortens
  wall-clock latency for wide windows. Results land in a pre-sized
  slice indexed by day, so assembly order never depends on scheduling.

DEFINITIONS:
  Current streak:  consecutive amount > 0 days walking backward from
                   the newest day, stopping at the first zero day.
  Longest streak:  maximum amount > 0 run anywhere in the window
                   (single forward scan, counter resets on zero).
  Rank:            1 + number of users whose total strictly exceeds
                   this user's total (ties share a position).
  Percentile:      round((1 - (rank-1)/totalUsers) x 100).

BADGES:
  Purely presentational, derived from streak/rank thresholds. They
  carry no computational weight and recompute identically from the
  same window output.

SEE ALSO:
  - day.go: The per-day computation this fans out
  - scenario.go: Runs one window per scenario for comparison
*/
package engine

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// WindowInput describes a date-range computation for one venture.
type WindowInput struct {
	VentureID      VentureID
	Window         Window
	Rules          []Rule
	Users          []User
	Qualifications map[QualificationID]Qualification
	RestrictToRole string
}

// DayAmount is one day in a user's series.
type DayAmount struct {
	Date      Date
	Amount    decimal.Decimal
	Breakdown []Contribution
}

// UserWindow is one user's reduced window: the daily series plus the
// rolled-up figures derived from it.
type UserWindow struct {
	UserID            UserID
	Daily             []DayAmount
	Total             decimal.Decimal
	DaysWithIncentive int
	CurrentStreak     int
	LongestStreak     int
	Rank              int
	TotalUsers        int
	Percentile        int
	Badges            []string
}

// WindowResult is the full reduction, sorted by user id. Outputs are
// keyed by (user, date); array order conveys no meaning.
type WindowResult struct {
	VentureID VentureID
	Window    Window
	Users     []UserWindow
}

// TotalAmount sums every user's window total.
func (r *WindowResult) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, u := range r.Users {
		total = total.Add(u.Total)
	}
	return total
}

// UserByID finds one user's window, or nil.
func (r *WindowResult) UserByID(id UserID) *UserWindow {
	for i := range r.Users {
		if r.Users[i].UserID == id {
			return &r.Users[i]
		}
	}
	return nil
}

// =============================================================================
// WINDOW REDUCER
// =============================================================================

// ComputeWindow runs ComputeDay for every day in the inclusive window
// and reduces the results per user. The context deadline applies to
// the whole window; an exceeded deadline fails the computation
// coarsely rather than returning partial days.
func (e *Engine) ComputeWindow(ctx context.Context, in WindowInput) (*WindowResult, error) {
	if !in.Window.Valid() {
		return nil, ErrInvalidWindow
	}
	if max := e.MaxWindowDays; max > 0 && in.Window.Len() > max {
		return nil, &WindowError{Days: in.Window.Len(), Max: max}
	}
	if err := ValidateRules(in.Rules, in.Qualifications); err != nil {
		return nil, err
	}

	days := in.Window.Days()
	perDay := make([][]UserDayResult, len(days))

	workers := e.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(days) {
		workers = len(days)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, workers)

	for i, day := range days {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, day Date) {
			defer wg.Done()
			defer func() { <-sem }()

			results, err := e.ComputeDay(ctx, DayInput{
				VentureID:      in.VentureID,
				Date:           day,
				Rules:          in.Rules,
				Users:          in.Users,
				Qualifications: in.Qualifications,
				RestrictToRole: in.RestrictToRole,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			perDay[i] = results
		}(i, day)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return reduceWindow(in, days, perDay), nil
}

func reduceWindow(in WindowInput, days []Date, perDay [][]UserDayResult) *WindowResult {
	byUser := make(map[UserID]*UserWindow)
	var order []UserID

	for _, dayResults := range perDay {
		for _, r := range dayResults {
			uw, ok := byUser[r.UserID]
			if !ok {
				uw = &UserWindow{UserID: r.UserID, Total: decimal.Zero}
				byUser[r.UserID] = uw
				order = append(order, r.UserID)
			}
			uw.Daily = append(uw.Daily, DayAmount{Date: r.Date, Amount: r.Amount, Breakdown: r.Breakdown})
			uw.Total = uw.Total.Add(r.Amount)
			if r.Amount.IsPositive() {
				uw.DaysWithIncentive++
			}
		}
	}

	totals := make(map[UserID]decimal.Decimal, len(byUser))
	for id, uw := range byUser {
		totals[id] = uw.Total
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	result := &WindowResult{VentureID: in.VentureID, Window: in.Window}
	for _, id := range order {
		uw := byUser[id]
		uw.CurrentStreak, uw.LongestStreak = Streaks(uw.Daily)
		uw.Rank, uw.TotalUsers, uw.Percentile = RankAndPercentile(totals, id)
		uw.Badges = BadgesFor(uw.CurrentStreak, uw.DaysWithIncentive, uw.Percentile)
		result.Users = append(result.Users, *uw)
	}
	return result
}

// =============================================================================
// STREAKS / RANK / BADGES
// =============================================================================
// Exported so reporting endpoints can derive the same figures from
// persisted daily rows without re-running the engine.

// Streaks computes (current, longest) over a daily series ordered
// oldest to newest.
func Streaks(daily []DayAmount) (current, longest int) {
	for i := len(daily) - 1; i >= 0; i-- {
		if !daily[i].Amount.IsPositive() {
			break
		}
		current++
	}

	run := 0
	for _, d := range daily {
		if d.Amount.IsPositive() {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return current, longest
}

// RankAndPercentile ranks one user within a venture/window by total.
// Rank is 1 + the count of strictly greater totals, so tied users
// share a position. An unknown user ranks last among totalUsers.
func RankAndPercentile(totals map[UserID]decimal.Decimal, target UserID) (rank, totalUsers, percentile int) {
	totalUsers = len(totals)
	if totalUsers == 0 {
		return 1, 1, 100
	}

	mine, ok := totals[target]
	if !ok {
		mine = decimal.Zero
	}

	rank = 1
	for id, total := range totals {
		if id == target {
			continue
		}
		if total.GreaterThan(mine) {
			rank++
		}
	}

	percentile = int(math.Round((1 - float64(rank-1)/float64(totalUsers)) * 100))
	return rank, totalUsers, percentile
}

// Badge thresholds, from the gamification layer this engine feeds.
const (
	BadgeDailyStarter        = "Daily Starter"
	BadgeConsistentPerformer = "Consistent Performer"
	BadgeTopEarner           = "Top Earner"
)

// BadgesFor derives the presentational badge list from window figures.
func BadgesFor(currentStreak, daysWithIncentive, percentile int) []string {
	var badges []string
	if currentStreak >= 3 {
		badges = append(badges, BadgeDailyStarter)
	}
	if daysWithIncentive >= 10 {
		badges = append(badges, BadgeConsistentPerformer)
	}
	if percentile >= 90 {
		badges = append(badges, BadgeTopEarner)
	}
	return badges
}
