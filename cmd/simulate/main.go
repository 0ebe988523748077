/*
main.go - Command-line window simulation

PURPOSE:
  Runs the window reducer against a venture's active plan straight from
  the database and prints a per-user table, without going through the
  HTTP server. Useful for quick "what would we pay" checks on a copy of
  production data and for eyeballing a proposed rate change.

USAGE:
  # Current plan over a window
  ./simulate -db=./data/warp.db -venture=1 -from=2025-06-01 -to=2025-06-30

  # Same window, diffed against a custom percent-of-revenue rate
  ./simulate -db=./data/warp.db -venture=1 -from=2025-06-01 -to=2025-06-30 \
      -compare-rate=0.04 -compare-metric=loads_revenue

OUTPUT:
  A ranked table of users with totals, active-day counts, streaks, and
  badges. In compare mode, a before/after/delta table with the delta
  colored by direction.

SEE ALSO:
  - api/simulate.go: The HTTP equivalent
  - engine/window.go: The reducer doing the actual work
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/freight"
	"github.com/warp/incentive-engine/store/sqlite"
)

func main() {
	dbPath := flag.String("db", "incentive.db", "SQLite database path")
	ventureID := flag.Int64("venture", 0, "Venture id (required)")
	fromStr := flag.String("from", "", "Window start YYYY-MM-DD (required)")
	toStr := flag.String("to", "", "Window end YYYY-MM-DD (required)")
	compareRate := flag.Float64("compare-rate", 0, "Optional percent rate to diff against the active plan")
	compareMetric := flag.String("compare-metric", freight.MetricLoadsRevenue, "Metric for the comparison rate")
	flag.Parse()

	if *ventureID <= 0 || *fromStr == "" || *toStr == "" {
		flag.Usage()
		os.Exit(2)
	}

	from, err := engine.ParseDate(*fromStr)
	if err != nil {
		log.Fatalf("Invalid -from: %v", err)
	}
	to, err := engine.ParseDate(*toStr)
	if err != nil {
		log.Fatalf("Invalid -to: %v", err)
	}
	window := engine.Window{From: from, To: to}
	if !window.Valid() {
		log.Fatal("-from must not be after -to")
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	eng := engine.New(store, store)
	venture := engine.VentureID(*ventureID)

	baseline, planName, err := runActivePlan(ctx, store, eng, venture, window)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s  venture=%d  window=%s  plan=%q\n\n",
		bold("Incentive simulation"), *ventureID, window, planName)

	if *compareRate <= 0 {
		printWindowTable(baseline)
		return
	}

	users, err := store.VentureUsers(ctx, venture)
	if err != nil {
		log.Fatalf("Failed to load venture users: %v", err)
	}
	simulated, err := eng.ComputeWindow(ctx, engine.WindowInput{
		VentureID: venture,
		Window:    window,
		Rules: []engine.Rule{{
			ID:        1,
			MetricKey: *compareMetric,
			Calc:      engine.PercentOfMetric{Rate: decimal.NewFromFloat(*compareRate)},
			Currency:  "USD",
			IsEnabled: true,
		}},
		Users: users,
	})
	if err != nil {
		log.Fatalf("Comparison simulation failed: %v", err)
	}
	printCompareTable(baseline, simulated)
}

func runActivePlan(ctx context.Context, store *sqlite.Store, eng *engine.Engine, venture engine.VentureID, window engine.Window) (*engine.WindowResult, string, error) {
	plans, err := store.ActivePlans(ctx, venture)
	if err != nil {
		return nil, "", err
	}
	plan, err := engine.SelectActivePlan(plans, window.To)
	if err != nil {
		return nil, "", err
	}
	rules, err := store.ListRules(ctx, plan.ID, true)
	if err != nil {
		return nil, "", err
	}
	gates, err := store.PlanQualifications(ctx, plan.ID)
	if err != nil {
		return nil, "", err
	}
	users, err := store.VentureUsers(ctx, venture)
	if err != nil {
		return nil, "", err
	}

	result, err := eng.ComputeWindow(ctx, engine.WindowInput{
		VentureID:      venture,
		Window:         window,
		Rules:          rules,
		Users:          users,
		Qualifications: gates,
	})
	if err != nil {
		return nil, "", err
	}
	return result, plan.Name, nil
}

func printWindowTable(result *engine.WindowResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Rank", "User", "Total", "Days", "Streak", "Badges"})

	green := color.New(color.FgGreen).SprintFunc()
	var data [][]string
	for _, u := range result.Users {
		total := u.Total.StringFixed(2)
		if u.Rank == 1 && !u.Total.IsZero() {
			total = green(total)
		}
		data = append(data, []string{
			fmt.Sprintf("%d", u.Rank),
			fmt.Sprintf("%d", u.UserID),
			total,
			fmt.Sprintf("%d", u.DaysWithIncentive),
			fmt.Sprintf("%d", u.CurrentStreak),
			strings.Join(u.Badges, ", "),
		})
	}
	if err := table.Bulk(data); err != nil {
		log.Fatalf("Failed to build table: %v", err)
	}
	if err := table.Render(); err != nil {
		log.Fatalf("Failed to render table: %v", err)
	}

	fmt.Printf("\nTotal payout: %s across %d users\n",
		result.TotalAmount().StringFixed(2), len(result.Users))
}

func printCompareTable(baseline, simulated *engine.WindowResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"User", "Before", "After", "Delta"})

	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	var data [][]string
	for _, u := range baseline.Users {
		after := decimal.Zero
		if s := simulated.UserByID(u.UserID); s != nil {
			after = s.Total
		}
		delta := after.Sub(u.Total)

		var deltaStr string
		switch {
		case delta.IsPositive():
			deltaStr = green("+" + delta.StringFixed(2) + " ▲")
		case delta.IsNegative():
			deltaStr = red(delta.StringFixed(2) + " ▼")
		default:
			deltaStr = yellow(delta.StringFixed(2))
		}

		data = append(data, []string{
			fmt.Sprintf("%d", u.UserID),
			u.Total.StringFixed(2),
			after.StringFixed(2),
			deltaStr,
		})
	}
	if err := table.Bulk(data); err != nil {
		log.Fatalf("Failed to build table: %v", err)
	}
	if err := table.Render(); err != nil {
		log.Fatalf("Failed to render table: %v", err)
	}

	net := simulated.TotalAmount().Sub(baseline.TotalAmount())
	fmt.Printf("\nNet payout delta: %s (before %s, after %s)\n",
		net.StringFixed(2), baseline.TotalAmount().StringFixed(2), simulated.TotalAmount().StringFixed(2))
}
