/*
demo.go - Demo data loaders for testing and demonstrations

PURPOSE:
  Pre-built datasets that populate the database with realistic ventures,
  users, plans, rules, and raw metric data. Each demo exercises specific
  features end to end: the freight demo shows every calc type, the BPO
  demo shows qualification gates, the hotel demo shows venture-level
  average metrics.

AVAILABLE DEMOS:
  freight-basics:  One freight venture, all four calc types
  bpo-team:        BPO venture with a minimum-dials qualification gate
  hotel-portfolio: Hotel venture with reviews and ADR/RevPAR averages
  multi-venture:   All three ventures under one leadership team

HOW DEMOS WORK:
 1. Reset database (clear all data)
 2. Create ventures and users, assign memberships
 3. Create a plan with rules (and qualifications where relevant)
 4. Insert raw metric data covering the last several days

USAGE VIA API:
  GET  /api/demo
  POST /api/demo/load  {"demo_id": "freight-basics"}
  POST /api/demo/reset

NOTE:
  Demos reset the database. Only use in development/demo environments.

SEE ALSO:
  - server.go: Route registration
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/bpo"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/freight"
	"github.com/warp/incentive-engine/hotel"
	"github.com/warp/incentive-engine/store/sqlite"
)

// DemoInfo describes one loadable demo.
type DemoInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var demos = []DemoInfo{
	{
		ID:          "freight-basics",
		Name:        "Freight Basics",
		Description: "One freight venture with percent-of-revenue, flat-per-load, per-mile, and volume-bonus rules over a week of delivered loads",
	},
	{
		ID:          "bpo-team",
		Name:        "BPO Team",
		Description: "Call center venture where per-deal payouts are gated on a minimum daily dial count",
	},
	{
		ID:          "hotel-portfolio",
		Name:        "Hotel Portfolio",
		Description: "Hotel venture with review-response incentives and venture-level ADR/RevPAR averages",
	},
	{
		ID:          "multi-venture",
		Name:        "Multi-Venture",
		Description: "Freight, BPO, and hotel ventures under one leadership team, each with its own active plan",
	},
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListDemos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, demos)
}

func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DemoID string `json:"demo_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.DemoID {
	case "freight-basics":
		err = loadFreightDemo(ctx, h)
	case "bpo-team":
		err = loadBpoDemo(ctx, h)
	case "hotel-portfolio":
		err = loadHotelDemo(ctx, h)
	case "multi-venture":
		err = loadMultiVentureDemo(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown demo: %s", req.DemoID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load demo", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "loaded",
		"demo":   req.DemoID,
	})
}

func (h *Handler) ResetDemo(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func seedVenture(ctx context.Context, h *Handler, id int64, name, vtype string) error {
	return h.Store.SaveVenture(ctx, sqlite.Venture{ID: id, Name: name, Type: vtype, IsActive: true})
}

func seedUser(ctx context.Context, h *Handler, id int64, name, role string, ventures ...int64) error {
	email := fmt.Sprintf("%s@warp.example", name)
	if err := h.Store.SaveUser(ctx, sqlite.UserRecord{ID: id, Name: name, Email: email, Role: role}); err != nil {
		return err
	}
	for _, v := range ventures {
		if err := h.Store.AssignUserToVenture(ctx, id, v); err != nil {
			return err
		}
	}
	return nil
}

func seedPlan(ctx context.Context, h *Handler, ventureID int64, name string) (engine.PlanID, error) {
	return h.Store.SavePlan(ctx, engine.Plan{
		VentureID:     engine.VentureID(ventureID),
		Name:          name,
		Currency:      "USD",
		IsActive:      true,
		EffectiveFrom: engine.Today().AddDays(-90),
	})
}

func seedRule(ctx context.Context, h *Handler, planID engine.PlanID, metricKey string, calc engine.Calc, qualID engine.QualificationID) error {
	_, err := h.Store.SaveRule(ctx, engine.Rule{
		PlanID:          planID,
		MetricKey:       metricKey,
		Calc:            calc,
		Currency:        "USD",
		IsEnabled:       true,
		QualificationID: qualID,
	})
	return err
}

func dayAt(daysAgo int) engine.Date {
	return engine.Today().AddDays(-daysAgo)
}

// =============================================================================
// DEMO LOADERS
// =============================================================================

// loadFreightDemo covers every calc type: 2% of revenue, $50 per
// delivered load, $0.10 per mile, and a $500 bonus at 10 loads in a
// day.
func loadFreightDemo(ctx context.Context, h *Handler) error {
	if err := seedVenture(ctx, h, 1, "Warp Freight", "FREIGHT"); err != nil {
		return err
	}
	if err := seedUser(ctx, h, 1, "ava", RoleCEO, 1); err != nil {
		return err
	}
	if err := seedUser(ctx, h, 2, "marcus", "BROKER", 1); err != nil {
		return err
	}
	if err := seedUser(ctx, h, 3, "dana", "BROKER", 1); err != nil {
		return err
	}

	planID, err := seedPlan(ctx, h, 1, "Freight Standard")
	if err != nil {
		return err
	}
	rules := []struct {
		metric string
		calc   engine.Calc
	}{
		{freight.MetricLoadsRevenue, engine.PercentOfMetric{Rate: decimal.NewFromFloat(0.02)}},
		{freight.MetricLoadsCompleted, engine.FlatPerUnit{Rate: decimal.NewFromInt(50)}},
		{freight.MetricLoadsMiles, engine.CurrencyPerDollar{Rate: decimal.NewFromFloat(0.10)}},
		{freight.MetricLoadsCompleted, engine.BonusOnTarget{Threshold: decimal.NewFromInt(10), Bonus: decimal.NewFromInt(500)}},
	}
	for _, r := range rules {
		if err := seedRule(ctx, h, planID, r.metric, r.calc, 0); err != nil {
			return err
		}
	}

	// A week of delivered loads; marcus hits the 10-load bonus once.
	loadNum := 0
	for daysAgo := 7; daysAgo >= 1; daysAgo-- {
		perDay := 3
		if daysAgo == 2 {
			perDay = 10
		}
		for i := 0; i < perDay; i++ {
			loadNum++
			userID := engine.UserID(2)
			if daysAgo != 2 && i%2 == 1 {
				userID = engine.UserID(3)
			}
			err := h.Store.SaveLoad(ctx, freight.Load{
				ID:          fmt.Sprintf("LOAD-%04d", loadNum),
				VentureID:   1,
				CreatedBy:   userID,
				Status:      freight.StatusDelivered,
				BillingDate: dayAt(daysAgo),
				BillAmount:  decimal.NewFromInt(1500),
				Miles:       decimal.NewFromInt(420),
				Margin:      decimal.NewFromInt(225),
			})
			if err != nil {
				return err
			}
		}
	}

	// One canceled load that must never pay out.
	return h.Store.SaveLoad(ctx, freight.Load{
		ID:          "LOAD-CANCELED",
		VentureID:   1,
		CreatedBy:   2,
		Status:      freight.StatusCanceled,
		BillingDate: dayAt(3),
		BillAmount:  decimal.NewFromInt(2000),
		Miles:       decimal.NewFromInt(600),
		Margin:      decimal.NewFromInt(300),
	})
}

// loadBpoDemo gates a $25-per-deal rule on 30 dials a day. One agent
// clears the bar, one does not.
func loadBpoDemo(ctx context.Context, h *Handler) error {
	if err := seedVenture(ctx, h, 2, "Warp Connect", "BPO"); err != nil {
		return err
	}
	if err := seedUser(ctx, h, 1, "ava", RoleCEO, 2); err != nil {
		return err
	}
	if err := seedUser(ctx, h, 4, "jordan", "AGENT", 2); err != nil {
		return err
	}
	if err := seedUser(ctx, h, 5, "sam", "AGENT", 2); err != nil {
		return err
	}

	planID, err := seedPlan(ctx, h, 2, "BPO Performance")
	if err != nil {
		return err
	}
	qualID, err := h.Store.SaveQualification(ctx, engine.Qualification{
		PlanID:    planID,
		Name:      "Minimum 30 dials",
		MetricKey: bpo.MetricDials,
		MinValue:  decimal.NewFromInt(30),
	})
	if err != nil {
		return err
	}
	if err := seedRule(ctx, h, planID, bpo.MetricDeals, engine.FlatPerUnit{Rate: decimal.NewFromInt(25)}, qualID); err != nil {
		return err
	}
	if err := seedRule(ctx, h, planID, bpo.MetricConnects, engine.FlatPerUnit{Rate: decimal.NewFromInt(2)}, 0); err != nil {
		return err
	}

	callNum := 0
	for daysAgo := 5; daysAgo >= 1; daysAgo-- {
		day := dayAt(daysAgo).Time()
		// jordan: 40 dials, clears the gate
		for i := 0; i < 8; i++ {
			callNum++
			start := day.Add(time.Duration(9+i) * time.Hour)
			err := h.Store.SaveCallLog(ctx, bpo.CallLog{
				ID:        fmt.Sprintf("CALL-%04d", callNum),
				VentureID: 2,
				AgentID:   4,
				DialCount: 5,
				Connected: i%2 == 0,
				DealWon:   i == 0,
				StartedAt: start,
				EndedAt:   start.Add(4 * time.Minute),
			})
			if err != nil {
				return err
			}
		}
		// sam: 12 dials, gated out of the deal rule
		for i := 0; i < 4; i++ {
			callNum++
			start := day.Add(time.Duration(10+i) * time.Hour)
			err := h.Store.SaveCallLog(ctx, bpo.CallLog{
				ID:        fmt.Sprintf("CALL-%04d", callNum),
				VentureID: 2,
				AgentID:   5,
				DialCount: 3,
				Connected: i == 0,
				DealWon:   i == 0,
				StartedAt: start,
				EndedAt:   start.Add(2 * time.Minute),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// loadHotelDemo pays $5 per answered review and a small share of the
// venture's RevPAR average, which reaches every member.
func loadHotelDemo(ctx context.Context, h *Handler) error {
	if err := seedVenture(ctx, h, 3, "Warp Stays", "HOTEL"); err != nil {
		return err
	}
	if err := seedUser(ctx, h, 1, "ava", RoleCEO, 3); err != nil {
		return err
	}
	if err := seedUser(ctx, h, 6, "lena", "GUEST_RELATIONS", 3); err != nil {
		return err
	}
	if err := seedUser(ctx, h, 7, "omar", "GUEST_RELATIONS", 3); err != nil {
		return err
	}

	planID, err := seedPlan(ctx, h, 3, "Hotel Engagement")
	if err != nil {
		return err
	}
	if err := seedRule(ctx, h, planID, hotel.MetricReviewsResponded, engine.FlatPerUnit{Rate: decimal.NewFromInt(5)}, 0); err != nil {
		return err
	}
	if err := seedRule(ctx, h, planID, hotel.MetricRevPAR, engine.PercentOfMetric{Rate: decimal.NewFromFloat(0.05)}, 0); err != nil {
		return err
	}

	reviewNum := 0
	for daysAgo := 6; daysAgo >= 1; daysAgo-- {
		for i := 0; i < 3; i++ {
			reviewNum++
			responder := engine.UserID(6)
			if i == 2 {
				responder = engine.UserID(7)
			}
			err := h.Store.SaveReview(ctx, hotel.Review{
				ID:          fmt.Sprintf("REV-%04d", reviewNum),
				VentureID:   3,
				RespondedBy: responder,
				ReviewDate:  dayAt(daysAgo),
			})
			if err != nil {
				return err
			}
		}
		err := h.Store.SaveKpiDaily(ctx, hotel.KpiDaily{
			VentureID: 3,
			Date:      dayAt(daysAgo),
			ADR:       decimal.NewFromInt(180),
			RevPAR:    decimal.NewFromInt(140),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// loadMultiVentureDemo stacks all three demos so cross-venture views
// (personal history, leadership reports) have something to show.
func loadMultiVentureDemo(ctx context.Context, h *Handler) error {
	if err := loadFreightDemo(ctx, h); err != nil {
		return err
	}
	if err := loadBpoDemo(ctx, h); err != nil {
		return err
	}
	if err := loadHotelDemo(ctx, h); err != nil {
		return err
	}
	// One operator who belongs to every venture.
	return seedUser(ctx, h, 8, "priya", RoleCOO, 1, 2, 3)
}
