/*
Package hotel derives incentive metrics from hospitality records.

METRIC KEYS:
  hotel_reviews_responded  guest reviews answered by the user
  hotel_adr                average daily rate (venture-level average)
  hotel_revpar             revenue per available room (venture-level
                           average)

ADR and RevPAR are property-level KPIs, not per-user facts. They are
averaged per venture/day and applied to every venture user's bucket,
so team-level rules (e.g. a RevPAR bonus) can pay individuals.
*/
package hotel

import (
	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
)

const (
	MetricReviewsResponded = "hotel_reviews_responded"
	MetricADR              = "hotel_adr"
	MetricRevPAR           = "hotel_revpar"
)

// MetricKeys lists every metric this package can produce.
func MetricKeys() []string {
	return []string{MetricReviewsResponded, MetricADR, MetricRevPAR}
}

// Review is one guest review record; RespondedBy is zero when nobody
// has answered it yet.
type Review struct {
	ID          string
	VentureID   engine.VentureID
	RespondedBy engine.UserID
	ReviewDate  engine.Date
}

// KpiDaily is one property's daily KPI snapshot.
type KpiDaily struct {
	VentureID engine.VentureID
	Date      engine.Date
	ADR       decimal.Decimal
	RevPAR    decimal.Decimal
}

// CollectReviews folds answered reviews into per-user buckets.
func CollectReviews(reviews []Review) map[engine.UserID]engine.MetricSet {
	buckets := make(map[engine.UserID]engine.MetricSet)
	one := decimal.NewFromInt(1)

	for _, r := range reviews {
		if r.RespondedBy == 0 {
			continue
		}
		bucket, ok := buckets[r.RespondedBy]
		if !ok {
			bucket = engine.MetricSet{}
			buckets[r.RespondedBy] = bucket
		}
		bucket.Add(MetricReviewsResponded, one)
	}
	return buckets
}

// AverageKpis averages ADR and RevPAR across the given snapshots.
// Zero when the slice is empty.
func AverageKpis(kpis []KpiDaily) (adr, revpar decimal.Decimal) {
	if len(kpis) == 0 {
		return decimal.Zero, decimal.Zero
	}
	for _, k := range kpis {
		adr = adr.Add(k.ADR)
		revpar = revpar.Add(k.RevPAR)
	}
	n := decimal.NewFromInt(int64(len(kpis)))
	return adr.DivRound(n, 4), revpar.DivRound(n, 4)
}

// ApplyVentureAverages stamps the venture-level ADR/RevPAR averages
// onto every listed user's bucket. Zero averages are not written, so
// absent KPI data stays "missing metric = 0" downstream.
func ApplyVentureAverages(buckets map[engine.UserID]engine.MetricSet, users []engine.User, adr, revpar decimal.Decimal) {
	if adr.IsZero() && revpar.IsZero() {
		return
	}
	for _, u := range users {
		bucket, ok := buckets[u.ID]
		if !ok {
			bucket = engine.MetricSet{}
			buckets[u.ID] = bucket
		}
		if !adr.IsZero() {
			bucket.Set(MetricADR, adr)
		}
		if !revpar.IsZero() {
			bucket.Set(MetricRevPAR, revpar)
		}
	}
}
