/*
Package freight derives incentive metrics from freight/logistics
business records.

PURPOSE:
  Folds delivered loads into per-user daily metric buckets the
  incentive engine can read. A load contributes to the user who
  created it, on its billing date.

METRIC KEYS:
  loads_completed  count of delivered loads
  loads_revenue    sum of bill amounts
  loads_miles      sum of miles driven
  loads_margin     sum of margin amounts

SEE ALSO:
  - bpo/: Call-center metrics
  - hotel/: Hospitality metrics
  - store/sqlite: Queries loads and runs Collect per venture/day
*/
package freight

import (
	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
)

// Metric keys published by this package.
const (
	MetricLoadsCompleted = "loads_completed"
	MetricLoadsRevenue   = "loads_revenue"
	MetricLoadsMiles     = "loads_miles"
	MetricLoadsMargin    = "loads_margin"
)

// MetricKeys lists every metric this package can produce.
func MetricKeys() []string {
	return []string{MetricLoadsCompleted, MetricLoadsRevenue, MetricLoadsMiles, MetricLoadsMargin}
}

// Load statuses. Only delivered loads count toward incentives.
const (
	StatusDelivered = "DELIVERED"
	StatusInTransit = "IN_TRANSIT"
	StatusCanceled  = "CANCELED"
)

// Load is one freight load record.
type Load struct {
	ID          string
	VentureID   engine.VentureID
	CreatedBy   engine.UserID
	Status      string
	BillingDate engine.Date
	BillAmount  decimal.Decimal
	Miles       decimal.Decimal
	Margin      decimal.Decimal
}

// Collect folds loads into per-user metric buckets. Non-delivered
// loads and loads without a creator are skipped.
func Collect(loads []Load) map[engine.UserID]engine.MetricSet {
	buckets := make(map[engine.UserID]engine.MetricSet)
	one := decimal.NewFromInt(1)

	for _, l := range loads {
		if l.Status != StatusDelivered || l.CreatedBy == 0 {
			continue
		}
		bucket, ok := buckets[l.CreatedBy]
		if !ok {
			bucket = engine.MetricSet{}
			buckets[l.CreatedBy] = bucket
		}
		bucket.Add(MetricLoadsCompleted, one)
		bucket.Add(MetricLoadsRevenue, l.BillAmount)
		bucket.Add(MetricLoadsMiles, l.Miles)
		bucket.Add(MetricLoadsMargin, l.Margin)
	}
	return buckets
}
