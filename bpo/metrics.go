/*
Package bpo derives incentive metrics from call-center activity logs.

METRIC KEYS:
  bpo_dials         dial attempts
  bpo_connects      calls that connected
  bpo_talk_seconds  total talk time in seconds
  bpo_deals         deals won
*/
package bpo

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
)

const (
	MetricDials       = "bpo_dials"
	MetricConnects    = "bpo_connects"
	MetricTalkSeconds = "bpo_talk_seconds"
	MetricDeals       = "bpo_deals"
)

// MetricKeys lists every metric this package can produce.
func MetricKeys() []string {
	return []string{MetricDials, MetricConnects, MetricTalkSeconds, MetricDeals}
}

// CallLog is one agent call record. A zero DialCount counts as one
// dial: a logged call is at least one attempt.
type CallLog struct {
	ID        string
	VentureID engine.VentureID
	AgentID   engine.UserID
	DialCount int
	Connected bool
	DealWon   bool
	StartedAt time.Time
	EndedAt   time.Time
}

// TalkSeconds returns the call's talk time, clamped at zero for
// missing or inverted timestamps.
func (c CallLog) TalkSeconds() int64 {
	if c.StartedAt.IsZero() || c.EndedAt.Before(c.StartedAt) {
		return 0
	}
	return int64(c.EndedAt.Sub(c.StartedAt).Round(time.Second).Seconds())
}

// Collect folds call logs into per-user metric buckets. Logs without
// an agent are skipped.
func Collect(logs []CallLog) map[engine.UserID]engine.MetricSet {
	buckets := make(map[engine.UserID]engine.MetricSet)
	one := decimal.NewFromInt(1)

	for _, c := range logs {
		if c.AgentID == 0 {
			continue
		}
		bucket, ok := buckets[c.AgentID]
		if !ok {
			bucket = engine.MetricSet{}
			buckets[c.AgentID] = bucket
		}

		dials := c.DialCount
		if dials == 0 {
			dials = 1
		}
		bucket.Add(MetricDials, decimal.NewFromInt(int64(dials)))
		if c.Connected {
			bucket.Add(MetricConnects, one)
		}
		if c.DealWon {
			bucket.Add(MetricDeals, one)
		}
		bucket.Add(MetricTalkSeconds, decimal.NewFromInt(c.TalkSeconds()))
	}
	return buckets
}
