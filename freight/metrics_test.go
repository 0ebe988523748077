package freight_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/freight"
)

func load(createdBy int64, status string, bill, miles, margin float64) freight.Load {
	return freight.Load{
		ID:          "load-1",
		VentureID:   1,
		CreatedBy:   engine.UserID(createdBy),
		Status:      status,
		BillingDate: engine.NewDate(2025, time.January, 15),
		BillAmount:  decimal.NewFromFloat(bill),
		Miles:       decimal.NewFromFloat(miles),
		Margin:      decimal.NewFromFloat(margin),
	}
}

func TestCollect_AggregatesDeliveredLoads(t *testing.T) {
	loads := []freight.Load{
		load(10, freight.StatusDelivered, 1000, 500, 150),
		load(10, freight.StatusDelivered, 2000, 700, 300),
	}

	buckets := freight.Collect(loads)

	m := buckets[10]
	assert.True(t, m.Get(freight.MetricLoadsCompleted).Equal(decimal.NewFromInt(2)))
	assert.True(t, m.Get(freight.MetricLoadsRevenue).Equal(decimal.NewFromInt(3000)))
	assert.True(t, m.Get(freight.MetricLoadsMiles).Equal(decimal.NewFromInt(1200)))
	assert.True(t, m.Get(freight.MetricLoadsMargin).Equal(decimal.NewFromInt(450)))
}

func TestCollect_SkipsNonDelivered(t *testing.T) {
	loads := []freight.Load{
		load(10, freight.StatusInTransit, 1000, 500, 150),
		load(10, freight.StatusCanceled, 1000, 500, 150),
	}

	buckets := freight.Collect(loads)
	assert.Empty(t, buckets)
}

func TestCollect_SkipsLoadsWithoutCreator(t *testing.T) {
	loads := []freight.Load{load(0, freight.StatusDelivered, 1000, 500, 150)}

	buckets := freight.Collect(loads)
	assert.Empty(t, buckets)
}

func TestCollect_SeparatesUsers(t *testing.T) {
	loads := []freight.Load{
		load(10, freight.StatusDelivered, 1000, 500, 150),
		load(11, freight.StatusDelivered, 2000, 700, 300),
	}

	buckets := freight.Collect(loads)
	assert.Len(t, buckets, 2)
	assert.True(t, buckets[10].Get(freight.MetricLoadsRevenue).Equal(decimal.NewFromInt(1000)))
	assert.True(t, buckets[11].Get(freight.MetricLoadsRevenue).Equal(decimal.NewFromInt(2000)))
}
