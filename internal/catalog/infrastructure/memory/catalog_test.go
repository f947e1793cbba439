package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/tradingengine/internal/model"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func audUsd() model.InstrumentID { return model.NewInstrumentID("AUD/USD", "SIM") }

func quoteAt(t *testing.T, ts time.Time) model.QuoteTick {
	t.Helper()
	bid, err := model.NewPriceFromString("0.80000", 5)
	require.NoError(t, err)
	ask, err := model.NewPriceFromString("0.80010", 5)
	require.NoError(t, err)
	return model.QuoteTick{
		InstrumentID: audUsd(),
		BidPrice:     bid,
		AskPrice:     ask,
		BidSize:      model.NewQuantity(decimal.NewFromInt(10), 0),
		AskSize:      model.NewQuantity(decimal.NewFromInt(10), 0),
		TsEvent:      ts,
	}
}

func tradeAt(t *testing.T, ts time.Time) model.TradeTick {
	t.Helper()
	px, err := model.NewPriceFromString("0.80005", 5)
	require.NoError(t, err)
	return model.TradeTick{
		InstrumentID: audUsd(),
		Price:        px,
		Size:         model.NewQuantity(decimal.NewFromInt(5), 0),
		TsEvent:      ts,
	}
}

func TestQueryAllMergesTypesInTimeOrder(t *testing.T) {
	c := NewCatalog()
	ctx := context.Background()

	// 乱序写入，查询按事件时间排序
	require.NoError(t, c.WriteData(ctx, []model.Data{
		tradeAt(t, t0.Add(2*time.Second)),
		quoteAt(t, t0),
		quoteAt(t, t0.Add(time.Second)),
	}))

	all, err := c.QueryAll(ctx, []model.InstrumentID{audUsd()}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, t0, all[0].EventTime())
	assert.Equal(t, t0.Add(time.Second), all[1].EventTime())
	assert.Equal(t, t0.Add(2*time.Second), all[2].EventTime())
}

func TestQueryAllStableForEqualTimestamps(t *testing.T) {
	c := NewCatalog()
	ctx := context.Background()

	// 同一时间戳：报价先写入，fill 判定依赖这个先后次序
	require.NoError(t, c.WriteData(ctx, []model.Data{quoteAt(t, t0), tradeAt(t, t0)}))

	all, err := c.QueryAll(ctx, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	_, isQuote := all[0].(model.QuoteTick)
	_, isTrade := all[1].(model.TradeTick)
	assert.True(t, isQuote)
	assert.True(t, isTrade)
}

func TestQueryRangeIsHalfOpen(t *testing.T) {
	c := NewCatalog()
	ctx := context.Background()
	require.NoError(t, c.WriteData(ctx, []model.Data{
		quoteAt(t, t0),
		quoteAt(t, t0.Add(time.Minute)),
		quoteAt(t, t0.Add(2*time.Minute)),
	}))

	ticks, err := c.QueryQuoteTicks(ctx, audUsd(), t0, t0.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, t0, ticks[0].TsEvent)
	assert.Equal(t, t0.Add(time.Minute), ticks[1].TsEvent)
}

func TestQueryFiltersByInstrument(t *testing.T) {
	c := NewCatalog()
	ctx := context.Background()
	other := quoteAt(t, t0)
	other.InstrumentID = model.NewInstrumentID("EUR/USD", "SIM")
	require.NoError(t, c.WriteData(ctx, []model.Data{quoteAt(t, t0), other}))

	ticks, err := c.QueryQuoteTicks(ctx, audUsd(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, ticks, 1)

	all, err := c.QueryAll(ctx, []model.InstrumentID{audUsd()}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWriteRejectsUnknownType(t *testing.T) {
	c := NewCatalog()
	err := c.WriteData(context.Background(), []model.Data{fakeData{}})
	assert.Error(t, err)
}

type fakeData struct{}

func (fakeData) DataInstrument() model.InstrumentID { return model.InstrumentID{} }
func (fakeData) EventTime() time.Time               { return time.Time{} }
