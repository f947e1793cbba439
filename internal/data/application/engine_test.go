package application

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/tradingengine/internal/model"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func instrument() model.InstrumentID { return model.NewInstrumentID("AUD/USD", "SIM") }

func tradeTick(t *testing.T, px string, size int64, ts time.Time) model.TradeTick {
	t.Helper()
	p, err := model.NewPriceFromString(px, 5)
	require.NoError(t, err)
	return model.TradeTick{
		InstrumentID: instrument(),
		Price:        p,
		Size:         model.NewQuantity(decimal.NewFromInt(size), 0),
		TsEvent:      ts,
	}
}

func quoteTick(t *testing.T, bid, ask string, ts time.Time) model.QuoteTick {
	t.Helper()
	b, err := model.NewPriceFromString(bid, 5)
	require.NoError(t, err)
	a, err := model.NewPriceFromString(ask, 5)
	require.NoError(t, err)
	return model.QuoteTick{
		InstrumentID: instrument(),
		BidPrice:     b,
		AskPrice:     a,
		BidSize:      model.NewQuantity(decimal.NewFromInt(10), 0),
		AskSize:      model.NewQuantity(decimal.NewFromInt(10), 0),
		TsEvent:      ts,
	}
}

func TestFanOutInSubscriptionOrder(t *testing.T) {
	e := NewDataEngine(nil)
	var order []string
	e.SubscribeQuotes(instrument(), func(model.QuoteTick) { order = append(order, "first") })
	e.SubscribeQuotes(instrument(), func(model.QuoteTick) { order = append(order, "second") })
	e.SubscribeQuotes(instrument(), func(model.QuoteTick) { order = append(order, "third") })

	e.OnQuoteTick(quoteTick(t, "0.80000", "0.80010", t0))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSubscriptionKeyedByInstrument(t *testing.T) {
	e := NewDataEngine(nil)
	var got int
	e.SubscribeTrades(model.NewInstrumentID("EUR/USD", "SIM"), func(model.TradeTick) { got++ })

	e.OnTradeTick(tradeTick(t, "0.80000", 10, t0))
	assert.Zero(t, got)
}

func TestBarSubscriptionAggregatesFromTrades(t *testing.T) {
	e := NewDataEngine(nil)
	barType := model.BarType{
		InstrumentID: instrument(),
		Spec:         model.BarSpec{Step: 2, Aggregation: model.BarAggregationTick, PriceType: model.PriceTypeLast},
	}
	var bars []model.Bar
	e.SubscribeBars(barType, func(b model.Bar) { bars = append(bars, b) })

	e.OnTradeTick(tradeTick(t, "0.80000", 10, t0))
	e.OnTradeTick(tradeTick(t, "0.80010", 10, t0.Add(time.Second)))

	require.Len(t, bars, 1)
	assert.Equal(t, "0.80010", bars[0].Close.String())
}

func TestQuoteBarsDoNotConsumeTrades(t *testing.T) {
	e := NewDataEngine(nil)
	barType := model.BarType{
		InstrumentID: instrument(),
		Spec:         model.BarSpec{Step: 1, Aggregation: model.BarAggregationTick, PriceType: model.PriceTypeMid},
	}
	var bars []model.Bar
	e.SubscribeBars(barType, func(b model.Bar) { bars = append(bars, b) })

	// MID 规格只吃报价流
	e.OnTradeTick(tradeTick(t, "0.80000", 10, t0))
	assert.Empty(t, bars)
	e.OnQuoteTick(quoteTick(t, "0.80000", "0.80010", t0))
	assert.Len(t, bars, 1)
}

func TestGenericDataChannelSeesEverything(t *testing.T) {
	e := NewDataEngine(nil)
	var kinds []string
	e.SubscribeData(func(d model.Data) {
		switch d.(type) {
		case model.QuoteTick:
			kinds = append(kinds, "quote")
		case model.TradeTick:
			kinds = append(kinds, "trade")
		case model.OrderBookDelta:
			kinds = append(kinds, "delta")
		}
	})

	e.OnData(quoteTick(t, "0.80000", "0.80010", t0))
	e.OnData(tradeTick(t, "0.80005", 1, t0))
	e.OnData(model.OrderBookDelta{InstrumentID: instrument(), Action: model.BookActionClear, TsEvent: t0})

	assert.Equal(t, []string{"quote", "trade", "delta"}, kinds)
}

func TestFlushBarsEmitsOpenBuckets(t *testing.T) {
	e := NewDataEngine(nil)
	barType := model.BarType{
		InstrumentID: instrument(),
		Spec:         model.BarSpec{Step: 1, Aggregation: model.BarAggregationMinute, PriceType: model.PriceTypeLast},
	}
	var bars []model.Bar
	e.SubscribeBars(barType, func(b model.Bar) { bars = append(bars, b) })

	e.OnTradeTick(tradeTick(t, "0.80000", 10, t0))
	require.Empty(t, bars)
	e.FlushBars(t0.Add(30 * time.Second))
	assert.Len(t, bars, 1)
}
