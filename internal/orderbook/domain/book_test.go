package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/tradingengine/internal/model"
)

var bookInstrument = model.InstrumentID{Symbol: "EUR/USD", Venue: "SIM"}

func px(t *testing.T, s string) model.Price {
	t.Helper()
	p, err := model.NewPriceFromString(s, 4)
	require.NoError(t, err)
	return p
}

func qty(v float64) model.Quantity { return model.NewQuantityFromFloat(v, 0) }

func delta(seq uint64, action model.BookAction, side model.Side, price model.Price, size model.Quantity) model.OrderBookDelta {
	return model.OrderBookDelta{
		InstrumentID: bookInstrument,
		Action:       action,
		Side:         side,
		Price:        price,
		Size:         size,
		Sequence:     seq,
		TsEvent:      time.Unix(int64(seq), 0),
	}
}

func TestApplyDeltaSequenceFromSpecScenario(t *testing.T) {
	b := NewOrderBook(bookInstrument, model.BookTypeL2)

	require.NoError(t, b.ApplyDelta(delta(1, model.BookActionAdd, model.SideBuy, px(t, "1.2000"), qty(10))))
	require.NoError(t, b.ApplyDelta(delta(2, model.BookActionAdd, model.SideSell, px(t, "1.2010"), qty(15))))

	bid, ok := b.BestBidPrice()
	require.True(t, ok)
	assert.Equal(t, "1.2000", bid.String())
	ask, ok := b.BestAskPrice()
	require.True(t, ok)
	assert.Equal(t, "1.2010", ask.String())

	spread, ok := b.Spread()
	require.True(t, ok)
	assert.True(t, spread.Equal(decimal.RequireFromString("0.0010")))

	require.NoError(t, b.ApplyDelta(delta(3, model.BookActionDelete, model.SideBuy, px(t, "1.2000"), qty(10))))
	_, ok = b.BestBidPrice()
	assert.False(t, ok)

	require.NoError(t, b.ApplyDelta(delta(4, model.BookActionClear, "", model.Price{}, model.Quantity{})))
	_, ok = b.BestBidPrice()
	assert.False(t, ok)
	_, ok = b.BestAskPrice()
	assert.False(t, ok)
	_, ok = b.Spread()
	assert.False(t, ok)
}

func TestApplyDeltaRejectsStaleSequence(t *testing.T) {
	b := NewOrderBook(bookInstrument, model.BookTypeL2)
	require.NoError(t, b.ApplyDelta(delta(5, model.BookActionAdd, model.SideBuy, px(t, "1.2000"), qty(10))))

	// 重复
	err := b.ApplyDelta(delta(5, model.BookActionAdd, model.SideBuy, px(t, "1.2001"), qty(5)))
	assert.ErrorIs(t, err, ErrStaleSequence)
	// 乱序
	err = b.ApplyDelta(delta(4, model.BookActionAdd, model.SideBuy, px(t, "1.2002"), qty(5)))
	assert.ErrorIs(t, err, ErrStaleSequence)

	// 被拒绝的增量不能改动订单簿
	bid, ok := b.BestBidPrice()
	require.True(t, ok)
	assert.Equal(t, "1.2000", bid.String())
	assert.Equal(t, uint64(5), b.Sequence())
}

func TestApplyDeltaWrongInstrument(t *testing.T) {
	b := NewOrderBook(bookInstrument, model.BookTypeL2)
	d := delta(1, model.BookActionAdd, model.SideBuy, px(t, "1.2000"), qty(10))
	d.InstrumentID = model.InstrumentID{Symbol: "GBP/USD", Venue: "SIM"}
	assert.ErrorIs(t, b.ApplyDelta(d), ErrBookMismatch)
}

func TestLadderOrdering(t *testing.T) {
	b := NewOrderBook(bookInstrument, model.BookTypeL2)
	seq := uint64(0)
	add := func(side model.Side, p string, q float64) {
		seq++
		require.NoError(t, b.ApplyDelta(delta(seq, model.BookActionAdd, side, px(t, p), qty(q))))
	}
	add(model.SideBuy, "1.1990", 10)
	add(model.SideBuy, "1.2000", 20)
	add(model.SideBuy, "1.1995", 30)
	add(model.SideSell, "1.2020", 10)
	add(model.SideSell, "1.2010", 20)
	add(model.SideSell, "1.2015", 30)

	// 买侧降序、卖侧升序
	snap := b.TakeSnapshot(10)
	require.Len(t, snap.Bids, 3)
	assert.Equal(t, "1.2000", snap.Bids[0].Price.String())
	assert.Equal(t, "1.1995", snap.Bids[1].Price.String())
	assert.Equal(t, "1.1990", snap.Bids[2].Price.String())
	require.Len(t, snap.Asks, 3)
	assert.Equal(t, "1.2010", snap.Asks[0].Price.String())
	assert.Equal(t, "1.2015", snap.Asks[1].Price.String())
	assert.Equal(t, "1.2020", snap.Asks[2].Price.String())

	bid, _ := b.BestBidPrice()
	ask, _ := b.BestAskPrice()
	assert.True(t, bid.LessThan(ask), "正常状态下最优买价必须低于最优卖价")
}

func TestUpdateZeroSizeDeletesLevel(t *testing.T) {
	b := NewOrderBook(bookInstrument, model.BookTypeL2)
	require.NoError(t, b.ApplyDelta(delta(1, model.BookActionAdd, model.SideSell, px(t, "1.2010"), qty(15))))
	require.NoError(t, b.ApplyDelta(delta(2, model.BookActionUpdate, model.SideSell, px(t, "1.2010"), qty(0))))
	_, ok := b.BestAskPrice()
	assert.False(t, ok)
}

func TestSimulateFillsWalksBestOutward(t *testing.T) {
	b := NewOrderBook(bookInstrument, model.BookTypeL2)
	seq := uint64(0)
	add := func(side model.Side, p string, q float64) {
		seq++
		require.NoError(t, b.ApplyDelta(delta(seq, model.BookActionAdd, side, px(t, p), qty(q))))
	}
	add(model.SideSell, "1.2010", 20)
	add(model.SideSell, "1.2015", 30)
	add(model.SideSell, "1.2020", 50)

	// 吃两档半
	fills := b.SimulateFills(model.SideBuy, qty(60), nil)
	require.Len(t, fills, 3)
	assert.Equal(t, "1.2010", fills[0].Price.String())
	assert.Equal(t, "20", fills[0].Qty.String())
	assert.Equal(t, "1.2015", fills[1].Price.String())
	assert.Equal(t, "30", fills[1].Qty.String())
	assert.Equal(t, "1.2020", fills[2].Price.String())
	assert.Equal(t, "10", fills[2].Qty.String())

	// 成交量之和不超过订单数量
	total := decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Qty.Decimal())
	}
	assert.True(t, total.Equal(decimal.NewFromInt(60)))

	// 限价截断
	limit := px(t, "1.2015")
	fills = b.SimulateFills(model.SideBuy, qty(100), &limit)
	require.Len(t, fills, 2)
	assert.Equal(t, "1.2015", fills[1].Price.String())

	// 流动性耗尽时返回不足的成交
	fills = b.SimulateFills(model.SideBuy, qty(1000), nil)
	total = decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Qty.Decimal())
	}
	assert.True(t, total.Equal(decimal.NewFromInt(100)))

	// 模拟不改动订单簿
	ask, ok := b.BestAskPrice()
	require.True(t, ok)
	assert.Equal(t, "1.2010", ask.String())
}

func TestSimulateFillsSellSide(t *testing.T) {
	b := NewOrderBook(bookInstrument, model.BookTypeL2)
	require.NoError(t, b.ApplyDelta(delta(1, model.BookActionAdd, model.SideBuy, px(t, "1.2000"), qty(40))))
	require.NoError(t, b.ApplyDelta(delta(2, model.BookActionAdd, model.SideBuy, px(t, "1.1995"), qty(40))))

	limit := px(t, "1.1998")
	fills := b.SimulateFills(model.SideSell, qty(80), &limit)
	require.Len(t, fills, 1, "低于卖方限价的买档不能成交")
	assert.Equal(t, "1.2000", fills[0].Price.String())
	assert.Equal(t, "40", fills[0].Qty.String())
}

func TestL3FIFOWithinLevel(t *testing.T) {
	b := NewOrderBook(bookInstrument, model.BookTypeL3)
	d := delta(1, model.BookActionAdd, model.SideSell, px(t, "1.2010"), qty(10))
	d.OrderID = "m1"
	require.NoError(t, b.ApplyDelta(d))
	d = delta(2, model.BookActionAdd, model.SideSell, px(t, "1.2010"), qty(20))
	d.OrderID = "m2"
	require.NoError(t, b.ApplyDelta(d))

	level, ok := b.Asks.Best()
	require.True(t, ok)
	require.Equal(t, 2, level.Orders.Len())
	first := level.Orders.Front().Value.(*BookOrder)
	assert.Equal(t, "m1", first.OrderID, "同档位内先到先得")

	// 删除指定挂单而不是整档
	d = delta(3, model.BookActionDelete, model.SideSell, px(t, "1.2010"), model.Quantity{})
	d.OrderID = "m1"
	require.NoError(t, b.ApplyDelta(d))
	level, ok = b.Asks.Best()
	require.True(t, ok)
	require.Equal(t, 1, level.Orders.Len())
	assert.Equal(t, "m2", level.Orders.Front().Value.(*BookOrder).OrderID)
}
