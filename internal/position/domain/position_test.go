package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/tradingengine/internal/model"
)

func testInstrument() *model.Instrument {
	return &model.Instrument{
		ID:                 model.NewInstrumentID("AUD/USD", "SIM"),
		QuoteCurrency:      "USD",
		SettlementCurrency: "USD",
		PricePrecision:     5,
		SizePrecision:      0,
	}
}

func newTestPosition() *Position {
	return NewPosition("P-1", "S-1", "A-1", testInstrument())
}

func mkFill(tradeID string, side model.Side, qty float64, px string, ts int64) Fill {
	p, _ := model.NewPriceFromString(px, 5)
	return Fill{
		TradeID: model.TradeID(tradeID),
		Side:    side,
		Qty:     model.NewQuantityFromFloat(qty, 0),
		Price:   p,
		TsEvent: time.Unix(ts, 0),
	}
}

func TestPositionOpenAndAverage(t *testing.T) {
	p := newTestPosition()
	require.True(t, p.IsFlat())

	require.NoError(t, p.ApplyFill(mkFill("T-1", model.SideBuy, 100000, "0.80011", 1)))
	assert.True(t, p.IsLong())
	assert.True(t, p.NetQty.Equal(decimal.NewFromInt(100000)))
	assert.True(t, p.AvgEntryPrice.Equal(decimal.RequireFromString("0.80011")))

	// 同向加仓，加权均价
	require.NoError(t, p.ApplyFill(mkFill("T-2", model.SideBuy, 100000, "0.80021", 2)))
	assert.True(t, p.NetQty.Equal(decimal.NewFromInt(200000)))
	assert.True(t, p.AvgEntryPrice.Equal(decimal.RequireFromString("0.80016")))
	assert.True(t, p.PeakQty.Equal(decimal.NewFromInt(200000)))

	require.Len(t, p.Events(), 1)
	assert.Equal(t, PositionOpenedEventType, p.Events()[0].EventType())
}

func TestPositionReduceBooksRealizedPnL(t *testing.T) {
	p := newTestPosition()
	require.NoError(t, p.ApplyFill(mkFill("T-1", model.SideBuy, 100, "1.00000", 1)))
	require.NoError(t, p.ApplyFill(mkFill("T-2", model.SideSell, 40, "1.10000", 2)))

	assert.True(t, p.NetQty.Equal(decimal.NewFromInt(60)))
	// (1.10 - 1.00) × 40 = 4
	assert.Equal(t, "4 USD", p.RealizedPnL.String())
	// 减仓不改开仓均价
	assert.True(t, p.AvgEntryPrice.Equal(decimal.NewFromInt(1)))
}

func TestPositionCloseRetainsRecord(t *testing.T) {
	p := newTestPosition()
	require.NoError(t, p.ApplyFill(mkFill("T-1", model.SideBuy, 100, "1.00000", 1)))
	require.NoError(t, p.ApplyFill(mkFill("T-2", model.SideSell, 100, "1.05000", 2)))

	assert.True(t, p.IsFlat())
	require.NotNil(t, p.ClosedAt)
	assert.Equal(t, "5 USD", p.RealizedPnL.String())
	assert.True(t, p.AvgClosePrice.Equal(decimal.RequireFromString("1.05")))

	last := p.Events()[len(p.Events())-1]
	assert.Equal(t, PositionClosedEventType, last.EventType())
}

// 多头 Q=100 @ P=1.00，卖出 150 @ 1.20：
// 平仓段已实现盈亏 = (1.20 − 1.00) × 100 = 20，
// 剩余 50 以 1.20 开立空头，均价重置。
func TestPositionFlipSplitsFill(t *testing.T) {
	p := newTestPosition()
	require.NoError(t, p.ApplyFill(mkFill("T-1", model.SideBuy, 100, "1.00000", 1)))
	require.NoError(t, p.ApplyFill(mkFill("T-2", model.SideSell, 150, "1.20000", 2)))

	assert.True(t, p.IsShort())
	assert.True(t, p.NetQty.Equal(decimal.NewFromInt(-50)))
	assert.Equal(t, "20 USD", p.RealizedPnL.String())
	assert.True(t, p.AvgEntryPrice.Equal(decimal.RequireFromString("1.2")))

	last := p.Events()[len(p.Events())-1]
	require.Equal(t, PositionFlippedEventType, last.EventType())
	flip := last.(*PositionFlipped)
	assert.Equal(t, model.SideBuy, flip.OldSide)
	assert.Equal(t, model.SideSell, flip.NewSide)
	assert.Equal(t, "50", flip.FlipQty)
}

func TestPositionShortSideRealized(t *testing.T) {
	p := newTestPosition()
	require.NoError(t, p.ApplyFill(mkFill("T-1", model.SideSell, 100, "1.00000", 1)))
	assert.True(t, p.IsShort())

	// 空头回补价低于开仓价为盈利
	require.NoError(t, p.ApplyFill(mkFill("T-2", model.SideBuy, 100, "0.90000", 2)))
	assert.True(t, p.IsFlat())
	assert.Equal(t, "10 USD", p.RealizedPnL.String())
}

func TestPositionDuplicateTradeRejected(t *testing.T) {
	p := newTestPosition()
	require.NoError(t, p.ApplyFill(mkFill("T-1", model.SideBuy, 100, "1.00000", 1)))
	err := p.ApplyFill(mkFill("T-1", model.SideBuy, 100, "1.00000", 2))
	assert.ErrorIs(t, err, ErrDuplicateFill)
	assert.True(t, p.NetQty.Equal(decimal.NewFromInt(100)))
}

func TestUnrealizedPnL(t *testing.T) {
	p := newTestPosition()
	require.NoError(t, p.ApplyFill(mkFill("T-1", model.SideBuy, 100000, "0.80011", 1)))

	mark, _ := model.NewPriceFromString("0.80111", 5)
	// (0.80111 - 0.80011) × 100000 = 100
	assert.Equal(t, "100 USD", p.UnrealizedPnL(mark).String())

	mark2, _ := model.NewPriceFromString("0.79911", 5)
	assert.Equal(t, "-100 USD", p.UnrealizedPnL(mark2).String())
}

func TestPnLCalculator(t *testing.T) {
	c := NewPnLCalculator()

	pnl := c.Unrealized(model.SideSell, decimal.NewFromInt(50), decimal.NewFromInt(100), decimal.NewFromInt(90))
	assert.True(t, pnl.Equal(decimal.NewFromInt(500)), "空头下跌盈利")

	r := c.Realized(model.SideBuy, decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.NewFromInt(110))
	assert.True(t, r.Equal(decimal.NewFromInt(100)))

	avg := c.WeightedAverage(decimal.NewFromInt(100), decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.NewFromInt(20))
	assert.True(t, avg.Equal(decimal.NewFromInt(15)))

	assert.True(t, c.Unrealized(model.SideBuy, decimal.Zero, decimal.NewFromInt(1), decimal.NewFromInt(2)).IsZero())
}
