package application

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	"github.com/wyfcoding/tradingengine/internal/execution/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	positiondomain "github.com/wyfcoding/tradingengine/internal/position/domain"
)

var ts = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func audUsd() *model.Instrument {
	inc, _ := model.NewPriceFromString("0.00001", 5)
	return &model.Instrument{
		ID:                 model.NewInstrumentID("AUD/USD", "SIM"),
		BaseCurrency:       "AUD",
		QuoteCurrency:      "USD",
		SettlementCurrency: "USD",
		PricePrecision:     5,
		SizePrecision:      0,
		PriceIncrement:     inc,
	}
}

func px(t *testing.T, s string) model.Price {
	t.Helper()
	p, err := model.NewPriceFromString(s, 5)
	require.NoError(t, err)
	return p
}

func qty(v int64) model.Quantity { return model.NewQuantity(decimal.NewFromInt(v), 0) }

func openPosition(t *testing.T, cache *domain.Cache, id model.PositionID, side model.Side, q int64, price string) *positiondomain.Position {
	t.Helper()
	inst := audUsd()
	p := positiondomain.NewPosition(id, "S-001", "SIM-001", inst)
	require.NoError(t, p.ApplyFill(positiondomain.Fill{
		TradeID: model.TradeID(string(id) + "-T1"),
		Side:    side,
		Qty:     qty(q),
		Price:   px(t, price),
		TsEvent: ts,
	}))
	cache.AddPosition(p)
	return p
}

func quote(bid, ask string) model.QuoteTick {
	b, _ := model.NewPriceFromString(bid, 5)
	a, _ := model.NewPriceFromString(ask, 5)
	return model.QuoteTick{
		InstrumentID: model.NewInstrumentID("AUD/USD", "SIM"),
		BidPrice:     b,
		AskPrice:     a,
		BidSize:      qty(100),
		AskSize:      qty(100),
		TsEvent:      ts,
	}
}

func TestNetPositionAndFlat(t *testing.T) {
	cache := domain.NewCache()
	cache.AddInstrument(audUsd())
	pf := NewPortfolio(cache, nil)
	id := model.NewInstrumentID("AUD/USD", "SIM")

	assert.True(t, pf.IsFlat(id))
	assert.True(t, pf.IsCompletelyFlat())

	openPosition(t, cache, "P-1", model.SideBuy, 100, "0.80000")
	openPosition(t, cache, "P-2", model.SideSell, 40, "0.80000")

	assert.Equal(t, "60", pf.NetPosition(id).String())
	assert.False(t, pf.IsFlat(id))
	assert.False(t, pf.IsCompletelyFlat())
}

func TestUnrealizedPnLUsesMidMark(t *testing.T) {
	cache := domain.NewCache()
	cache.AddInstrument(audUsd())
	bus := domain.NewMessageBus()
	pf := NewPortfolio(cache, bus)
	id := model.NewInstrumentID("AUD/USD", "SIM")

	openPosition(t, cache, "P-1", model.SideBuy, 100000, "0.80000")

	_, err := pf.UnrealizedPnL(id)
	assert.ErrorIs(t, err, ErrNoMarkPrice)

	// mid = 0.80010，浮盈 = (0.80010-0.80000)*100000 = 10 USD
	bus.Publish(domain.TopicData, quote("0.80005", "0.80015"))
	pnl, err := pf.UnrealizedPnL(id)
	require.NoError(t, err)
	assert.Equal(t, "10 USD", pnl.String())

	// 新行情失效缓存后重算
	bus.Publish(domain.TopicData, quote("0.79985", "0.79995"))
	pnl, err = pf.UnrealizedPnL(id)
	require.NoError(t, err)
	assert.Equal(t, "-10 USD", pnl.String())
}

func TestPositionEventInvalidatesCache(t *testing.T) {
	cache := domain.NewCache()
	cache.AddInstrument(audUsd())
	bus := domain.NewMessageBus()
	pf := NewPortfolio(cache, bus)
	id := model.NewInstrumentID("AUD/USD", "SIM")

	p := openPosition(t, cache, "P-1", model.SideBuy, 100, "0.80000")
	bus.Publish(domain.TopicData, quote("0.80005", "0.80015"))

	first, err := pf.UnrealizedPnL(id)
	require.NoError(t, err)

	// 加仓后通过总线通知，投影重算
	require.NoError(t, p.ApplyFill(positiondomain.Fill{
		TradeID: "T-2", Side: model.SideBuy, Qty: qty(100), Price: px(t, "0.80000"), TsEvent: ts,
	}))
	events := p.Events()
	bus.Publish(domain.TopicPositionEvents, events[len(events)-1])

	second, err := pf.UnrealizedPnL(id)
	require.NoError(t, err)
	assert.Equal(t, first.Amount().Mul(decimal.NewFromInt(2)).String(), second.Amount().String())
}

func TestNetExposure(t *testing.T) {
	cache := domain.NewCache()
	cache.AddInstrument(audUsd())
	pf := NewPortfolio(cache, nil)
	id := model.NewInstrumentID("AUD/USD", "SIM")

	openPosition(t, cache, "P-1", model.SideSell, 100000, "0.80000")
	pf.UpdateQuote(quote("0.79995", "0.80005"))

	exp, err := pf.NetExposure(id)
	require.NoError(t, err)
	// |净持仓| 以标记价计，方向不影响敞口
	assert.Equal(t, "80000 USD", exp.String())
}

func TestRealizedPnLSumsPositions(t *testing.T) {
	cache := domain.NewCache()
	cache.AddInstrument(audUsd())
	pf := NewPortfolio(cache, nil)
	id := model.NewInstrumentID("AUD/USD", "SIM")

	p := openPosition(t, cache, "P-1", model.SideBuy, 100, "0.80000")
	require.NoError(t, p.ApplyFill(positiondomain.Fill{
		TradeID: "T-2", Side: model.SideSell, Qty: qty(100), Price: px(t, "0.80100"), TsEvent: ts,
	}))

	pnl, err := pf.RealizedPnL(id)
	require.NoError(t, err)
	assert.Equal(t, "0.1 USD", pnl.String())
}

func TestMarginsAggregateAccounts(t *testing.T) {
	cache := domain.NewCache()
	pf := NewPortfolio(cache, nil)

	a := accountdomain.NewAccount("SIM-001")
	require.NoError(t, a.ApplyState(&accountdomain.AccountState{
		AccountID: "SIM-001",
		Balances: []accountdomain.Balance{{
			Currency: "USD", Total: decimal.NewFromInt(1000), Free: decimal.NewFromInt(1000),
		}},
		Margins: []accountdomain.MarginBalance{{
			InstrumentID: model.NewInstrumentID("AUD/USD", "SIM"),
			Initial:      decimal.NewFromInt(50),
			Maintenance:  decimal.NewFromInt(25),
			Currency:     "USD",
		}},
		TsEvent: ts,
	}))
	cache.AddAccount(a)

	init := pf.MarginsInit()
	assert.Equal(t, "50", init["USD"].String())
	maint := pf.MarginsMaint()
	assert.Equal(t, "25", maint["USD"].String())
}
