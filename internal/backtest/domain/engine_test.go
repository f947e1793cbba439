package domain

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	"github.com/wyfcoding/tradingengine/internal/catalog/infrastructure/memory"
	executiondomain "github.com/wyfcoding/tradingengine/internal/execution/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
)

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
		MakerFeeRate:       decimal.RequireFromString("-0.00025"),
		TakerFeeRate:       decimal.RequireFromString("0.00035"),
	}
}

func mkPrice(t *testing.T, s string) model.Price {
	t.Helper()
	p, err := model.NewPriceFromString(s, 5)
	require.NoError(t, err)
	return p
}

func quote(t *testing.T, bid, ask string, size float64, seq uint64) model.QuoteTick {
	t.Helper()
	return model.QuoteTick{
		InstrumentID: model.NewInstrumentID("AUD/USD", "SIM"),
		BidPrice:     mkPrice(t, bid),
		AskPrice:     mkPrice(t, ask),
		BidSize:      model.NewQuantityFromFloat(size, 0),
		AskSize:      model.NewQuantityFromFloat(size, 0),
		Sequence:     seq,
		TsEvent:      time.Date(2024, 1, 2, 0, 0, int(seq), 0, time.UTC),
	}
}

func testConfig() BacktestConfig {
	return BacktestConfig{
		RunID:        "BT-TEST",
		StrategyID:   "S-1",
		AccountID:    "SIM-001",
		OmsType:      model.OmsNetting,
		BaseCurrency: "USD",
		Venues: []VenueConfig{{
			Name:        "SIM",
			BookType:    model.BookTypeL1,
			Instruments: []*model.Instrument{audUsd()},
			StartingBalances: []accountdomain.Balance{{
				Currency: "USD",
				Total:    decimal.NewFromInt(1000000),
				Free:     decimal.NewFromInt(1000000),
			}},
		}},
		FillModel: FillModelConfig{ProbFillAtLimit: 1, ProbSlippage: 1, RandomSeed: 42},
		Start:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
}

// buyOnce 在第一笔报价上挂一张买向限价单，之后不再动作
type buyOnce struct {
	limit     string
	qty       float64
	submitted bool
	events    []string
}

func (s *buyOnce) Name() string { return "buy-once" }

func (s *buyOnce) OnStart(tc *TradingContext) error {
	id := model.NewInstrumentID("AUD/USD", "SIM")
	tc.Data.SubscribeQuotes(id, func(q model.QuoteTick) {
		if s.submitted {
			return
		}
		s.submitted = true
		px, _ := model.NewPriceFromString(s.limit, 5)
		o := orderdomain.NewOrder(
			"O-1", id, "S-1",
			model.SideBuy, model.OrderTypeLimit,
			model.NewQuantityFromFloat(s.qty, 0), &px, nil,
			model.TimeInForceGTC, tc.Clock.Now(),
		)
		_ = tc.Execute(context.Background(), executiondomain.SubmitOrder{Order: o})
	})
	return nil
}

func (s *buyOnce) OnOrderEvent(ev orderdomain.OrderEvent) {
	s.events = append(s.events, ev.EventType())
}

func (s *buyOnce) OnStop(*TradingContext) {}

func seedCatalog(t *testing.T, ticks ...model.QuoteTick) *memory.Catalog {
	t.Helper()
	cat := memory.NewCatalog()
	records := make([]model.Data, len(ticks))
	for i, q := range ticks {
		records[i] = q
	}
	require.NoError(t, cat.WriteData(context.Background(), records))
	return cat
}

func TestRestingBuyFillWithMakerRebate(t *testing.T) {
	// 0.80010 的买单先挂入，卖价触及限价后以不利一跳 0.80011 成交，
	// maker 返佣 20.00275 记入 free。
	cat := seedCatalog(t,
		quote(t, "0.80008", "0.80012", 1000000, 1),
		quote(t, "0.80006", "0.80010", 1000000, 2),
		quote(t, "0.80008", "0.80012", 1000000, 3),
	)
	strat := &buyOnce{limit: "0.80010", qty: 100000}
	b, err := NewBacktestEngine(testConfig(), cat, strat, nil)
	require.NoError(t, err)

	result, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.DataEvents)
	assert.Equal(t, 1, result.TotalTrades)
	assert.Contains(t, strat.events, "OrderFilled")

	acct, ok := b.Cache().Account("SIM-001")
	require.True(t, ok)
	assert.Equal(t, "920009.00275", acct.FreeBalance("USD").String())

	p, ok := b.Cache().Position("P-AUD/USD.SIM-S-1")
	require.True(t, ok)
	assert.Equal(t, "100000", p.NetQty.String())
	assert.Equal(t, "0.80011", p.AvgEntryPrice.String())

	o, ok := b.Cache().Order("O-1")
	require.True(t, ok)
	assert.Equal(t, orderdomain.StatusFilled, o.Status)
}

func TestRunIsDeterministicForFixedSeed(t *testing.T) {
	ticks := []model.QuoteTick{
		quote(t, "0.80008", "0.80012", 1000000, 1),
		quote(t, "0.80006", "0.80010", 1000000, 2),
		quote(t, "0.80004", "0.80008", 1000000, 3),
		quote(t, "0.80008", "0.80012", 1000000, 4),
	}

	run := func() *BacktestResult {
		cat := seedCatalog(t, ticks...)
		b, err := NewBacktestEngine(testConfig(), cat, &buyOnce{limit: "0.80010", qty: 100000}, nil)
		require.NoError(t, err)
		result, err := b.Run(context.Background())
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	require.NotEmpty(t, first.EventLog)
	assert.Equal(t, first.EventLog, second.EventLog)
	assert.Equal(t, first.FinalBalances, second.FinalBalances)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
}

func TestUnfilledOrderLeavesBalanceUntouched(t *testing.T) {
	// 卖价从未触及限价，订单一直挂着
	cat := seedCatalog(t,
		quote(t, "0.80008", "0.80012", 1000000, 1),
		quote(t, "0.80009", "0.80013", 1000000, 2),
	)
	b, err := NewBacktestEngine(testConfig(), cat, &buyOnce{limit: "0.80010", qty: 100000}, nil)
	require.NoError(t, err)

	result, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalTrades)
	acct, _ := b.Cache().Account("SIM-001")
	assert.Equal(t, "1000000", acct.FreeBalance("USD").String())

	o, ok := b.Cache().Order("O-1")
	require.True(t, ok)
	assert.Equal(t, orderdomain.StatusAccepted, o.Status)
}

func TestEquityCurveSampledPerDataEvent(t *testing.T) {
	cat := seedCatalog(t,
		quote(t, "0.80008", "0.80012", 1000000, 1),
		quote(t, "0.80006", "0.80010", 1000000, 2),
		quote(t, "0.80008", "0.80012", 1000000, 3),
	)
	b, err := NewBacktestEngine(testConfig(), cat, &buyOnce{limit: "0.80010", qty: 100000}, nil)
	require.NoError(t, err)

	result, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.EquityCurve, 3)
}

func TestConfigValidation(t *testing.T) {
	base := testConfig()

	noVenue := base
	noVenue.Venues = nil
	_, err := NewBacktestEngine(noVenue, memory.NewCatalog(), nil, nil)
	assert.ErrorContains(t, err, "no venues")

	noInst := base
	noInst.Venues = []VenueConfig{{Name: "SIM", BookType: model.BookTypeL1}}
	_, err = NewBacktestEngine(noInst, memory.NewCatalog(), nil, nil)
	assert.ErrorContains(t, err, "has no instruments")

	noOms := base
	noOms.OmsType = ""
	_, err = NewBacktestEngine(noOms, memory.NewCatalog(), nil, nil)
	assert.ErrorContains(t, err, "oms type")

	noCcy := base
	noCcy.BaseCurrency = ""
	_, err = NewBacktestEngine(noCcy, memory.NewCatalog(), nil, nil)
	assert.ErrorContains(t, err, "base currency")
}

func TestComputeMaxDrawdown(t *testing.T) {
	equity := []decimal.Decimal{
		decimal.NewFromInt(100),
		decimal.NewFromInt(120),
		decimal.NewFromInt(90), // 相对峰值 120 回撤 25%
		decimal.NewFromInt(110),
	}
	dd := ComputeMaxDrawdown(equity)
	assert.Equal(t, "0.25", dd.String())

	assert.True(t, ComputeMaxDrawdown(nil).IsZero())
	assert.True(t, ComputeMaxDrawdown([]decimal.Decimal{decimal.NewFromInt(100)}).IsZero())
}
