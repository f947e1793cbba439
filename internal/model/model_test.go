package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstrumentID(t *testing.T) {
	id, err := ParseInstrumentID("AUD/USD.IDEALPRO")
	require.NoError(t, err)
	assert.Equal(t, Symbol("AUD/USD"), id.Symbol)
	assert.Equal(t, Venue("IDEALPRO"), id.Venue)
	assert.Equal(t, "AUD/USD.IDEALPRO", id.String())

	// symbol 内含 '.' 时取最后一个分隔
	id, err = ParseInstrumentID("BRK.B.NYSE")
	require.NoError(t, err)
	assert.Equal(t, Symbol("BRK.B"), id.Symbol)
	assert.Equal(t, Venue("NYSE"), id.Venue)

	_, err = ParseInstrumentID("NOVENUE")
	assert.Error(t, err)
	_, err = ParseInstrumentID(".VENUE")
	assert.Error(t, err)
	_, err = ParseInstrumentID("SYM.")
	assert.Error(t, err)
}

func TestPriceFixedPrecision(t *testing.T) {
	p, err := NewPriceFromString("0.80010", 5)
	require.NoError(t, err)
	assert.Equal(t, "0.80010", p.String())
	assert.Equal(t, int32(5), p.Precision())

	q, err := NewPriceFromString("0.00001", 5)
	require.NoError(t, err)
	sum, err := p.Add(q)
	require.NoError(t, err)
	assert.Equal(t, "0.80011", sum.String())

	// 精度不一致的运算必须报错
	other := NewPriceFromFloat(0.8, 2)
	_, err = p.Add(other)
	assert.ErrorIs(t, err, ErrPrecisionMismatch)
	_, err = p.Sub(other)
	assert.ErrorIs(t, err, ErrPrecisionMismatch)
}

func TestPriceRounding(t *testing.T) {
	p := NewPrice(decimal.RequireFromString("1.234567"), 3)
	assert.Equal(t, "1.235", p.String())
}

func TestQuantityNonNegative(t *testing.T) {
	q := NewQuantityFromFloat(100000, 0)
	assert.Equal(t, "100000", q.String())

	_, err := NewQuantityFromString("-5", 0)
	assert.Error(t, err)

	small := NewQuantityFromFloat(1, 0)
	_, err = small.Sub(q)
	assert.Error(t, err, "数量减法不允许出现负值")

	rest, err := q.Sub(small)
	require.NoError(t, err)
	assert.Equal(t, "99999", rest.String())
}

func TestMoneyCurrencySafety(t *testing.T) {
	usd, err := NewMoneyFromString("1000.25", "USD")
	require.NoError(t, err)
	jpy := NewMoney(decimal.NewFromInt(5000), "JPY")

	_, err = usd.Add(jpy)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	more, err := usd.Add(NewMoney(decimal.NewFromInt(100), "USD"))
	require.NoError(t, err)
	assert.Equal(t, "1100.25 USD", more.String())
	assert.Equal(t, "-1100.25 USD", more.Neg().String())
}

func TestInstrumentCommission(t *testing.T) {
	inst := &Instrument{
		ID:                 NewInstrumentID("AUD/USD", "IDEALPRO"),
		BaseCurrency:       "AUD",
		QuoteCurrency:      "USD",
		SettlementCurrency: "USD",
		PricePrecision:     5,
		SizePrecision:      0,
		MakerFeeRate:       decimal.RequireFromString("-0.00025"),
		TakerFeeRate:       decimal.RequireFromString("0.00035"),
	}
	price, _ := NewPriceFromString("0.80011", 5)
	qty := NewQuantityFromFloat(100000, 0)

	// maker 费率为负，表示返佣
	maker := inst.Commission(price, qty, LiquidityMaker)
	assert.True(t, maker.IsNegative())
	assert.Equal(t, "-20.00275 USD", maker.String())

	taker := inst.Commission(price, qty, LiquidityTaker)
	assert.Equal(t, "28.00385 USD", taker.String())
}

// 结算货币与计价货币不同，手续费记在结算货币上
func TestCommissionBookedInSettlementCurrency(t *testing.T) {
	inst := &Instrument{
		ID:                 NewInstrumentID("BTC/EUR", "SIM"),
		BaseCurrency:       "BTC",
		QuoteCurrency:      "EUR",
		SettlementCurrency: "USDT",
		PricePrecision:     2,
		SizePrecision:      4,
		TakerFeeRate:       decimal.RequireFromString("0.001"),
	}
	price, _ := NewPriceFromString("50000.00", 2)
	qty := NewQuantityFromFloat(1, 4)

	fee := inst.Commission(price, qty, LiquidityTaker)
	assert.Equal(t, Currency("USDT"), fee.Currency())
	assert.Equal(t, "50 USDT", fee.String())
}

func TestQuoteTickMid(t *testing.T) {
	bid, _ := NewPriceFromString("0.80010", 5)
	ask, _ := NewPriceFromString("0.80012", 5)
	tick := QuoteTick{BidPrice: bid, AskPrice: ask}
	assert.Equal(t, "0.80011", tick.Mid().String())
	assert.Equal(t, "0.80010", tick.ExtractPrice(PriceTypeBid).String())
	assert.Equal(t, "0.80012", tick.ExtractPrice(PriceTypeAsk).String())
}

func TestBarValidate(t *testing.T) {
	mk := func(s string) Price { p, _ := NewPriceFromString(s, 2); return p }
	bar := Bar{
		Open: mk("10.00"), High: mk("11.00"), Low: mk("9.50"), Close: mk("10.50"),
	}
	assert.NoError(t, bar.Validate())

	bad := bar
	bad.Close = mk("12.00")
	assert.Error(t, bad.Validate())

	bad = bar
	bad.High = mk("9.00")
	assert.Error(t, bad.Validate())
}

func TestSideHelpers(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, int64(1), SideBuy.Sign())
	assert.Equal(t, int64(-1), SideSell.Sign())
	assert.True(t, OrderTypeStopLimit.HasTrigger())
	assert.False(t, OrderTypeLimit.HasTrigger())
}
