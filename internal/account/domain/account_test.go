package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/tradingengine/internal/model"
)

func usd(total, locked, free string) Balance {
	return Balance{
		Currency: "USD",
		Total:    decimal.RequireFromString(total),
		Locked:   decimal.RequireFromString(locked),
		Free:     decimal.RequireFromString(free),
	}
}

func snapshot(ts int64, balances ...Balance) *AccountState {
	return &AccountState{
		AccountID: "A-1",
		Balances:  balances,
		TsEvent:   time.Unix(ts, 0),
	}
}

func TestApplyStateReplacesBalances(t *testing.T) {
	a := NewAccount("A-1")
	require.NoError(t, a.ApplyState(snapshot(1, usd("1000000", "0", "1000000"))))
	assert.True(t, a.FreeBalance("USD").Equal(decimal.NewFromInt(1000000)))

	// 后续快照全量替换，不是增量
	require.NoError(t, a.ApplyState(snapshot(2, usd("919968.99725", "0", "919968.99725"))))
	assert.Equal(t, "919968.99725", a.FreeBalance("USD").String())

	// 未出现在快照中的币种被移除
	require.NoError(t, a.ApplyState(snapshot(3, Balance{Currency: "EUR", Total: decimal.NewFromInt(10), Free: decimal.NewFromInt(10)})))
	_, ok := a.Balance("USD")
	assert.False(t, ok)
}

func TestApplyStateIdempotent(t *testing.T) {
	a := NewAccount("A-1")
	s := snapshot(5, usd("1000", "200", "800"))
	require.NoError(t, a.ApplyState(s))
	require.NoError(t, a.ApplyState(s), "同一快照可重复应用")

	b, ok := a.Balance("USD")
	require.True(t, ok)
	assert.True(t, b.Total.Equal(decimal.NewFromInt(1000)))
	assert.True(t, b.Locked.Equal(decimal.NewFromInt(200)))
	assert.True(t, b.Free.Equal(decimal.NewFromInt(800)), "重复应用不能重复记账")
}

func TestApplyStateRejectsStale(t *testing.T) {
	a := NewAccount("A-1")
	require.NoError(t, a.ApplyState(snapshot(10, usd("1000", "0", "1000"))))
	err := a.ApplyState(snapshot(9, usd("900", "0", "900")))
	assert.ErrorIs(t, err, ErrStaleSnapshot)
	assert.Equal(t, "1000", a.FreeBalance("USD").String())
}

func TestApplyStateRejectsUnbalanced(t *testing.T) {
	a := NewAccount("A-1")
	err := a.ApplyState(snapshot(1, usd("1000", "100", "800")))
	assert.ErrorIs(t, err, ErrUnbalanced)
}

func TestApplyStateWrongAccount(t *testing.T) {
	a := NewAccount("A-2")
	assert.Error(t, a.ApplyState(snapshot(1, usd("1", "0", "1"))))
}

func TestMargins(t *testing.T) {
	a := NewAccount("A-1")
	s := snapshot(1, usd("1000", "0", "1000"))
	s.Margins = []MarginBalance{
		{InstrumentID: model.NewInstrumentID("AUD/USD", "SIM"), Initial: decimal.NewFromInt(50), Maintenance: decimal.NewFromInt(25), Currency: "USD"},
		{InstrumentID: model.NewInstrumentID("EUR/USD", "SIM"), Initial: decimal.NewFromInt(30), Maintenance: decimal.NewFromInt(15), Currency: "USD"},
	}
	require.NoError(t, a.ApplyState(s))

	assert.True(t, a.MarginsInit()["USD"].Equal(decimal.NewFromInt(80)))
	assert.True(t, a.MarginsMaint()["USD"].Equal(decimal.NewFromInt(40)))

	m, ok := a.Margin(model.NewInstrumentID("AUD/USD", "SIM"))
	require.True(t, ok)
	assert.True(t, m.Initial.Equal(decimal.NewFromInt(50)))
}
