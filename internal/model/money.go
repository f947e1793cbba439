package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency ISO 货币代码或数字资产代码，如 "USD"、"USDT"、"BTC"
type Currency string

// ErrCurrencyMismatch 不同币种的金额不允许直接运算
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money 带币种的金额。跨币种运算返回错误，换算必须经过显式汇率。
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney 构造金额
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{amount: amount, currency: currency}
}

// NewMoneyFromString 从字符串构造金额
func NewMoneyFromString(s string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{amount: d, currency: currency}, nil
}

// ZeroMoney 零金额
func ZeroMoney(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount 返回数值部分
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency 返回币种
func (m Money) Currency() Currency { return m.currency }

// Add 同币种相加
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub 同币种相减
func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Neg 取反
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// IsZero 金额是否为零
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative 金额是否为负
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// String 形如 "1000.25 USD"
func (m Money) String() string {
	return m.amount.String() + " " + string(m.currency)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"amount":%q,"currency":%q}`, m.amount.String(), m.currency)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var raw struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw.Amount, err)
	}
	*m = Money{amount: d, currency: raw.Currency}
	return nil
}
