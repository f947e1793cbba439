package model

import (
	"github.com/shopspring/decimal"
)

// Instrument 合约静态定义：精度、最小变动、费率与结算币种。
// 引擎内所有价格/数量的精度都以此为准。
type Instrument struct {
	ID                 InstrumentID    `json:"id"`
	BaseCurrency       Currency        `json:"base_currency"`
	QuoteCurrency      Currency        `json:"quote_currency"`
	SettlementCurrency Currency        `json:"settlement_currency"`
	PricePrecision     int32           `json:"price_precision"`
	SizePrecision      int32           `json:"size_precision"`
	PriceIncrement     Price           `json:"price_increment"`
	SizeIncrement      Quantity        `json:"size_increment"`
	Multiplier         decimal.Decimal `json:"multiplier"`
	MinQuantity        Quantity        `json:"min_quantity"`
	MaxQuantity        Quantity        `json:"max_quantity"`
	MakerFeeRate       decimal.Decimal `json:"maker_fee_rate"` // 负值表示返佣
	TakerFeeRate       decimal.Decimal `json:"taker_fee_rate"`
	IsInverse          bool            `json:"is_inverse"`
}

// MakePrice 按合约价格精度构造价格
func (i *Instrument) MakePrice(d decimal.Decimal) Price {
	return NewPrice(d, i.PricePrecision)
}

// MakeQuantity 按合约数量精度构造数量
func (i *Instrument) MakeQuantity(d decimal.Decimal) Quantity {
	return NewQuantity(d, i.SizePrecision)
}

// Notional 名义价值 = price * quantity * multiplier，以计价货币计
func (i *Instrument) Notional(price Price, qty Quantity) Money {
	v := price.Decimal().Mul(qty.Decimal())
	if !i.Multiplier.IsZero() {
		v = v.Mul(i.Multiplier)
	}
	return NewMoney(v, i.QuoteCurrency)
}

// FeeRate 按流动性方向取费率
func (i *Instrument) FeeRate(side LiquiditySide) decimal.Decimal {
	if side == LiquidityMaker {
		return i.MakerFeeRate
	}
	return i.TakerFeeRate
}

// Commission 计算一笔成交的手续费，负值表示返佣，记在结算货币上
func (i *Instrument) Commission(price Price, qty Quantity, side LiquiditySide) Money {
	notional := i.Notional(price, qty)
	return NewMoney(notional.Amount().Mul(i.FeeRate(side)), i.SettlementCurrency)
}
