package model

import (
	"fmt"
	"strings"
)

// Venue 交易场所代码，如 "SIM"、"IDEALPRO"、"BINANCE"
type Venue string

// Symbol 交易对/合约代码
type Symbol string

// InstrumentID 合约唯一标识，字符串形式为 "SYMBOL.VENUE"
type InstrumentID struct {
	Symbol Symbol `json:"symbol"`
	Venue  Venue  `json:"venue"`
}

// NewInstrumentID 构造合约标识
func NewInstrumentID(symbol Symbol, venue Venue) InstrumentID {
	return InstrumentID{Symbol: symbol, Venue: venue}
}

// ParseInstrumentID 解析 "SYMBOL.VENUE" 形式的标识。
// symbol 内部允许包含 '.'，最后一个 '.' 之后的部分视为 venue。
func ParseInstrumentID(s string) (InstrumentID, error) {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return InstrumentID{}, fmt.Errorf("invalid instrument id: %q", s)
	}
	return InstrumentID{Symbol: Symbol(s[:idx]), Venue: Venue(s[idx+1:])}, nil
}

func (id InstrumentID) String() string {
	return string(id.Symbol) + "." + string(id.Venue)
}

// IsZero 是否为空标识
func (id InstrumentID) IsZero() bool {
	return id.Symbol == "" && id.Venue == ""
}

// ClientOrderID 引擎侧生成的订单标识，订单全生命周期不变
type ClientOrderID string

// VenueOrderID 交易所侧回报的订单标识
type VenueOrderID string

// AccountID 账户标识
type AccountID string

// PositionID 持仓标识
type PositionID string

// StrategyID 策略标识
type StrategyID string

// TradeID 成交标识
type TradeID string

// TraderID 交易员标识
type TraderID string
