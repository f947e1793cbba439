package model

import "time"

// Data 所有可回放行情数据的公共接口，回测按 EventTime 单调推进
type Data interface {
	DataInstrument() InstrumentID
	EventTime() time.Time
}

// QuoteTick 最优买卖报价
type QuoteTick struct {
	InstrumentID InstrumentID `json:"instrument_id"`
	BidPrice     Price        `json:"bid_price"`
	AskPrice     Price        `json:"ask_price"`
	BidSize      Quantity     `json:"bid_size"`
	AskSize      Quantity     `json:"ask_size"`
	TsEvent      time.Time    `json:"ts_event"`
	Sequence     uint64       `json:"sequence"`
}

func (t QuoteTick) DataInstrument() InstrumentID { return t.InstrumentID }
func (t QuoteTick) EventTime() time.Time         { return t.TsEvent }

// Mid 中间价（按价格精度舍入）
func (t QuoteTick) Mid() Price {
	sum := t.BidPrice.Decimal().Add(t.AskPrice.Decimal())
	return NewPrice(sum.Div(two), t.BidPrice.Precision())
}

// ExtractPrice 按取价方式取价
func (t QuoteTick) ExtractPrice(pt PriceType) Price {
	switch pt {
	case PriceTypeBid:
		return t.BidPrice
	case PriceTypeAsk:
		return t.AskPrice
	default:
		return t.Mid()
	}
}

// TradeTick 逐笔成交
type TradeTick struct {
	InstrumentID InstrumentID  `json:"instrument_id"`
	Price        Price         `json:"price"`
	Size         Quantity      `json:"size"`
	Aggressor    AggressorSide `json:"aggressor"`
	TradeID      TradeID       `json:"trade_id"`
	TsEvent      time.Time     `json:"ts_event"`
	Sequence     uint64        `json:"sequence"`
}

func (t TradeTick) DataInstrument() InstrumentID { return t.InstrumentID }
func (t TradeTick) EventTime() time.Time         { return t.TsEvent }

// OrderBookDelta 订单簿增量
type OrderBookDelta struct {
	InstrumentID InstrumentID `json:"instrument_id"`
	Action       BookAction   `json:"action"`
	Side         Side         `json:"side"`
	Price        Price        `json:"price"`
	Size         Quantity     `json:"size"`
	OrderID      string       `json:"order_id,omitempty"` // 仅 L3
	Sequence     uint64       `json:"sequence"`
	TsEvent      time.Time    `json:"ts_event"`
}

func (d OrderBookDelta) DataInstrument() InstrumentID { return d.InstrumentID }
func (d OrderBookDelta) EventTime() time.Time         { return d.TsEvent }
