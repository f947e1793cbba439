// Package model 交易引擎共享的值对象：价格/数量/货币、标识符、行情数据类型
package model

// Side 买卖方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign 返回方向系数：买为 +1，卖为 -1
func (s Side) Sign() int64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Opposite 返回相反方向
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket       OrderType = "MARKET"
	OrderTypeLimit        OrderType = "LIMIT"
	OrderTypeStopMarket   OrderType = "STOP_MARKET"
	OrderTypeStopLimit    OrderType = "STOP_LIMIT"
	OrderTypeTrailingStop OrderType = "TRAILING_STOP"
)

// HasTrigger 该类型是否携带触发价
func (t OrderType) HasTrigger() bool {
	switch t {
	case OrderTypeStopMarket, OrderTypeStopLimit, OrderTypeTrailingStop:
		return true
	}
	return false
}

// TimeInForce 订单有效期
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good Till Cancel
	TimeInForceIOC TimeInForce = "IOC" // Immediate Or Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill Or Kill
	TimeInForceDay TimeInForce = "DAY" // 当日有效
)

// LiquiditySide 流动性方向（maker 挂单成交 / taker 吃单成交）
type LiquiditySide string

const (
	LiquidityMaker LiquiditySide = "MAKER"
	LiquidityTaker LiquiditySide = "TAKER"
)

// OmsType 订单管理模式
type OmsType string

const (
	// OmsNetting 同一 instrument+strategy 只有一个净持仓
	OmsNetting OmsType = "NETTING"
	// OmsHedging 同一 instrument 允许多个并行持仓
	OmsHedging OmsType = "HEDGING"
)

// BookAction 订单簿增量动作
type BookAction string

const (
	BookActionAdd    BookAction = "ADD"
	BookActionUpdate BookAction = "UPDATE"
	BookActionDelete BookAction = "DELETE"
	BookActionClear  BookAction = "CLEAR"
)

// BookType 订单簿聚合级别
type BookType string

const (
	BookTypeL1 BookType = "L1_MBP" // 仅最优档
	BookTypeL2 BookType = "L2_MBP" // 按价格档位聚合
	BookTypeL3 BookType = "L3_MBO" // 逐笔委托
)

// AggressorSide 成交的主动方
type AggressorSide string

const (
	AggressorBuyer  AggressorSide = "BUYER"
	AggressorSeller AggressorSide = "SELLER"
)

// PriceType K 线取价方式
type PriceType string

const (
	PriceTypeBid  PriceType = "BID"
	PriceTypeAsk  PriceType = "ASK"
	PriceTypeMid  PriceType = "MID"
	PriceTypeLast PriceType = "LAST"
)

// BarAggregation K 线聚合单位
type BarAggregation string

const (
	BarAggregationSecond BarAggregation = "SECOND"
	BarAggregationMinute BarAggregation = "MINUTE"
	BarAggregationHour   BarAggregation = "HOUR"
	BarAggregationDay    BarAggregation = "DAY"
	BarAggregationTick   BarAggregation = "TICK"
	BarAggregationVolume BarAggregation = "VOLUME"
)
