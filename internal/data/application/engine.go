// Package application 数据引擎。策略按 (数据类型, 合约[, K线规格]) 订阅，
// 同一键的订阅者按订阅先后顺序同步收到每一条更新。
package application

import (
	"context"
	"time"

	"github.com/wyfcoding/tradingengine/internal/model"
	"github.com/wyfcoding/tradingengine/pkg/logger"
	"github.com/wyfcoding/tradingengine/pkg/metrics"

	datadomain "github.com/wyfcoding/tradingengine/internal/data/domain"
)

// QuoteHandler 报价回调
type QuoteHandler func(model.QuoteTick)

// TradeHandler 逐笔成交回调
type TradeHandler func(model.TradeTick)

// DeltaHandler 订单簿增量回调
type DeltaHandler func(model.OrderBookDelta)

// BarHandler K 线回调
type BarHandler func(model.Bar)

// DataHandler 自定义数据回调
type DataHandler func(model.Data)

// DataEngine 行情分发引擎
type DataEngine struct {
	m *metrics.Metrics

	quoteSubs map[model.InstrumentID][]QuoteHandler
	tradeSubs map[model.InstrumentID][]TradeHandler
	deltaSubs map[model.InstrumentID][]DeltaHandler
	barSubs   map[string][]BarHandler // key: BarType.String()
	dataSubs  []DataHandler

	aggregators map[string]*datadomain.BarAggregator
	aggOrder    []string // 聚合器按创建顺序触发
}

// NewDataEngine 构造数据引擎
func NewDataEngine(m *metrics.Metrics) *DataEngine {
	return &DataEngine{
		m:           m,
		quoteSubs:   make(map[model.InstrumentID][]QuoteHandler),
		tradeSubs:   make(map[model.InstrumentID][]TradeHandler),
		deltaSubs:   make(map[model.InstrumentID][]DeltaHandler),
		barSubs:     make(map[string][]BarHandler),
		aggregators: make(map[string]*datadomain.BarAggregator),
	}
}

// SubscribeQuotes 订阅最优报价
func (e *DataEngine) SubscribeQuotes(id model.InstrumentID, h QuoteHandler) {
	e.quoteSubs[id] = append(e.quoteSubs[id], h)
}

// SubscribeTrades 订阅逐笔成交
func (e *DataEngine) SubscribeTrades(id model.InstrumentID, h TradeHandler) {
	e.tradeSubs[id] = append(e.tradeSubs[id], h)
}

// SubscribeBookDeltas 订阅订单簿增量
func (e *DataEngine) SubscribeBookDeltas(id model.InstrumentID, h DeltaHandler) {
	e.deltaSubs[id] = append(e.deltaSubs[id], h)
}

// SubscribeBars 订阅 K 线。首个订阅者触发创建对应聚合器，
// 由报价/逐笔流实时聚合。
func (e *DataEngine) SubscribeBars(barType model.BarType, h BarHandler) {
	key := barType.String()
	e.barSubs[key] = append(e.barSubs[key], h)
	if _, ok := e.aggregators[key]; !ok {
		e.aggregators[key] = datadomain.NewBarAggregator(barType, func(bar model.Bar) {
			e.publishBar(key, bar)
		})
		e.aggOrder = append(e.aggOrder, key)
	}
}

// SubscribeData 订阅全部数据（自定义数据通道）
func (e *DataEngine) SubscribeData(h DataHandler) {
	e.dataSubs = append(e.dataSubs, h)
}

// OnQuoteTick 报价入口
func (e *DataEngine) OnQuoteTick(tick model.QuoteTick) {
	for _, key := range e.aggOrder {
		agg := e.aggregators[key]
		if agg.BarType().InstrumentID == tick.InstrumentID && agg.BarType().Spec.PriceType != model.PriceTypeLast {
			agg.OnQuoteTick(tick)
		}
	}
	for _, h := range e.quoteSubs[tick.InstrumentID] {
		e.dispatched()
		h(tick)
	}
	e.fanoutData(tick)
}

// OnTradeTick 逐笔成交入口
func (e *DataEngine) OnTradeTick(tick model.TradeTick) {
	for _, key := range e.aggOrder {
		agg := e.aggregators[key]
		if agg.BarType().InstrumentID == tick.InstrumentID && agg.BarType().Spec.PriceType == model.PriceTypeLast {
			agg.OnTradeTick(tick)
		}
	}
	for _, h := range e.tradeSubs[tick.InstrumentID] {
		e.dispatched()
		h(tick)
	}
	e.fanoutData(tick)
}

// OnBookDelta 订单簿增量入口
func (e *DataEngine) OnBookDelta(d model.OrderBookDelta) {
	for _, h := range e.deltaSubs[d.InstrumentID] {
		e.dispatched()
		h(d)
	}
	e.fanoutData(d)
}

// OnData 通用入口，按具体类型分发
func (e *DataEngine) OnData(d model.Data) {
	switch v := d.(type) {
	case model.QuoteTick:
		e.OnQuoteTick(v)
	case model.TradeTick:
		e.OnTradeTick(v)
	case model.OrderBookDelta:
		e.OnBookDelta(v)
	case model.Bar:
		e.publishBar(v.Type.String(), v)
	default:
		logger.Warn(context.Background(), "unhandled data type dropped", "instrument", d.DataInstrument())
	}
}

// FlushBars 回测收尾：把所有未满窗口的残桶出 bar
func (e *DataEngine) FlushBars(ts time.Time) {
	for _, key := range e.aggOrder {
		e.aggregators[key].Flush(ts)
	}
}

func (e *DataEngine) publishBar(key string, bar model.Bar) {
	for _, h := range e.barSubs[key] {
		e.dispatched()
		h(bar)
	}
	e.fanoutData(bar)
}

func (e *DataEngine) fanoutData(d model.Data) {
	for _, h := range e.dataSubs {
		e.dispatched()
		h(d)
	}
}

func (e *DataEngine) dispatched() {
	if e.m != nil {
		e.m.EventsDispatched.Inc()
	}
}
