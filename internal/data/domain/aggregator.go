// Package domain K 线聚合。纯窗口函数：把逐笔/报价流累积进 OHLCV 桶，
// 达到时间/笔数/成交量阈值后出 bar 并重置。
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/tradingengine/internal/model"
)

// BarHandler 聚合产物出口
type BarHandler func(model.Bar)

// BarAggregator 单个 BarType 的聚合器
type BarAggregator struct {
	barType model.BarType
	handler BarHandler

	open    model.Price
	high    model.Price
	low     model.Price
	close   model.Price
	volume  decimal.Decimal
	sizePre int32
	ticks   int
	started bool

	windowEnd time.Time // 仅时间型规格使用
}

// NewBarAggregator 构造聚合器
func NewBarAggregator(barType model.BarType, handler BarHandler) *BarAggregator {
	return &BarAggregator{barType: barType, handler: handler}
}

// BarType 聚合目标类型
func (a *BarAggregator) BarType() model.BarType { return a.barType }

// OnQuoteTick 按规格取价喂入报价
func (a *BarAggregator) OnQuoteTick(tick model.QuoteTick) {
	size := tick.BidSize.Decimal().Add(tick.AskSize.Decimal()).Div(two)
	a.update(tick.ExtractPrice(a.barType.Spec.PriceType), size, tick.BidSize.Precision(), tick.TsEvent)
}

// OnTradeTick 喂入逐笔成交
func (a *BarAggregator) OnTradeTick(tick model.TradeTick) {
	a.update(tick.Price, tick.Size.Decimal(), tick.Size.Precision(), tick.TsEvent)
}

var two = decimal.NewFromInt(2)

func (a *BarAggregator) update(px model.Price, size decimal.Decimal, sizePrecision int32, ts time.Time) {
	spec := a.barType.Spec

	// 时间型窗口：先把落在已关闭窗口之后的 tick 触发出 bar
	if interval := spec.Interval(); interval > 0 {
		if a.started && !ts.Before(a.windowEnd) {
			a.emit(a.windowEnd)
		}
		if !a.started {
			a.windowEnd = ts.Truncate(interval).Add(interval)
		}
	}

	if !a.started {
		a.open = px
		a.high = px
		a.low = px
		a.started = true
	}
	if px.GreaterThan(a.high) {
		a.high = px
	}
	if px.LessThan(a.low) {
		a.low = px
	}
	a.close = px
	a.volume = a.volume.Add(size)
	a.sizePre = sizePrecision
	a.ticks++

	switch spec.Aggregation {
	case model.BarAggregationTick:
		if a.ticks >= spec.Step {
			a.emit(ts)
		}
	case model.BarAggregationVolume:
		if a.volume.GreaterThanOrEqual(decimal.NewFromInt(int64(spec.Step))) {
			a.emit(ts)
		}
	}
}

func (a *BarAggregator) emit(ts time.Time) {
	if !a.started {
		return
	}
	bar := model.Bar{
		Type:    a.barType,
		Open:    a.open,
		High:    a.high,
		Low:     a.low,
		Close:   a.close,
		Volume:  model.NewQuantity(a.volume, a.sizePre),
		TsEvent: ts,
	}
	a.reset()
	if a.handler != nil {
		a.handler(bar)
	}
}

// Flush 把未满窗口的残桶强制出 bar，回测数据耗尽时调用
func (a *BarAggregator) Flush(ts time.Time) {
	a.emit(ts)
}

func (a *BarAggregator) reset() {
	a.started = false
	a.volume = decimal.Zero
	a.ticks = 0
	a.windowEnd = time.Time{}
}
