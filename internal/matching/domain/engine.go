// Package domain 撮合引擎：每个场所一个实例，维护各合约的订单簿与在场挂单，
// 吃单按价格时间优先逐档撮合，挂单由行情推进触发成交。
package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/tradingengine/internal/clock"
	"github.com/wyfcoding/tradingengine/internal/model"
	bookdomain "github.com/wyfcoding/tradingengine/internal/orderbook/domain"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
)

var (
	// ErrUnknownInstrument 撮合引擎没有该合约的定义
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrDuplicateOrder 同一 client order id 重复提交
	ErrDuplicateOrder = errors.New("duplicate client order id")
)

// EventSink 撮合产生的订单事件出口。引擎先将事件应用到订单聚合，
// 成功后再交给 sink，保证订单状态与事件流一致。
type EventSink func(orderdomain.OrderEvent)

type restingOrder struct {
	order       *orderdomain.Order
	triggered   bool            // 止损单已触发，按限价/市价继续处理
	trailOffset decimal.Decimal // TRAILING_STOP 的追踪距离
}

// Engine 单场所撮合引擎
type Engine struct {
	venue     model.Venue
	accountID model.AccountID
	clk       clock.Clock
	fillModel *FillModel
	sink      EventSink

	instruments map[model.InstrumentID]*model.Instrument
	books       map[model.InstrumentID]*bookdomain.OrderBook
	open        map[model.ClientOrderID]*restingOrder
	queue       map[model.InstrumentID][]model.ClientOrderID // 挂单到达序，保证扫描确定性

	venueSeq uint64
	tradeSeq uint64
}

// NewEngine 构造撮合引擎
func NewEngine(venue model.Venue, accountID model.AccountID, clk clock.Clock, fillModel *FillModel, sink EventSink) *Engine {
	return &Engine{
		venue:       venue,
		accountID:   accountID,
		clk:         clk,
		fillModel:   fillModel,
		sink:        sink,
		instruments: make(map[model.InstrumentID]*model.Instrument),
		books:       make(map[model.InstrumentID]*bookdomain.OrderBook),
		open:        make(map[model.ClientOrderID]*restingOrder),
		queue:       make(map[model.InstrumentID][]model.ClientOrderID),
	}
}

// Venue 场所代码
func (e *Engine) Venue() model.Venue { return e.venue }

// AddInstrument 注册合约并建立其订单簿
func (e *Engine) AddInstrument(inst *model.Instrument, bookType model.BookType) {
	e.instruments[inst.ID] = inst
	e.books[inst.ID] = bookdomain.NewOrderBook(inst.ID, bookType)
}

// Book 返回合约的订单簿
func (e *Engine) Book(id model.InstrumentID) (*bookdomain.OrderBook, bool) {
	b, ok := e.books[id]
	return b, ok
}

// OpenOrderCount 在场挂单数
func (e *Engine) OpenOrderCount() int { return len(e.open) }

func (e *Engine) nextVenueOrderID() model.VenueOrderID {
	e.venueSeq++
	return model.VenueOrderID(fmt.Sprintf("%s-%06d", e.venue, e.venueSeq))
}

func (e *Engine) nextTradeID() model.TradeID {
	e.tradeSeq++
	return model.TradeID(fmt.Sprintf("%s-T-%06d", e.venue, e.tradeSeq))
}

func (e *Engine) base(id model.ClientOrderID) orderdomain.OrderEventBase {
	return orderdomain.NewOrderEventBase(id, e.clk.Now())
}

// apply 先推动订单状态机，成功后发布事件
func (e *Engine) apply(ctx context.Context, o *orderdomain.Order, ev orderdomain.OrderEvent) error {
	if err := o.Apply(ctx, ev); err != nil {
		return err
	}
	if e.sink != nil {
		e.sink(ev)
	}
	return nil
}

// SubmitOrder 接收一笔 INITIALIZED 状态的订单。
// 校验失败的订单被 DENY，从未到达订单簿，也不会获得场所订单号。
func (e *Engine) SubmitOrder(ctx context.Context, o *orderdomain.Order) error {
	if _, ok := e.open[o.ClientOrderID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ClientOrderID)
	}
	inst, ok := e.instruments[o.InstrumentID]
	if !ok {
		return e.deny(ctx, o, fmt.Sprintf("unknown instrument %s", o.InstrumentID))
	}
	if err := o.Validate(inst); err != nil {
		return e.deny(ctx, o, err.Error())
	}

	submitted := &orderdomain.OrderSubmitted{OrderEventBase: e.base(o.ClientOrderID), AccountID: e.accountID}
	if err := e.apply(ctx, o, submitted); err != nil {
		return err
	}

	book := e.books[o.InstrumentID]

	// 到达订单簿前的场所级拒绝
	switch o.Type {
	case model.OrderTypeMarket:
		if len(book.SimulateFills(o.Side, o.Quantity, nil)) == 0 {
			return e.reject(ctx, o, "no liquidity for market order")
		}
	case model.OrderTypeLimit:
		if o.PostOnly && e.crosses(book, o.Side, *o.Price) {
			return e.reject(ctx, o, "post-only order would cross the book")
		}
		if o.TimeInForce == model.TimeInForceFOK && !e.canFillFully(book, o) {
			return e.reject(ctx, o, "fill-or-kill quantity not available")
		}
	}

	accepted := &orderdomain.OrderAccepted{OrderEventBase: e.base(o.ClientOrderID), VenueOrderID: e.nextVenueOrderID()}
	if err := e.apply(ctx, o, accepted); err != nil {
		return err
	}

	switch o.Type {
	case model.OrderTypeMarket:
		if err := e.matchAggressive(ctx, o, inst, nil); err != nil {
			return err
		}
		if !o.IsClosed() {
			// 流动性不足，残量撤销
			return e.apply(ctx, o, &orderdomain.OrderCanceled{OrderEventBase: e.base(o.ClientOrderID), VenueOrderID: o.VenueOrderID})
		}
		return nil
	case model.OrderTypeLimit:
		if e.crosses(book, o.Side, *o.Price) {
			if err := e.matchAggressive(ctx, o, inst, o.Price); err != nil {
				return err
			}
		}
		if o.IsClosed() {
			return nil
		}
		if o.TimeInForce == model.TimeInForceIOC {
			return e.apply(ctx, o, &orderdomain.OrderCanceled{OrderEventBase: e.base(o.ClientOrderID), VenueOrderID: o.VenueOrderID})
		}
		e.rest(o, decimal.Zero)
		return nil
	case model.OrderTypeStopMarket, model.OrderTypeStopLimit:
		e.rest(o, decimal.Zero)
		return nil
	case model.OrderTypeTrailingStop:
		e.rest(o, e.trailOffset(book, o))
		return nil
	default:
		return e.reject(ctx, o, fmt.Sprintf("unsupported order type %s", o.Type))
	}
}

func (e *Engine) deny(ctx context.Context, o *orderdomain.Order, reason string) error {
	return e.apply(ctx, o, &orderdomain.OrderDenied{OrderEventBase: e.base(o.ClientOrderID), Reason: reason})
}

func (e *Engine) reject(ctx context.Context, o *orderdomain.Order, reason string) error {
	return e.apply(ctx, o, &orderdomain.OrderRejected{OrderEventBase: e.base(o.ClientOrderID), Reason: reason})
}

func (e *Engine) rest(o *orderdomain.Order, trailOffset decimal.Decimal) {
	e.open[o.ClientOrderID] = &restingOrder{order: o, trailOffset: trailOffset}
	e.queue[o.InstrumentID] = append(e.queue[o.InstrumentID], o.ClientOrderID)
}

func (e *Engine) remove(o *orderdomain.Order) {
	delete(e.open, o.ClientOrderID)
	ids := e.queue[o.InstrumentID]
	for i, id := range ids {
		if id == o.ClientOrderID {
			e.queue[o.InstrumentID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// crosses 限价是否立即与对手侧最优价交叉
func (e *Engine) crosses(book *bookdomain.OrderBook, side model.Side, limit model.Price) bool {
	if side == model.SideBuy {
		ask, ok := book.BestAskPrice()
		return ok && !limit.LessThan(ask)
	}
	bid, ok := book.BestBidPrice()
	return ok && !limit.GreaterThan(bid)
}

func (e *Engine) canFillFully(book *bookdomain.OrderBook, o *orderdomain.Order) bool {
	fills := book.SimulateFills(o.Side, o.Quantity, o.Price)
	total := decimal.Zero
	for _, f := range fills {
		total = total.Add(f.Qty.Decimal())
	}
	return total.GreaterThanOrEqual(o.Quantity.Decimal())
}

// trailOffset 追踪止损的追踪距离：提交时触发价与市场价的距离
func (e *Engine) trailOffset(book *bookdomain.OrderBook, o *orderdomain.Order) decimal.Decimal {
	if o.TriggerPrice == nil {
		return decimal.Zero
	}
	var market model.Price
	var ok bool
	if o.Side == model.SideSell {
		market, ok = book.BestBidPrice()
	} else {
		market, ok = book.BestAskPrice()
	}
	if !ok {
		return decimal.Zero
	}
	return market.Decimal().Sub(o.TriggerPrice.Decimal()).Abs()
}

// matchAggressive 吃单撮合：逐档消耗对手流动性，taker 付费
func (e *Engine) matchAggressive(ctx context.Context, o *orderdomain.Order, inst *model.Instrument, limit *model.Price) error {
	book := e.books[o.InstrumentID]
	fills := book.SimulateFills(o.Side, o.LeavesQty(), limit)
	for _, f := range fills {
		px := f.Price
		if o.Type == model.OrderTypeMarket {
			// 市价单承受概率性滑点；限价吃单的价格已被限价约束
			px = e.fillModel.AdjustPrice(px, o.Side, inst.PriceIncrement)
		}
		if err := e.emitFill(ctx, o, inst, px, f.Qty, model.LiquidityTaker); err != nil {
			return err
		}
	}
	return nil
}

// fillResting 挂单被行情打到，maker 成交。滑点模型同样适用于
// 挂单成交，模拟排队与回报延迟造成的不利一跳。
func (e *Engine) fillResting(ctx context.Context, ro *restingOrder, inst *model.Instrument, px model.Price, qty model.Quantity) error {
	o := ro.order
	px = e.fillModel.AdjustPrice(px, o.Side, inst.PriceIncrement)
	if err := e.emitFill(ctx, o, inst, px, qty, model.LiquidityMaker); err != nil {
		return err
	}
	if o.IsClosed() {
		e.remove(o)
	}
	return nil
}

func (e *Engine) emitFill(ctx context.Context, o *orderdomain.Order, inst *model.Instrument, px model.Price, qty model.Quantity, liquidity model.LiquiditySide) error {
	return e.apply(ctx, o, &orderdomain.OrderFilled{
		OrderEventBase: e.base(o.ClientOrderID),
		VenueOrderID:   o.VenueOrderID,
		TradeID:        e.nextTradeID(),
		LastQty:        qty,
		LastPx:         px,
		Liquidity:      liquidity,
		Commission:     inst.Commission(px, qty, liquidity),
	})
}

// CancelOrder 撤销挂单。订单须已处于 PENDING_CANCEL（由执行引擎置入）。
// 场所没有该订单的记录时回 CancelRejected 而不是崩溃。
func (e *Engine) CancelOrder(ctx context.Context, o *orderdomain.Order) error {
	ro, ok := e.open[o.ClientOrderID]
	if !ok {
		return e.apply(ctx, o, &orderdomain.OrderCancelRejected{
			OrderEventBase: e.base(o.ClientOrderID),
			Reason:         "order not found at venue",
		})
	}
	if err := e.apply(ctx, o, &orderdomain.OrderCanceled{OrderEventBase: e.base(o.ClientOrderID), VenueOrderID: o.VenueOrderID}); err != nil {
		return err
	}
	e.remove(ro.order)
	return nil
}

// ModifyOrder 改单。订单须已处于 PENDING_UPDATE。改价后排队优先级重新计算。
func (e *Engine) ModifyOrder(ctx context.Context, o *orderdomain.Order, newQty model.Quantity, newPrice *model.Price) error {
	ro, ok := e.open[o.ClientOrderID]
	if !ok {
		return e.apply(ctx, o, &orderdomain.OrderModifyRejected{
			OrderEventBase: e.base(o.ClientOrderID),
			Reason:         "order not found at venue",
		})
	}
	if newQty.LessThan(o.FilledQty) {
		return e.apply(ctx, o, &orderdomain.OrderModifyRejected{
			OrderEventBase: e.base(o.ClientOrderID),
			Reason:         fmt.Sprintf("new quantity %s below filled %s", newQty, o.FilledQty),
		})
	}
	if err := e.apply(ctx, o, &orderdomain.OrderUpdated{
		OrderEventBase: e.base(o.ClientOrderID),
		Quantity:       newQty,
		Price:          newPrice,
	}); err != nil {
		return err
	}
	if newPrice != nil {
		// 改价丢失原队列位置
		e.remove(ro.order)
		e.rest(ro.order, ro.trailOffset)
	}
	return nil
}

// ExpireDayOrders 交易日结束时过期全部 DAY 挂单
func (e *Engine) ExpireDayOrders(ctx context.Context) error {
	for _, ids := range e.queue {
		for _, id := range append([]model.ClientOrderID(nil), ids...) {
			ro, ok := e.open[id]
			if !ok || ro.order.TimeInForce != model.TimeInForceDay {
				continue
			}
			if err := e.apply(ctx, ro.order, &orderdomain.OrderExpired{OrderEventBase: e.base(id)}); err != nil {
				return err
			}
			e.remove(ro.order)
		}
	}
	return nil
}

// ProcessBookDelta 将订单簿增量应用到对应的簿
func (e *Engine) ProcessBookDelta(ctx context.Context, d model.OrderBookDelta) error {
	book, ok := e.books[d.InstrumentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, d.InstrumentID)
	}
	if err := book.ApplyDelta(d); err != nil {
		return err
	}
	return e.checkResting(ctx, d.InstrumentID, nil)
}

// ProcessQuoteTick 报价推进市场：L1 簿直接重建最优档，然后检查在场挂单
func (e *Engine) ProcessQuoteTick(ctx context.Context, tick model.QuoteTick) error {
	book, ok := e.books[tick.InstrumentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, tick.InstrumentID)
	}
	if book.BookType == model.BookTypeL1 {
		book.Bids.Clear()
		book.Asks.Clear()
		book.Bids.Add(tick.BidPrice, tick.BidSize, "", tick.Sequence)
		book.Asks.Add(tick.AskPrice, tick.AskSize, "", tick.Sequence)
	}
	return e.checkResting(ctx, tick.InstrumentID, nil)
}

// ProcessTradeTick 逐笔成交推进市场，在该价位上撮合在场挂单
func (e *Engine) ProcessTradeTick(ctx context.Context, tick model.TradeTick) error {
	if _, ok := e.books[tick.InstrumentID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, tick.InstrumentID)
	}
	return e.checkResting(ctx, tick.InstrumentID, &tick)
}

// checkResting 按到达序扫描合约的在场挂单：先调整追踪止损、判定触发，
// 再決定限价挂单是否成交。trade 不为 nil 时按逐笔成交判定。
func (e *Engine) checkResting(ctx context.Context, instrumentID model.InstrumentID, trade *model.TradeTick) error {
	inst := e.instruments[instrumentID]
	book := e.books[instrumentID]
	bid, hasBid := book.BestBidPrice()
	ask, hasAsk := book.BestAskPrice()

	for _, id := range append([]model.ClientOrderID(nil), e.queue[instrumentID]...) {
		ro, ok := e.open[id]
		if !ok {
			continue
		}
		o := ro.order

		if o.Type == model.OrderTypeTrailingStop && !ro.triggered {
			e.ratchetTrailing(ro, bid, hasBid, ask, hasAsk, inst)
		}
		if o.Type.HasTrigger() && !ro.triggered {
			if e.stopTriggered(o, bid, hasBid, ask, hasAsk, trade) {
				ro.triggered = true
				if err := e.apply(ctx, o, &orderdomain.OrderTriggered{
					OrderEventBase: e.base(id),
					TriggerPrice:   *o.TriggerPrice,
				}); err != nil {
					return err
				}
				switch o.Type {
				case model.OrderTypeStopMarket, model.OrderTypeTrailingStop:
					if err := e.matchAggressive(ctx, o, inst, nil); err != nil {
						return err
					}
					if o.IsClosed() {
						e.remove(o)
					}
					continue
				}
			} else {
				continue
			}
		}

		// 限价挂单（含已触发的止损限价单）
		if o.Type == model.OrderTypeLimit || (o.Type == model.OrderTypeStopLimit && ro.triggered) {
			if err := e.tryFillLimit(ctx, ro, inst, bid, hasBid, ask, hasAsk, trade); err != nil {
				return err
			}
		}
	}
	return nil
}

// ratchetTrailing 追踪止损随有利方向棘轮移动触发价
func (e *Engine) ratchetTrailing(ro *restingOrder, bid model.Price, hasBid bool, ask model.Price, hasAsk bool, inst *model.Instrument) {
	o := ro.order
	if ro.trailOffset.IsZero() || o.TriggerPrice == nil {
		return
	}
	if o.Side == model.SideSell && hasBid {
		candidate := bid.Decimal().Sub(ro.trailOffset)
		if candidate.GreaterThan(o.TriggerPrice.Decimal()) {
			p := inst.MakePrice(candidate)
			o.TriggerPrice = &p
		}
	}
	if o.Side == model.SideBuy && hasAsk {
		candidate := ask.Decimal().Add(ro.trailOffset)
		if candidate.LessThan(o.TriggerPrice.Decimal()) {
			p := inst.MakePrice(candidate)
			o.TriggerPrice = &p
		}
	}
}

// stopTriggered 止损触发判定：买向止损在卖价升破触发价时触发，
// 卖向止损在买价跌破触发价时触发；逐笔成交按成交价判定。
func (e *Engine) stopTriggered(o *orderdomain.Order, bid model.Price, hasBid bool, ask model.Price, hasAsk bool, trade *model.TradeTick) bool {
	if o.TriggerPrice == nil {
		return false
	}
	trig := *o.TriggerPrice
	if trade != nil {
		if o.Side == model.SideBuy {
			return !trade.Price.LessThan(trig)
		}
		return !trade.Price.GreaterThan(trig)
	}
	if o.Side == model.SideBuy {
		return hasAsk && !ask.LessThan(trig)
	}
	return hasBid && !bid.GreaterThan(trig)
}

// tryFillLimit 判定挂单限价是否被打到：
// 市场穿过限价立即成交；恰好触碰限价由成交概率模型决定。
func (e *Engine) tryFillLimit(ctx context.Context, ro *restingOrder, inst *model.Instrument, bid model.Price, hasBid bool, ask model.Price, hasAsk bool, trade *model.TradeTick) error {
	o := ro.order
	limit := *o.Price
	leaves := o.LeavesQty()

	var marketPx model.Price
	var marketQty model.Quantity
	if trade != nil {
		marketPx = trade.Price
		marketQty = trade.Size
	} else if o.Side == model.SideBuy {
		if !hasAsk {
			return nil
		}
		marketPx = ask
		marketQty = leaves
	} else {
		if !hasBid {
			return nil
		}
		marketPx = bid
		marketQty = leaves
	}

	crossed := false
	if o.Side == model.SideBuy {
		crossed = marketPx.LessThan(limit)
	} else {
		crossed = marketPx.GreaterThan(limit)
	}
	atTouch := marketPx.Equal(limit)

	if !crossed && !(atTouch && e.fillModel.FillsAtTouch()) {
		return nil
	}

	qty := leaves.Min(marketQty)
	if qty.IsZero() {
		return nil
	}
	return e.fillResting(ctx, ro, inst, limit, qty)
}
