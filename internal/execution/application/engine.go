// Package application 执行引擎应用层。接收交易命令、转发到场所客户端、
// 消费订单事件流并推导持仓与账户状态。
//
// 缓存写入先于总线发布：订阅者回调里读到的缓存永远不落后于它
// 正在处理的事件。
package application

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shopspring/decimal"
	algorithm "github.com/wyfcoding/pkg/algos/structures"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	"github.com/wyfcoding/tradingengine/internal/clock"
	"github.com/wyfcoding/tradingengine/internal/execution/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
	positiondomain "github.com/wyfcoding/tradingengine/internal/position/domain"
	"github.com/wyfcoding/tradingengine/pkg/logger"
	"github.com/wyfcoding/tradingengine/pkg/metrics"
)

// VenueClient 场所客户端。回测时由模拟场所实现，实盘时由交易所适配器实现。
// 调用只表示命令已发出，结果通过订单事件流异步回报。
type VenueClient interface {
	SubmitOrder(ctx context.Context, o *orderdomain.Order) error
	CancelOrder(ctx context.Context, o *orderdomain.Order) error
	ModifyOrder(ctx context.Context, o *orderdomain.Order, newQty model.Quantity, newPrice *model.Price) error
}

// ExecutionEngine 执行引擎。单写者：命令入口与事件入口都必须在同一个
// goroutine 上调用（回测天然满足；实盘通过 Enqueue/Run 的环形缓冲收敛）。
type ExecutionEngine struct {
	accountID model.AccountID
	oms       model.OmsType

	clk   clock.Clock
	cache *domain.Cache
	bus   *domain.MessageBus
	m     *metrics.Metrics

	venues   map[model.Venue]VenueClient
	inflight map[model.ClientOrderID]string // client order id -> 在途命令类型

	ring   *algorithm.MpscRingBuffer[inbound]
	stopCh chan struct{}
}

// inbound 实盘事件入口的环形缓冲元素
type inbound struct {
	ev orderdomain.OrderEvent
}

// ringCapacity 实盘事件缓冲容量，2 的幂
const ringCapacity = 1 << 16

// NewExecutionEngine 构造执行引擎
func NewExecutionEngine(
	accountID model.AccountID,
	oms model.OmsType,
	clk clock.Clock,
	cache *domain.Cache,
	bus *domain.MessageBus,
	m *metrics.Metrics,
) *ExecutionEngine {
	rb, _ := algorithm.NewMpscRingBuffer[inbound](ringCapacity)
	return &ExecutionEngine{
		accountID: accountID,
		oms:       oms,
		clk:       clk,
		cache:     cache,
		bus:       bus,
		m:         m,
		venues:    make(map[model.Venue]VenueClient),
		inflight:  make(map[model.ClientOrderID]string),
		ring:      rb,
		stopCh:    make(chan struct{}),
	}
}

// RegisterVenue 注册场所客户端
func (e *ExecutionEngine) RegisterVenue(venue model.Venue, client VenueClient) {
	e.venues[venue] = client
}

// Cache 执行缓存
func (e *ExecutionEngine) Cache() *domain.Cache { return e.cache }

// InFlight 指定订单是否有在途命令
func (e *ExecutionEngine) InFlight(id model.ClientOrderID) bool {
	_, ok := e.inflight[id]
	return ok
}

func (e *ExecutionEngine) venueFor(id model.InstrumentID) (VenueClient, error) {
	client, ok := e.venues[id.Venue]
	if ok {
		return client, nil
	}
	return nil, fmt.Errorf("no venue client registered for %s", id.Venue)
}

// Execute 处理交易命令。同一 client order id 同时只允许一条命令在途，
// 重复命令本地拒绝，不转发到场所。
func (e *ExecutionEngine) Execute(ctx context.Context, cmd domain.Command) error {
	if prev, ok := e.inflight[cmd.OrderID()]; ok {
		logger.Warn(ctx, "command rejected, another command in flight",
			"client_order_id", cmd.OrderID(), "command", cmd.CommandType(), "in_flight", prev)
		return fmt.Errorf("%w: %s has %s in flight", domain.ErrDuplicateCommand, cmd.OrderID(), prev)
	}

	switch c := cmd.(type) {
	case domain.SubmitOrder:
		return e.submit(ctx, c)
	case domain.CancelOrder:
		return e.cancel(ctx, c)
	case domain.ModifyOrder:
		return e.modify(ctx, c)
	default:
		return fmt.Errorf("unknown command type %s", cmd.CommandType())
	}
}

func (e *ExecutionEngine) submit(ctx context.Context, cmd domain.SubmitOrder) error {
	o := cmd.Order
	if _, exists := e.cache.Order(o.ClientOrderID); exists {
		logger.Warn(ctx, "submit rejected, client order id already exists", "client_order_id", o.ClientOrderID)
		return fmt.Errorf("%w: %s already submitted", domain.ErrDuplicateCommand, o.ClientOrderID)
	}
	client, err := e.venueFor(o.InstrumentID)
	if err != nil {
		return err
	}
	if o.AccountID == "" {
		o.AccountID = e.accountID
	}

	if o.ReduceOnly {
		if reason := e.reduceOnlyViolation(o); reason != "" {
			return e.denySubmit(ctx, o, reason)
		}
	}

	e.cache.AddOrder(o)
	e.inflight[o.ClientOrderID] = cmd.CommandType()
	if e.m != nil {
		e.m.OrdersTotal.Inc()
	}
	logger.Info(ctx, "submitting order",
		"client_order_id", o.ClientOrderID, "instrument", o.InstrumentID,
		"side", o.Side, "type", o.Type, "qty", o.Quantity)

	if err := client.SubmitOrder(ctx, o); err != nil {
		delete(e.inflight, o.ClientOrderID)
		return fmt.Errorf("submit order %s: %w", o.ClientOrderID, err)
	}
	return nil
}

// reduceOnlyViolation 只减仓校验：方向必须与合约净敞口相反，数量不得超过净敞口绝对值。
// 返回空串表示通过。
func (e *ExecutionEngine) reduceOnlyViolation(o *orderdomain.Order) string {
	net := decimal.Zero
	for _, p := range e.cache.PositionsForInstrument(o.InstrumentID) {
		net = net.Add(p.NetQty)
	}
	qty := o.Quantity.Decimal()
	switch o.Side {
	case model.SideBuy:
		if net.IsNegative() && qty.LessThanOrEqual(net.Neg()) {
			return ""
		}
	case model.SideSell:
		if net.IsPositive() && qty.LessThanOrEqual(net) {
			return ""
		}
	}
	return fmt.Sprintf("reduce-only order would open or increase exposure, net %s", net)
}

// denySubmit 本地否决订单，不到达场所
func (e *ExecutionEngine) denySubmit(ctx context.Context, o *orderdomain.Order, reason string) error {
	denied := &orderdomain.OrderDenied{
		OrderEventBase: orderdomain.NewOrderEventBase(o.ClientOrderID, e.clk.Now()),
		Reason:         reason,
	}
	if err := o.Apply(ctx, denied); err != nil {
		return err
	}
	e.cache.AddOrder(o)
	if e.m != nil {
		e.m.OrdersDenied.Inc()
	}
	logger.Warn(ctx, "order denied", "client_order_id", o.ClientOrderID, "reason", reason)
	e.publishOrderEvent(denied)
	return nil
}

func (e *ExecutionEngine) cancel(ctx context.Context, cmd domain.CancelOrder) error {
	o, ok := e.cache.Order(cmd.ClientOrderID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownOrder, cmd.ClientOrderID)
	}
	if !o.IsActive() {
		return fmt.Errorf("%w: %s is %s", domain.ErrOrderNotActive, o.ClientOrderID, o.Status)
	}
	client, err := e.venueFor(o.InstrumentID)
	if err != nil {
		return err
	}

	ev := &orderdomain.OrderPendingCancel{OrderEventBase: orderdomain.NewOrderEventBase(o.ClientOrderID, e.clk.Now())}
	if err := o.Apply(ctx, ev); err != nil {
		return err
	}
	e.inflight[o.ClientOrderID] = cmd.CommandType()
	e.publishOrderEvent(ev)

	logger.Info(ctx, "canceling order", "client_order_id", o.ClientOrderID)
	if err := client.CancelOrder(ctx, o); err != nil {
		return fmt.Errorf("cancel order %s: %w", o.ClientOrderID, err)
	}
	return nil
}

func (e *ExecutionEngine) modify(ctx context.Context, cmd domain.ModifyOrder) error {
	o, ok := e.cache.Order(cmd.ClientOrderID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownOrder, cmd.ClientOrderID)
	}
	if !o.IsActive() {
		return fmt.Errorf("%w: %s is %s", domain.ErrOrderNotActive, o.ClientOrderID, o.Status)
	}
	client, err := e.venueFor(o.InstrumentID)
	if err != nil {
		return err
	}

	ev := &orderdomain.OrderPendingUpdate{OrderEventBase: orderdomain.NewOrderEventBase(o.ClientOrderID, e.clk.Now())}
	if err := o.Apply(ctx, ev); err != nil {
		return err
	}
	e.inflight[o.ClientOrderID] = cmd.CommandType()
	e.publishOrderEvent(ev)

	logger.Info(ctx, "modifying order",
		"client_order_id", o.ClientOrderID, "new_qty", cmd.NewQuantity, "new_price", cmd.NewPrice)
	if err := client.ModifyOrder(ctx, o, cmd.NewQuantity, cmd.NewPrice); err != nil {
		return fmt.Errorf("modify order %s: %w", o.ClientOrderID, err)
	}
	return nil
}

// HandleOrderEvent 订单事件入口，作为模拟场所或实盘适配器的事件出口。
// 事件到达时已被应用到订单聚合；这里只做在途命令清理、成交的持仓与
// 账户推导，然后按缓存先写后发的顺序发布到总线。
func (e *ExecutionEngine) HandleOrderEvent(ev orderdomain.OrderEvent) {
	ctx := context.Background()
	e.clearInFlight(ev)

	switch v := ev.(type) {
	case *orderdomain.OrderDenied:
		if e.m != nil {
			e.m.OrdersDenied.Inc()
		}
		logger.Warn(ctx, "order denied", "client_order_id", v.ClientOrderID, "reason", v.Reason)
	case *orderdomain.OrderRejected:
		logger.Warn(ctx, "order rejected", "client_order_id", v.ClientOrderID, "reason", v.Reason)
	case *orderdomain.OrderAccepted:
		if e.m != nil {
			e.m.OrdersActive.Inc()
		}
	case *orderdomain.OrderFilled:
		if e.m != nil {
			e.m.FillsTotal.Inc()
		}
		e.applyFill(ctx, v)
	}

	if e.m != nil {
		if o, ok := e.cache.Order(ev.OrderID()); ok && o.IsClosed() && o.Status != orderdomain.StatusDenied && o.Status != orderdomain.StatusRejected {
			e.m.OrdersActive.Dec()
		}
	}
	e.publishOrderEvent(ev)
}

// clearInFlight 场所回报确认或否决了在途命令
func (e *ExecutionEngine) clearInFlight(ev orderdomain.OrderEvent) {
	switch ev.(type) {
	case *orderdomain.OrderAccepted, *orderdomain.OrderRejected, *orderdomain.OrderDenied,
		*orderdomain.OrderCanceled, *orderdomain.OrderCancelRejected,
		*orderdomain.OrderUpdated, *orderdomain.OrderModifyRejected,
		*orderdomain.OrderExpired:
		delete(e.inflight, ev.OrderID())
	}
}

func (e *ExecutionEngine) publishOrderEvent(ev orderdomain.OrderEvent) {
	if e.m != nil {
		e.m.EventsDispatched.Inc()
	}
	e.bus.Publish(domain.TopicOrderEvents, ev)
}

// positionIDFor 持仓路由。NETTING 模式同一 instrument+strategy 合并到一个
// 净持仓；HEDGING 模式每笔订单独立开仓。
func (e *ExecutionEngine) positionIDFor(o *orderdomain.Order) model.PositionID {
	if e.oms == model.OmsHedging {
		return model.PositionID(fmt.Sprintf("P-%s-%s", o.InstrumentID, o.ClientOrderID))
	}
	return model.PositionID(fmt.Sprintf("P-%s-%s", o.InstrumentID, o.StrategyID))
}

// applyFill 成交推导：先更新持仓，再重算账户余额快照，最后发布衍生事件。
func (e *ExecutionEngine) applyFill(ctx context.Context, ev *orderdomain.OrderFilled) {
	o, ok := e.cache.Order(ev.ClientOrderID)
	if !ok {
		logger.Error(ctx, "fill for unknown order", "client_order_id", ev.ClientOrderID, "trade_id", ev.TradeID)
		return
	}
	inst, ok := e.cache.Instrument(o.InstrumentID)
	if !ok {
		logger.Error(ctx, "fill for unknown instrument", "instrument", o.InstrumentID)
		return
	}

	posEvents, err := e.updatePosition(ctx, o, inst, ev)
	if err != nil {
		// 持仓层拒绝（重复成交）时账户同样不记账
		logger.Error(ctx, "position fill failed",
			"client_order_id", ev.ClientOrderID, "trade_id", ev.TradeID, "error", err)
		return
	}
	state := e.updateAccount(ctx, o, inst, ev)

	for _, pe := range posEvents {
		if e.m != nil {
			e.m.EventsDispatched.Inc()
		}
		e.bus.Publish(domain.TopicPositionEvents, pe)
	}
	if state != nil {
		if e.m != nil {
			e.m.EventsDispatched.Inc()
		}
		e.bus.Publish(domain.TopicAccountEvents, state)
	}
}

func (e *ExecutionEngine) updatePosition(_ context.Context, o *orderdomain.Order, inst *model.Instrument, ev *orderdomain.OrderFilled) ([]positiondomain.PositionEvent, error) {
	id := e.positionIDFor(o)
	p, ok := e.cache.Position(id)
	if !ok {
		p = positiondomain.NewPosition(id, o.StrategyID, o.AccountID, inst)
		e.cache.AddPosition(p)
	}
	wasFlat := p.IsFlat()
	before := len(p.Events())

	err := p.ApplyFill(positiondomain.Fill{
		TradeID: ev.TradeID,
		Side:    o.Side,
		Qty:     ev.LastQty,
		Price:   ev.LastPx,
		TsEvent: ev.OccurredAt(),
	})
	if err != nil {
		return nil, err
	}
	if e.m != nil {
		if wasFlat && !p.IsFlat() {
			e.m.PositionsActive.Inc()
		} else if !wasFlat && p.IsFlat() {
			e.m.PositionsActive.Dec()
		}
	}
	return p.Events()[before:], nil
}

// updateAccount 按成交重算余额：买入扣减名义金额，卖出收回名义金额，
// 双向扣减手续费（负手续费即返佣，等价于入账）。
func (e *ExecutionEngine) updateAccount(ctx context.Context, o *orderdomain.Order, inst *model.Instrument, ev *orderdomain.OrderFilled) *accountdomain.AccountState {
	acct, ok := e.cache.Account(o.AccountID)
	if !ok {
		logger.Warn(ctx, "fill for unknown account", "account_id", o.AccountID)
		return nil
	}

	notional := inst.Notional(ev.LastPx, ev.LastQty)
	currency := notional.Currency()
	free := acct.FreeBalance(currency)
	if o.Side == model.SideBuy {
		free = free.Sub(notional.Amount())
	} else {
		free = free.Add(notional.Amount())
	}
	free = free.Sub(ev.Commission.Amount())

	balances := acct.Balances()
	found := false
	for i := range balances {
		if balances[i].Currency == currency {
			balances[i].Free = free
			balances[i].Total = balances[i].Locked.Add(free)
			found = true
		}
	}
	if !found {
		balances = append(balances, accountdomain.Balance{Currency: currency, Total: free, Free: free})
	}

	// 快照是全量替换语义，引擎推算的快照必须带上原有保证金
	state := &accountdomain.AccountState{
		AccountID: acct.ID,
		Balances:  balances,
		Margins:   acct.Margins(),
		Reported:  false,
		TsEvent:   ev.OccurredAt(),
	}
	if err := acct.ApplyState(state); err != nil {
		logger.Error(ctx, "account state update failed", "account_id", acct.ID, "error", err)
		return nil
	}
	return state
}

// Enqueue 实盘事件入口：多个场所适配器 goroutine 写入，Run 单线程消费。
// 缓冲满时返回 false，调用方自行决定降级策略。
func (e *ExecutionEngine) Enqueue(ev orderdomain.OrderEvent) bool {
	return e.ring.Offer(&inbound{ev: ev})
}

// Run 启动事件消费循环，将环形缓冲内的事件收敛到单写者线程
func (e *ExecutionEngine) Run(ctx context.Context) {
	go func() {
		idle := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			default:
				item := e.ring.Poll()
				if item != nil {
					idle = 0
					start := time.Now()
					e.HandleOrderEvent(item.ev)
					if e.m != nil {
						e.m.EventProcessDuration.Observe(time.Since(start).Seconds())
					}
					continue
				}
				// 空转时让出 CPU
				idle++
				if idle > 64 {
					runtime.Gosched()
				}
			}
		}
	}()
}

// Stop 停止事件消费循环
func (e *ExecutionEngine) Stop() {
	close(e.stopCh)
}
