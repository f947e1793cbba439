// Package sim 模拟场所适配器：把撮合引擎包装成标准的场所适配器，
// 回测与实盘引擎通过同一个契约访问真实交易所或这个模拟器。
package sim

import (
	"context"
	"fmt"
	"sync"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	matchingdomain "github.com/wyfcoding/tradingengine/internal/matching/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
	"github.com/wyfcoding/tradingengine/internal/venue"
	"github.com/wyfcoding/tradingengine/pkg/logger"
)

// AccountStateProvider 查询账户快照的回调，由组合根注入
type AccountStateProvider func() *accountdomain.AccountState

// AccountStateSink 账户快照出口
type AccountStateSink func(*accountdomain.AccountState)

type subscription struct {
	kind string
	id   model.InstrumentID
}

// Adapter 模拟场所
type Adapter struct {
	engine *matchingdomain.Engine

	mu        sync.Mutex
	connected bool
	subs      []subscription

	stateProvider AccountStateProvider
	stateSink     AccountStateSink
}

// NewAdapter 构造模拟适配器
func NewAdapter(engine *matchingdomain.Engine, stateProvider AccountStateProvider, stateSink AccountStateSink) *Adapter {
	return &Adapter{engine: engine, stateProvider: stateProvider, stateSink: stateSink}
}

// Name 场所代码
func (a *Adapter) Name() model.Venue { return a.engine.Venue() }

// Connect 幂等连接。重连时重发全部活跃订阅。
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}
	a.connected = true
	for _, s := range a.subs {
		logger.Info(ctx, "resubscribing", "venue", a.Name(), "kind", s.kind, "instrument", s.id)
	}
	return nil
}

// Disconnect 幂等断开
func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

// IsConnected 连接状态
func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *Adapter) requireConnected() error {
	if !a.IsConnected() {
		return venue.ErrNotConnected
	}
	return nil
}

// SubmitOrder 提交到撮合引擎
func (a *Adapter) SubmitOrder(ctx context.Context, o *orderdomain.Order) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	return a.engine.SubmitOrder(ctx, o)
}

// CancelOrder 撤单
func (a *Adapter) CancelOrder(ctx context.Context, o *orderdomain.Order) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	return a.engine.CancelOrder(ctx, o)
}

// ModifyOrder 改单
func (a *Adapter) ModifyOrder(ctx context.Context, o *orderdomain.Order, newQty model.Quantity, newPrice *model.Price) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	return a.engine.ModifyOrder(ctx, o, newQty, newPrice)
}

// RequestAccountState 回报账户快照（Reported 标记为场所回报）
func (a *Adapter) RequestAccountState(_ context.Context) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	if a.stateProvider == nil || a.stateSink == nil {
		return fmt.Errorf("sim venue %s: no account state provider wired", a.Name())
	}
	state := a.stateProvider()
	state.Reported = true
	a.stateSink(state)
	return nil
}

func (a *Adapter) subscribe(kind string, id model.InstrumentID) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.subs {
		if s.kind == kind && s.id == id {
			return nil
		}
	}
	a.subs = append(a.subs, subscription{kind: kind, id: id})
	return nil
}

// SubscribeQuotes 订阅报价流
func (a *Adapter) SubscribeQuotes(_ context.Context, id model.InstrumentID) error {
	return a.subscribe("quotes", id)
}

// SubscribeTrades 订阅逐笔流
func (a *Adapter) SubscribeTrades(_ context.Context, id model.InstrumentID) error {
	return a.subscribe("trades", id)
}

// SubscribeBookDeltas 订阅订单簿增量流
func (a *Adapter) SubscribeBookDeltas(_ context.Context, id model.InstrumentID) error {
	return a.subscribe("book_deltas", id)
}

// Subscriptions 当前活跃订阅数
func (a *Adapter) Subscriptions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

// OnQuoteTick 行情驱动撮合
func (a *Adapter) OnQuoteTick(ctx context.Context, tick model.QuoteTick) error {
	return a.engine.ProcessQuoteTick(ctx, tick)
}

// OnTradeTick 逐笔驱动撮合
func (a *Adapter) OnTradeTick(ctx context.Context, tick model.TradeTick) error {
	return a.engine.ProcessTradeTick(ctx, tick)
}

// OnBookDelta 订单簿增量驱动撮合
func (a *Adapter) OnBookDelta(ctx context.Context, d model.OrderBookDelta) error {
	return a.engine.ProcessBookDelta(ctx, d)
}

// ExpireDayOrders 交易日收盘过期 DAY 订单
func (a *Adapter) ExpireDayOrders(ctx context.Context) error {
	return a.engine.ExpireDayOrders(ctx)
}
