// Package emacross 双均线交叉策略：快线上穿慢线做多，下穿平仓。
// 作为引擎自带的示例策略，订单号用本地序号生成，保证回测可复现。
package emacross

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	backtestdomain "github.com/wyfcoding/tradingengine/internal/backtest/domain"
	executiondomain "github.com/wyfcoding/tradingengine/internal/execution/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
	"github.com/wyfcoding/tradingengine/pkg/logger"
)

// Config 策略参数
type Config struct {
	StrategyID model.StrategyID
	BarType    model.BarType
	FastPeriod int
	SlowPeriod int
	TradeSize  model.Quantity
}

// ema 增量指数移动平均。前 period 根 bar 用累计均值预热。
type ema struct {
	period int
	alpha  decimal.Decimal
	value  decimal.Decimal
	count  int
}

func newEMA(period int) *ema {
	return &ema{
		period: period,
		alpha:  decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period) + 1)),
	}
}

func (e *ema) update(px decimal.Decimal) {
	e.count++
	if e.count == 1 {
		e.value = px
		return
	}
	if e.count <= e.period {
		n := decimal.NewFromInt(int64(e.count))
		e.value = e.value.Mul(n.Sub(decimal.NewFromInt(1))).Add(px).Div(n)
		return
	}
	e.value = px.Sub(e.value).Mul(e.alpha).Add(e.value)
}

func (e *ema) ready() bool { return e.count >= e.period }

// Strategy 双均线策略
type Strategy struct {
	cfg  Config
	tc   *backtestdomain.TradingContext
	fast *ema
	slow *ema

	wasAbove bool
	hasCross bool
	orderSeq int
}

// New 创建策略实例
func New(cfg Config) *Strategy {
	return &Strategy{cfg: cfg, fast: newEMA(cfg.FastPeriod), slow: newEMA(cfg.SlowPeriod)}
}

// Name 策略名
func (s *Strategy) Name() string { return fmt.Sprintf("ema-cross-%d-%d", s.cfg.FastPeriod, s.cfg.SlowPeriod) }

// OnStart 订阅 K 线
func (s *Strategy) OnStart(tc *backtestdomain.TradingContext) error {
	if s.cfg.FastPeriod <= 0 || s.cfg.SlowPeriod <= s.cfg.FastPeriod {
		return fmt.Errorf("ema cross: need 0 < fast < slow, got fast=%d slow=%d", s.cfg.FastPeriod, s.cfg.SlowPeriod)
	}
	s.tc = tc
	tc.Data.SubscribeBars(s.cfg.BarType, s.OnBar)
	return nil
}

// OnBar 用收盘价推进均线并在交叉时换仓
func (s *Strategy) OnBar(bar model.Bar) {
	px := bar.Close.Decimal()
	s.fast.update(px)
	s.slow.update(px)
	if !s.slow.ready() {
		return
	}

	above := s.fast.value.GreaterThan(s.slow.value)
	defer func() {
		s.wasAbove = above
		s.hasCross = true
	}()
	if !s.hasCross || above == s.wasAbove {
		return
	}

	id := s.cfg.BarType.InstrumentID
	net := s.tc.Portfolio.NetPosition(id)
	if above && !net.IsPositive() {
		// 金叉：平掉空头敞口并建多
		s.order(model.SideBuy, s.cfg.TradeSize.Decimal().Sub(net))
	}
	if !above && net.IsPositive() {
		// 死叉：平多
		s.order(model.SideSell, net)
	}
}

func (s *Strategy) order(side model.Side, qty decimal.Decimal) {
	if !qty.IsPositive() {
		return
	}
	s.orderSeq++
	o := orderdomain.NewOrder(
		model.ClientOrderID(fmt.Sprintf("%s-O-%d", s.cfg.StrategyID, s.orderSeq)),
		s.cfg.BarType.InstrumentID,
		s.cfg.StrategyID,
		side, model.OrderTypeMarket,
		model.NewQuantity(qty, s.cfg.TradeSize.Precision()), nil, nil,
		model.TimeInForceIOC, s.tc.Clock.Now(),
	)
	if err := s.tc.Execute(context.Background(), executiondomain.SubmitOrder{Order: o}); err != nil {
		logger.Warn(context.Background(), "ema cross order rejected",
			"order_id", o.ClientOrderID, "side", side, "error", err)
	}
}

// OnOrderEvent 订单事件回调
func (s *Strategy) OnOrderEvent(ev orderdomain.OrderEvent) {
	if f, ok := ev.(*orderdomain.OrderFilled); ok {
		logger.Debug(context.Background(), "ema cross filled",
			"order_id", f.OrderID(), "qty", f.LastQty, "px", f.LastPx)
	}
}

// OnStop 停止回调
func (s *Strategy) OnStop(*backtestdomain.TradingContext) {}
