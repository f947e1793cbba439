package domain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	catalogdomain "github.com/wyfcoding/tradingengine/internal/catalog/domain"
	"github.com/wyfcoding/tradingengine/internal/clock"
	dataapp "github.com/wyfcoding/tradingengine/internal/data/application"
	executionapp "github.com/wyfcoding/tradingengine/internal/execution/application"
	executiondomain "github.com/wyfcoding/tradingengine/internal/execution/domain"
	matchingdomain "github.com/wyfcoding/tradingengine/internal/matching/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
	portfolioapp "github.com/wyfcoding/tradingengine/internal/portfolio/application"
	"github.com/wyfcoding/tradingengine/internal/venue/sim"
	"github.com/wyfcoding/tradingengine/pkg/logger"
	"github.com/wyfcoding/tradingengine/pkg/metrics"
)

// BacktestEngine 回测编排器。单线程：每条数据完整走完
// 数据→策略→命令→撮合→成交→持仓/账户 的闭环后才放入下一条。
type BacktestEngine struct {
	cfg      BacktestConfig
	catalog  catalogdomain.Catalog
	strategy Strategy
	m        *metrics.Metrics

	clk       *clock.TestClock
	cache     *executiondomain.Cache
	bus       *executiondomain.MessageBus
	exec      *executionapp.ExecutionEngine
	data      *dataapp.DataEngine
	portfolio *portfolioapp.Portfolio
	adapters  map[model.Venue]*sim.Adapter

	equity      []decimal.Decimal
	eventLog    []string
	orderEvents int
	fills       int
}

// NewBacktestEngine 按配置组装整个引擎栈
func NewBacktestEngine(cfg BacktestConfig, catalog catalogdomain.Catalog, strategy Strategy, m *metrics.Metrics) (*BacktestEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := clock.NewTestClock(cfg.Start)
	cache := executiondomain.NewCache()
	bus := executiondomain.NewMessageBus()
	exec := executionapp.NewExecutionEngine(cfg.AccountID, cfg.OmsType, clk, cache, bus, m)

	b := &BacktestEngine{
		cfg:       cfg,
		catalog:   catalog,
		strategy:  strategy,
		m:         m,
		clk:       clk,
		cache:     cache,
		bus:       bus,
		exec:      exec,
		data:      dataapp.NewDataEngine(m),
		portfolio: portfolioapp.NewPortfolio(cache, bus),
		adapters:  make(map[model.Venue]*sim.Adapter),
	}

	if err := b.seedAccount(); err != nil {
		return nil, err
	}
	for _, vc := range cfg.Venues {
		b.buildVenue(vc)
	}

	bus.Subscribe(executiondomain.TopicOrderEvents, b.onOrderEvent)
	return b, nil
}

// seedAccount 用全部场所的期初余额初始化账户
func (b *BacktestEngine) seedAccount() error {
	acct := accountdomain.NewAccount(b.cfg.AccountID)
	var balances []accountdomain.Balance
	for _, vc := range b.cfg.Venues {
		balances = append(balances, vc.StartingBalances...)
	}
	if len(balances) > 0 {
		state := &accountdomain.AccountState{
			AccountID: b.cfg.AccountID,
			Balances:  balances,
			Reported:  true,
			TsEvent:   b.cfg.Start,
		}
		if err := acct.ApplyState(state); err != nil {
			return fmt.Errorf("seed account: %w", err)
		}
	}
	b.cache.AddAccount(acct)
	return nil
}

func (b *BacktestEngine) buildVenue(vc VenueConfig) {
	fm := matchingdomain.NewFillModel(b.cfg.FillModel.ProbFillAtLimit, b.cfg.FillModel.ProbSlippage, b.cfg.FillModel.RandomSeed)
	engine := matchingdomain.NewEngine(vc.Name, b.cfg.AccountID, b.clk, fm, b.exec.HandleOrderEvent)
	for _, inst := range vc.Instruments {
		engine.AddInstrument(inst, vc.BookType)
		b.cache.AddInstrument(inst)
	}

	provider := func() *accountdomain.AccountState {
		acct, _ := b.cache.Account(b.cfg.AccountID)
		return &accountdomain.AccountState{
			AccountID: b.cfg.AccountID,
			Balances:  acct.Balances(),
			TsEvent:   b.clk.Now(),
		}
	}
	sink := func(s *accountdomain.AccountState) {
		if acct, ok := b.cache.Account(s.AccountID); ok {
			if err := acct.ApplyState(s); err != nil {
				logger.Warn(context.Background(), "reported account state dropped", "error", err)
				return
			}
		}
		b.bus.Publish(executiondomain.TopicAccountEvents, s)
	}

	adapter := sim.NewAdapter(engine, provider, sink)
	b.adapters[vc.Name] = adapter
	b.exec.RegisterVenue(vc.Name, adapter)
}

// onOrderEvent 记录事件指纹并转发给策略
func (b *BacktestEngine) onOrderEvent(msg any) {
	ev, ok := msg.(orderdomain.OrderEvent)
	if !ok {
		return
	}
	b.orderEvents++
	if f, isFill := ev.(*orderdomain.OrderFilled); isFill {
		b.fills++
		b.eventLog = append(b.eventLog, fmt.Sprintf("%s:%s:%s:%s@%s",
			ev.EventType(), ev.OrderID(), f.TradeID, f.LastQty, f.LastPx))
	} else {
		b.eventLog = append(b.eventLog, fmt.Sprintf("%s:%s", ev.EventType(), ev.OrderID()))
	}
	if b.strategy != nil {
		b.strategy.OnOrderEvent(ev)
	}
}

// Run 执行回测：装载数据，按事件时间推进，数据耗尽后汇总结果
func (b *BacktestEngine) Run(ctx context.Context) (*BacktestResult, error) {
	if b.m != nil {
		b.m.BacktestRunsTotal.Inc()
	}
	tc := &TradingContext{
		Clock:     b.clk,
		Cache:     b.cache,
		Portfolio: b.portfolio,
		Data:      b.data,
		Execute:   b.exec.Execute,
	}
	for _, a := range b.adapters {
		if err := a.Connect(ctx); err != nil {
			return nil, err
		}
	}
	if b.strategy != nil {
		if err := b.strategy.OnStart(tc); err != nil {
			return nil, fmt.Errorf("strategy %s start: %w", b.strategy.Name(), err)
		}
	}

	records, err := b.catalog.QueryAll(ctx, b.cfg.InstrumentIDs(), b.cfg.Start, b.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("load backtest data: %w", err)
	}
	logger.Info(ctx, "backtest data loaded", "run_id", b.cfg.RunID, "records", len(records))

	for _, d := range records {
		b.clk.Advance(d.EventTime())
		b.routeToVenue(ctx, d)
		b.data.OnData(d)
		b.bus.Publish(executiondomain.TopicData, d)
		b.sampleEquity()
	}

	b.data.FlushBars(b.clk.Now())
	if b.strategy != nil {
		b.strategy.OnStop(tc)
	}
	return b.buildResult(len(records)), nil
}

// routeToVenue 行情先驱动撮合，再分发给策略
func (b *BacktestEngine) routeToVenue(ctx context.Context, d model.Data) {
	adapter, ok := b.adapters[d.DataInstrument().Venue]
	if !ok {
		return
	}
	var err error
	switch v := d.(type) {
	case model.QuoteTick:
		err = adapter.OnQuoteTick(ctx, v)
	case model.TradeTick:
		err = adapter.OnTradeTick(ctx, v)
	case model.OrderBookDelta:
		err = adapter.OnBookDelta(ctx, v)
	}
	if err != nil {
		logger.Warn(ctx, "venue rejected data", "instrument", d.DataInstrument(), "error", err)
	}
}

// sampleEquity 权益 = 报告币种总余额 + 全部合约的浮动盈亏
func (b *BacktestEngine) sampleEquity() {
	acct, ok := b.cache.Account(b.cfg.AccountID)
	if !ok {
		return
	}
	equity := acct.TotalBalance(b.cfg.BaseCurrency)
	for _, id := range b.cfg.InstrumentIDs() {
		pnl, err := b.portfolio.UnrealizedPnL(id)
		if err != nil {
			continue
		}
		if pnl.Currency() == b.cfg.BaseCurrency {
			equity = equity.Add(pnl.Amount())
		}
	}
	b.equity = append(b.equity, equity)
}

func (b *BacktestEngine) buildResult(dataEvents int) *BacktestResult {
	acct, _ := b.cache.Account(b.cfg.AccountID)

	realized := decimal.Zero
	wins, closed := 0, 0
	for _, p := range b.cache.Positions() {
		if p.RealizedPnL.Currency() == b.cfg.BaseCurrency {
			realized = realized.Add(p.RealizedPnL.Amount())
		}
		if p.ClosedAt != nil {
			closed++
			if p.RealizedPnL.Amount().IsPositive() {
				wins++
			}
		}
	}
	winRate := 0.0
	if closed > 0 {
		winRate = float64(wins) / float64(closed)
	}

	result := &BacktestResult{
		TaskID:      b.cfg.RunID,
		StrategyID:  b.cfg.StrategyID,
		Start:       b.cfg.Start,
		End:         b.cfg.End,
		DataEvents:  dataEvents,
		OrderEvents: b.orderEvents,
		TotalTrades: b.fills,
		WinRate:     winRate,
		RealizedPnL: realized,
		EquityCurve: b.equity,
		MaxDrawdown: ComputeMaxDrawdown(b.equity),
		EventLog:    b.eventLog,
	}
	if acct != nil {
		result.FinalBalances = acct.Balances()
	}
	return result
}

// Cache 执行缓存（测试与报表用）
func (b *BacktestEngine) Cache() *executiondomain.Cache { return b.cache }

// Portfolio 组合视图
func (b *BacktestEngine) Portfolio() *portfolioapp.Portfolio { return b.portfolio }
