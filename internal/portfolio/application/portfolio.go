// Package application 组合视图。基于执行缓存的只读投影：净敞口、浮动盈亏、
// 保证金合计。自身不产生事件，订阅总线只为失效缓存与更新标记价。
package application

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	"github.com/wyfcoding/tradingengine/internal/execution/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	positiondomain "github.com/wyfcoding/tradingengine/internal/position/domain"
)

// ErrNoMarkPrice 尚未收到该合约的行情，无法估值
var ErrNoMarkPrice = errors.New("no mark price for instrument")

// Portfolio 组合投影
type Portfolio struct {
	cache *domain.Cache

	marks      map[model.InstrumentID]model.Price
	unrealized map[model.InstrumentID]model.Money // 失效式缓存
}

// NewPortfolio 构造组合视图并接入总线
func NewPortfolio(cache *domain.Cache, bus *domain.MessageBus) *Portfolio {
	p := &Portfolio{
		cache:      cache,
		marks:      make(map[model.InstrumentID]model.Price),
		unrealized: make(map[model.InstrumentID]model.Money),
	}
	if bus != nil {
		bus.Subscribe(domain.TopicData, p.onData)
		bus.Subscribe(domain.TopicPositionEvents, p.onPositionEvent)
	}
	return p
}

func (p *Portfolio) onData(msg any) {
	if tick, ok := msg.(model.QuoteTick); ok {
		p.UpdateQuote(tick)
	}
}

func (p *Portfolio) onPositionEvent(msg any) {
	if ev, ok := msg.(positiondomain.PositionEvent); ok {
		if pos, found := p.cache.Position(ev.PositionID()); found {
			delete(p.unrealized, pos.InstrumentID)
		}
	}
}

// UpdateQuote 更新标记价（买卖中间价）并失效该合约的估值缓存
func (p *Portfolio) UpdateQuote(tick model.QuoteTick) {
	p.marks[tick.InstrumentID] = tick.Mid()
	delete(p.unrealized, tick.InstrumentID)
}

// MarkPrice 当前标记价
func (p *Portfolio) MarkPrice(id model.InstrumentID) (model.Price, bool) {
	px, ok := p.marks[id]
	return px, ok
}

// NetPosition 合约净持仓量，多头为正空头为负
func (p *Portfolio) NetPosition(id model.InstrumentID) decimal.Decimal {
	net := decimal.Zero
	for _, pos := range p.cache.PositionsForInstrument(id) {
		net = net.Add(pos.NetQty)
	}
	return net
}

// IsFlat 合约净持仓为零
func (p *Portfolio) IsFlat(id model.InstrumentID) bool {
	return p.NetPosition(id).IsZero()
}

// IsCompletelyFlat 全组合无持仓
func (p *Portfolio) IsCompletelyFlat() bool {
	for _, pos := range p.cache.Positions() {
		if !pos.IsFlat() {
			return false
		}
	}
	return true
}

// NetExposure 合约净敞口：|净持仓| × 标记价 × 乘数，以结算币种计
func (p *Portfolio) NetExposure(id model.InstrumentID) (model.Money, error) {
	inst, ok := p.cache.Instrument(id)
	if !ok {
		return model.Money{}, fmt.Errorf("unknown instrument %s", id)
	}
	mark, ok := p.marks[id]
	if !ok {
		return model.Money{}, fmt.Errorf("%w: %s", ErrNoMarkPrice, id)
	}
	v := mark.Decimal().Mul(p.NetPosition(id).Abs())
	if !inst.Multiplier.IsZero() {
		v = v.Mul(inst.Multiplier)
	}
	return model.NewMoney(v, inst.SettlementCurrency), nil
}

// UnrealizedPnL 合约浮动盈亏，失效前重复查询走缓存
func (p *Portfolio) UnrealizedPnL(id model.InstrumentID) (model.Money, error) {
	if cached, ok := p.unrealized[id]; ok {
		return cached, nil
	}
	inst, ok := p.cache.Instrument(id)
	if !ok {
		return model.Money{}, fmt.Errorf("unknown instrument %s", id)
	}
	mark, ok := p.marks[id]
	if !ok {
		return model.Money{}, fmt.Errorf("%w: %s", ErrNoMarkPrice, id)
	}

	total := model.ZeroMoney(inst.SettlementCurrency)
	for _, pos := range p.cache.PositionsForInstrument(id) {
		sum, err := total.Add(pos.UnrealizedPnL(mark))
		if err != nil {
			return model.Money{}, err
		}
		total = sum
	}
	p.unrealized[id] = total
	return total, nil
}

// RealizedPnL 合约累计已实现盈亏
func (p *Portfolio) RealizedPnL(id model.InstrumentID) (model.Money, error) {
	inst, ok := p.cache.Instrument(id)
	if !ok {
		return model.Money{}, fmt.Errorf("unknown instrument %s", id)
	}
	total := model.ZeroMoney(inst.SettlementCurrency)
	for _, pos := range p.cache.PositionsForInstrument(id) {
		sum, err := total.Add(pos.RealizedPnL)
		if err != nil {
			return model.Money{}, err
		}
		total = sum
	}
	return total, nil
}

// MarginsInit 全部账户初始保证金合计（按币种）
func (p *Portfolio) MarginsInit() map[model.Currency]decimal.Decimal {
	return p.sumMargins(func(a *accountdomain.Account) map[model.Currency]decimal.Decimal {
		return a.MarginsInit()
	})
}

// MarginsMaint 全部账户维持保证金合计（按币种）
func (p *Portfolio) MarginsMaint() map[model.Currency]decimal.Decimal {
	return p.sumMargins(func(a *accountdomain.Account) map[model.Currency]decimal.Decimal {
		return a.MarginsMaint()
	})
}

func (p *Portfolio) sumMargins(f func(*accountdomain.Account) map[model.Currency]decimal.Decimal) map[model.Currency]decimal.Decimal {
	out := make(map[model.Currency]decimal.Decimal)
	for _, a := range p.cache.Accounts() {
		for c, v := range f(a) {
			out[c] = out[c].Add(v)
		}
	}
	return out
}
