// Package domain 持仓聚合。一个持仓聚合同一合约、同一策略的全部成交，
// 维护带符号的净数量、加权开仓均价与已实现盈亏。
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/tradingengine/internal/model"
)

// ErrDuplicateFill 同一 trade id 的成交被重复应用
var ErrDuplicateFill = errors.New("duplicate fill trade id")

// Fill 应用到持仓的一笔成交
type Fill struct {
	TradeID model.TradeID
	Side    model.Side
	Qty     model.Quantity
	Price   model.Price
	TsEvent time.Time
}

// Position 持仓聚合根
type Position struct {
	ID           model.PositionID   `json:"id"`
	InstrumentID model.InstrumentID `json:"instrument_id"`
	StrategyID   model.StrategyID   `json:"strategy_id"`
	AccountID    model.AccountID    `json:"account_id"`

	NetQty        decimal.Decimal `json:"net_qty"` // 带符号：多为正，空为负
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	AvgClosePrice decimal.Decimal `json:"avg_close_price"`
	RealizedPnL   model.Money     `json:"realized_pnl"`
	PeakQty       decimal.Decimal `json:"peak_qty"` // 生命周期内最大绝对数量
	OpenedAt      time.Time       `json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`

	instrument *model.Instrument
	closedQty  decimal.Decimal // 已平数量，用于平仓均价
	tradeIDs   map[model.TradeID]struct{}
	events     []PositionEvent
}

// NewPosition 由首笔成交创建持仓
func NewPosition(id model.PositionID, strategyID model.StrategyID, accountID model.AccountID, inst *model.Instrument) *Position {
	return &Position{
		ID:           id,
		InstrumentID: inst.ID,
		StrategyID:   strategyID,
		AccountID:    accountID,
		RealizedPnL:  model.ZeroMoney(inst.SettlementCurrency),
		instrument:   inst,
		tradeIDs:     make(map[model.TradeID]struct{}),
	}
}

// IsFlat 净持仓为零
func (p *Position) IsFlat() bool { return p.NetQty.IsZero() }

// IsLong 净多头
func (p *Position) IsLong() bool { return p.NetQty.IsPositive() }

// IsShort 净空头
func (p *Position) IsShort() bool { return p.NetQty.IsNegative() }

// Side 当前方向，平仓状态返回空
func (p *Position) Side() model.Side {
	switch {
	case p.IsLong():
		return model.SideBuy
	case p.IsShort():
		return model.SideSell
	default:
		return ""
	}
}

// Events 持仓产生的事件日志
func (p *Position) Events() []PositionEvent { return p.events }

func (p *Position) base(ts time.Time) PositionEventBase {
	return PositionEventBase{
		ID:           p.ID,
		InstrumentID: p.InstrumentID,
		StrategyID:   p.StrategyID,
		TsEvent:      ts,
	}
}

// ApplyFill 将一笔成交并入持仓。
// 同向加仓重算加权均价；反向成交先平后开：平掉的部分按开仓均价结算
// 已实现盈亏，穿越零点的剩余部分以成交价开立反向持仓（均价重置）。
func (p *Position) ApplyFill(f Fill) error {
	if _, ok := p.tradeIDs[f.TradeID]; ok {
		return fmt.Errorf("%w: position %s trade %s", ErrDuplicateFill, p.ID, f.TradeID)
	}
	signed := f.Qty.Decimal()
	if f.Side == model.SideSell {
		signed = signed.Neg()
	}

	wasFlat := p.IsFlat()
	sameDirection := wasFlat || p.NetQty.Sign() == signed.Sign()

	if sameDirection {
		if wasFlat {
			p.AvgEntryPrice = f.Price.Decimal()
			p.OpenedAt = f.TsEvent
			p.ClosedAt = nil
			p.events = append(p.events, &PositionOpened{
				PositionEventBase: p.base(f.TsEvent),
				Side:              f.Side,
				Quantity:          f.Qty.String(),
				EntryPrice:        f.Price.String(),
			})
		} else {
			// 加权均价 = (旧量×旧均价 + 新量×成交价) / 总量
			oldAbs := p.NetQty.Abs()
			newAbs := oldAbs.Add(f.Qty.Decimal())
			p.AvgEntryPrice = oldAbs.Mul(p.AvgEntryPrice).
				Add(f.Qty.Decimal().Mul(f.Price.Decimal())).
				Div(newAbs)
		}
		p.NetQty = p.NetQty.Add(signed)
	} else {
		closing := decimal.Min(p.NetQty.Abs(), f.Qty.Decimal())
		if err := p.bookRealized(f.Price, closing); err != nil {
			return err
		}
		p.recordClose(f.Price, closing)

		remainder := f.Qty.Decimal().Sub(closing)
		oldSide := p.Side()
		p.NetQty = p.NetQty.Add(signed)

		switch {
		case p.NetQty.IsZero():
			now := f.TsEvent
			p.ClosedAt = &now
			p.events = append(p.events, &PositionClosed{
				PositionEventBase: p.base(f.TsEvent),
				RealizedPnL:       p.RealizedPnL.Amount().String(),
			})
		case remainder.IsPositive():
			// 反手：剩余量以成交价开立新方向
			p.AvgEntryPrice = f.Price.Decimal()
			p.OpenedAt = f.TsEvent
			p.ClosedAt = nil
			p.events = append(p.events, &PositionFlipped{
				PositionEventBase: p.base(f.TsEvent),
				OldSide:           oldSide,
				NewSide:           p.Side(),
				FlipQty:           remainder.String(),
				FlipPrice:         f.Price.String(),
				RealizedPnL:       p.RealizedPnL.Amount().String(),
			})
		default:
			p.events = append(p.events, &PositionChanged{
				PositionEventBase: p.base(f.TsEvent),
				NetQuantity:       p.NetQty.String(),
				AvgEntry:          p.AvgEntryPrice.String(),
				RealizedPnL:       p.RealizedPnL.Amount().String(),
			})
		}
	}

	if p.NetQty.Abs().GreaterThan(p.PeakQty) {
		p.PeakQty = p.NetQty.Abs()
	}
	p.tradeIDs[f.TradeID] = struct{}{}
	return nil
}

// bookRealized 平仓段的已实现盈亏 = (出场价 − 开仓均价) × 平仓量 × 方向符号
func (p *Position) bookRealized(exitPrice model.Price, closedQty decimal.Decimal) error {
	pnl := exitPrice.Decimal().Sub(p.AvgEntryPrice).Mul(closedQty)
	if p.IsShort() {
		pnl = pnl.Neg()
	}
	if p.instrument != nil && !p.instrument.Multiplier.IsZero() {
		pnl = pnl.Mul(p.instrument.Multiplier)
	}
	sum, err := p.RealizedPnL.Add(model.NewMoney(pnl, p.RealizedPnL.Currency()))
	if err != nil {
		return err
	}
	p.RealizedPnL = sum
	return nil
}

func (p *Position) recordClose(price model.Price, qty decimal.Decimal) {
	newClosed := p.closedQty.Add(qty)
	if newClosed.IsPositive() {
		p.AvgClosePrice = p.closedQty.Mul(p.AvgClosePrice).
			Add(qty.Mul(price.Decimal())).
			Div(newClosed)
	}
	p.closedQty = newClosed
}

// UnrealizedPnL 按标记价计算未实现盈亏，纯函数无副作用：
// (mark − avg_entry) × net_qty × multiplier
func (p *Position) UnrealizedPnL(mark model.Price) model.Money {
	v := mark.Decimal().Sub(p.AvgEntryPrice).Mul(p.NetQty)
	if p.instrument != nil && !p.instrument.Multiplier.IsZero() {
		v = v.Mul(p.instrument.Multiplier)
	}
	return model.NewMoney(v, p.RealizedPnL.Currency())
}

// NotionalValue 按标记价的名义价值
func (p *Position) NotionalValue(mark model.Price) model.Money {
	v := mark.Decimal().Mul(p.NetQty.Abs())
	if p.instrument != nil && !p.instrument.Multiplier.IsZero() {
		v = v.Mul(p.instrument.Multiplier)
	}
	return model.NewMoney(v, p.RealizedPnL.Currency())
}
