package domain

import (
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/tradingengine/internal/model"
)

// PnLCalculator 盈亏计算领域服务。全部方法为纯函数。
type PnLCalculator struct{}

// NewPnLCalculator 创建 PnL 计算器实例
func NewPnLCalculator() *PnLCalculator {
	return &PnLCalculator{}
}

// Unrealized 未实现盈亏 = (标记价 − 开仓均价) × 数量 × 方向系数
func (c *PnLCalculator) Unrealized(side model.Side, qty, avgEntry, mark decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return decimal.Zero
	}
	pnl := mark.Sub(avgEntry).Mul(qty)
	if side == model.SideSell {
		pnl = pnl.Neg()
	}
	return pnl
}

// Realized 平仓段已实现盈亏 = (平仓价 − 开仓均价) × 平仓量 × 方向系数
func (c *PnLCalculator) Realized(side model.Side, closeQty, avgEntry, closePrice decimal.Decimal) decimal.Decimal {
	pnl := closePrice.Sub(avgEntry).Mul(closeQty)
	if side == model.SideSell {
		pnl = pnl.Neg()
	}
	return pnl
}

// WeightedAverage 加权均价 = (旧量×旧均价 + 新量×新价) / 总量
func (c *PnLCalculator) WeightedAverage(currentQty, currentAvg, newQty, newPrice decimal.Decimal) decimal.Decimal {
	totalQty := currentQty.Add(newQty)
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return currentQty.Mul(currentAvg).Add(newQty.Mul(newPrice)).Div(totalQty)
}
