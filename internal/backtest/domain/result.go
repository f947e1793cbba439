package domain

import (
	"time"

	"github.com/shopspring/decimal"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	"github.com/wyfcoding/tradingengine/pkg/algos"
)

// BacktestResult 回测结果报告
type BacktestResult struct {
	TaskID        string                  `json:"task_id"`
	StrategyID    model.StrategyID        `json:"strategy_id"`
	Start         time.Time               `json:"start"`
	End           time.Time               `json:"end"`
	DataEvents    int                     `json:"data_events"`
	OrderEvents   int                     `json:"order_events"`
	TotalTrades   int                     `json:"total_trades"`
	WinRate       float64                 `json:"win_rate"`
	RealizedPnL   decimal.Decimal         `json:"realized_pnl"`
	FinalBalances []accountdomain.Balance `json:"final_balances"`
	EquityCurve   []decimal.Decimal       `json:"equity_curve"`
	MaxDrawdown   decimal.Decimal         `json:"max_drawdown"` // 相对历史峰值的最大回撤比例
	EventLog      []string                `json:"-"`            // 有序事件指纹，用于确定性比对
}

// ComputeMaxDrawdown 最大回撤 = max_i (peak_i - equity_i) / peak_i，
// peak_i 为 equity[0..i] 的区间最大值，用线段树做前缀最大值查询。
func ComputeMaxDrawdown(equity []decimal.Decimal) decimal.Decimal {
	if len(equity) == 0 {
		return decimal.Zero
	}
	tree := algos.NewRangeMaxSegmentTree(equity)
	maxDD := decimal.Zero
	for i := range equity {
		peak, err := tree.Query(0, i)
		if err != nil || !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(equity[i]).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}
