// Package domain 回测。编排器把数据目录、撮合引擎、执行引擎与组合视图
// 接成一个单线程事件环，按事件时间逐条推进测试时钟。
package domain

import (
	"errors"
	"time"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
)

// 任务状态
const (
	TaskPending   = "PENDING"
	TaskRunning   = "RUNNING"
	TaskCompleted = "COMPLETED"
	TaskFailed    = "FAILED"
)

// BacktestTask 一次回测任务
type BacktestTask struct {
	TaskID     string
	StrategyID model.StrategyID
	Config     BacktestConfig
	Status     string
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// FillModelConfig 撮合概率模型参数。RandomSeed 固定时整个回测可复现。
type FillModelConfig struct {
	ProbFillAtLimit float64 `json:"prob_fill_at_limit"`
	ProbSlippage    float64 `json:"prob_slippage"`
	RandomSeed      int64   `json:"random_seed"`
}

// VenueConfig 单个模拟场所的配置
type VenueConfig struct {
	Name             model.Venue             `json:"name"`
	BookType         model.BookType          `json:"book_type"`
	Instruments      []*model.Instrument     `json:"instruments"`
	StartingBalances []accountdomain.Balance `json:"starting_balances"`
}

// BacktestConfig 回测配置
type BacktestConfig struct {
	RunID         string           `json:"run_id"`
	StrategyID    model.StrategyID `json:"strategy_id"`
	AccountID     model.AccountID  `json:"account_id"`
	OmsType       model.OmsType    `json:"oms_type"`
	BaseCurrency  model.Currency   `json:"base_currency"` // 权益曲线的报告币种
	Venues        []VenueConfig    `json:"venues"`
	FillModel     FillModelConfig  `json:"fill_model"`
	Start         time.Time        `json:"start"`
	End           time.Time        `json:"end"`
	BypassLogging bool             `json:"bypass_logging"`
}

// Validate 配置校验
func (c BacktestConfig) Validate() error {
	if len(c.Venues) == 0 {
		return errors.New("backtest config: no venues")
	}
	for _, v := range c.Venues {
		if len(v.Instruments) == 0 {
			return errors.New("backtest config: venue " + string(v.Name) + " has no instruments")
		}
	}
	if c.OmsType == "" {
		return errors.New("backtest config: oms type required")
	}
	if c.BaseCurrency == "" {
		return errors.New("backtest config: base currency required")
	}
	return nil
}

// InstrumentIDs 全部场所的合约标识
func (c BacktestConfig) InstrumentIDs() []model.InstrumentID {
	var out []model.InstrumentID
	for _, v := range c.Venues {
		for _, inst := range v.Instruments {
			out = append(out, inst.ID)
		}
	}
	return out
}
