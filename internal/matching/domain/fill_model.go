package domain

import (
	"math/rand"

	"github.com/wyfcoding/tradingengine/internal/model"
)

// FillModel 概率成交模型，仅回测使用。
// probFillAtLimit 控制恰好排在限价触碰价位的挂单在对手成交发生时是否成交
// （排在队尾不保证成交）；probSlippage 控制成交价被不利移动一个最小变动价位
// 的概率。随机源用固定种子初始化，同一种子下序列完全可复现。
type FillModel struct {
	probFillAtLimit float64
	probSlippage    float64
	rng             *rand.Rand
}

// NewFillModel 构造成交模型。概率取值范围 [0, 1]，越界的值被钳制。
func NewFillModel(probFillAtLimit, probSlippage float64, seed int64) *FillModel {
	return &FillModel{
		probFillAtLimit: clamp01(probFillAtLimit),
		probSlippage:    clamp01(probSlippage),
		rng:             rand.New(rand.NewSource(seed)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FillsAtTouch 限价单在触碰价位是否成交
func (m *FillModel) FillsAtTouch() bool {
	if m.probFillAtLimit >= 1 {
		return true
	}
	if m.probFillAtLimit <= 0 {
		return false
	}
	return m.rng.Float64() < m.probFillAtLimit
}

// Slips 本次成交是否发生一个价位的不利滑点
func (m *FillModel) Slips() bool {
	if m.probSlippage >= 1 {
		return true
	}
	if m.probSlippage <= 0 {
		return false
	}
	return m.rng.Float64() < m.probSlippage
}

// AdjustPrice 按模型对成交价施加滑点：买单向上偏移一个最小变动价位，卖单向下
func (m *FillModel) AdjustPrice(price model.Price, side model.Side, increment model.Price) model.Price {
	if !m.Slips() {
		return price
	}
	var adjusted model.Price
	var err error
	if side == model.SideBuy {
		adjusted, err = price.Add(increment)
	} else {
		adjusted, err = price.Sub(increment)
	}
	if err != nil {
		return price
	}
	return adjusted
}
