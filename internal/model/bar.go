package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// BarSpec K 线规格：步长 + 聚合单位 + 取价方式
type BarSpec struct {
	Step        int            `json:"step"`
	Aggregation BarAggregation `json:"aggregation"`
	PriceType   PriceType      `json:"price_type"`
}

// Interval 时间型规格对应的时长，非时间型返回 0
func (s BarSpec) Interval() time.Duration {
	switch s.Aggregation {
	case BarAggregationSecond:
		return time.Duration(s.Step) * time.Second
	case BarAggregationMinute:
		return time.Duration(s.Step) * time.Minute
	case BarAggregationHour:
		return time.Duration(s.Step) * time.Hour
	case BarAggregationDay:
		return time.Duration(s.Step) * 24 * time.Hour
	}
	return 0
}

func (s BarSpec) String() string {
	return fmt.Sprintf("%d-%s-%s", s.Step, s.Aggregation, s.PriceType)
}

// BarType 绑定到具体合约的 K 线类型
type BarType struct {
	InstrumentID InstrumentID `json:"instrument_id"`
	Spec         BarSpec      `json:"spec"`
}

func (t BarType) String() string {
	return t.InstrumentID.String() + "-" + t.Spec.String()
}

// Bar OHLCV K 线
type Bar struct {
	Type    BarType   `json:"type"`
	Open    Price     `json:"open"`
	High    Price     `json:"high"`
	Low     Price     `json:"low"`
	Close   Price     `json:"close"`
	Volume  Quantity  `json:"volume"`
	TsEvent time.Time `json:"ts_event"` // bar 收盘时刻
}

func (b Bar) DataInstrument() InstrumentID { return b.Type.InstrumentID }
func (b Bar) EventTime() time.Time         { return b.TsEvent }

// Validate 校验 OHLC 关系
func (b Bar) Validate() error {
	if b.High.LessThan(b.Low) {
		return fmt.Errorf("bar %s: high %s < low %s", b.Type, b.High, b.Low)
	}
	if b.Open.GreaterThan(b.High) || b.Open.LessThan(b.Low) {
		return fmt.Errorf("bar %s: open %s outside [low, high]", b.Type, b.Open)
	}
	if b.Close.GreaterThan(b.High) || b.Close.LessThan(b.Low) {
		return fmt.Errorf("bar %s: close %s outside [low, high]", b.Type, b.Close)
	}
	return nil
}
