package domain

import (
	"time"

	"github.com/wyfcoding/pkg/eventsourcing"

	"github.com/wyfcoding/tradingengine/internal/model"
)

const (
	PositionOpenedEventType  = "PositionOpened"
	PositionChangedEventType = "PositionChanged"
	PositionClosedEventType  = "PositionClosed"
	PositionFlippedEventType = "PositionFlipped"
)

// PositionEvent 持仓事件公共接口
type PositionEvent interface {
	eventsourcing.DomainEvent
	PositionID() model.PositionID
	OccurredAt() time.Time
}

// PositionEventBase 持仓事件公共字段
type PositionEventBase struct {
	eventsourcing.BaseEvent
	ID           model.PositionID   `json:"position_id"`
	InstrumentID model.InstrumentID `json:"instrument_id"`
	StrategyID   model.StrategyID   `json:"strategy_id"`
	TsEvent      time.Time          `json:"ts_event"`
}

func (e *PositionEventBase) AggregateID() string          { return string(e.ID) }
func (e *PositionEventBase) PositionID() model.PositionID { return e.ID }
func (e *PositionEventBase) Version() int64               { return e.Ver }
func (e *PositionEventBase) SetVersion(v int64)           { e.Ver = v }
func (e *PositionEventBase) OccurredAt() time.Time        { return e.TsEvent }

// PositionOpened 首笔建立非零敞口的成交
type PositionOpened struct {
	PositionEventBase
	Side       model.Side `json:"side"`
	Quantity   string     `json:"quantity"`
	EntryPrice string     `json:"entry_price"`
}

func (e *PositionOpened) EventType() string { return PositionOpenedEventType }

// PositionChanged 持仓数量/均价变动
type PositionChanged struct {
	PositionEventBase
	NetQuantity string `json:"net_quantity"`
	AvgEntry    string `json:"avg_entry"`
	RealizedPnL string `json:"realized_pnl"`
}

func (e *PositionChanged) EventType() string { return PositionChangedEventType }

// PositionClosed 净持仓回到零。持仓保留不删除。
type PositionClosed struct {
	PositionEventBase
	RealizedPnL string `json:"realized_pnl"`
}

func (e *PositionClosed) EventType() string { return PositionClosedEventType }

// PositionFlipped 成交穿越零点反手：平掉原方向后以成交价开立反向持仓
type PositionFlipped struct {
	PositionEventBase
	OldSide     model.Side `json:"old_side"`
	NewSide     model.Side `json:"new_side"`
	FlipQty     string     `json:"flip_qty"`
	FlipPrice   string     `json:"flip_price"`
	RealizedPnL string     `json:"realized_pnl"`
}

func (e *PositionFlipped) EventType() string { return PositionFlippedEventType }
