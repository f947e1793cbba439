package domain

import (
	"time"

	"github.com/wyfcoding/pkg/eventsourcing"

	"github.com/wyfcoding/tradingengine/internal/model"
)

const (
	OrderSubmittedEventType      = "OrderSubmitted"
	OrderDeniedEventType         = "OrderDenied"
	OrderAcceptedEventType       = "OrderAccepted"
	OrderRejectedEventType       = "OrderRejected"
	OrderCanceledEventType       = "OrderCanceled"
	OrderExpiredEventType        = "OrderExpired"
	OrderTriggeredEventType      = "OrderTriggered"
	OrderPendingUpdateEventType  = "OrderPendingUpdate"
	OrderPendingCancelEventType  = "OrderPendingCancel"
	OrderUpdatedEventType        = "OrderUpdated"
	OrderModifyRejectedEventType = "OrderModifyRejected"
	OrderCancelRejectedEventType = "OrderCancelRejected"
	OrderFilledEventType         = "OrderFilled"
)

// OrderEvent 订单事件公共接口。订单状态只能通过应用事件改变。
type OrderEvent interface {
	eventsourcing.DomainEvent
	OrderID() model.ClientOrderID
	OccurredAt() time.Time
}

// OrderEventBase 所有订单事件的公共字段
type OrderEventBase struct {
	eventsourcing.BaseEvent
	ClientOrderID model.ClientOrderID `json:"client_order_id"`
	TsEvent       time.Time           `json:"ts_event"`
}

// NewOrderEventBase 构造事件公共部分
func NewOrderEventBase(id model.ClientOrderID, ts time.Time) OrderEventBase {
	return OrderEventBase{ClientOrderID: id, TsEvent: ts}
}

func (e *OrderEventBase) AggregateID() string          { return string(e.ClientOrderID) }
func (e *OrderEventBase) OrderID() model.ClientOrderID { return e.ClientOrderID }
func (e *OrderEventBase) Version() int64               { return e.Ver }
func (e *OrderEventBase) SetVersion(v int64)           { e.Ver = v }
func (e *OrderEventBase) OccurredAt() time.Time        { return e.TsEvent }

// OrderSubmitted 订单已提交到场所
type OrderSubmitted struct {
	OrderEventBase
	AccountID model.AccountID `json:"account_id"`
}

func (e *OrderSubmitted) EventType() string { return OrderSubmittedEventType }

// OrderDenied 订单在提交前被引擎拒绝（参数校验失败），从未到达场所
type OrderDenied struct {
	OrderEventBase
	Reason string `json:"reason"`
}

func (e *OrderDenied) EventType() string { return OrderDeniedEventType }

// OrderAccepted 场所已接受订单
type OrderAccepted struct {
	OrderEventBase
	VenueOrderID model.VenueOrderID `json:"venue_order_id"`
}

func (e *OrderAccepted) EventType() string { return OrderAcceptedEventType }

// OrderRejected 场所拒绝订单
type OrderRejected struct {
	OrderEventBase
	Reason string `json:"reason"`
}

func (e *OrderRejected) EventType() string { return OrderRejectedEventType }

// OrderCanceled 订单已撤销
type OrderCanceled struct {
	OrderEventBase
	VenueOrderID model.VenueOrderID `json:"venue_order_id"`
}

func (e *OrderCanceled) EventType() string { return OrderCanceledEventType }

// OrderExpired 订单按有效期规则过期
type OrderExpired struct {
	OrderEventBase
}

func (e *OrderExpired) EventType() string { return OrderExpiredEventType }

// OrderTriggered 止损/止盈触发价被穿越
type OrderTriggered struct {
	OrderEventBase
	TriggerPrice model.Price `json:"trigger_price"`
}

func (e *OrderTriggered) EventType() string { return OrderTriggeredEventType }

// OrderPendingUpdate 改单请求已发出，等待场所确认
type OrderPendingUpdate struct {
	OrderEventBase
}

func (e *OrderPendingUpdate) EventType() string { return OrderPendingUpdateEventType }

// OrderPendingCancel 撤单请求已发出，等待场所确认
type OrderPendingCancel struct {
	OrderEventBase
}

func (e *OrderPendingCancel) EventType() string { return OrderPendingCancelEventType }

// OrderUpdated 改单确认，携带新的价格/数量
type OrderUpdated struct {
	OrderEventBase
	Quantity model.Quantity `json:"quantity"`
	Price    *model.Price   `json:"price,omitempty"`
}

func (e *OrderUpdated) EventType() string { return OrderUpdatedEventType }

// OrderModifyRejected 改单被场所拒绝，订单回到 ACCEPTED
type OrderModifyRejected struct {
	OrderEventBase
	Reason string `json:"reason"`
}

func (e *OrderModifyRejected) EventType() string { return OrderModifyRejectedEventType }

// OrderCancelRejected 撤单被场所拒绝（例如场所无此订单），订单回到 ACCEPTED
type OrderCancelRejected struct {
	OrderEventBase
	Reason string `json:"reason"`
}

func (e *OrderCancelRejected) EventType() string { return OrderCancelRejectedEventType }

// OrderFilled 一笔成交回报。LastQty 为本次成交量，LastPx 为本次成交价。
type OrderFilled struct {
	OrderEventBase
	VenueOrderID model.VenueOrderID  `json:"venue_order_id"`
	TradeID      model.TradeID       `json:"trade_id"`
	LastQty      model.Quantity      `json:"last_qty"`
	LastPx       model.Price         `json:"last_px"`
	Liquidity    model.LiquiditySide `json:"liquidity"`
	Commission   model.Money         `json:"commission"`
}

func (e *OrderFilled) EventType() string { return OrderFilledEventType }
