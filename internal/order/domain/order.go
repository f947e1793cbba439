// Package domain 订单聚合根。订单是一个事件驱动的状态机：
// 状态只能通过应用类型化事件改变，非法的 (状态, 事件) 组合返回
// ErrInvalidStateTransition，表明上游存在重复投递或乱序回放的缺陷。
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/fsm"

	"github.com/wyfcoding/tradingengine/internal/model"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	StatusInitialized     OrderStatus = "INITIALIZED"
	StatusDenied          OrderStatus = "DENIED"
	StatusSubmitted       OrderStatus = "SUBMITTED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusAccepted        OrderStatus = "ACCEPTED"
	StatusPendingUpdate   OrderStatus = "PENDING_UPDATE"
	StatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	StatusTriggered       OrderStatus = "TRIGGERED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// IsTerminal 终态订单不再接受任何事件
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusDenied, StatusRejected, StatusFilled, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

var (
	// ErrInvalidStateTransition 非法状态迁移，属于致命错误而不是可恢复的场所回报
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	// ErrDuplicateTrade 同一 trade id 的成交被重复投递
	ErrDuplicateTrade = errors.New("duplicate trade id")
	// ErrOverfill 成交量超出订单数量
	ErrOverfill = errors.New("fill exceeds order quantity")
)

// FSM 触发器。FILL 按累计成交量拆成部分成交与完全成交两个触发器。
const (
	triggerDeny          = "DENY"
	triggerSubmit        = "SUBMIT"
	triggerAccept        = "ACCEPT"
	triggerReject        = "REJECT"
	triggerCancel        = "CANCEL"
	triggerExpire        = "EXPIRE"
	triggerTrigger       = "TRIGGER"
	triggerPendingUpdate = "PENDING_UPDATE"
	triggerPendingCancel = "PENDING_CANCEL"
	triggerUpdate        = "UPDATE"
	triggerModifyReject  = "MODIFY_REJECT"
	triggerCancelReject  = "CANCEL_REJECT"
	triggerFillPartial   = "FILL_PARTIAL"
	triggerFillFull      = "FILL_FULL"
)

// Order 单笔交易意图的聚合根
type Order struct {
	ClientOrderID model.ClientOrderID `json:"client_order_id"`
	VenueOrderID  model.VenueOrderID  `json:"venue_order_id"`
	InstrumentID  model.InstrumentID  `json:"instrument_id"`
	StrategyID    model.StrategyID    `json:"strategy_id"`
	AccountID     model.AccountID     `json:"account_id"`
	Side          model.Side          `json:"side"`
	Type          model.OrderType     `json:"type"`
	Quantity      model.Quantity      `json:"quantity"`
	Price         *model.Price        `json:"price,omitempty"`         // LIMIT / STOP_LIMIT
	TriggerPrice  *model.Price        `json:"trigger_price,omitempty"` // STOP / TRAILING
	TimeInForce   model.TimeInForce   `json:"time_in_force"`
	ReduceOnly    bool                `json:"reduce_only"`
	PostOnly      bool                `json:"post_only"`
	Status        OrderStatus         `json:"status"`

	FilledQty  model.Quantity  `json:"filled_qty"`
	AvgPx      decimal.Decimal `json:"avg_px"` // 成交量加权均价
	Commission model.Money     `json:"commission"`
	InitAt     time.Time       `json:"init_at"`
	LastAt     time.Time       `json:"last_at"`

	events   []OrderEvent
	tradeIDs map[model.TradeID]struct{}
	machine  *fsm.Machine[string, string]
}

// NewOrder 初始化一笔订单，初始状态为 INITIALIZED
func NewOrder(
	clientOrderID model.ClientOrderID,
	instrumentID model.InstrumentID,
	strategyID model.StrategyID,
	side model.Side,
	orderType model.OrderType,
	qty model.Quantity,
	price *model.Price,
	triggerPrice *model.Price,
	tif model.TimeInForce,
	initAt time.Time,
) *Order {
	return &Order{
		ClientOrderID: clientOrderID,
		InstrumentID:  instrumentID,
		StrategyID:    strategyID,
		Side:          side,
		Type:          orderType,
		Quantity:      qty,
		Price:         price,
		TriggerPrice:  triggerPrice,
		TimeInForce:   tif,
		Status:        StatusInitialized,
		FilledQty:     model.NewQuantity(decimal.Zero, qty.Precision()),
		InitAt:        initAt,
		LastAt:        initAt,
		tradeIDs:      make(map[model.TradeID]struct{}),
	}
}

func (o *Order) initFSM() {
	m := fsm.NewMachine[string, string](string(o.Status))
	m.AddTransition(string(StatusInitialized), triggerDeny, string(StatusDenied))
	m.AddTransition(string(StatusInitialized), triggerSubmit, string(StatusSubmitted))

	m.AddTransition(string(StatusSubmitted), triggerAccept, string(StatusAccepted))
	m.AddTransition(string(StatusSubmitted), triggerReject, string(StatusRejected))

	m.AddTransition(string(StatusAccepted), triggerCancel, string(StatusCanceled))
	m.AddTransition(string(StatusAccepted), triggerExpire, string(StatusExpired))
	m.AddTransition(string(StatusAccepted), triggerTrigger, string(StatusTriggered))
	m.AddTransition(string(StatusAccepted), triggerPendingUpdate, string(StatusPendingUpdate))
	m.AddTransition(string(StatusAccepted), triggerPendingCancel, string(StatusPendingCancel))
	m.AddTransition(string(StatusAccepted), triggerFillPartial, string(StatusPartiallyFilled))
	m.AddTransition(string(StatusAccepted), triggerFillFull, string(StatusFilled))

	m.AddTransition(string(StatusPendingUpdate), triggerUpdate, string(StatusAccepted))
	m.AddTransition(string(StatusPendingUpdate), triggerModifyReject, string(StatusAccepted))
	m.AddTransition(string(StatusPendingUpdate), triggerCancel, string(StatusCanceled))
	m.AddTransition(string(StatusPendingUpdate), triggerPendingCancel, string(StatusPendingCancel))
	m.AddTransition(string(StatusPendingUpdate), triggerFillPartial, string(StatusPartiallyFilled))
	m.AddTransition(string(StatusPendingUpdate), triggerFillFull, string(StatusFilled))

	m.AddTransition(string(StatusPendingCancel), triggerCancel, string(StatusCanceled))
	m.AddTransition(string(StatusPendingCancel), triggerCancelReject, string(StatusAccepted))
	m.AddTransition(string(StatusPendingCancel), triggerFillPartial, string(StatusPartiallyFilled))
	m.AddTransition(string(StatusPendingCancel), triggerFillFull, string(StatusFilled))

	m.AddTransition(string(StatusTriggered), triggerCancel, string(StatusCanceled))
	m.AddTransition(string(StatusTriggered), triggerExpire, string(StatusExpired))
	m.AddTransition(string(StatusTriggered), triggerPendingCancel, string(StatusPendingCancel))
	m.AddTransition(string(StatusTriggered), triggerFillPartial, string(StatusPartiallyFilled))
	m.AddTransition(string(StatusTriggered), triggerFillFull, string(StatusFilled))

	m.AddTransition(string(StatusPartiallyFilled), triggerCancel, string(StatusCanceled))
	m.AddTransition(string(StatusPartiallyFilled), triggerExpire, string(StatusExpired))
	m.AddTransition(string(StatusPartiallyFilled), triggerPendingUpdate, string(StatusPendingUpdate))
	m.AddTransition(string(StatusPartiallyFilled), triggerPendingCancel, string(StatusPendingCancel))
	m.AddTransition(string(StatusPartiallyFilled), triggerFillPartial, string(StatusPartiallyFilled))
	m.AddTransition(string(StatusPartiallyFilled), triggerFillFull, string(StatusFilled))

	o.machine = m
}

func (o *Order) trigger(ctx context.Context, t string, to OrderStatus) error {
	o.initFSM()
	if err := o.machine.Trigger(ctx, t); err != nil {
		return fmt.Errorf("%w: order %s %s + %s: %v",
			ErrInvalidStateTransition, o.ClientOrderID, o.Status, t, err)
	}
	o.Status = to
	return nil
}

// Apply 应用一条订单事件。事件被追加到订单的事件日志并推动状态机。
func (o *Order) Apply(ctx context.Context, event OrderEvent) error {
	var err error
	switch e := event.(type) {
	case *OrderSubmitted:
		if err = o.trigger(ctx, triggerSubmit, StatusSubmitted); err == nil {
			o.AccountID = e.AccountID
		}
	case *OrderDenied:
		err = o.trigger(ctx, triggerDeny, StatusDenied)
	case *OrderAccepted:
		if err = o.trigger(ctx, triggerAccept, StatusAccepted); err == nil {
			o.VenueOrderID = e.VenueOrderID
		}
	case *OrderRejected:
		err = o.trigger(ctx, triggerReject, StatusRejected)
	case *OrderCanceled:
		err = o.trigger(ctx, triggerCancel, StatusCanceled)
	case *OrderExpired:
		err = o.trigger(ctx, triggerExpire, StatusExpired)
	case *OrderTriggered:
		err = o.trigger(ctx, triggerTrigger, StatusTriggered)
	case *OrderPendingUpdate:
		err = o.trigger(ctx, triggerPendingUpdate, StatusPendingUpdate)
	case *OrderPendingCancel:
		err = o.trigger(ctx, triggerPendingCancel, StatusPendingCancel)
	case *OrderUpdated:
		if err = o.trigger(ctx, triggerUpdate, StatusAccepted); err == nil {
			o.Quantity = e.Quantity
			if e.Price != nil {
				o.Price = e.Price
			}
		}
	case *OrderModifyRejected:
		err = o.trigger(ctx, triggerModifyReject, StatusAccepted)
	case *OrderCancelRejected:
		err = o.trigger(ctx, triggerCancelReject, StatusAccepted)
	case *OrderFilled:
		err = o.applyFill(ctx, e)
	default:
		err = fmt.Errorf("%w: order %s: unknown event %T", ErrInvalidStateTransition, o.ClientOrderID, event)
	}
	if err != nil {
		return err
	}
	o.LastAt = event.OccurredAt()
	o.events = append(o.events, event)
	return nil
}

func (o *Order) applyFill(ctx context.Context, e *OrderFilled) error {
	if _, ok := o.tradeIDs[e.TradeID]; ok {
		return fmt.Errorf("%w: order %s trade %s", ErrDuplicateTrade, o.ClientOrderID, e.TradeID)
	}
	newFilled, err := o.FilledQty.Add(e.LastQty)
	if err != nil {
		return err
	}
	if o.Quantity.LessThan(newFilled) {
		return fmt.Errorf("%w: order %s filled %s of %s",
			ErrOverfill, o.ClientOrderID, newFilled, o.Quantity)
	}

	t := triggerFillPartial
	to := StatusPartiallyFilled
	if newFilled.Equal(o.Quantity) {
		t = triggerFillFull
		to = StatusFilled
	}
	if err := o.trigger(ctx, t, to); err != nil {
		return err
	}

	// 均价 = Σ(px × qty) / Σqty
	prevNotional := o.AvgPx.Mul(o.FilledQty.Decimal())
	fillNotional := e.LastPx.Decimal().Mul(e.LastQty.Decimal())
	o.AvgPx = prevNotional.Add(fillNotional).Div(newFilled.Decimal())
	o.FilledQty = newFilled

	if o.Commission.Currency() == "" {
		o.Commission = e.Commission
	} else if sum, err := o.Commission.Add(e.Commission); err == nil {
		o.Commission = sum
	} else {
		return err
	}

	o.tradeIDs[e.TradeID] = struct{}{}
	if e.VenueOrderID != "" {
		o.VenueOrderID = e.VenueOrderID
	}
	return nil
}

// LeavesQty 剩余未成交数量
func (o *Order) LeavesQty() model.Quantity {
	rest, err := o.Quantity.Sub(o.FilledQty)
	if err != nil {
		return model.NewQuantity(decimal.Zero, o.Quantity.Precision())
	}
	return rest
}

// IsClosed 是否处于终态
func (o *Order) IsClosed() bool { return o.Status.IsTerminal() }

// IsActive 是否仍在场所存续（可被成交或撤销）
func (o *Order) IsActive() bool {
	switch o.Status {
	case StatusAccepted, StatusPendingUpdate, StatusPendingCancel,
		StatusTriggered, StatusPartiallyFilled:
		return true
	}
	return false
}

// Events 返回订单的事件日志（追加序）
func (o *Order) Events() []OrderEvent { return o.events }

// Validate 提交前的参数校验；失败意味着订单应被 DENY 而不是进入撮合
func (o *Order) Validate(inst *model.Instrument) error {
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("order %s: non-positive quantity %s", o.ClientOrderID, o.Quantity)
	}
	if o.Side != model.SideBuy && o.Side != model.SideSell {
		return fmt.Errorf("order %s: invalid side %q", o.ClientOrderID, o.Side)
	}
	switch o.Type {
	case model.OrderTypeLimit, model.OrderTypeStopLimit:
		if o.Price == nil || !o.Price.IsPositive() {
			return fmt.Errorf("order %s: %s requires a positive price", o.ClientOrderID, o.Type)
		}
	case model.OrderTypeMarket:
		if o.PostOnly {
			return fmt.Errorf("order %s: market order cannot be post-only", o.ClientOrderID)
		}
	}
	if o.Type.HasTrigger() && (o.TriggerPrice == nil || !o.TriggerPrice.IsPositive()) {
		return fmt.Errorf("order %s: %s requires a positive trigger price", o.ClientOrderID, o.Type)
	}
	if inst != nil {
		if o.Quantity.Precision() != inst.SizePrecision {
			return fmt.Errorf("order %s: quantity precision %d != instrument %d",
				o.ClientOrderID, o.Quantity.Precision(), inst.SizePrecision)
		}
		if o.Price != nil && o.Price.Precision() != inst.PricePrecision {
			return fmt.Errorf("order %s: price precision %d != instrument %d",
				o.ClientOrderID, o.Price.Precision(), inst.PricePrecision)
		}
		if !inst.MinQuantity.IsZero() && o.Quantity.LessThan(inst.MinQuantity) {
			return fmt.Errorf("order %s: quantity %s below minimum %s",
				o.ClientOrderID, o.Quantity, inst.MinQuantity)
		}
		if !inst.MaxQuantity.IsZero() && inst.MaxQuantity.LessThan(o.Quantity) {
			return fmt.Errorf("order %s: quantity %s above maximum %s",
				o.ClientOrderID, o.Quantity, inst.MaxQuantity)
		}
	}
	return nil
}
