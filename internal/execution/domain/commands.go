package domain

import (
	"errors"

	"github.com/wyfcoding/tradingengine/internal/model"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
)

var (
	// ErrDuplicateCommand 同一 client order id 已有命令在途，本地拒绝不转发
	ErrDuplicateCommand = errors.New("duplicate command: order has a command in flight")
	// ErrUnknownOrder 命令指向缓存中不存在的订单
	ErrUnknownOrder = errors.New("unknown client order id")
	// ErrOrderNotActive 对终态或未受理订单的撤改
	ErrOrderNotActive = errors.New("order is not active")
)

// Command 交易命令
type Command interface {
	CommandType() string
	OrderID() model.ClientOrderID
}

// SubmitOrder 提交新订单
type SubmitOrder struct {
	Order *orderdomain.Order
}

func (c SubmitOrder) CommandType() string          { return "SubmitOrder" }
func (c SubmitOrder) OrderID() model.ClientOrderID { return c.Order.ClientOrderID }

// CancelOrder 撤销在场订单
type CancelOrder struct {
	ClientOrderID model.ClientOrderID
}

func (c CancelOrder) CommandType() string          { return "CancelOrder" }
func (c CancelOrder) OrderID() model.ClientOrderID { return c.ClientOrderID }

// ModifyOrder 修改在场订单的数量/价格
type ModifyOrder struct {
	ClientOrderID model.ClientOrderID
	NewQuantity   model.Quantity
	NewPrice      *model.Price
}

func (c ModifyOrder) CommandType() string          { return "ModifyOrder" }
func (c ModifyOrder) OrderID() model.ClientOrderID { return c.ClientOrderID }
