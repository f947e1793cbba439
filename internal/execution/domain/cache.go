// Package domain 执行引擎的领域层：缓存、命令与进程内消息总线。
package domain

import (
	"sort"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
	positiondomain "github.com/wyfcoding/tradingengine/internal/position/domain"
)

// Cache 订单/持仓/账户的唯一事实来源。
// 所有写入都经过执行引擎的单写者事件路径，回测单线程、
// 实盘由漏斗队列串行化，因此缓存本身不加锁。
type Cache struct {
	orders             map[model.ClientOrderID]*orderdomain.Order
	ordersByInstrument map[model.InstrumentID][]model.ClientOrderID
	ordersByStrategy   map[model.StrategyID][]model.ClientOrderID

	positions             map[model.PositionID]*positiondomain.Position
	positionsByInstrument map[model.InstrumentID][]model.PositionID

	accounts    map[model.AccountID]*accountdomain.Account
	instruments map[model.InstrumentID]*model.Instrument
}

// NewCache 创建空缓存
func NewCache() *Cache {
	return &Cache{
		orders:                make(map[model.ClientOrderID]*orderdomain.Order),
		ordersByInstrument:    make(map[model.InstrumentID][]model.ClientOrderID),
		ordersByStrategy:      make(map[model.StrategyID][]model.ClientOrderID),
		positions:             make(map[model.PositionID]*positiondomain.Position),
		positionsByInstrument: make(map[model.InstrumentID][]model.PositionID),
		accounts:              make(map[model.AccountID]*accountdomain.Account),
		instruments:           make(map[model.InstrumentID]*model.Instrument),
	}
}

// AddInstrument 登记合约定义
func (c *Cache) AddInstrument(inst *model.Instrument) {
	c.instruments[inst.ID] = inst
}

// Instrument 查询合约定义
func (c *Cache) Instrument(id model.InstrumentID) (*model.Instrument, bool) {
	inst, ok := c.instruments[id]
	return inst, ok
}

// AddOrder 写入订单并维护索引，重复写入是幂等的
func (c *Cache) AddOrder(o *orderdomain.Order) {
	if _, exists := c.orders[o.ClientOrderID]; exists {
		c.orders[o.ClientOrderID] = o
		return
	}
	c.orders[o.ClientOrderID] = o
	c.ordersByInstrument[o.InstrumentID] = append(c.ordersByInstrument[o.InstrumentID], o.ClientOrderID)
	c.ordersByStrategy[o.StrategyID] = append(c.ordersByStrategy[o.StrategyID], o.ClientOrderID)
}

// Order 按 client order id 查询
func (c *Cache) Order(id model.ClientOrderID) (*orderdomain.Order, bool) {
	o, ok := c.orders[id]
	return o, ok
}

// OrdersForInstrument 合约的全部订单，按写入序
func (c *Cache) OrdersForInstrument(id model.InstrumentID) []*orderdomain.Order {
	ids := c.ordersByInstrument[id]
	out := make([]*orderdomain.Order, 0, len(ids))
	for _, oid := range ids {
		out = append(out, c.orders[oid])
	}
	return out
}

// OpenOrders 仍在场所存续的订单
func (c *Cache) OpenOrders() []*orderdomain.Order {
	ids := make([]model.ClientOrderID, 0, len(c.orders))
	for id, o := range c.orders {
		if o.IsActive() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*orderdomain.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.orders[id])
	}
	return out
}

// OrderCount 订单总数
func (c *Cache) OrderCount() int { return len(c.orders) }

// AddPosition 写入持仓并维护索引
func (c *Cache) AddPosition(p *positiondomain.Position) {
	if _, exists := c.positions[p.ID]; !exists {
		c.positionsByInstrument[p.InstrumentID] = append(c.positionsByInstrument[p.InstrumentID], p.ID)
	}
	c.positions[p.ID] = p
}

// Position 按 id 查询持仓
func (c *Cache) Position(id model.PositionID) (*positiondomain.Position, bool) {
	p, ok := c.positions[id]
	return p, ok
}

// PositionsForInstrument 合约的全部持仓（含已平仓记录）
func (c *Cache) PositionsForInstrument(id model.InstrumentID) []*positiondomain.Position {
	ids := c.positionsByInstrument[id]
	out := make([]*positiondomain.Position, 0, len(ids))
	for _, pid := range ids {
		out = append(out, c.positions[pid])
	}
	return out
}

// Positions 全部持仓，按 id 排序
func (c *Cache) Positions() []*positiondomain.Position {
	ids := make([]model.PositionID, 0, len(c.positions))
	for id := range c.positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*positiondomain.Position, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.positions[id])
	}
	return out
}

// AddAccount 写入账户
func (c *Cache) AddAccount(a *accountdomain.Account) {
	c.accounts[a.ID] = a
}

// Account 按 id 查询账户
func (c *Cache) Account(id model.AccountID) (*accountdomain.Account, bool) {
	a, ok := c.accounts[id]
	return a, ok
}

// Accounts 全部账户，按 id 排序
func (c *Cache) Accounts() []*accountdomain.Account {
	ids := make([]model.AccountID, 0, len(c.accounts))
	for id := range c.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*accountdomain.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.accounts[id])
	}
	return out
}
