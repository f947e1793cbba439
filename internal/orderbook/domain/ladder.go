// Package domain 订单簿。每个合约一本，买卖双侧各一条价格阶梯，
// 阶梯用跳表按价格有序存储，买侧按价格降序、卖侧按价格升序。
package domain

import (
	"container/list"

	"github.com/shopspring/decimal"
	algorithm "github.com/wyfcoding/pkg/algos/structures"

	"github.com/wyfcoding/tradingengine/internal/model"
)

// BookOrder 价格档位内的一笔挂单（L3），FIFO 排队
type BookOrder struct {
	OrderID  string
	Size     model.Quantity
	Sequence uint64
}

// Level 一个价格档位。L2 模式下 Orders 只有一条聚合记录。
type Level struct {
	Price  model.Price
	Orders *list.List // *BookOrder
}

// NewLevel 创建空档位
func NewLevel(price model.Price) *Level {
	return &Level{Price: price, Orders: list.New()}
}

// TotalSize 档位总挂单量
func (l *Level) TotalSize() decimal.Decimal {
	total := decimal.Zero
	for el := l.Orders.Front(); el != nil; el = el.Next() {
		total = total.Add(el.Value.(*BookOrder).Size.Decimal())
	}
	return total
}

// Ladder 订单簿单侧。跳表键为排序键：买侧取价格相反数，
// 使 Iterator 始终从最优价开始遍历。
type Ladder struct {
	side   model.Side
	levels *algorithm.SkipList[float64, *Level]
	count  int
}

// NewLadder 创建空阶梯
func NewLadder(side model.Side) *Ladder {
	return &Ladder{side: side, levels: algorithm.NewSkipList[float64, *Level]()}
}

func (l *Ladder) key(price model.Price) float64 {
	if l.side == model.SideBuy {
		return -price.Float64()
	}
	return price.Float64()
}

// Add 在档位追加挂单；档位不存在则创建。orderID 为空时按 L2 聚合处理。
func (l *Ladder) Add(price model.Price, size model.Quantity, orderID string, seq uint64) {
	k := l.key(price)
	level, ok := l.levels.Search(k)
	if !ok {
		level = NewLevel(price)
		l.levels.Insert(k, level)
		l.count++
	}
	if orderID == "" && level.Orders.Len() > 0 {
		// L2：档位是单一可消耗池，ADD 叠加数量
		agg := level.Orders.Front().Value.(*BookOrder)
		if sum, err := agg.Size.Add(size); err == nil {
			agg.Size = sum
			agg.Sequence = seq
			return
		}
	}
	level.Orders.PushBack(&BookOrder{OrderID: orderID, Size: size, Sequence: seq})
}

// Update 覆盖档位/挂单数量，数量为零等价于删除
func (l *Ladder) Update(price model.Price, size model.Quantity, orderID string, seq uint64) {
	if size.IsZero() {
		l.Delete(price, orderID)
		return
	}
	k := l.key(price)
	level, ok := l.levels.Search(k)
	if !ok {
		l.Add(price, size, orderID, seq)
		return
	}
	if orderID == "" {
		level.Orders.Init()
		level.Orders.PushBack(&BookOrder{Size: size, Sequence: seq})
		return
	}
	for el := level.Orders.Front(); el != nil; el = el.Next() {
		bo := el.Value.(*BookOrder)
		if bo.OrderID == orderID {
			bo.Size = size
			bo.Sequence = seq
			return
		}
	}
	level.Orders.PushBack(&BookOrder{OrderID: orderID, Size: size, Sequence: seq})
}

// Delete 删除档位（L2）或档位内指定挂单（L3），档位清空后整档移除
func (l *Ladder) Delete(price model.Price, orderID string) {
	k := l.key(price)
	level, ok := l.levels.Search(k)
	if !ok {
		return
	}
	if orderID == "" {
		level.Orders.Init()
	} else {
		for el := level.Orders.Front(); el != nil; el = el.Next() {
			if el.Value.(*BookOrder).OrderID == orderID {
				level.Orders.Remove(el)
				break
			}
		}
	}
	if level.Orders.Len() == 0 {
		l.levels.Delete(k)
		l.count--
	}
}

// Clear 清空整侧
func (l *Ladder) Clear() {
	l.levels = algorithm.NewSkipList[float64, *Level]()
	l.count = 0
}

// Best 最优档位，空侧返回 false
func (l *Ladder) Best() (*Level, bool) {
	_, level, ok := l.levels.Iterator().Next()
	return level, ok
}

// Len 档位数量
func (l *Ladder) Len() int { return l.count }

// Walk 从最优价向外遍历档位，fn 返回 false 时停止
func (l *Ladder) Walk(fn func(level *Level) bool) {
	it := l.levels.Iterator()
	for {
		_, level, ok := it.Next()
		if !ok {
			return
		}
		if !fn(level) {
			return
		}
	}
}
