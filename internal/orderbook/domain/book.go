package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/tradingengine/internal/model"
)

var (
	// ErrStaleSequence 增量的序号不大于已应用的序号，属于数据完整性错误。
	// 订单簿宁可拒绝更新也不猜测，丢弃该条并由调用方记录日志。
	ErrStaleSequence = errors.New("stale order book delta sequence")
	// ErrBookMismatch 增量的合约与订单簿不一致
	ErrBookMismatch = errors.New("delta instrument mismatch")
)

// Fill 模拟撮合的一段结果：在某价位成交多少
type Fill struct {
	Price model.Price
	Qty   model.Quantity
}

// OrderBook 单合约订单簿
type OrderBook struct {
	InstrumentID model.InstrumentID
	BookType     model.BookType
	Bids         *Ladder
	Asks         *Ladder

	sequence uint64
	tsLast   time.Time
}

// NewOrderBook 创建空订单簿
func NewOrderBook(instrumentID model.InstrumentID, bookType model.BookType) *OrderBook {
	return &OrderBook{
		InstrumentID: instrumentID,
		BookType:     bookType,
		Bids:         NewLadder(model.SideBuy),
		Asks:         NewLadder(model.SideSell),
	}
}

// Sequence 最近一次成功应用的增量序号
func (b *OrderBook) Sequence() uint64 { return b.sequence }

// LastUpdated 最近一次成功应用的增量时间
func (b *OrderBook) LastUpdated() time.Time { return b.tsLast }

// ApplyDelta 按序应用一条订单簿增量。序号必须严格递增，
// 乱序或重复的增量返回 ErrStaleSequence 且不改动任何档位。
func (b *OrderBook) ApplyDelta(d model.OrderBookDelta) error {
	if d.InstrumentID != b.InstrumentID {
		return fmt.Errorf("%w: book %s, delta %s", ErrBookMismatch, b.InstrumentID, d.InstrumentID)
	}
	if d.Sequence != 0 && d.Sequence <= b.sequence {
		return fmt.Errorf("%w: book %s at %d, delta %d", ErrStaleSequence, b.InstrumentID, b.sequence, d.Sequence)
	}

	switch d.Action {
	case model.BookActionClear:
		b.Bids.Clear()
		b.Asks.Clear()
	case model.BookActionAdd:
		b.ladder(d.Side).Add(d.Price, d.Size, d.OrderID, d.Sequence)
	case model.BookActionUpdate:
		b.ladder(d.Side).Update(d.Price, d.Size, d.OrderID, d.Sequence)
	case model.BookActionDelete:
		b.ladder(d.Side).Delete(d.Price, d.OrderID)
	default:
		return fmt.Errorf("unknown book action %q", d.Action)
	}

	if d.Sequence != 0 {
		b.sequence = d.Sequence
	}
	b.tsLast = d.TsEvent
	return nil
}

func (b *OrderBook) ladder(side model.Side) *Ladder {
	if side == model.SideBuy {
		return b.Bids
	}
	return b.Asks
}

// BestBidPrice 最优买价，空侧返回 false
func (b *OrderBook) BestBidPrice() (model.Price, bool) {
	level, ok := b.Bids.Best()
	if !ok {
		return model.Price{}, false
	}
	return level.Price, true
}

// BestAskPrice 最优卖价，空侧返回 false
func (b *OrderBook) BestAskPrice() (model.Price, bool) {
	level, ok := b.Asks.Best()
	if !ok {
		return model.Price{}, false
	}
	return level.Price, true
}

// Spread 买卖价差 = ask − bid。任一侧为空返回 false。
// 瞬时交叉状态下价差可以为负，这不是错误，由策略自行判断。
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, okB := b.BestBidPrice()
	ask, okA := b.BestAskPrice()
	if !okB || !okA {
		return decimal.Zero, false
	}
	return ask.Decimal().Sub(bid.Decimal()), true
}

// SimulateFills 模拟一笔进入订单对对手侧的吃单路径：从最优价向外逐档消耗，
// 直到数量耗尽或流动性耗尽或价格越过限价。不修改订单簿本身。
// 档位内部按 FIFO 价格时间优先；L2 档位视作单一可消耗池。
func (b *OrderBook) SimulateFills(side model.Side, qty model.Quantity, limitPrice *model.Price) []Fill {
	opposing := b.Asks
	if side == model.SideSell {
		opposing = b.Bids
	}

	var fills []Fill
	remaining := qty.Decimal()
	opposing.Walk(func(level *Level) bool {
		if limitPrice != nil {
			if side == model.SideBuy && level.Price.GreaterThan(*limitPrice) {
				return false
			}
			if side == model.SideSell && level.Price.LessThan(*limitPrice) {
				return false
			}
		}
		available := level.TotalSize()
		take := decimal.Min(remaining, available)
		if take.IsPositive() {
			fills = append(fills, Fill{
				Price: level.Price,
				Qty:   model.NewQuantity(take, qty.Precision()),
			})
			remaining = remaining.Sub(take)
		}
		return remaining.IsPositive()
	})
	return fills
}

// DepthLevel 快照中的一个档位
type DepthLevel struct {
	Price model.Price     `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Snapshot 订单簿深度快照
type Snapshot struct {
	InstrumentID model.InstrumentID `json:"instrument_id"`
	Bids         []DepthLevel       `json:"bids"`
	Asks         []DepthLevel       `json:"asks"`
	Sequence     uint64             `json:"sequence"`
	TsEvent      time.Time          `json:"ts_event"`
}

// TakeSnapshot 采集双侧前 depth 档
func (b *OrderBook) TakeSnapshot(depth int) *Snapshot {
	return &Snapshot{
		InstrumentID: b.InstrumentID,
		Bids:         collect(b.Bids, depth),
		Asks:         collect(b.Asks, depth),
		Sequence:     b.sequence,
		TsEvent:      b.tsLast,
	}
}

func collect(l *Ladder, depth int) []DepthLevel {
	levels := make([]DepthLevel, 0, depth)
	l.Walk(func(level *Level) bool {
		levels = append(levels, DepthLevel{Price: level.Price, Size: level.TotalSize()})
		return len(levels) < depth
	})
	return levels
}
