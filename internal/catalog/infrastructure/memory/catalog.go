// Package memory 内存数据目录，回测与测试用
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wyfcoding/tradingengine/internal/catalog/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
)

type record struct {
	data model.Data
	seq  uint64 // 写入顺序，同一时间戳的稳定次序
}

// Catalog 内存目录
type Catalog struct {
	mu      sync.RWMutex
	records []record
	nextSeq uint64
}

// NewCatalog 构造内存目录
func NewCatalog() *Catalog {
	return &Catalog{}
}

// WriteData 追加记录
func (c *Catalog) WriteData(_ context.Context, records []model.Data) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range records {
		if _, err := domain.KindOf(d); err != nil {
			return fmt.Errorf("%w: %T", err, d)
		}
		c.records = append(c.records, record{data: d, seq: c.nextSeq})
		c.nextSeq++
	}
	return nil
}

// QueryQuoteTicks 按时间范围取报价
func (c *Catalog) QueryQuoteTicks(_ context.Context, id model.InstrumentID, start, end time.Time) ([]model.QuoteTick, error) {
	var out []model.QuoteTick
	for _, r := range c.sorted() {
		if tick, ok := r.data.(model.QuoteTick); ok && tick.InstrumentID == id && domain.InRange(tick.TsEvent, start, end) {
			out = append(out, tick)
		}
	}
	return out, nil
}

// QueryTradeTicks 按时间范围取逐笔成交
func (c *Catalog) QueryTradeTicks(_ context.Context, id model.InstrumentID, start, end time.Time) ([]model.TradeTick, error) {
	var out []model.TradeTick
	for _, r := range c.sorted() {
		if tick, ok := r.data.(model.TradeTick); ok && tick.InstrumentID == id && domain.InRange(tick.TsEvent, start, end) {
			out = append(out, tick)
		}
	}
	return out, nil
}

// QueryBookDeltas 按时间范围取订单簿增量
func (c *Catalog) QueryBookDeltas(_ context.Context, id model.InstrumentID, start, end time.Time) ([]model.OrderBookDelta, error) {
	var out []model.OrderBookDelta
	for _, r := range c.sorted() {
		if d, ok := r.data.(model.OrderBookDelta); ok && d.InstrumentID == id && domain.InRange(d.TsEvent, start, end) {
			out = append(out, d)
		}
	}
	return out, nil
}

// QueryBars 按时间范围取 K 线
func (c *Catalog) QueryBars(_ context.Context, barType model.BarType, start, end time.Time) ([]model.Bar, error) {
	var out []model.Bar
	for _, r := range c.sorted() {
		if b, ok := r.data.(model.Bar); ok && b.Type == barType && domain.InRange(b.TsEvent, start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// QueryAll 跨类型合并，事件时间升序，同时间戳按写入顺序
func (c *Catalog) QueryAll(_ context.Context, ids []model.InstrumentID, start, end time.Time) ([]model.Data, error) {
	wanted := make(map[model.InstrumentID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []model.Data
	for _, r := range c.sorted() {
		if len(wanted) > 0 {
			if _, ok := wanted[r.data.DataInstrument()]; !ok {
				continue
			}
		}
		if domain.InRange(r.data.EventTime(), start, end) {
			out = append(out, r.data)
		}
	}
	return out, nil
}

func (c *Catalog) sorted() []record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]record, len(c.records))
	copy(out, c.records)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].data.EventTime(), out[j].data.EventTime()
		if ti.Equal(tj) {
			return out[i].seq < out[j].seq
		}
		return ti.Before(tj)
	})
	return out
}
