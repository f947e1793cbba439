// Package domain 数据目录。引擎对历史数据的唯一要求是能按事件时间
// 升序取回类型化记录，存储编码由具体实现决定。
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/tradingengine/internal/model"
)

// 记录类型
const (
	KindQuoteTick = "quote_tick"
	KindTradeTick = "trade_tick"
	KindBookDelta = "book_delta"
	KindBar       = "bar"
)

// ErrUnsupportedData 目录不认识的数据类型
var ErrUnsupportedData = errors.New("unsupported data type")

// Catalog 数据目录接口。QueryAll 返回跨类型合并后的时间序列，
// 同一时间戳内按写入顺序稳定排序。
type Catalog interface {
	WriteData(ctx context.Context, records []model.Data) error
	QueryQuoteTicks(ctx context.Context, id model.InstrumentID, start, end time.Time) ([]model.QuoteTick, error)
	QueryTradeTicks(ctx context.Context, id model.InstrumentID, start, end time.Time) ([]model.TradeTick, error)
	QueryBookDeltas(ctx context.Context, id model.InstrumentID, start, end time.Time) ([]model.OrderBookDelta, error)
	QueryBars(ctx context.Context, barType model.BarType, start, end time.Time) ([]model.Bar, error)
	QueryAll(ctx context.Context, ids []model.InstrumentID, start, end time.Time) ([]model.Data, error)
}

// InRange 判断事件时间是否落在 [start, end) 内，零值边界视为不限
func InRange(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && !ts.Before(end) {
		return false
	}
	return true
}

// KindOf 记录的目录类型
func KindOf(d model.Data) (string, error) {
	switch d.(type) {
	case model.QuoteTick:
		return KindQuoteTick, nil
	case model.TradeTick:
		return KindTradeTick, nil
	case model.OrderBookDelta:
		return KindBookDelta, nil
	case model.Bar:
		return KindBar, nil
	default:
		return "", ErrUnsupportedData
	}
}
