// Package mysql 数据目录的 MySQL 实现。记录按 (kind, instrument, ts_event)
// 行存，负载整体 JSON 编码，查询时按事件时间与写入顺序稳定排序。
package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/tradingengine/internal/catalog/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
)

// DataRecordModel 行情数据表映射
type DataRecordModel struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement;column:id"`
	Kind       string    `gorm:"column:kind;type:varchar(20);index:idx_kind_inst_ts;not null"`
	Instrument string    `gorm:"column:instrument;type:varchar(64);index:idx_kind_inst_ts;not null"`
	BarType    string    `gorm:"column:bar_type;type:varchar(96);index"`
	TsEvent    time.Time `gorm:"column:ts_event;index:idx_kind_inst_ts;not null"`
	Payload    []byte    `gorm:"column:payload;type:json;not null"`
}

func (DataRecordModel) TableName() string { return "data_records" }

type catalogRepository struct{ db *gorm.DB }

// NewCatalogRepository 构造 MySQL 目录
func NewCatalogRepository(db *gorm.DB) domain.Catalog {
	return &catalogRepository{db: db}
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&DataRecordModel{})
}

func (r *catalogRepository) WriteData(ctx context.Context, records []model.Data) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]DataRecordModel, 0, len(records))
	for _, d := range records {
		kind, err := domain.KindOf(d)
		if err != nil {
			return fmt.Errorf("%w: %T", err, d)
		}
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal %s record: %w", kind, err)
		}
		row := DataRecordModel{
			Kind:       kind,
			Instrument: d.DataInstrument().String(),
			TsEvent:    d.EventTime(),
			Payload:    payload,
		}
		if bar, ok := d.(model.Bar); ok {
			row.BarType = bar.Type.String()
		}
		rows = append(rows, row)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *catalogRepository) query(ctx context.Context, kind, instrument string, start, end time.Time) ([]DataRecordModel, error) {
	q := r.db.WithContext(ctx).Model(&DataRecordModel{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if instrument != "" {
		q = q.Where("instrument = ?", instrument)
	}
	if !start.IsZero() {
		q = q.Where("ts_event >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("ts_event < ?", end)
	}
	var rows []DataRecordModel
	err := q.Order("ts_event ASC, id ASC").Find(&rows).Error
	return rows, err
}

func (r *catalogRepository) QueryQuoteTicks(ctx context.Context, id model.InstrumentID, start, end time.Time) ([]model.QuoteTick, error) {
	rows, err := r.query(ctx, domain.KindQuoteTick, id.String(), start, end)
	if err != nil {
		return nil, err
	}
	out := make([]model.QuoteTick, 0, len(rows))
	for _, row := range rows {
		var tick model.QuoteTick
		if err := json.Unmarshal(row.Payload, &tick); err != nil {
			return nil, fmt.Errorf("unmarshal quote tick %d: %w", row.ID, err)
		}
		out = append(out, tick)
	}
	return out, nil
}

func (r *catalogRepository) QueryTradeTicks(ctx context.Context, id model.InstrumentID, start, end time.Time) ([]model.TradeTick, error) {
	rows, err := r.query(ctx, domain.KindTradeTick, id.String(), start, end)
	if err != nil {
		return nil, err
	}
	out := make([]model.TradeTick, 0, len(rows))
	for _, row := range rows {
		var tick model.TradeTick
		if err := json.Unmarshal(row.Payload, &tick); err != nil {
			return nil, fmt.Errorf("unmarshal trade tick %d: %w", row.ID, err)
		}
		out = append(out, tick)
	}
	return out, nil
}

func (r *catalogRepository) QueryBookDeltas(ctx context.Context, id model.InstrumentID, start, end time.Time) ([]model.OrderBookDelta, error) {
	rows, err := r.query(ctx, domain.KindBookDelta, id.String(), start, end)
	if err != nil {
		return nil, err
	}
	out := make([]model.OrderBookDelta, 0, len(rows))
	for _, row := range rows {
		var d model.OrderBookDelta
		if err := json.Unmarshal(row.Payload, &d); err != nil {
			return nil, fmt.Errorf("unmarshal book delta %d: %w", row.ID, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *catalogRepository) QueryBars(ctx context.Context, barType model.BarType, start, end time.Time) ([]model.Bar, error) {
	q := r.db.WithContext(ctx).Model(&DataRecordModel{}).
		Where("kind = ?", domain.KindBar).
		Where("bar_type = ?", barType.String())
	if !start.IsZero() {
		q = q.Where("ts_event >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("ts_event < ?", end)
	}
	var rows []DataRecordModel
	if err := q.Order("ts_event ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Bar, 0, len(rows))
	for _, row := range rows {
		var b model.Bar
		if err := json.Unmarshal(row.Payload, &b); err != nil {
			return nil, fmt.Errorf("unmarshal bar %d: %w", row.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *catalogRepository) QueryAll(ctx context.Context, ids []model.InstrumentID, start, end time.Time) ([]model.Data, error) {
	q := r.db.WithContext(ctx).Model(&DataRecordModel{})
	if len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, id.String())
		}
		q = q.Where("instrument IN ?", keys)
	}
	if !start.IsZero() {
		q = q.Where("ts_event >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("ts_event < ?", end)
	}
	var rows []DataRecordModel
	if err := q.Order("ts_event ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Data, 0, len(rows))
	for _, row := range rows {
		d, err := decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func decode(row DataRecordModel) (model.Data, error) {
	switch row.Kind {
	case domain.KindQuoteTick:
		var v model.QuoteTick
		return v, json.Unmarshal(row.Payload, &v)
	case domain.KindTradeTick:
		var v model.TradeTick
		return v, json.Unmarshal(row.Payload, &v)
	case domain.KindBookDelta:
		var v model.OrderBookDelta
		return v, json.Unmarshal(row.Payload, &v)
	case domain.KindBar:
		var v model.Bar
		return v, json.Unmarshal(row.Payload, &v)
	default:
		return nil, fmt.Errorf("%w: kind %q", domain.ErrUnsupportedData, row.Kind)
	}
}
