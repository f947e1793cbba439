// Package mysql 成交流水的 GORM 读模型。实盘模式下由 Kafka 投影
// 消费者写入，按 trade_id 幂等，供报表与对账查询。
package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
)

// FillRecordModel 成交流水行
type FillRecordModel struct {
	TradeID       string    `gorm:"column:trade_id;primaryKey;type:varchar(64)"`
	ClientOrderID string    `gorm:"column:client_order_id;type:varchar(64);index"`
	VenueOrderID  string    `gorm:"column:venue_order_id;type:varchar(64)"`
	Quantity      string    `gorm:"column:quantity;type:varchar(40)"`
	Price         string    `gorm:"column:price;type:varchar(40)"`
	Liquidity     string    `gorm:"column:liquidity;type:varchar(10)"`
	Commission    string    `gorm:"column:commission;type:varchar(64)"`
	TsEvent       time.Time `gorm:"column:ts_event;index"`
}

// TableName 表名
func (FillRecordModel) TableName() string { return "fill_records" }

// FillRepository 成交流水仓储
type FillRepository struct {
	db *gorm.DB
}

// NewFillRepository 创建成交流水仓储
func NewFillRepository(db *gorm.DB) *FillRepository {
	return &FillRepository{db: db}
}

// MigrateFills 建表
func MigrateFills(db *gorm.DB) error {
	return db.AutoMigrate(&FillRecordModel{})
}

// SaveFill 幂等写入：重复 trade_id 不更新不报错
func (r *FillRepository) SaveFill(ctx context.Context, rec *FillRecordModel) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

// ProjectFill 把成交事件投影成一行流水
func (r *FillRepository) ProjectFill(ctx context.Context, ev *orderdomain.OrderFilled) error {
	return r.SaveFill(ctx, &FillRecordModel{
		TradeID:       string(ev.TradeID),
		ClientOrderID: string(ev.OrderID()),
		VenueOrderID:  string(ev.VenueOrderID),
		Quantity:      ev.LastQty.String(),
		Price:         ev.LastPx.String(),
		Liquidity:     string(ev.Liquidity),
		Commission:    ev.Commission.String(),
		TsEvent:       ev.OccurredAt(),
	})
}

// FillsByOrder 按订单号查成交流水，时间升序
func (r *FillRepository) FillsByOrder(ctx context.Context, clientOrderID string) ([]FillRecordModel, error) {
	var rows []FillRecordModel
	err := r.db.WithContext(ctx).
		Where("client_order_id = ?", clientOrderID).
		Order("ts_event ASC, trade_id ASC").
		Find(&rows).Error
	return rows, err
}
