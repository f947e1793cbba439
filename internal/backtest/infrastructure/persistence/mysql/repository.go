// Package mysql 回测任务与结果的 GORM 仓储。配置、余额与权益曲线
// 序列化为 JSON 列存储，查询按任务号主键定位。
package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/tradingengine/internal/backtest/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
)

// BacktestTaskModel 回测任务行
type BacktestTaskModel struct {
	TaskID     string     `gorm:"column:task_id;primaryKey;type:varchar(64)"`
	StrategyID string     `gorm:"column:strategy_id;type:varchar(64);index"`
	Config     []byte     `gorm:"column:config;type:json"`
	Status     string     `gorm:"column:status;type:varchar(20);index"`
	Error      string     `gorm:"column:error;type:varchar(512)"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
}

// TableName 表名
func (BacktestTaskModel) TableName() string { return "backtest_tasks" }

// BacktestResultModel 回测结果行
type BacktestResultModel struct {
	TaskID     string    `gorm:"column:task_id;primaryKey;type:varchar(64)"`
	StrategyID string    `gorm:"column:strategy_id;type:varchar(64);index"`
	Report     []byte    `gorm:"column:report;type:json"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 表名
func (BacktestResultModel) TableName() string { return "backtest_results" }

type backtestRepository struct {
	db *gorm.DB
}

// NewBacktestRepository 创建回测仓储
func NewBacktestRepository(db *gorm.DB) domain.BacktestRepository {
	return &backtestRepository{db: db}
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&BacktestTaskModel{}, &BacktestResultModel{})
}

func (r *backtestRepository) SaveTask(ctx context.Context, task *domain.BacktestTask) error {
	cfg, err := json.Marshal(task.Config)
	if err != nil {
		return fmt.Errorf("marshal backtest config: %w", err)
	}
	row := &BacktestTaskModel{
		TaskID:     task.TaskID,
		StrategyID: string(task.StrategyID),
		Config:     cfg,
		Status:     task.Status,
		Error:      task.Error,
		CreatedAt:  task.CreatedAt,
		FinishedAt: task.FinishedAt,
	}
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *backtestRepository) FindTaskByID(ctx context.Context, taskID string) (*domain.BacktestTask, error) {
	var row BacktestTaskModel
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&row).Error; err != nil {
		return nil, err
	}
	task := &domain.BacktestTask{
		TaskID:     row.TaskID,
		StrategyID: model.StrategyID(row.StrategyID),
		Status:     row.Status,
		Error:      row.Error,
		CreatedAt:  row.CreatedAt,
		FinishedAt: row.FinishedAt,
	}
	if len(row.Config) > 0 {
		if err := json.Unmarshal(row.Config, &task.Config); err != nil {
			return nil, fmt.Errorf("unmarshal backtest config: %w", err)
		}
	}
	return task, nil
}

func (r *backtestRepository) SaveResult(ctx context.Context, result *domain.BacktestResult) error {
	report, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal backtest result: %w", err)
	}
	row := &BacktestResultModel{
		TaskID:     result.TaskID,
		StrategyID: string(result.StrategyID),
		Report:     report,
	}
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *backtestRepository) FindResultByTaskID(ctx context.Context, taskID string) (*domain.BacktestResult, error) {
	var row BacktestResultModel
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&row).Error; err != nil {
		return nil, err
	}
	var result domain.BacktestResult
	if err := json.Unmarshal(row.Report, &result); err != nil {
		return nil, fmt.Errorf("unmarshal backtest result: %w", err)
	}
	return &result, nil
}
