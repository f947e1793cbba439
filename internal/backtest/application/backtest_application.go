package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/pkg/idgen"

	"github.com/wyfcoding/tradingengine/internal/backtest/domain"
	catalogdomain "github.com/wyfcoding/tradingengine/internal/catalog/domain"
	"github.com/wyfcoding/tradingengine/internal/model"
	"github.com/wyfcoding/tradingengine/pkg/logger"
	"github.com/wyfcoding/tradingengine/pkg/metrics"
)

// ErrUnknownStrategy 未注册的策略标识
var ErrUnknownStrategy = fmt.Errorf("unknown strategy id")

// StrategyFactory 每次回测都构造一个新的策略实例，避免跨任务串状态
type StrategyFactory func() domain.Strategy

// BacktestService 回测应用服务：接收配置、异步跑引擎、落库任务与报告
type BacktestService struct {
	repo       domain.BacktestRepository
	catalog    catalogdomain.Catalog
	strategies map[model.StrategyID]StrategyFactory
	m          *metrics.Metrics
}

func NewBacktestService(repo domain.BacktestRepository, catalog catalogdomain.Catalog, m *metrics.Metrics) *BacktestService {
	return &BacktestService{
		repo:       repo,
		catalog:    catalog,
		strategies: make(map[model.StrategyID]StrategyFactory),
		m:          m,
	}
}

// RegisterStrategy 注册可回测的策略
func (s *BacktestService) RegisterStrategy(id model.StrategyID, f StrategyFactory) {
	s.strategies[id] = f
}

// RunBacktest 受理一次回测。配置校验与策略查找同步完成，
// 引擎在后台 goroutine 里跑，调用方拿任务号轮询状态。
func (s *BacktestService) RunBacktest(ctx context.Context, cfg domain.BacktestConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	factory, ok := s.strategies[cfg.StrategyID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStrategy, cfg.StrategyID)
	}

	taskID := fmt.Sprintf("BT-%d", idgen.GenID())
	cfg.RunID = taskID
	task := &domain.BacktestTask{
		TaskID:     taskID,
		StrategyID: cfg.StrategyID,
		Config:     cfg,
		Status:     domain.TaskPending,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.SaveTask(ctx, task); err != nil {
		return "", fmt.Errorf("save backtest task: %w", err)
	}
	logger.Info(ctx, "backtest task accepted", "task_id", taskID, "strategy", cfg.StrategyID)

	go s.runTask(task, factory)
	return taskID, nil
}

func (s *BacktestService) runTask(task *domain.BacktestTask, factory StrategyFactory) {
	ctx := context.Background()
	task.Status = domain.TaskRunning
	if err := s.repo.SaveTask(ctx, task); err != nil {
		logger.Error(ctx, "failed to mark backtest running", "task_id", task.TaskID, "error", err)
	}

	started := time.Now()
	result, err := s.runEngine(ctx, task, factory)
	finished := time.Now()
	task.FinishedAt = &finished

	if s.m != nil {
		s.m.BacktestDuration.Observe(finished.Sub(started).Seconds())
	}

	if err != nil {
		logger.Error(ctx, "backtest failed", "task_id", task.TaskID, "error", err)
		task.Status = domain.TaskFailed
		task.Error = err.Error()
		if saveErr := s.repo.SaveTask(ctx, task); saveErr != nil {
			logger.Error(ctx, "failed to persist failed task", "task_id", task.TaskID, "error", saveErr)
		}
		return
	}

	if err := s.repo.SaveResult(ctx, result); err != nil {
		logger.Error(ctx, "failed to persist backtest result", "task_id", task.TaskID, "error", err)
		task.Status = domain.TaskFailed
		task.Error = err.Error()
		s.repo.SaveTask(ctx, task)
		return
	}
	task.Status = domain.TaskCompleted
	if err := s.repo.SaveTask(ctx, task); err != nil {
		logger.Error(ctx, "failed to persist completed task", "task_id", task.TaskID, "error", err)
		return
	}
	logger.Info(ctx, "backtest completed",
		"task_id", task.TaskID,
		"trades", result.TotalTrades,
		"realized_pnl", result.RealizedPnL,
		"max_drawdown", result.MaxDrawdown,
		"duration", finished.Sub(started))
}

func (s *BacktestService) runEngine(ctx context.Context, task *domain.BacktestTask, factory StrategyFactory) (*domain.BacktestResult, error) {
	engine, err := domain.NewBacktestEngine(task.Config, s.catalog, factory(), s.m)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx)
}

// GetTask 任务状态
func (s *BacktestService) GetTask(ctx context.Context, taskID string) (*domain.BacktestTask, error) {
	return s.repo.FindTaskByID(ctx, taskID)
}

// GetReport 回测报告
func (s *BacktestService) GetReport(ctx context.Context, taskID string) (*domain.BacktestResult, error) {
	return s.repo.FindResultByTaskID(ctx, taskID)
}
