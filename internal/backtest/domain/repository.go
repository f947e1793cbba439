package domain

import "context"

// BacktestRepository 回测任务与结果仓储
type BacktestRepository interface {
	SaveTask(ctx context.Context, task *BacktestTask) error
	FindTaskByID(ctx context.Context, taskID string) (*BacktestTask, error)
	SaveResult(ctx context.Context, result *BacktestResult) error
	FindResultByTaskID(ctx context.Context, taskID string) (*BacktestResult, error)
}
