// Package cache 回测仓储的 Redis 读穿透装饰器。报告一旦生成不再变化，
// 适合长 TTL 缓存；任务状态在运行期间频繁变更，写后失效。
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/tradingengine/internal/backtest/domain"
	pkgcache "github.com/wyfcoding/tradingengine/pkg/cache"
	"github.com/wyfcoding/tradingengine/pkg/logger"
)

// Store 缓存出口，pkg/cache 的 RedisCache 满足该接口
type Store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var _ Store = (*pkgcache.RedisCache)(nil)

// CachedRepository 带缓存的回测仓储
type CachedRepository struct {
	inner domain.BacktestRepository
	store Store
	ttl   time.Duration
}

// NewCachedRepository 包装底层仓储
func NewCachedRepository(inner domain.BacktestRepository, store Store, ttl time.Duration) *CachedRepository {
	return &CachedRepository{inner: inner, store: store, ttl: ttl}
}

func taskKey(id string) string   { return fmt.Sprintf("backtest:task:%s", id) }
func resultKey(id string) string { return fmt.Sprintf("backtest:result:%s", id) }

// SaveTask 落库后失效缓存，读侧重新装载最新状态
func (r *CachedRepository) SaveTask(ctx context.Context, task *domain.BacktestTask) error {
	if err := r.inner.SaveTask(ctx, task); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, taskKey(task.TaskID)); err != nil {
		logger.Warn(ctx, "failed to invalidate task cache", "task_id", task.TaskID, "error", err)
	}
	return nil
}

func (r *CachedRepository) FindTaskByID(ctx context.Context, taskID string) (*domain.BacktestTask, error) {
	var task domain.BacktestTask
	if err := r.store.GetJSON(ctx, taskKey(taskID), &task); err == nil {
		return &task, nil
	}
	fresh, err := r.inner.FindTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetJSON(ctx, taskKey(taskID), fresh, r.ttl); err != nil {
		logger.Warn(ctx, "failed to cache task", "task_id", taskID, "error", err)
	}
	return fresh, nil
}

func (r *CachedRepository) SaveResult(ctx context.Context, result *domain.BacktestResult) error {
	if err := r.inner.SaveResult(ctx, result); err != nil {
		return err
	}
	if err := r.store.SetJSON(ctx, resultKey(result.TaskID), result, r.ttl); err != nil {
		logger.Warn(ctx, "failed to cache result", "task_id", result.TaskID, "error", err)
	}
	return nil
}

func (r *CachedRepository) FindResultByTaskID(ctx context.Context, taskID string) (*domain.BacktestResult, error) {
	var result domain.BacktestResult
	if err := r.store.GetJSON(ctx, resultKey(taskID), &result); err == nil {
		return &result, nil
	}
	fresh, err := r.inner.FindResultByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetJSON(ctx, resultKey(taskID), fresh, r.ttl); err != nil {
		logger.Warn(ctx, "failed to cache result", "task_id", taskID, "error", err)
	}
	return fresh, nil
}
