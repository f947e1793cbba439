package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/tradingengine/internal/backtest/domain"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) GetJSON(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.data[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (s *memStore) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

type countingRepo struct {
	tasks       map[string]*domain.BacktestTask
	results     map[string]*domain.BacktestResult
	taskReads   int
	resultReads int
}

func newCountingRepo() *countingRepo {
	return &countingRepo{
		tasks:   make(map[string]*domain.BacktestTask),
		results: make(map[string]*domain.BacktestResult),
	}
}

func (r *countingRepo) SaveTask(_ context.Context, t *domain.BacktestTask) error {
	r.tasks[t.TaskID] = t
	return nil
}

func (r *countingRepo) FindTaskByID(_ context.Context, id string) (*domain.BacktestTask, error) {
	r.taskReads++
	t, ok := r.tasks[id]
	if !ok {
		return nil, errors.New("task not found")
	}
	return t, nil
}

func (r *countingRepo) SaveResult(_ context.Context, res *domain.BacktestResult) error {
	r.results[res.TaskID] = res
	return nil
}

func (r *countingRepo) FindResultByTaskID(_ context.Context, id string) (*domain.BacktestResult, error) {
	r.resultReads++
	res, ok := r.results[id]
	if !ok {
		return nil, errors.New("result not found")
	}
	return res, nil
}

func TestResultServedFromCacheAfterSave(t *testing.T) {
	ctx := context.Background()
	inner := newCountingRepo()
	repo := NewCachedRepository(inner, newMemStore(), time.Hour)

	require.NoError(t, repo.SaveResult(ctx, &domain.BacktestResult{TaskID: "BT-1", TotalTrades: 3}))

	got, err := repo.FindResultByTaskID(ctx, "BT-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalTrades)
	assert.Equal(t, 0, inner.resultReads, "write-through cache should absorb the read")
}

func TestResultCacheMissFallsThrough(t *testing.T) {
	ctx := context.Background()
	inner := newCountingRepo()
	inner.results["BT-2"] = &domain.BacktestResult{TaskID: "BT-2", TotalTrades: 1}
	repo := NewCachedRepository(inner, newMemStore(), time.Hour)

	_, err := repo.FindResultByTaskID(ctx, "BT-2")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.resultReads)

	_, err = repo.FindResultByTaskID(ctx, "BT-2")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.resultReads, "second read should hit the cache")
}

func TestSaveTaskInvalidatesCachedStatus(t *testing.T) {
	ctx := context.Background()
	inner := newCountingRepo()
	repo := NewCachedRepository(inner, newMemStore(), time.Hour)

	task := &domain.BacktestTask{TaskID: "BT-3", Status: domain.TaskPending}
	require.NoError(t, repo.SaveTask(ctx, task))

	got, err := repo.FindTaskByID(ctx, "BT-3")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, got.Status)

	task.Status = domain.TaskCompleted
	require.NoError(t, repo.SaveTask(ctx, task))

	got, err = repo.FindTaskByID(ctx, "BT-3")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, got.Status)
}
