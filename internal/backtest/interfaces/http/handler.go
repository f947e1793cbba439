package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/tradingengine/internal/backtest/application"
	"github.com/wyfcoding/tradingengine/internal/backtest/domain"
	"github.com/wyfcoding/tradingengine/pkg/logger"
)

// BacktestHandler 回测 HTTP 接口
type BacktestHandler struct {
	svc *application.BacktestService
}

// NewBacktestHandler 创建 HTTP 处理器
func NewBacktestHandler(svc *application.BacktestService) *BacktestHandler {
	return &BacktestHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *BacktestHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/backtest")
	{
		api.POST("/run", h.RunBacktest)
		api.GET("/tasks/:id", h.GetTask)
		api.GET("/tasks/:id/report", h.GetReport)
	}
}

// RunBacktest 受理回测任务
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var cfg domain.BacktestConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	taskID, err := h.svc.RunBacktest(c.Request.Context(), cfg)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to accept backtest", "strategy", cfg.StrategyID, "error", err)
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	response.Success(c, gin.H{"task_id": taskID})
}

// GetTask 查询任务状态
func (h *BacktestHandler) GetTask(c *gin.Context) {
	taskID := c.Param("id")
	task, err := h.svc.GetTask(c.Request.Context(), taskID)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
		return
	}
	response.Success(c, task)
}

// GetReport 查询回测报告。任务未完成时报告尚不存在。
func (h *BacktestHandler) GetReport(c *gin.Context) {
	taskID := c.Param("id")
	report, err := h.svc.GetReport(c.Request.Context(), taskID)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
		return
	}
	response.Success(c, report)
}
