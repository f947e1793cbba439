package domain

import (
	"context"

	"github.com/wyfcoding/tradingengine/internal/clock"
	dataapp "github.com/wyfcoding/tradingengine/internal/data/application"
	executiondomain "github.com/wyfcoding/tradingengine/internal/execution/domain"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
	portfolioapp "github.com/wyfcoding/tradingengine/internal/portfolio/application"
)

// TradingContext 策略可见的引擎面。回测与实盘注入同一套接口，
// 策略代码两种模式下不改一行。
type TradingContext struct {
	Clock     clock.Clock
	Cache     *executiondomain.Cache
	Portfolio *portfolioapp.Portfolio
	Data      *dataapp.DataEngine

	// Execute 提交交易命令到执行引擎
	Execute func(ctx context.Context, cmd executiondomain.Command) error
}

// Strategy 策略回调面。OnStart 里完成数据订阅；订单事件与数据
// 都在引擎事件环上同步回调，回调内读到的缓存与事件流一致。
type Strategy interface {
	Name() string
	OnStart(tc *TradingContext) error
	OnOrderEvent(ev orderdomain.OrderEvent)
	OnStop(tc *TradingContext)
}
