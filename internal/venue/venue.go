// Package venue 场所适配器契约。每个交易所集成实现 Adapter，
// 引擎只依赖该接口与统一的事件出口，不感知具体交易所协议。
package venue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/wyfcoding/tradingengine/internal/model"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
)

// Endpoints 一个场所的生产与测试网地址
type Endpoints struct {
	RESTURL string
	WSURL   string
}

// Config 适配器配置。Testnet 是独立的显式开关：选择地址只看这个布尔值，
// 不从别的配置项推断。
type Config struct {
	Name       model.Venue
	Testnet    bool
	Production Endpoints
	TestNet    Endpoints
	APIKey     string
	APISecret  string
}

// Endpoints 按 Testnet 开关返回应当使用的地址
func (c Config) Endpoints() Endpoints {
	if c.Testnet {
		return c.TestNet
	}
	return c.Production
}

// Adapter 场所适配器。Connect/Disconnect 幂等：对已连接的适配器再次
// Connect 是空操作，Disconnect 同理。重连后适配器必须自行重发全部
// 活跃订阅，策略侧除日志可见的数据缺口外无感知。
type Adapter interface {
	Name() model.Venue
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	SubmitOrder(ctx context.Context, o *orderdomain.Order) error
	CancelOrder(ctx context.Context, o *orderdomain.Order) error
	ModifyOrder(ctx context.Context, o *orderdomain.Order, newQty model.Quantity, newPrice *model.Price) error
	RequestAccountState(ctx context.Context) error

	SubscribeQuotes(ctx context.Context, id model.InstrumentID) error
	SubscribeTrades(ctx context.Context, id model.InstrumentID) error
	SubscribeBookDeltas(ctx context.Context, id model.InstrumentID) error
}

// ErrNotConnected 未连接时发出命令
var ErrNotConnected = errors.New("venue adapter not connected")

// RetryableError 可重试的场所错误：超时、连接重置、瞬时 5xx。
// 触发适配器的重连/退避策略，而不是上抛给策略。
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable venue error: %v", e.Err) }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable 包装为可重试错误
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable 错误分类。网络超时与连接级故障可重试；
// 认证失败、非法请求等其余错误不可重试，以拒绝事件形式传给策略。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, context.DeadlineExceeded)
}
