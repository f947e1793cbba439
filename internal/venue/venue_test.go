package venue

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

// testnet 开关与地址选择是显式一一对应的映射，不从别的配置推断
func TestEndpointSelectionFollowsTestnetFlag(t *testing.T) {
	cfg := Config{
		Name:       "BYBIT",
		Production: Endpoints{RESTURL: "https://api.bybit.com", WSURL: "wss://stream.bybit.com"},
		TestNet:    Endpoints{RESTURL: "https://api-testnet.bybit.com", WSURL: "wss://stream-testnet.bybit.com"},
	}

	cfg.Testnet = false
	assert.Equal(t, "https://api.bybit.com", cfg.Endpoints().RESTURL)

	cfg.Testnet = true
	assert.Equal(t, "https://api-testnet.bybit.com", cfg.Endpoints().RESTURL)
	assert.Equal(t, "wss://stream-testnet.bybit.com", cfg.Endpoints().WSURL)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryableClassification(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(Retryable(errors.New("http 503"))))
	assert.True(t, IsRetryable(timeoutErr{}))
	assert.True(t, IsRetryable(syscall.ECONNRESET))
	assert.True(t, IsRetryable(context.DeadlineExceeded))

	// 认证失败、非法请求不可重试
	assert.False(t, IsRetryable(errors.New("invalid api key")))
	assert.False(t, IsRetryable(errors.New("http 400 bad request")))
}

func TestRetryableUnwraps(t *testing.T) {
	inner := errors.New("connection dropped")
	err := Retryable(inner)
	assert.ErrorIs(t, err, inner)
	assert.Nil(t, Retryable(nil))
}
