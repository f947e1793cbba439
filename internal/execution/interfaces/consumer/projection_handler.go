// Package consumer 消费 Kafka 上的引擎事件并投影为读模型。
package consumer

import (
	"context"
	"encoding/json"

	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
	"github.com/wyfcoding/tradingengine/pkg/logger"
	"github.com/wyfcoding/tradingengine/pkg/mq"
)

// FillProjector 成交投影出口
type FillProjector interface {
	ProjectFill(ctx context.Context, ev *orderdomain.OrderFilled) error
}

// envelope 与发布侧 EventEnvelope 对应，payload 延迟解码
type envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// EventProjectionHandler 订单事件投影处理器。只关心成交事件，
// 其余事件类型直接确认跳过。
type EventProjectionHandler struct {
	projector FillProjector
}

// NewEventProjectionHandler 创建投影处理器
func NewEventProjectionHandler(projector FillProjector) *EventProjectionHandler {
	return &EventProjectionHandler{projector: projector}
}

// Handle 处理一条 Kafka 消息。解码失败返回错误交由调用方进死信。
func (h *EventProjectionHandler) Handle(ctx context.Context, msg *mq.Message) error {
	var env envelope
	if err := msg.UnmarshalPayload(&env); err != nil {
		logger.Error(ctx, "failed to unmarshal event envelope", "topic", msg.Topic, "error", err)
		return err
	}
	if env.EventType != orderdomain.OrderFilledEventType {
		return nil
	}

	var ev orderdomain.OrderFilled
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		logger.Error(ctx, "failed to unmarshal fill event", "event_id", env.EventID, "error", err)
		return err
	}
	return h.projector.ProjectFill(ctx, &ev)
}
