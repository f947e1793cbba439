// Package messaging 把引擎事件环上的事件投影到 Kafka，供下游
// 风控、清算与报表消费。投递失败只记日志不回压事件环。
package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"

	accountdomain "github.com/wyfcoding/tradingengine/internal/account/domain"
	executiondomain "github.com/wyfcoding/tradingengine/internal/execution/domain"
	orderdomain "github.com/wyfcoding/tradingengine/internal/order/domain"
	positiondomain "github.com/wyfcoding/tradingengine/internal/position/domain"
	"github.com/wyfcoding/tradingengine/pkg/logger"
	"github.com/wyfcoding/tradingengine/pkg/mq"
)

// Kafka 主题
const (
	TopicOrderEvents    = "trading.order-events"
	TopicPositionEvents = "trading.position-events"
	TopicAccountEvents  = "trading.account-events"
)

// EventEnvelope 跨服务事件信封
type EventEnvelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Producer 消息生产者出口，pkg/mq 的 KafkaProducer 满足该接口
type Producer interface {
	SendMessage(ctx context.Context, topic string, key string, value interface{}) error
}

var _ Producer = (*mq.KafkaProducer)(nil)

// KafkaEventPublisher 订阅进程内总线并转投 Kafka
type KafkaEventPublisher struct {
	producer Producer
}

// NewKafkaEventPublisher 创建事件投影器
func NewKafkaEventPublisher(producer Producer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// Attach 接入总线。订阅发生在引擎启动前，单写者约束不被破坏。
func (p *KafkaEventPublisher) Attach(bus *executiondomain.MessageBus) {
	bus.Subscribe(executiondomain.TopicOrderEvents, p.onOrderEvent)
	bus.Subscribe(executiondomain.TopicPositionEvents, p.onPositionEvent)
	bus.Subscribe(executiondomain.TopicAccountEvents, p.onAccountEvent)
}

func (p *KafkaEventPublisher) onOrderEvent(msg any) {
	ev, ok := msg.(orderdomain.OrderEvent)
	if !ok {
		return
	}
	p.send(TopicOrderEvents, string(ev.OrderID()), ev.EventType(), ev.OccurredAt(), ev)
}

func (p *KafkaEventPublisher) onPositionEvent(msg any) {
	ev, ok := msg.(positiondomain.PositionEvent)
	if !ok {
		return
	}
	p.send(TopicPositionEvents, string(ev.PositionID()), ev.EventType(), ev.OccurredAt(), ev)
}

func (p *KafkaEventPublisher) onAccountEvent(msg any) {
	s, ok := msg.(*accountdomain.AccountState)
	if !ok {
		return
	}
	p.send(TopicAccountEvents, string(s.AccountID), "AccountState", s.TsEvent, s)
}

func (p *KafkaEventPublisher) send(topic, key, eventType string, occurredAt time.Time, payload any) {
	envelope := EventEnvelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: occurredAt,
		Payload:    payload,
	}
	if err := p.producer.SendMessage(context.Background(), topic, key, envelope); err != nil {
		logger.Error(context.Background(), "failed to publish event to kafka",
			"topic", topic, "event_type", eventType, "error", err)
	}
}
