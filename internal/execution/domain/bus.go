package domain

// 常用主题
const (
	TopicOrderEvents    = "events.order"
	TopicPositionEvents = "events.position"
	TopicAccountEvents  = "events.account"
	TopicData           = "data"
)

// Handler 总线订阅回调
type Handler func(msg any)

// MessageBus 进程内发布订阅总线。同一主题的订阅者按订阅先后顺序
// 同步收到消息，投递不重排不合批，保持与上游数据流一致的事件次序。
type MessageBus struct {
	subs map[string][]Handler
}

// NewMessageBus 创建总线
func NewMessageBus() *MessageBus {
	return &MessageBus{subs: make(map[string][]Handler)}
}

// Subscribe 订阅主题
func (b *MessageBus) Subscribe(topic string, h Handler) {
	b.subs[topic] = append(b.subs[topic], h)
}

// Publish 同步投递：按订阅顺序依次调用全部订阅者
func (b *MessageBus) Publish(topic string, msg any) {
	for _, h := range b.subs[topic] {
		h(msg)
	}
}

// SubscriberCount 主题订阅者数量
func (b *MessageBus) SubscriberCount(topic string) int {
	return len(b.subs[topic])
}
