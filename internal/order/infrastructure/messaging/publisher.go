// Package messaging 订单领域事件的 Kafka 发布实现
package messaging

import (
	"context"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/pkg/mq"
)

// KafkaPublisher 将领域事件发布到 Kafka
// 事件主题映射到配置的统一 topic，领域主题作为消息 key 前缀保留
type KafkaPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaPublisher 创建 Kafka 事件发布器
func NewKafkaPublisher(producer *mq.KafkaProducer, topic string) domain.EventPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish 发布事件，key 保证同一订单的事件落在同一分区内有序
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, event any) error {
	return p.producer.SendMessage(ctx, p.topic, key, map[string]any{
		"type":    eventType,
		"payload": event,
	})
}

// NopPublisher 空实现，Kafka 未配置时使用
type NopPublisher struct{}

// NewNopPublisher 创建空事件发布器
func NewNopPublisher() domain.EventPublisher {
	return &NopPublisher{}
}

// Publish 丢弃事件
func (p *NopPublisher) Publish(context.Context, string, string, any) error {
	return nil
}
