package messaging

import (
	"context"
	"encoding/json"
	"fashion-backend/internal/util"

	"go.uber.org/zap"
)

// logPublisher 未配置 Kafka 时只记录日志
type logPublisher struct{}

func NewLogPublisher() Publisher {
	return logPublisher{}
}

func (logPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	util.Logger.Info("领域事件", zap.String("topic", topic), zap.String("key", key), zap.ByteString("payload", payload))
	return nil
}

func (logPublisher) Close() error { return nil }

// New 根据 brokers 是否配置选择实现
func New(brokers []string) Publisher {
	if len(brokers) == 0 {
		return NewLogPublisher()
	}
	return NewKafkaPublisher(brokers)
}
