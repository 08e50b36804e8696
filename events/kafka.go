package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafkaWriter kafka.Writer 的可替换子集
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 以玩家为 key 写入同一 topic，保证同一玩家的事件有序
type KafkaPublisher struct {
	w kafkaWriter
}

// NewKafkaPublisher 按 key 哈希分区。
// onError 非 nil 时异步写入，失败经由回调上报，不阻塞请求。
func NewKafkaPublisher(brokers []string, topic string, onError func(error)) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	if onError != nil {
		w.Async = true
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil {
				onError(fmt.Errorf("kafka write %d messages: %w", len(msgs), err))
			}
		}
	}
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := e.Encode()
	if err != nil {
		return err
	}
	key := e.Player
	if key == "" {
		key = string(e.Type)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data}); err != nil {
		return fmt.Errorf("kafka write %s: %w", e.Type, err)
	}
	return nil
}

// Close 刷新并关闭 writer
func (p *KafkaPublisher) Close() error { return p.w.Close() }
