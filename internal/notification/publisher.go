package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, event TaskEvent) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) Publisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &kafkaPublisher{writer: writer}
}

// Publish отправляет событие задачи в Kafka, ключ: id задачи.
func (p *kafkaPublisher) Publish(ctx context.Context, event TaskEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TaskID),
		Value: eventJSON,
		Time:  time.Now(),
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type directPublisher struct {
	handler EventHandler
}

// NewDirectPublisher hands events straight to handler. Used when no brokers are configured.
func NewDirectPublisher(handler EventHandler) Publisher {
	return &directPublisher{handler: handler}
}

func (p *directPublisher) Publish(ctx context.Context, event TaskEvent) error {
	return p.handler.HandleEvent(ctx, event)
}

func (p *directPublisher) Close() error {
	return nil
}
