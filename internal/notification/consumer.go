package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// Consumer читает события из Kafka
type Consumer interface {
	Start(ctx context.Context) error
	Close() error
}

type EventHandler interface {
	HandleEvent(ctx context.Context, event TaskEvent) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type kafkaConsumer struct {
	reader  messageReader
	handler EventHandler
	logger  *log.Logger
	topic   string
	groupID string
}

func NewKafkaConsumer(brokers []string, topic, groupID string, handler EventHandler, logger *log.Logger) Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, handler, logger, topic, groupID)
}

func newConsumer(reader messageReader, handler EventHandler, logger *log.Logger, topic, groupID string) *kafkaConsumer {
	if logger == nil {
		logger = log.Default()
	}
	return &kafkaConsumer{
		reader:  reader,
		handler: handler,
		logger:  logger,
		topic:   topic,
		groupID: groupID,
	}
}

// Start читает сообщения в цикле до отмены контекста.
// Битые сообщения и ошибки обработчика логируются и пропускаются.
func (c *kafkaConsumer) Start(ctx context.Context) error {
	c.logger.Printf("kafka consumer started (topic=%s, group=%s)", c.topic, c.groupID)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Printf("read message error: %v", err)
			continue
		}

		var event TaskEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Printf("unmarshal task event error: %v", err)
			continue
		}

		if err := c.handler.HandleEvent(ctx, event); err != nil {
			c.logger.Printf("handle event %s for task %s: %v", event.Type, event.TaskID, err)
		}
	}
}

func (c *kafkaConsumer) Close() error {
	return c.reader.Close()
}
