package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/FreightBox/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r     messageReader
	topic string
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r:     kafka.NewReader(cfg),
		topic: topic,
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Topic() string { return c.topic }

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume calls handler for every message and commits it only after the
// handler succeeded, so a failed message is redelivered after restart.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(msg.Key, msg.Value); err != nil {
			slog.Error("kafka handler failed", "topic", msg.Topic, "offset", msg.Offset, "error", err.Error())
			return err
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

// ConsumeRouted decodes WaybillRouted events and hands them to apply.
// Undecodable and unapplied events are logged and committed: consumers only refresh caches
// that expire on their own.
func (c *Consumer) ConsumeRouted(ctx context.Context, apply func(ctx context.Context, m messages.WaybillRouted) error) error {
	return c.Consume(ctx, func(key, value []byte) error {
		var m messages.WaybillRouted
		if err := json.Unmarshal(value, &m); err != nil {
			slog.Error("decode waybill routed", "key", string(key), "error", err.Error())
			return nil
		}
		if err := apply(ctx, m); err != nil {
			slog.Error("apply waybill routed", "event_id", m.EventID, "waybill_id", m.WaybillID, "error", err.Error())
		}
		return nil
	})
}
