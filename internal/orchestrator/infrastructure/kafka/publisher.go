package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
	"github.com/orderflow/fulfillment/pkg/tracing"
)

// Publisher writes terminal outcomes to one of two topics depending on the
// run's status. Messages are keyed by order ID so every outcome for the same
// order lands on the same partition, and acks wait for the full ISR.
type Publisher struct {
	log       *slog.Logger
	completed *kafka.Writer
	failed    *kafka.Writer
}

func NewPublisher(log *slog.Logger, brokers []string, completedTopic, failedTopic string) *Publisher {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		}
	}
	return &Publisher{
		log:       log,
		completed: newWriter(completedTopic),
		failed:    newWriter(failedTopic),
	}
}

func (p *Publisher) PublishOutcome(ctx context.Context, ev orderdom.Outcome) error {
	writer := p.failed
	if ev.Status == orderdom.StatusCompleted {
		writer = p.completed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: payload,
		Headers: tracing.InjectKafkaHeaders(ctx, []kafka.Header{
			{Key: "event_type", Value: []byte("OrderOutcome")},
		}),
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write outcome for order %s: %w", ev.OrderID, err)
	}
	p.log.Debug("outcome published", "order_id", ev.OrderID, "status", ev.Status)
	return nil
}

func (p *Publisher) Close() error {
	if err := p.completed.Close(); err != nil {
		return err
	}
	return p.failed.Close()
}
