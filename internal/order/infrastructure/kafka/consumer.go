package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderflow/fulfillment/internal/order/application"
	"github.com/orderflow/fulfillment/internal/order/domain"
	"github.com/orderflow/fulfillment/pkg/idempotency"
	"github.com/orderflow/fulfillment/pkg/tracing"
)

// Dedup is the subset of the idempotency store the consumer needs. Keys are
// marked only after a successful apply, so a failed application leaves the
// redelivered event eligible for processing.
type Dedup interface {
	Applied(ctx context.Context, key string) (bool, error)
	MarkApplied(ctx context.Context, key string) error
}

// Consumer applies outcome events from one topic to the order store. The
// completed and failed channels each get their own Consumer; both feed the
// same service.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	svc    *application.Service
	idem   Dedup
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem Dedup) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("order-outcome-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		// An unprocessed message stays uncommitted so the event is
		// re-delivered.
		if c.process(ctx, msg) {
			_ = c.reader.CommitMessages(ctx, msg)
		}
	}
}

// process handles one fetched message and reports whether it may be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	var ev domain.Outcome
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("outcome unmarshal failed", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		return true
	}

	key := idempotency.OutcomeKey(ev.OrderID, string(ev.Status))
	applied, err := c.idem.Applied(ctx, key)
	if err != nil {
		// Redis being down must not stall the channel; the conditional
		// update in ApplyOutcome still deduplicates.
		c.log.Error("idempotency check failed", "key", key, "err", err)
	} else if applied {
		c.log.Info("duplicate outcome skipped", "key", key)
		return true
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ApplyOrderOutcome")
	defer span.End()

	if err := c.svc.ApplyOutcome(msgCtx, ev); err != nil {
		c.log.Error("apply outcome failed", "order_id", ev.OrderID, "status", ev.Status, "err", err)
		return false
	}
	if err := c.idem.MarkApplied(ctx, key); err != nil {
		c.log.Error("idempotency mark failed", "key", key, "err", err)
	}
	return true
}
