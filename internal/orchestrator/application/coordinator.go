package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	balancedom "github.com/orderflow/fulfillment/internal/balance/domain"
	inventorydom "github.com/orderflow/fulfillment/internal/inventory/domain"
	"github.com/orderflow/fulfillment/internal/orchestrator/domain"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
	"github.com/orderflow/fulfillment/pkg/metrics"
)

type Config struct {
	// CallTimeout bounds a single ledger call, SagaTimeout the whole run.
	CallTimeout   time.Duration
	SagaTimeout   time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		CallTimeout:   5 * time.Second,
		SagaTimeout:   30 * time.Second,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
	}
}

// Coordinator drives a fulfillment run: reserve stock, charge the balance,
// release the reservation when the charge refuses, and publish exactly one
// terminal outcome. It keeps no state of its own; every effect lives in a
// ledger or on the event channel.
type Coordinator struct {
	log       *slog.Logger
	cfg       Config
	inventory InventoryClient
	balance   BalanceClient
	publisher OutcomePublisher
	metrics   *metrics.SagaMetrics
	tracer    trace.Tracer
}

func NewCoordinator(
	log *slog.Logger,
	cfg Config,
	inventory InventoryClient,
	balance BalanceClient,
	publisher OutcomePublisher,
	m *metrics.SagaMetrics,
) *Coordinator {
	return &Coordinator{
		log:       log,
		cfg:       cfg,
		inventory: inventory,
		balance:   balance,
		publisher: publisher,
		metrics:   m,
		tracer:    otel.Tracer("orchestrator"),
	}
}

// FulfillOrder runs the saga for one order and always publishes a terminal
// outcome, even when a step fails on transport after retries.
func (c *Coordinator) FulfillOrder(ctx context.Context, o orderdom.Order) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SagaTimeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "FulfillOrder")
	defer span.End()

	log := c.log.With("order_id", o.ID)

	reserve, err := c.reserveStock(ctx, o)
	if err != nil {
		log.Error("reserve step failed", "err", err)
		// A reply lost on the wire may still have committed the reservation
		// ledger-side. Release is a per-order no-op when it did not.
		c.releaseStock(ctx, log, o.ID)
		o.Status = orderdom.StatusFailed
		return c.publish(ctx, log, o)
	}
	if reserve.Outcome != inventorydom.Reserved {
		log.Info("reservation refused", "result", reserve.Outcome)
		return c.publish(ctx, log, reserve.Order)
	}
	o = reserve.Order

	charge, err := c.chargeBalance(ctx, o)
	if err != nil {
		log.Error("charge step failed", "err", err)
		c.releaseStock(ctx, log, o.ID)
		o.Status = orderdom.StatusFailed
		return c.publish(ctx, log, o)
	}
	if charge.Outcome != balancedom.Charged {
		log.Info("charge refused", "result", charge.Outcome)
		c.releaseStock(ctx, log, o.ID)
		return c.publish(ctx, log, charge.Order)
	}

	return c.publish(ctx, log, charge.Order)
}

func (c *Coordinator) reserveStock(ctx context.Context, o orderdom.Order) (domain.ReserveReply, error) {
	ctx, span := c.tracer.Start(ctx, "ReserveStock")
	defer span.End()

	timer := time.Now()
	defer func() {
		c.metrics.StepDuration.WithLabelValues("reserve").Observe(time.Since(timer).Seconds())
	}()

	return backoff.RetryWithData(func() (domain.ReserveReply, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()

		reply, err := c.inventory.Reserve(callCtx, o)
		if err != nil && !domain.IsTransport(err) {
			return domain.ReserveReply{}, backoff.Permanent(err)
		}
		return reply, err
	}, c.retryPolicy(ctx))
}

func (c *Coordinator) chargeBalance(ctx context.Context, o orderdom.Order) (domain.ChargeReply, error) {
	ctx, span := c.tracer.Start(ctx, "ChargeBalance")
	defer span.End()

	timer := time.Now()
	defer func() {
		c.metrics.StepDuration.WithLabelValues("charge").Observe(time.Since(timer).Seconds())
	}()

	return backoff.RetryWithData(func() (domain.ChargeReply, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()

		reply, err := c.balance.Charge(callCtx, o)
		if err != nil && !domain.IsTransport(err) {
			return domain.ChargeReply{}, backoff.Permanent(err)
		}
		return reply, err
	}, c.retryPolicy(ctx))
}

// releaseStock returns a reservation to the inventory ledger. The call is
// idempotent on the ledger side, so retrying after an ambiguous failure at
// worst repeats a no-op. When every attempt fails the reservation leaks and
// the exhausted counter flags it for manual reconciliation.
func (c *Coordinator) releaseStock(ctx context.Context, log *slog.Logger, orderID string) {
	ctx, span := c.tracer.Start(ctx, "ReleaseStock")
	defer span.End()

	timer := time.Now()
	defer func() {
		c.metrics.StepDuration.WithLabelValues("release").Observe(time.Since(timer).Seconds())
	}()

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			c.metrics.CompensationRetries.Inc()
		}
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()

		released, err := c.inventory.Release(callCtx, orderID)
		if err != nil {
			if domain.IsTransport(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if !released {
			log.Info("release was a no-op, reservation already returned")
		}
		return nil
	}, c.retryPolicy(ctx))
	if err != nil {
		c.metrics.CompensationExhausted.Inc()
		log.Error("stock release abandoned, inventory needs manual reconciliation",
			"err", err, "attempts", attempt)
	}
}

func (c *Coordinator) publish(ctx context.Context, log *slog.Logger, o orderdom.Order) error {
	now := time.Now().UTC()
	o.UpdatedAt = now
	ev := orderdom.Outcome{
		EventID:    uuid.NewString(),
		OrderID:    o.ID,
		Status:     o.Status,
		Order:      o,
		OccurredAt: now,
	}

	// The outcome must go out even when the saga deadline already fired.
	if err := c.publisher.PublishOutcome(context.WithoutCancel(ctx), ev); err != nil {
		log.Error("outcome publish failed", "status", o.Status, "err", err)
		return err
	}
	c.metrics.Runs.WithLabelValues(string(o.Status)).Inc()
	log.Info("fulfillment finished", "status", o.Status)
	return nil
}

func (c *Coordinator) retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)
}
