package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/orderflow/fulfillment/internal/order/domain"
)

type Service struct {
	log  *slog.Logger
	repo OrderRepository
}

func NewService(log *slog.Logger, repo OrderRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) Create(ctx context.Context, o domain.Order) error {
	return s.repo.Create(ctx, o)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// ApplyOutcome writes a fulfillment run's terminal status to the order record.
// Applying the same event twice, or two deliveries of the same (order, status)
// pair, changes nothing after the first application.
func (s *Service) ApplyOutcome(ctx context.Context, ev domain.Outcome) error {
	if !ev.Status.Terminal() {
		return fmt.Errorf("outcome event %s carries non-terminal status %s", ev.EventID, ev.Status)
	}

	applied, err := s.repo.ApplyStatus(ctx, ev.Order, ev.Status)
	if err != nil {
		return err
	}
	if applied {
		s.log.Info("order status applied", "order_id", ev.OrderID, "status", ev.Status)
	} else {
		s.log.Info("order already terminal, outcome ignored", "order_id", ev.OrderID, "status", ev.Status)
	}
	return nil
}
