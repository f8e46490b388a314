package application

import (
	"context"
	"log/slog"

	"github.com/orderflow/fulfillment/internal/inventory/domain"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
)

type Service struct {
	log  *slog.Logger
	repo StockRepository
}

func NewService(log *slog.Logger, repo StockRepository) *Service {
	return &Service{log: log, repo: repo}
}

// Reserve runs the check-and-deduct step for one order and returns the order
// snapshot the coordinator forwards downstream: on success the price and total
// are populated and the status moves to PROCESSING; on insufficient stock the
// price is still quoted but nothing is mutated; unknown products fail closed.
func (s *Service) Reserve(ctx context.Context, o orderdom.Order) (orderdom.Order, domain.ReserveOutcome, error) {
	res, err := s.repo.Reserve(ctx, o.ID, o.Line.ProductID, o.Line.Quantity)
	if err != nil {
		return o, "", err
	}

	o.Line.PriceCents = res.PriceCents
	switch res.Outcome {
	case domain.Reserved:
		o.TotalCents = res.PriceCents * int64(o.Line.Quantity)
		o.Status = orderdom.StatusProcessing
		s.log.Info("stock reserved", "order_id", o.ID, "product_id", o.Line.ProductID, "quantity", o.Line.Quantity)
	case domain.InsufficientStock:
		o.Status = orderdom.StatusFailed
		s.log.Info("insufficient stock", "order_id", o.ID, "product_id", o.Line.ProductID, "quantity", o.Line.Quantity)
	case domain.ProductNotFound:
		o.Status = orderdom.StatusFailed
		s.log.Warn("product not found", "order_id", o.ID, "product_id", o.Line.ProductID)
	}
	return o, res.Outcome, nil
}

// UpsertProduct creates or restocks a product row.
func (s *Service) UpsertProduct(ctx context.Context, p domain.Product) error {
	return s.repo.UpsertProduct(ctx, p)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// Release is the compensating half of Reserve, idempotent per order ID.
func (s *Service) Release(ctx context.Context, orderID string) (bool, error) {
	released, err := s.repo.Release(ctx, orderID)
	if err != nil {
		return false, err
	}
	if released {
		s.log.Info("stock released", "order_id", orderID)
	} else {
		s.log.Info("release skipped, nothing reserved", "order_id", orderID)
	}
	return released, nil
}
