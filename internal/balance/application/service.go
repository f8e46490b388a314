package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/orderflow/fulfillment/internal/balance/domain"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
)

type Service struct {
	log  *slog.Logger
	repo BalanceRepository
}

func NewService(log *slog.Logger, repo BalanceRepository) *Service {
	return &Service{log: log, repo: repo}
}

// Charge deducts the order total from the customer's account and returns the
// order snapshot with its status resolved: COMPLETED when the funds cleared,
// FAILED on insufficient funds or an unknown account (fail closed). A history
// record is appended on every path.
func (s *Service) Charge(ctx context.Context, o orderdom.Order, traceparent string) (orderdom.Order, domain.ChargeOutcome, error) {
	txn := domain.Transaction{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		AccountID:   o.AccountID,
		AmountCents: o.TotalCents,
		CreatedAt:   time.Now().UTC(),
	}

	outcome, err := s.repo.Charge(ctx, txn, traceparent)
	if err != nil {
		return o, "", err
	}

	switch outcome {
	case domain.Charged:
		o.Status = orderdom.StatusCompleted
		s.log.Info("balance charged", "order_id", o.ID, "account_id", o.AccountID, "amount_cents", o.TotalCents)
	case domain.InsufficientFunds:
		o.Status = orderdom.StatusFailed
		s.log.Info("insufficient funds", "order_id", o.ID, "account_id", o.AccountID, "amount_cents", o.TotalCents)
	case domain.AccountNotFound:
		o.Status = orderdom.StatusFailed
		s.log.Warn("account not found", "order_id", o.ID, "account_id", o.AccountID)
	}
	return o, outcome, nil
}

func (s *Service) UpsertAccount(ctx context.Context, a domain.Account) error {
	return s.repo.UpsertAccount(ctx, a)
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (domain.Account, error) {
	return s.repo.GetAccount(ctx, accountID)
}
