package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderflow/fulfillment/internal/balance/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// EnsureSchema creates the ledger's tables, including its outbox, if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id           TEXT PRIMARY KEY,
			amount_cents BIGINT NOT NULL CHECK (amount_cents >= 0),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS transactions (
			id           TEXT PRIMARY KEY,
			order_id     TEXT NOT NULL UNIQUE,
			account_id   TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			status       TEXT NOT NULL,
			reason       TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS outbox (
			id             BIGSERIAL PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id   TEXT NOT NULL,
			type           TEXT NOT NULL,
			payload        JSONB NOT NULL,
			headers        JSONB,
			traceparent    TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'pending',
			relay_id       TEXT,
			lease_until    TIMESTAMPTZ,
			retry_count    INTEGER NOT NULL DEFAULT 0,
			last_error     TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// Charge implements atomic check-and-deduct. The deduction, the history row
// and the outbox row commit together or not at all.
func (r *Repository) Charge(ctx context.Context, txn domain.Transaction, traceparent string) (domain.ChargeOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var priorStatus domain.TransactionStatus
	var priorReason string
	err = tx.QueryRow(ctx,
		`SELECT status, reason FROM transactions WHERE order_id=$1`, txn.OrderID).
		Scan(&priorStatus, &priorReason)
	if err == nil {
		return priorOutcome(priorStatus, priorReason), tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	var available int64
	err = tx.QueryRow(ctx,
		`SELECT amount_cents FROM accounts WHERE id=$1 FOR UPDATE`, txn.AccountID).
		Scan(&available)

	outcome := domain.Charged
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		outcome = domain.AccountNotFound
	case err != nil:
		return "", err
	case available < txn.AmountCents:
		outcome = domain.InsufficientFunds
	}

	if outcome == domain.Charged {
		txn.Status = domain.TransactionSuccess
		_, err = tx.Exec(ctx,
			`UPDATE accounts SET amount_cents = amount_cents - $2, updated_at=$3 WHERE id=$1`,
			txn.AccountID, txn.AmountCents, time.Now().UTC())
		if err != nil {
			return "", err
		}
	} else {
		txn.Status = domain.TransactionFailed
		txn.Reason = string(outcome)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, order_id, account_id, amount_cents, status, reason, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		txn.ID, txn.OrderID, txn.AccountID, txn.AmountCents, txn.Status, txn.Reason, txn.CreatedAt)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(domain.TransactionRecorded{
		TransactionID: txn.ID,
		OrderID:       txn.OrderID,
		AccountID:     txn.AccountID,
		AmountCents:   txn.AmountCents,
		Status:        txn.Status,
		Reason:        txn.Reason,
		OccurredAt:    txn.CreatedAt,
	})
	if err != nil {
		return "", err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		 VALUES ($1,$2,$3,$4,$5,'pending')`,
		"transaction", txn.OrderID, "TransactionRecorded", payload, traceparent)
	if err != nil {
		return "", err
	}

	return outcome, tx.Commit(ctx)
}

func priorOutcome(status domain.TransactionStatus, reason string) domain.ChargeOutcome {
	if status == domain.TransactionSuccess {
		return domain.Charged
	}
	if reason == string(domain.AccountNotFound) {
		return domain.AccountNotFound
	}
	return domain.InsufficientFunds
}

func (r *Repository) UpsertAccount(ctx context.Context, a domain.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, amount_cents, updated_at)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (id) DO UPDATE SET amount_cents=$2, updated_at=$3`,
		a.ID, a.AmountCents, time.Now().UTC())
	return err
}

func (r *Repository) GetAccount(ctx context.Context, accountID string) (domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx,
		`SELECT id, amount_cents, updated_at FROM accounts WHERE id=$1`, accountID).
		Scan(&a.ID, &a.AmountCents, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, err
	}
	return a, nil
}
