package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderflow/fulfillment/internal/inventory/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// EnsureSchema creates the ledger's tables if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id          TEXT PRIMARY KEY,
			available   INTEGER NOT NULL CHECK (available >= 0),
			price_cents BIGINT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS stock_reservations (
			order_id   TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity   INTEGER NOT NULL,
			status     TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// Reserve serializes concurrent reservations per product with a row lock.
// The reservation row doubles as the idempotency record: retrying an order
// that already reserved returns the stored result instead of decrementing
// twice.
func (r *Repository) Reserve(ctx context.Context, orderID, productID string, quantity int) (domain.ReserveResult, error) {
	var res domain.ReserveResult

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var prior domain.ReservationStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM stock_reservations WHERE order_id=$1`, orderID).Scan(&prior)
	if err == nil {
		// Order already holds (or held) a reservation; report the original
		// success so a retried reserve never double-decrements.
		err = tx.QueryRow(ctx, `SELECT price_cents FROM products WHERE id=$1`, productID).Scan(&res.PriceCents)
		if err != nil {
			return res, err
		}
		res.Outcome = domain.Reserved
		return res, tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return res, err
	}

	var available int
	err = tx.QueryRow(ctx,
		`SELECT available, price_cents FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&available, &res.PriceCents)
	if errors.Is(err, pgx.ErrNoRows) {
		res.Outcome = domain.ProductNotFound
		return res, tx.Commit(ctx)
	}
	if err != nil {
		return res, err
	}

	if available < quantity {
		res.Outcome = domain.InsufficientStock
		return res, tx.Commit(ctx)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE products SET available = available - $2, updated_at=$3 WHERE id=$1`,
		productID, quantity, now)
	if err != nil {
		return res, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO stock_reservations (order_id, product_id, quantity, status, updated_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		orderID, productID, quantity, domain.ReservationReserved, now)
	if err != nil {
		return res, err
	}

	res.Outcome = domain.Reserved
	return res, tx.Commit(ctx)
}

// Release refunds a reservation exactly once. Missing and already released
// reservations both ack without touching stock.
func (r *Repository) Release(ctx context.Context, orderID string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var productID string
	var quantity int
	var status domain.ReservationStatus
	err = tx.QueryRow(ctx,
		`SELECT product_id, quantity, status FROM stock_reservations WHERE order_id=$1 FOR UPDATE`,
		orderID).Scan(&productID, &quantity, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}
	if status == domain.ReservationReleased {
		return false, tx.Commit(ctx)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE products SET available = available + $2, updated_at=$3 WHERE id=$1`,
		productID, quantity, now)
	if err != nil {
		return false, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE stock_reservations SET status=$2, updated_at=$3 WHERE order_id=$1`,
		orderID, domain.ReservationReleased, now)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func (r *Repository) UpsertProduct(ctx context.Context, p domain.Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, available, price_cents, updated_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET available=$2, price_cents=$3, updated_at=$4`,
		p.ID, p.Available, p.PriceCents, time.Now().UTC())
	return err
}

func (r *Repository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, available, price_cents, updated_at FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.Available, &p.PriceCents, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}
