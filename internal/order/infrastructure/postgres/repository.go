package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderflow/fulfillment/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id          TEXT PRIMARY KEY,
			account_id  TEXT NOT NULL,
			product_id  TEXT NOT NULL,
			quantity    INTEGER NOT NULL,
			price_cents BIGINT NOT NULL DEFAULT 0,
			total_cents BIGINT NOT NULL DEFAULT 0,
			status      TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`)
	return err
}

func (r *Repository) Create(ctx context.Context, o domain.Order) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (id, account_id, product_id, quantity, price_cents, total_cents, status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO NOTHING`,
		o.ID, o.AccountID, o.Line.ProductID, o.Line.Quantity, o.Line.PriceCents, o.TotalCents, o.Status, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx,
		`SELECT id, account_id, product_id, quantity, price_cents, total_cents, status, created_at, updated_at
		 FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.AccountID, &o.Line.ProductID, &o.Line.Quantity, &o.Line.PriceCents, &o.TotalCents, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// ApplyStatus upserts the snapshot with the terminal status. The WHERE guard
// on the conflict update keeps the first terminal status sticky, so a
// re-delivered or conflicting later event affects zero rows.
func (r *Repository) ApplyStatus(ctx context.Context, o domain.Order, status domain.Status) (bool, error) {
	now := time.Now().UTC()
	ct, err := r.pool.Exec(ctx,
		`INSERT INTO orders (id, account_id, product_id, quantity, price_cents, total_cents, status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO UPDATE
		 SET price_cents=$5, total_cents=$6, status=$7, updated_at=$9
		 WHERE orders.status NOT IN ('COMPLETED','FAILED')`,
		o.ID, o.AccountID, o.Line.ProductID, o.Line.Quantity, o.Line.PriceCents, o.TotalCents, status, o.CreatedAt, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
