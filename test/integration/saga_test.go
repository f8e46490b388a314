package integration

import (
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	balanceapp "github.com/orderflow/fulfillment/internal/balance/application"
	balancedom "github.com/orderflow/fulfillment/internal/balance/domain"
	balanceHTTP "github.com/orderflow/fulfillment/internal/balance/infrastructure/http"
	balanceDB "github.com/orderflow/fulfillment/internal/balance/infrastructure/postgres"
	inventoryapp "github.com/orderflow/fulfillment/internal/inventory/application"
	inventorydom "github.com/orderflow/fulfillment/internal/inventory/domain"
	inventoryHTTP "github.com/orderflow/fulfillment/internal/inventory/infrastructure/http"
	inventoryDB "github.com/orderflow/fulfillment/internal/inventory/infrastructure/postgres"
	orchapp "github.com/orderflow/fulfillment/internal/orchestrator/application"
	"github.com/orderflow/fulfillment/internal/orchestrator/infrastructure/httpclient"
	orchKafka "github.com/orderflow/fulfillment/internal/orchestrator/infrastructure/kafka"
	orderapp "github.com/orderflow/fulfillment/internal/order/application"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
	orderKafka "github.com/orderflow/fulfillment/internal/order/infrastructure/kafka"
	orderDB "github.com/orderflow/fulfillment/internal/order/infrastructure/postgres"
	"github.com/orderflow/fulfillment/pkg/idempotency"
	"github.com/orderflow/fulfillment/pkg/metrics"
)

// TestFulfillmentEndToEnd runs a complete saga against real postgres, kafka
// and redis: reserve over HTTP, charge over HTTP, outcome through the event
// channel, terminal status applied to the order store.
func TestFulfillmentEndToEnd(t *testing.T) {
	if testing.Short() || os.Getenv("CI_SKIP_CONTAINERS") != "" {
		t.Skip("container test")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, inventoryDB.EnsureSchema(ctx, pool))
	require.NoError(t, balanceDB.EnsureSchema(ctx, pool))
	require.NoError(t, orderDB.EnsureSchema(ctx, pool))

	log := slog.New(slog.DiscardHandler)

	// Ledger services behind real HTTP servers.
	inventorySvc := inventoryapp.NewService(log, inventoryDB.NewRepository(log, pool))
	inventorySrv := httptest.NewServer(inventoryHTTP.NewHandler(log, inventorySvc).Routes())
	defer inventorySrv.Close()

	balanceSvc := balanceapp.NewService(log, balanceDB.NewRepository(log, pool))
	balanceSrv := httptest.NewServer(balanceHTTP.NewHandler(log, balanceSvc).Routes())
	defer balanceSrv.Close()

	require.NoError(t, inventorySvc.UpsertProduct(ctx, inventorydom.Product{
		ID: "sku-1", Available: 5, PriceCents: 1000,
	}))
	require.NoError(t, balanceSvc.UpsertAccount(ctx, balancedom.Account{
		ID: "acct-1", AmountCents: 10000,
	}))

	// Order record store fed by the outcome consumers.
	rdb := redis.NewClient(&redis.Options{Addr: env.RAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, time.Minute)

	orderSvc := orderapp.NewService(log, orderDB.NewRepository(log, pool))
	consumerCtx, stopConsumers := context.WithCancel(ctx)
	defer stopConsumers()
	for _, topic := range []string{"order.completed", "order.failed"} {
		consumer := orderKafka.NewConsumer(log, env.KAddr, topic, "order-service", orderSvc, idem)
		go func() {
			if err := consumer.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				t.Logf("consumer stopped: %v", err)
			}
		}()
	}

	// The coordinator itself.
	cfg := orchapp.DefaultConfig()
	publisher := orchKafka.NewPublisher(log, env.KAddr, "order.completed", "order.failed")
	defer publisher.Close()
	coordinator := orchapp.NewCoordinator(
		log, cfg,
		httpclient.NewInventoryClient(inventorySrv.URL, cfg.CallTimeout),
		httpclient.NewBalanceClient(balanceSrv.URL, cfg.CallTimeout),
		publisher,
		metrics.NewSagaMetrics(prometheus.NewRegistry()),
	)

	o := orderdom.NewOrder("o-1", "acct-1", "sku-1", 3)
	require.NoError(t, coordinator.FulfillOrder(ctx, o))

	// Ledger effects are visible as soon as FulfillOrder returns.
	product, err := inventorySvc.GetProduct(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 2, product.Available)

	account, err := balanceSvc.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7000), account.AmountCents)

	// The terminal status arrives through the event channel.
	require.Eventually(t, func() bool {
		stored, err := orderSvc.Get(ctx, "o-1")
		return err == nil && stored.Status == orderdom.StatusCompleted
	}, 60*time.Second, 200*time.Millisecond)

	stored, err := orderSvc.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), stored.TotalCents)
	assert.Equal(t, int64(1000), stored.Line.PriceCents)
}

// TestFulfillmentInsufficientFunds drives the compensation path against real
// storage: the reservation must be returned and the order must fail.
func TestFulfillmentInsufficientFunds(t *testing.T) {
	if testing.Short() || os.Getenv("CI_SKIP_CONTAINERS") != "" {
		t.Skip("container test")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, inventoryDB.EnsureSchema(ctx, pool))
	require.NoError(t, balanceDB.EnsureSchema(ctx, pool))

	log := slog.New(slog.DiscardHandler)

	inventorySvc := inventoryapp.NewService(log, inventoryDB.NewRepository(log, pool))
	inventorySrv := httptest.NewServer(inventoryHTTP.NewHandler(log, inventorySvc).Routes())
	defer inventorySrv.Close()

	balanceSvc := balanceapp.NewService(log, balanceDB.NewRepository(log, pool))
	balanceSrv := httptest.NewServer(balanceHTTP.NewHandler(log, balanceSvc).Routes())
	defer balanceSrv.Close()

	require.NoError(t, inventorySvc.UpsertProduct(ctx, inventorydom.Product{
		ID: "sku-1", Available: 5, PriceCents: 1000,
	}))
	require.NoError(t, balanceSvc.UpsertAccount(ctx, balancedom.Account{
		ID: "acct-1", AmountCents: 500,
	}))

	cfg := orchapp.DefaultConfig()
	publisher := orchKafka.NewPublisher(log, env.KAddr, "order.completed", "order.failed")
	defer publisher.Close()
	coordinator := orchapp.NewCoordinator(
		log, cfg,
		httpclient.NewInventoryClient(inventorySrv.URL, cfg.CallTimeout),
		httpclient.NewBalanceClient(balanceSrv.URL, cfg.CallTimeout),
		publisher,
		metrics.NewSagaMetrics(prometheus.NewRegistry()),
	)

	o := orderdom.NewOrder("o-1", "acct-1", "sku-1", 3)
	require.NoError(t, coordinator.FulfillOrder(ctx, o))

	product, err := inventorySvc.GetProduct(ctx, "sku-1")
	require.NoError(t, err)
	assert.Equal(t, 5, product.Available, "reservation must be returned")

	account, err := balanceSvc.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.AmountCents)
}
