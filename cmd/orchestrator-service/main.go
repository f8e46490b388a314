package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orderflow/fulfillment/internal/orchestrator/application"
	orchestratorHTTP "github.com/orderflow/fulfillment/internal/orchestrator/infrastructure/http"
	"github.com/orderflow/fulfillment/internal/orchestrator/infrastructure/httpclient"
	orchestratorKafka "github.com/orderflow/fulfillment/internal/orchestrator/infrastructure/kafka"
	"github.com/orderflow/fulfillment/pkg/logging"
	"github.com/orderflow/fulfillment/pkg/metrics"
	"github.com/orderflow/fulfillment/pkg/shutdown"
	"github.com/orderflow/fulfillment/pkg/tracing"
)

func main() {
	log := logging.New("orchestrator-service")
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	kafkaAddr := env("KAFKA_ADDR", "localhost:9092")
	otlpAddr := env("OTLP_ADDR", "localhost:4318")
	httpAddr := env("HTTP_ADDR", ":8080")
	inventoryURL := env("INVENTORY_URL", "http://localhost:8082")
	balanceURL := env("BALANCE_URL", "http://localhost:8081")
	completedTopic := env("COMPLETED_TOPIC", "order.completed")
	failedTopic := env("FAILED_TOPIC", "order.failed")

	tp, err := tracing.Init(ctx, "orchestrator-service", otlpAddr, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	cfg := application.DefaultConfig()
	inventory := httpclient.NewInventoryClient(inventoryURL, cfg.CallTimeout)
	balance := httpclient.NewBalanceClient(balanceURL, cfg.CallTimeout)

	publisher := orchestratorKafka.NewPublisher(log, []string{kafkaAddr}, completedTopic, failedTopic)
	defer publisher.Close()

	sagaMetrics := metrics.NewSagaMetrics(prometheus.DefaultRegisterer)
	coordinator := application.NewCoordinator(log, cfg, inventory, balance, publisher, sagaMetrics)
	handler := orchestratorHTTP.NewHandler(log, coordinator)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: httpAddr, Handler: r}
	go func() {
		log.Info("orchestrator-service listening", "addr", httpAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("orchestrator-service shutdown")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
