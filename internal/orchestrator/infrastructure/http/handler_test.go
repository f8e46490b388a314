package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	balancedom "github.com/orderflow/fulfillment/internal/balance/domain"
	inventorydom "github.com/orderflow/fulfillment/internal/inventory/domain"
	"github.com/orderflow/fulfillment/internal/orchestrator/application"
	"github.com/orderflow/fulfillment/internal/orchestrator/domain"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
	"github.com/orderflow/fulfillment/pkg/metrics"
)

type stubLedgers struct {
	mu          sync.Mutex
	reserveSeen []orderdom.Order
}

func (s *stubLedgers) Reserve(ctx context.Context, o orderdom.Order) (domain.ReserveReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserveSeen = append(s.reserveSeen, o)
	o.Line.PriceCents = 1000
	o.TotalCents = 1000 * int64(o.Line.Quantity)
	o.Status = orderdom.StatusProcessing
	return domain.ReserveReply{Outcome: inventorydom.Reserved, Order: o}, nil
}

func (s *stubLedgers) Release(ctx context.Context, orderID string) (bool, error) {
	return false, nil
}

func (s *stubLedgers) Charge(ctx context.Context, o orderdom.Order) (domain.ChargeReply, error) {
	o.Status = orderdom.StatusCompleted
	return domain.ChargeReply{Outcome: balancedom.Charged, Order: o}, nil
}

func (s *stubLedgers) reservedOrders() []orderdom.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orderdom.Order, len(s.reserveSeen))
	copy(out, s.reserveSeen)
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []orderdom.Outcome
}

func (p *recordingPublisher) PublishOutcome(ctx context.Context, ev orderdom.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []orderdom.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]orderdom.Outcome, len(p.events))
	copy(out, p.events)
	return out
}

func newTestHandler(ledgers *stubLedgers, publisher *recordingPublisher) http.Handler {
	log := slog.New(slog.DiscardHandler)
	coord := application.NewCoordinator(
		log, application.DefaultConfig(),
		ledgers, ledgers, publisher,
		metrics.NewSagaMetrics(prometheus.NewRegistry()),
	)
	return NewHandler(log, coord).Routes()
}

func TestFulfillAcceptsAndRunsSaga(t *testing.T) {
	ledgers := &stubLedgers{}
	publisher := &recordingPublisher{}
	h := newTestHandler(ledgers, publisher)

	body := `{"order_id":"o-1","account_id":"acct-1","product_id":"sku-1","quantity":3}`
	req := httptest.NewRequest(http.MethodPost, "/fulfill", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	// Nothing is reserved at intake, so the accepted order is only CREATED.
	assert.Contains(t, rec.Body.String(), `"status":"CREATED"`)

	require.Eventually(t, func() bool {
		return len(publisher.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, orderdom.StatusCompleted, publisher.published()[0].Status)

	reserved := ledgers.reservedOrders()
	require.Len(t, reserved, 1)
	assert.Equal(t, orderdom.StatusCreated, reserved[0].Status)
}

func TestFulfillRejectsBadInput(t *testing.T) {
	h := newTestHandler(&stubLedgers{}, &recordingPublisher{})

	tests := []string{
		`not json`,
		`{"order_id":"","account_id":"acct-1","product_id":"sku-1","quantity":3}`,
		`{"order_id":"o-1","account_id":"","product_id":"sku-1","quantity":3}`,
		`{"order_id":"o-1","account_id":"acct-1","product_id":"","quantity":3}`,
		`{"order_id":"o-1","account_id":"acct-1","product_id":"sku-1","quantity":0}`,
	}
	for _, body := range tests {
		req := httptest.NewRequest(http.MethodPost, "/fulfill", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}
