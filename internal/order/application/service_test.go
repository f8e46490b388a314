package application

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/fulfillment/internal/order/domain"
)

// memOrderRepo keeps the first-terminal-status-wins rule of the real store.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]domain.Order{}}
}

func (m *memOrderRepo) Create(ctx context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		m.orders[o.ID] = o
	}
	return nil
}

func (m *memOrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (m *memOrderRepo) ApplyStatus(ctx context.Context, o domain.Order, status domain.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prior, ok := m.orders[o.ID]; ok && prior.Status.Terminal() {
		return false, nil
	}
	o.Status = status
	m.orders[o.ID] = o
	return true, nil
}

func outcomeEvent(orderID string, status domain.Status) domain.Outcome {
	o := domain.NewOrder(orderID, "acct-1", "sku-1", 2)
	o.Status = status
	return domain.Outcome{
		EventID:    "ev-" + orderID + "-" + string(status),
		OrderID:    orderID,
		Status:     status,
		Order:      o,
		OccurredAt: time.Now().UTC(),
	}
}

func TestApplyOutcome(t *testing.T) {
	repo := newMemOrderRepo()
	svc := NewService(slog.New(slog.DiscardHandler), repo)

	require.NoError(t, svc.ApplyOutcome(context.Background(), outcomeEvent("o-1", domain.StatusCompleted)))

	o, err := svc.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, o.Status)
}

func TestApplyOutcomeIdempotent(t *testing.T) {
	repo := newMemOrderRepo()
	svc := NewService(slog.New(slog.DiscardHandler), repo)
	ctx := context.Background()

	require.NoError(t, svc.ApplyOutcome(ctx, outcomeEvent("o-1", domain.StatusCompleted)))
	require.NoError(t, svc.ApplyOutcome(ctx, outcomeEvent("o-1", domain.StatusCompleted)))

	o, err := svc.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, o.Status)
}

func TestApplyOutcomeFirstTerminalStatusWins(t *testing.T) {
	repo := newMemOrderRepo()
	svc := NewService(slog.New(slog.DiscardHandler), repo)
	ctx := context.Background()

	require.NoError(t, svc.ApplyOutcome(ctx, outcomeEvent("o-1", domain.StatusFailed)))
	require.NoError(t, svc.ApplyOutcome(ctx, outcomeEvent("o-1", domain.StatusCompleted)))

	o, err := svc.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, o.Status)
}

func TestApplyOutcomeRejectsNonTerminalStatus(t *testing.T) {
	svc := NewService(slog.New(slog.DiscardHandler), newMemOrderRepo())

	err := svc.ApplyOutcome(context.Background(), outcomeEvent("o-1", domain.StatusProcessing))
	require.Error(t, err)
}

func TestCreateThenOutcomeOverwritesSnapshot(t *testing.T) {
	repo := newMemOrderRepo()
	svc := NewService(slog.New(slog.DiscardHandler), repo)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, domain.NewOrder("o-1", "acct-1", "sku-1", 2)))

	ev := outcomeEvent("o-1", domain.StatusCompleted)
	ev.Order.TotalCents = 2000
	require.NoError(t, svc.ApplyOutcome(ctx, ev))

	o, err := svc.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, o.Status)
	assert.Equal(t, int64(2000), o.TotalCents)
}
