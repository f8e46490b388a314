// Package httpclient holds the coordinator's synchronous clients for the two
// ledger services. Anything that prevented a business answer (connection
// failure, timeout, 5xx) comes back as a TransportError so the caller knows
// the call is safe to retry.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	balancedom "github.com/orderflow/fulfillment/internal/balance/domain"
	inventorydom "github.com/orderflow/fulfillment/internal/inventory/domain"
	"github.com/orderflow/fulfillment/internal/orchestrator/domain"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
)

func newClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func postJSON(ctx context.Context, client *http.Client, op, url string, body, reply any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := client.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

type InventoryClient struct {
	base   string
	client *http.Client
}

func NewInventoryClient(base string, timeout time.Duration) *InventoryClient {
	return &InventoryClient{base: base, client: newClient(timeout)}
}

type reserveResponse struct {
	Result inventorydom.ReserveOutcome `json:"result"`
	Order  orderdom.Order              `json:"order"`
}

func (c *InventoryClient) Reserve(ctx context.Context, o orderdom.Order) (domain.ReserveReply, error) {
	var resp reserveResponse
	if err := postJSON(ctx, c.client, "inventory.reserve", c.base+"/inventory/reserve", o, &resp); err != nil {
		return domain.ReserveReply{}, err
	}
	return domain.ReserveReply{Outcome: resp.Result, Order: resp.Order}, nil
}

type releaseRequest struct {
	OrderID string `json:"order_id"`
}

type releaseResponse struct {
	Released bool `json:"released"`
}

func (c *InventoryClient) Release(ctx context.Context, orderID string) (bool, error) {
	var resp releaseResponse
	err := postJSON(ctx, c.client, "inventory.release", c.base+"/inventory/release", releaseRequest{OrderID: orderID}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Released, nil
}

type BalanceClient struct {
	base   string
	client *http.Client
}

func NewBalanceClient(base string, timeout time.Duration) *BalanceClient {
	return &BalanceClient{base: base, client: newClient(timeout)}
}

type chargeResponse struct {
	Result balancedom.ChargeOutcome `json:"result"`
	Order  orderdom.Order           `json:"order"`
}

func (c *BalanceClient) Charge(ctx context.Context, o orderdom.Order) (domain.ChargeReply, error) {
	var resp chargeResponse
	if err := postJSON(ctx, c.client, "balance.charge", c.base+"/balance/charge", o, &resp); err != nil {
		return domain.ChargeReply{}, err
	}
	return domain.ChargeReply{Outcome: resp.Result, Order: resp.Order}, nil
}
