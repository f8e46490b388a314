package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderflow/fulfillment/internal/orchestrator/application"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
)

type Handler struct {
	log         *slog.Logger
	coordinator *application.Coordinator
	tracer      trace.Tracer
}

func NewHandler(log *slog.Logger, coordinator *application.Coordinator) *Handler {
	return &Handler{
		log:         log,
		coordinator: coordinator,
		tracer:      otel.Tracer("orchestrator-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/fulfill", h.fulfill)
	return r
}

type fulfillRequest struct {
	OrderID   string `json:"order_id"`
	AccountID string `json:"account_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// fulfill accepts the order and returns immediately; the saga runs to its
// terminal outcome in the background and reports through the event channel.
func (h *Handler) fulfill(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AcceptOrder")
	defer span.End()

	var req fulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" || req.AccountID == "" || req.ProductID == "" || req.Quantity <= 0 {
		http.Error(w, "order_id, account_id, product_id and a positive quantity are required", http.StatusBadRequest)
		return
	}

	// The inventory step promotes the order to PROCESSING once stock is
	// actually reserved; until then it is merely CREATED.
	o := orderdom.NewOrder(req.OrderID, req.AccountID, req.ProductID, req.Quantity)

	go func(ctx context.Context) {
		if err := h.coordinator.FulfillOrder(ctx, o); err != nil {
			h.log.Error("fulfillment run failed", "order_id", o.ID, "err", err)
		}
	}(context.WithoutCancel(ctx))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"order_id": o.ID, "status": string(o.Status)})
}
