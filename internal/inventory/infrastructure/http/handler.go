package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderflow/fulfillment/internal/inventory/application"
	"github.com/orderflow/fulfillment/internal/inventory/domain"
	orderdom "github.com/orderflow/fulfillment/internal/order/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("inventory-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/inventory/reserve", h.reserve)
	r.Post("/inventory/release", h.release)
	r.Put("/inventory/products/{id}", h.upsertProduct)
	r.Get("/inventory/products/{id}", h.getProduct)
	return r
}

type reserveResponse struct {
	Result domain.ReserveOutcome `json:"result"`
	Order  orderdom.Order        `json:"order"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReserveStock")
	defer span.End()

	var o orderdom.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if o.ID == "" || o.Line.ProductID == "" || o.Line.Quantity <= 0 {
		http.Error(w, "order id, product id and a positive quantity are required", http.StatusBadRequest)
		return
	}

	o, outcome, err := h.service.Reserve(ctx, o)
	if err != nil {
		h.log.Error("reserve failed", "order_id", o.ID, "err", err)
		http.Error(w, "reserve failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reserveResponse{Result: outcome, Order: o})
}

type releaseRequest struct {
	OrderID string `json:"order_id"`
}

type releaseResponse struct {
	Released bool `json:"released"`
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReleaseStock")
	defer span.End()

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	released, err := h.service.Release(ctx, req.OrderID)
	if err != nil {
		h.log.Error("release failed", "order_id", req.OrderID, "err", err)
		http.Error(w, "release failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(releaseResponse{Released: released})
}

type upsertProductRequest struct {
	Available  int   `json:"available"`
	PriceCents int64 `json:"price_cents"`
}

func (h *Handler) upsertProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpsertProduct")
	defer span.End()

	var req upsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	p := domain.Product{
		ID:         chi.URLParam(r, "id"),
		Available:  req.Available,
		PriceCents: req.PriceCents,
	}
	if p.ID == "" || p.Available < 0 {
		http.Error(w, "product id and non-negative stock are required", http.StatusBadRequest)
		return
	}

	if err := h.service.UpsertProduct(ctx, p); err != nil {
		h.log.Error("upsert product failed", "product_id", p.ID, "err", err)
		http.Error(w, "upsert failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	p, err := h.service.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		h.log.Error("get product failed", "err", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}
