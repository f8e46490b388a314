package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderflow/fulfillment/internal/balance/application"
	"github.com/orderflow/fulfillment/internal/balance/domain"
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
		tracer:  otel.Tracer("balance-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/balance/charge", h.charge)
	r.Put("/balance/accounts/{id}", h.upsertAccount)
	r.Get("/balance/accounts/{id}", h.getAccount)
	return r
}

type chargeResponse struct {
	Result domain.ChargeOutcome `json:"result"`
	Order  orderdom.Order       `json:"order"`
}

func (h *Handler) charge(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CheckAndDeductBalance")
	defer span.End()

	var o orderdom.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if o.ID == "" || o.AccountID == "" || o.TotalCents <= 0 {
		http.Error(w, "order id, account id and a positive total are required", http.StatusBadRequest)
		return
	}

	o, outcome, err := h.service.Charge(ctx, o, r.Header.Get("traceparent"))
	if err != nil {
		h.log.Error("charge failed", "order_id", o.ID, "err", err)
		http.Error(w, "charge failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chargeResponse{Result: outcome, Order: o})
}

type upsertAccountRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

func (h *Handler) upsertAccount(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpsertAccount")
	defer span.End()

	var req upsertAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	a := domain.Account{ID: chi.URLParam(r, "id"), AmountCents: req.AmountCents}
	if a.ID == "" || a.AmountCents < 0 {
		http.Error(w, "account id and a non-negative amount are required", http.StatusBadRequest)
		return
	}

	if err := h.service.UpsertAccount(ctx, a); err != nil {
		h.log.Error("upsert account failed", "account_id", a.ID, "err", err)
		http.Error(w, "upsert failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetAccount")
	defer span.End()

	a, err := h.service.GetAccount(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}
		h.log.Error("get account failed", "err", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a)
}
