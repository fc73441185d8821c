package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/order/application"
	"orderflow/internal/order/domain"
	"orderflow/pkg/validate"
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
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/orders/{id}", h.getOrder)
	return r
}

type addressReq struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Country string `json:"country" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
}

type orderItemReq struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type createOrderReq struct {
	CustomerID    string         `json:"customerId" validate:"required"`
	CustomerEmail string         `json:"customerEmail" validate:"required,email"`
	Address       addressReq     `json:"shippingAddress" validate:"required"`
	Items         []orderItemReq `json:"items" validate:"required,min=1,dive"`
	Notes         string         `json:"notes"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error(), nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	cmd := application.CreateOrderCommand{
		CustomerID:    req.CustomerID,
		CustomerEmail: req.CustomerEmail,
		Address: domain.Address{
			Street:  req.Address.Street,
			City:    req.Address.City,
			State:   req.Address.State,
			Country: req.Address.Country,
			Zip:     req.Address.Zip,
		},
		Notes: req.Notes,
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, application.CreateOrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	o, err := h.service.CreateOrder(ctx, cmd)
	if errors.Is(err, application.ErrUnknownProduct) {
		writeError(w, http.StatusNotFound, "unknown product", err.Error(), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "order rejected", err.Error(), nil)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"order_id": o.ID,
		"status":   string(o.Status),
	})
}

type cancelOrderReq struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	var req cancelOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error(), nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	err := h.service.CancelOrder(ctx, id, req.Reason)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "not found", "order "+id+" does not exist", nil)
	case domain.IsStateError(err):
		writeError(w, http.StatusConflict, "illegal transition", err.Error(), nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "cancel failed", err.Error(), nil)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id := chi.URLParam(r, "id")
	o, err := h.service.GetOrder(ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not found", "order "+id+" does not exist", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed", err.Error(), nil)
		return
	}

	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"productId":      it.ProductID,
			"productName":    it.ProductName,
			"unitPriceCents": it.UnitPrice.Cents,
			"currency":       it.UnitPrice.Currency,
			"quantity":       it.Quantity,
		})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":         o.ID,
		"customerId": o.CustomerID,
		"status":     string(o.Status),
		"totalCents": o.Total.Cents,
		"currency":   o.Total.Currency,
		"items":      items,
		"notes":      o.Notes,
		"createdAt":  o.CreatedAt,
		"updatedAt":  o.UpdatedAt,
	})
}

type errorBody struct {
	Title  string               `json:"title"`
	Detail string               `json:"detail,omitempty"`
	Fields validate.FieldErrors `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, title, detail string, fields validate.FieldErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Title: title, Detail: detail, Fields: fields})
}

func writeValidation(w http.ResponseWriter, err error) {
	var fields validate.FieldErrors
	if errors.As(err, &fields) {
		writeError(w, http.StatusBadRequest, "validation failed", "", fields)
		return
	}
	writeError(w, http.StatusBadRequest, "validation failed", err.Error(), nil)
}
