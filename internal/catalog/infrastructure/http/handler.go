package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/catalog/application"
	"orderflow/internal/catalog/domain"
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
		tracer:  otel.Tracer("catalog-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Put("/products/{id}/stock", h.setStock)
	r.Delete("/products/{id}", h.deleteProduct)
	return r
}

type createProductReq struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	PriceCents int64  `json:"priceCents" validate:"gte=0"`
	Currency   string `json:"currency" validate:"required,len=3"`
	Stock      int    `json:"stock" validate:"gte=0"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var req createProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error(), nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	p := domain.NewProduct(req.ID, req.Name, req.PriceCents, req.Currency)
	correlationID := uuid.New().String()
	if err := h.service.CreateProduct(ctx, p, req.Stock, correlationID); err != nil {
		writeError(w, http.StatusInternalServerError, "create failed", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"product_id": p.ID, "correlation_id": correlationID})
}

type setStockReq struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SetStock")
	defer span.End()

	var req setStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error(), nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	err := h.service.SetStock(ctx, id, req.Quantity, uuid.New().String())
	if errors.Is(err, domain.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "not found", "product "+id+" does not exist", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "set stock failed", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	id := chi.URLParam(r, "id")
	p, stock, err := h.service.GetProduct(ctx, id)
	if errors.Is(err, domain.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "not found", "product "+id+" does not exist", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed", err.Error(), nil)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":         p.ID,
		"name":       p.Name,
		"priceCents": p.PriceCents,
		"currency":   p.Currency,
		"stock":      stock.Available,
		"available":  stock.Available > 0,
	})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteProduct")
	defer span.End()

	id := chi.URLParam(r, "id")
	err := h.service.DeleteProduct(ctx, id, uuid.New().String())
	if errors.Is(err, domain.ErrProductNotFound) {
		writeError(w, http.StatusNotFound, "not found", "product "+id+" does not exist", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
