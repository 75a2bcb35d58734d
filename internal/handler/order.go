package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"

	"github.com/gospodar-shop/order-service/internal/order"
)

// OrderHandler serves the client-facing order routes.
type OrderHandler struct {
	svc      order.Service
	validate *validator.Validate
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc, validate: validator.New()}
}

type checkoutRequest struct {
	ClientType      string  `json:"client_type" validate:"omitempty,oneof=retail wholesale"`
	ContactName     string  `json:"contact_name" validate:"required"`
	ContactPhone    string  `json:"contact_phone" validate:"required"`
	ContactEmail    string  `json:"contact_email" validate:"omitempty,email"`
	DeliveryMethod  string  `json:"delivery_method" validate:"required"`
	DeliveryCity    string  `json:"delivery_city" validate:"required"`
	DeliveryAddress string  `json:"delivery_address" validate:"required"`
	DeliveryCost    float64 `json:"delivery_cost" validate:"gte=0"`
	DiscountAmount  float64 `json:"discount_amount" validate:"gte=0"`
	PaymentMethod   string  `json:"payment_method" validate:"required,oneof=online cash_on_delivery"`
	Comment         string  `json:"comment"`
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.svc.Checkout(r.Context(), userIDFrom(r), order.CheckoutInput{
		ClientType:      order.ClientType(req.ClientType),
		ContactName:     req.ContactName,
		ContactPhone:    req.ContactPhone,
		ContactEmail:    req.ContactEmail,
		DeliveryMethod:  req.DeliveryMethod,
		DeliveryCity:    req.DeliveryCity,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryCost:    req.DeliveryCost,
		DiscountAmount:  req.DiscountAmount,
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
		Comment:         req.Comment,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusCreated, o)
}

func (h *OrderHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOwn(r.Context(), userIDFrom(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, orders)
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.FromString(chi.URLParam(r, "id"))
}

func (h *OrderHandler) GetOwn(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.svc.GetOwn(r.Context(), userIDFrom(r), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, o)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) CancelOwn(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "cancelled by client"
	}

	if err := h.svc.CancelOwn(r.Context(), userIDFrom(r), id, req.Reason); err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": string(order.StatusCancelled)})
}

func (h *OrderHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	skipped, err := h.svc.Reorder(r.Context(), userIDFrom(r), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]any{"skipped": skipped})
}
