package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gospodar-shop/order-service/internal/payment"
)

type PaymentHandler struct {
	svc      payment.Service
	validate *validator.Validate
}

func NewPaymentHandler(svc payment.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc, validate: validator.New()}
}

type initiateRequest struct {
	OrderID  string `json:"order_id" validate:"required,uuid"`
	Provider string `json:"provider" validate:"required"`
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	orderID, err := uuid.FromString(req.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	url, err := h.svc.Initiate(r.Context(), userIDFrom(r), orderID, req.Provider, isAdmin(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"redirect_url": url})
}

// Webhook applies a provider callback. The provider is always acknowledged
// with success — even when reconciliation fails internally — so a transient
// error on our side never turns into a provider retry storm. The one
// exception is a bad signature, which is rejected explicitly.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	err := h.svc.HandleCallback(r.Context(), provider, r)
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrBadSignature):
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	case errors.Is(err, payment.ErrUnsupportedProvider):
		respondError(w, http.StatusNotFound, "unknown provider")
		return
	default:
		log.Error().Err(err).Str("provider", provider).Msg("handler: webhook reconciliation failed")
	}

	respondData(w, http.StatusOK, map[string]string{"result": "ok"})
}
