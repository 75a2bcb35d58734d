package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gospodar-shop/order-service/internal/cart"
	"github.com/gospodar-shop/order-service/internal/order"
	"github.com/gospodar-shop/order-service/internal/payment"
)

// envelope is the standard JSON response shape: {success, data|error}.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondData(w http.ResponseWriter, code int, data any) {
	respond(w, code, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, code int, message string) {
	respond(w, code, envelope{Success: false, Error: message})
}

func respond(w http.ResponseWriter, code int, payload envelope) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("handler: failed to write response")
	}
}

// respondWithError maps domain errors to status codes and keeps internal
// details out of the body.
func respondWithError(w http.ResponseWriter, err error) {
	var oerr *order.Error
	var perr *payment.Error

	switch {
	case errors.Is(err, order.ErrNotFound):
		respondError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, cart.ErrProductUnavailable):
		respondError(w, http.StatusUnprocessableEntity, "product is not available")
	case errors.Is(err, payment.ErrUnsupportedProvider):
		respondError(w, http.StatusBadRequest, payment.ErrUnsupportedProvider.Message)
	case errors.As(err, &oerr):
		respondError(w, http.StatusUnprocessableEntity, oerr.Message)
	case errors.As(err, &perr):
		respondError(w, http.StatusUnprocessableEntity, perr.Message)
	default:
		log.Error().Err(err).Msg("handler: internal error")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
