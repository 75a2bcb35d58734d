package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"

	"github.com/gospodar-shop/order-service/internal/cart"
)

type CartHandler struct {
	svc      cart.Service
	validate *validator.Validate
}

func NewCartHandler(svc cart.Service) *CartHandler {
	return &CartHandler{svc: svc, validate: validator.New()}
}

func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	lines, err := h.svc.List(r.Context(), userIDFrom(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, lines)
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	productID, err := uuid.FromString(req.ProductID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.svc.AddItem(r.Context(), userIDFrom(r), productID, req.Quantity); err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int{"quantity": req.Quantity})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.svc.RemoveItem(r.Context(), userIDFrom(r), productID); err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"result": "removed"})
}
