package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"

	"github.com/gospodar-shop/order-service/internal/order"
)

// AdminHandler serves the back-office order routes.
type AdminHandler struct {
	svc      order.Service
	validate *validator.Validate
}

func NewAdminHandler(svc order.Service) *AdminHandler {
	return &AdminHandler{svc: svc, validate: validator.New()}
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.ListFilter{
		Status:     order.Status(q.Get("status")),
		ClientType: order.ClientType(q.Get("client_type")),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = v
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		f.Offset = v
	}

	orders, err := h.svc.List(r.Context(), f)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, orders)
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, o)
}

func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	history, err := h.svc.History(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, history)
}

type changeStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Comment string `json:"comment"`
}

func (h *AdminHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.ChangeStatus(r.Context(), id, order.Status(req.Status), order.SourceAdmin, req.Comment); err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": req.Status})
}

type editItemsRequest struct {
	Items []struct {
		ProductID string `json:"product_id" validate:"required,uuid"`
		Quantity  int    `json:"quantity" validate:"required,gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
}

func (h *AdminHandler) EditItems(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req editItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]order.EditItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		pid, err := uuid.FromString(it.ProductID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid product id")
			return
		}
		items = append(items, order.EditItemInput{ProductID: pid, Quantity: it.Quantity})
	}

	updated, err := h.svc.EditItems(r.Context(), id, items)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}

type managerCommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

func (h *AdminHandler) SetManagerComment(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req managerCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.SetManagerComment(r.Context(), id, req.Comment); err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"comment": req.Comment})
}

type waybillRequest struct {
	Weight float64 `json:"weight" validate:"required,gt=0"`
}

func (h *AdminHandler) CreateWaybill(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req waybillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ttn, err := h.svc.CreateWaybill(r.Context(), id, req.Weight)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusCreated, map[string]string{"tracking_number": ttn})
}
