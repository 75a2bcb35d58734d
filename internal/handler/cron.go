package handler

import (
	"context"
	"net/http"

	"github.com/gospodar-shop/order-service/internal/janitor"
)

// CronHandler re-exposes the janitors over HTTP for manual/ops runs; the
// in-process scheduler is the primary trigger. Routes are mounted behind
// RequireCronSecret.
type CronHandler struct {
	janitor *janitor.Janitor
}

func NewCronHandler(j *janitor.Janitor) *CronHandler {
	return &CronHandler{janitor: j}
}

func (h *CronHandler) run(w http.ResponseWriter, r *http.Request, job func(context.Context) (int, error)) {
	count, err := job(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int{"affected": count})
}

func (h *CronHandler) AutoCancel(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.janitor.AutoCancelStaleOrders)
}

func (h *CronHandler) AutoTrack(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.janitor.AutoTrackShipments)
}

func (h *CronHandler) CleanupCarts(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.janitor.CleanupCarts)
}

func (h *CronHandler) CleanupTokens(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.janitor.CleanupTokens)
}
