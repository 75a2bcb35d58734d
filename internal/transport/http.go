package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gospodar-shop/order-service/internal/handler"
)

type Handlers struct {
	Orders   *handler.OrderHandler
	Admin    *handler.AdminHandler
	Cart     *handler.CartHandler
	Payments *handler.PaymentHandler
	Cron     *handler.CronHandler
}

func NewRouter(h Handlers, cronSecret string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Provider callbacks carry their own signatures instead of user identity.
	r.Post("/webhooks/payments/{provider}", h.Payments.Webhook)

	r.Route("/cron", func(r chi.Router) {
		r.Use(handler.RequireCronSecret(cronSecret))
		r.Post("/auto-cancel", h.Cron.AutoCancel)
		r.Post("/auto-track", h.Cron.AutoTrack)
		r.Post("/cleanup-carts", h.Cron.CleanupCarts)
		r.Post("/cleanup-tokens", h.Cron.CleanupTokens)
	})

	r.Group(func(r chi.Router) {
		r.Use(handler.WithIdentity)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.List)
			r.Post("/items", h.Cart.AddItem)
			r.Delete("/items/{productID}", h.Cart.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.Checkout)
			r.Get("/", h.Orders.ListOwn)
			r.Get("/{id}", h.Orders.GetOwn)
			r.Post("/{id}/cancel", h.Orders.CancelOwn)
			r.Post("/{id}/reorder", h.Orders.Reorder)
		})

		r.Post("/payments/initiate", h.Payments.Initiate)

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(handler.RequireAdmin)
			r.Get("/", h.Admin.List)
			r.Get("/{id}", h.Admin.Get)
			r.Get("/{id}/history", h.Admin.History)
			r.Post("/{id}/status", h.Admin.ChangeStatus)
			r.Put("/{id}/items", h.Admin.EditItems)
			r.Post("/{id}/manager-comment", h.Admin.SetManagerComment)
			r.Post("/{id}/waybill", h.Admin.CreateWaybill)
		})
	})

	return r
}
