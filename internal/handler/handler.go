package handler

import (
	"log/slog"
	"net/http"

	"fsanano/storefront/internal/idempotency"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handler struct {
	router *chi.Mux
	shop   *ShopHandler
	idem   func(http.Handler) http.Handler
}

func NewHandler(shop *ShopHandler, store idempotency.Store, log *slog.Logger) *Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	h := &Handler{
		router: router,
		shop:   shop,
		idem:   idempotency.Middleware(store, log, UserIDHeader),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	s := h.shop
	r := h.router

	r.Get("/health", h.HealthCheck)
	r.Get("/logout", s.Logout)
	r.Get("/products", s.ListProducts)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireUser)

		r.Get("/user/username", s.Username)
		r.Get("/user/deposit", s.Deposit)
		r.Get("/user/orders", s.UserOrders)

		r.With(h.idem).Put("/user/adddeposite", s.AddDeposit)
		r.With(h.idem).Put("/user/minusdeposite", s.MinusDeposit)
		r.With(h.idem).Put("/product/inventory", s.ChangeInventory)
		r.With(h.idem).Post("/orders", s.PlaceOrder)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Get("/admin", s.Admin)
			r.Get("/users", s.ListUsers)
			r.Delete("/user", s.DeleteUser)
			r.Put("/user/role", s.UpdateRole)
			r.Get("/orders", s.ListOrders)
			r.Put("/product/price", s.UpdatePrice)
			r.Delete("/product", s.DeleteProduct)
			r.With(h.idem).Put("/product", s.AddProduct)
		})
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
