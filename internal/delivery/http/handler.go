package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reisinl/veg-shop/internal/service"
)

// Pinger is satisfied by the repository store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the use cases the API exposes.
type Services struct {
	Auth      *service.AuthService
	Catalog   *service.CatalogService
	Orders    *service.OrderService
	Payments  *service.PaymentService
	Customers *service.CustomerService
	Reports   *service.ReportService
	Health    Pinger
}

// Handler handles HTTP requests for the application.
type Handler struct {
	svc Services
}

func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

// Routes builds the router with every API endpoint mounted.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(EnableCORS)

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
			r.Get("/items", h.handleGetItems)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.handlePlaceOrder)
				r.Get("/", h.handleListOrders)
				r.Get("/{id}", h.handleGetOrder)
				r.Get("/{id}/history", h.handleOrderHistory)
				r.Delete("/{id}", h.handleCancelOrder)
				r.Put("/{id}/status", h.handleUpdateStatus)
				r.Post("/{id}/payments", h.handlePay)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.handleListCustomers)
				r.Get("/me", h.handleCustomerDetails)
				r.Get("/export", h.handleExportCustomers)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/sales", h.handleSalesReport)
				r.Get("/popular-items", h.handlePopularItems)
			})
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.svc.Health != nil {
		if err := h.svc.Health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGetItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Catalog.GetItems(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// EnableCORS is a middleware to allow a browser frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
