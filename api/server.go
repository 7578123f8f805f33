/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/session          Sign-in / sign-out
  /api/notifications/*  Counts, cards, acknowledgements
  /api/notices          Transient notices
  /api/tasks/*          Tasks
  /api/customers/*      Customers
  /api/bills/*          Bills
  /api/preferences      Theme and daily goal
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. The owner is whatever X-Owner-ID says;
  put an authenticating proxy in front in production.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultOrigins are the dev frontends allowed by CORS.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured. A nil or empty
// origins list uses DefaultOrigins.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OwnerHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", h.SignIn)
		r.Delete("/session", h.SignOut)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.GetNotifications)
			r.Get("/counts", h.GetCounts)
			r.Post("/refresh", h.RefreshNotifications)
			r.Post("/birthdays/ack-all", h.AcknowledgeAllBirthdays)
			r.Post("/birthdays/{id}/ack", h.AcknowledgeBirthday)
		})
		r.Get("/notices", h.ListNotices)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Post("/{id}/complete", h.CompleteTask)
			r.Delete("/{id}", h.DeleteTask)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
			r.Get("/{id}/message-link", h.GetMessageLink)
		})

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", h.ListBills)
			r.Post("/", h.CreateBill)
			r.Post("/{id}/pay", h.PayBill)
			r.Delete("/{id}", h.DeleteBill)
		})

		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences", h.UpdatePreferences)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
