/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request, logged with every line
  2. RequestLogger:  One zap line per request (middleware.go)
  3. Instrument:     Prometheus latency histogram by route pattern
  4. Recoverer:      Panic recovery (500 instead of crash)
  5. CORS:           Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/shifts/*            Shift lifecycle and items
  /api/customer-balances   Carried customer balances
  /api/preview             Stateless evaluation
  /api/scenarios/*         Demo scenarios (Options.EnableScenarios)
  /metrics                 Prometheus exposition
  /healthz                 Store liveness

SECURITY NOTE:
  No authentication middleware. The X-Actor header is trusted as given.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options configures NewRouter.
type Options struct {
	AllowedOrigins  []string
	EnableScenarios bool

	// Metrics is optional; without it /metrics is not mounted.
	Metrics *Metrics
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.CreateShift)
			r.Get("/{id}", h.GetShift)
			r.Patch("/{id}", h.PatchShift)
			r.Post("/{id}/close", h.CloseShift)
			r.Post("/{id}/reclose", h.RecloseShift)
			r.Post("/{id}/reopen", h.ReopenShift)
			r.Put("/{id}/notes", h.UpdateNotes)
			r.Get("/{id}/history", h.GetHistory)
			r.Post("/{id}/items", h.AddItem)
			r.Delete("/{id}/items/{itemId}", h.DeleteItem)
		})

		r.Get("/customer-balances", h.ListCustomerBalances)
		r.Post("/preview", h.Preview)

		if opts.EnableScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		}
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Get("/healthz", h.Health)

	return r
}
