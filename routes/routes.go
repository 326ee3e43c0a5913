package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/ai-gateway/app"
	"github.com/upb/ai-gateway/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(120 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/healthz", deps.HealthHandler.Health)

	// Admin endpoints. These are expected to be reachable only from the
	// operator network; the tenant credential chain does not apply.
	r.Route("/admin", func(r chi.Router) {
		r.Post("/policies/reload", deps.AdminHandler.ReloadPolicies)
		r.Put("/policies", deps.AdminHandler.UpdatePolicies)
	})

	// Tenant-facing API (requires a tenant credential)
	r.Route("/v1", func(r chi.Router) {
		r.Use(deps.TenantAuth.Require)

		r.Post("/generate", deps.GenerateHandler.Generate)

		// Raw passthrough to an explicit target URL.
		r.Post("/proxy", deps.ProxyHandler.Raw)

		// Named routes: AI routes dispatch to their provider, proxy
		// routes forward any method to the configured upstream.
		r.HandleFunc("/route/{name}", deps.ProxyHandler.Forward)
		r.HandleFunc("/route/{name}/*", deps.ProxyHandler.Forward)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
