/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/plans/*           Plan and rule management
  /api/qualifications/*  Threshold gates
  /api/scenarios/*       Saved what-if scenarios and comparison
  /api/simulate          Ad-hoc simulation
  /api/incentives/*      Reports and the single-day commit
  /api/admin/*           Batch jobs and audit
  /api/ventures/*        Venture and roster listing
  /api/demo/*            Demo data (dev only)
  /*                     Static files (frontend)

SECURITY NOTE:
  Callers identify via the X-User-ID header; there is no auth
  middleware. Put a real identity layer in front before exposing this
  beyond a trusted network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
			r.Put("/{id}", h.UpdatePlan)
		})

		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
			r.Put("/{id}", h.UpdateRule)
			r.Delete("/{id}", h.DeleteRule)
		})

		// Qualification routes
		r.Route("/qualifications", func(r chi.Router) {
			r.Get("/", h.ListQualifications)
			r.Post("/", h.CreateQualification)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/", h.CreateScenario)
			r.Post("/compare", h.CompareScenarios)
			r.Get("/{id}", h.GetScenario)
			r.Delete("/{id}", h.DeleteScenario)
		})

		// Simulation
		r.Post("/simulate", h.Simulate)

		// Incentive reports and commit
		r.Route("/incentives", func(r chi.Router) {
			r.Get("/my", h.GetMyIncentives)
			r.Get("/gamification/my", h.GetMyGamification)
			r.Get("/user-daily", h.GetUserDaily)
			r.Get("/user-timeseries", h.GetUserTimeseries)
			r.Get("/venture-summary", h.GetVentureSummary)
			r.Post("/run", h.RunIncentives)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/jobs/incentive-daily", h.RunIncentiveJob)
			r.Get("/jobs", h.ListJobRuns)
		})

		// Venture routes
		r.Route("/ventures", func(r chi.Router) {
			r.Get("/", h.ListVentures)
			r.Get("/{id}/users", h.ListVentureUsers)
		})

		// Demo routes
		r.Route("/demo", func(r chi.Router) {
			r.Get("/", h.ListDemos)
			r.Post("/load", h.LoadDemo)
			r.Post("/reset", h.ResetDemo)
		})
	})

	// Serve static files (React app)
	// First try ./web/dist (development), then fall back to message
	staticDir := "./web/dist"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		// Try relative to executable
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			fullPath := filepath.Join(staticDir, path)

			// Check if file exists
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	} else {
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Incentive Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Incentive Engine API</h1>
<p>The frontend is not built yet. Run <code>cd web && npm install && npm run build</code></p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/ventures">/api/ventures</a> - List ventures</li>
<li><a href="/api/plans">/api/plans</a> - List incentive plans</li>
<li><a href="/api/demo">/api/demo</a> - List demo datasets</li>
</ul>
</body>
</html>`))
		})
	}

	return r
}
