package httpapi

import (
	"net/http"

	"modeium/backend/internal/adapters"
	"modeium/backend/internal/auth"
	"modeium/backend/internal/config"
	"modeium/backend/internal/models"
	"modeium/backend/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dependencies struct {
	Registry *models.Registry
	Adapters adapters.Factory
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg config.Config, deps Dependencies) http.Handler {
	h := NewHandler(cfg, deps.Registry, deps.Adapters, auth.NewVerifier(cfg.GoogleClientID), deps.Metrics)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(pages chi.Router) {
		pages.Use(h.cookies.GatePages)
		pages.Get("/", http.RedirectHandler("/chat", http.StatusSeeOther).ServeHTTP)
		pages.Get("/login", Page("Sign in"))
		pages.Get("/chat", Page("Chat"))
		pages.Get("/chat/*", Page("Chat"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/cookie", h.SetCookie)
		api.Delete("/auth/cookie", h.DeleteCookie)
		api.Get("/models", h.ListModels)

		api.Route("/message/{slug}", func(msg chi.Router) {
			msg.Use(h.cookies.RequireAPI)
			msg.Post("/"+models.VariantOnlyMessage, h.Message(models.VariantOnlyMessage))
			msg.Post("/"+models.VariantFile, h.Message(models.VariantFile))
		})
	})

	return r
}
