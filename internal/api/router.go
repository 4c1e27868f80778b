package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/arencloud/sitehost/internal/config"
	"github.com/arencloud/sitehost/internal/deploy"
	"github.com/arencloud/sitehost/internal/logging"
	"github.com/arencloud/sitehost/internal/metadata"
	"github.com/arencloud/sitehost/internal/metrics"
	"github.com/arencloud/sitehost/internal/objectstore"
	"github.com/arencloud/sitehost/internal/version"
)

type apiServer struct {
	cfg      *config.Config
	logger   logging.Logger
	store    objectstore.Store
	users    *metadata.Users
	deployer *deploy.Service
	sessions *sessionStore
}

// Router wires the full HTTP surface: auth, deploy, health and metrics.
func Router(cfg *config.Config, logger logging.Logger, store objectstore.Store, users *metadata.Users, deployer *deploy.Service) http.Handler {
	s := &apiServer{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		users:    users,
		deployer: deployer,
		sessions: newSessionStore(cfg.SessionSecret),
	}
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(m.Middleware)

	r.Get("/health", s.health)
	r.Get("/health/oci", s.healthStorage)
	r.Handle("/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, req *http.Request) {
			respondJSON(w, 200, map[string]any{"name": "sitehost", "version": version.Version})
		})
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/logout", s.logout)
			r.Get("/check", s.checkAuth)
		})
		r.Route("/deploy", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.deploySite)
			r.Get("/", s.listSites)
			r.Delete("/{bucket}", s.deleteSite)
		})
	})
	return r
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// respondError writes the uniform error body. Internal detail never goes to
// the caller; it is logged where the error is handled.
func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
