package internal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"flowtrack/internal/auth"
	"flowtrack/internal/config"
	"flowtrack/internal/handlers"
	"flowtrack/internal/metrics"
	"flowtrack/internal/store"
	"flowtrack/pkg/importer"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const serviceName = "Flow Track API"

type Server struct {
	Store      store.Store
	Pool       *pgxpool.Pool
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	cfg        *config.Config
}

// NewServer wires the router over st. pool may be nil; when set, Excel
// imports run inside a single database transaction.
func NewServer(st store.Store, pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, err
	}

	mapping, err := importer.LoadMapping(cfg.ImportMapping)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Store:      st,
		Pool:       pool,
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    metrics.New(),
		Logger:     logger,
		cfg:        cfg,
	}

	s.Router.Use(s.withRequestID, s.logRequests)
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.Router.Get("/", s.root)
	s.Router.Get("/health", s.health)
	s.Router.Post("/auth/register", s.registerUser)
	s.Router.Post("/auth/login", s.loginUser)

	imports := handlers.NewImportsHandler(st, pool, mapping, logger)
	s.Router.Group(func(r chi.Router) {
		if cfg.RequireAuth {
			r.Use(auth.AuthMiddleware(s.JWTManager))
		}
		s.mountResourceRoutes(r)
		r.Post("/imports/excel", imports.UploadExcel)
	})

	return s, nil
}

func (s *Server) mountResourceRoutes(r chi.Router) {
	r.Get("/assets", s.listAssets)
	r.Post("/assets", s.createAsset)
	r.Get("/assets/{id}", s.getAsset)
	r.Put("/assets/{id}", s.updateAsset)
	r.Delete("/assets/{id}", s.deleteAsset)

	r.Get("/users-management", s.listProfiles)
	r.Post("/users-management", s.createProfile)
	r.Get("/users-management/email/{email}", s.getProfileByEmail)
	r.Put("/users-management/email/{email}", s.upsertProfile)
	r.Get("/users-management/{id}", s.getProfile)
	r.Put("/users-management/{id}", s.updateProfile)
	r.Delete("/users-management/{id}", s.deleteProfile)
}

// Close releases the store and the import pool
func (s *Server) Close(ctx context.Context) error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": serviceName + " is running"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "service": serviceName})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
