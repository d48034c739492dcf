package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/taskhive/apiserver/config"
	"github.com/taskhive/apiserver/internal/auth"
	"github.com/taskhive/apiserver/internal/db"
	"github.com/taskhive/apiserver/internal/handlers"
	"github.com/taskhive/apiserver/internal/observability"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/storage"
	"github.com/taskhive/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
}

// New constructs a Server with its full dependency graph.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	userRepo := store.NewUserRepository(dbConn)
	taskRepo := store.NewTaskRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)
	attachmentRepo := store.NewAttachmentRepository(dbConn)

	userService := services.NewUserService(userRepo)
	taskService := services.NewTaskService(taskRepo, projectRepo)
	projectService := services.NewProjectService(projectRepo, taskRepo)

	var attachmentService *services.AttachmentService
	if cfg.Storage.Backend != "" {
		objects, err := newObjectStorage(ctx, cfg.Storage)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("ensure attachment bucket: %w", err)
		}
		slog.Info("attachment storage ready",
			"backend", cfg.Storage.Backend,
			"bucket", objects.Bucket(),
		)
		attachmentService = services.NewAttachmentService(attachmentRepo, taskService, objects)
	}

	issuer := auth.NewIssuer([]byte(jwtSecret), auth.DefaultTokenTTL)
	verifier := auth.NewVerifier([]byte(jwtSecret))
	gate := handlers.NewGatekeeper(verifier, "/login")
	cookieSecure := cfg.Env != "dev"

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		observability.MetricsMiddleware,
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, issuer, gate, cookieSecure)
		})
		r.Route("/tasks", func(r chi.Router) {
			handlers.TaskRouter(r, taskService, attachmentService, gate)
		})
		r.Route("/projects", func(r chi.Router) {
			handlers.ProjectRouter(r, projectService, gate)
		})
		r.Route("/stats", func(r chi.Router) {
			handlers.StatsRouter(r, taskService, gate)
		})
	})

	if cfg.Dashboard.Dir != "" {
		mountDashboard(router, gate, cfg.Dashboard.Dir)
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
	}, nil
}

// mountDashboard serves the SPA assets. Everything under /dashboard is
// a page navigation and sits behind the redirecting guard; the login
// page itself stays public.
func mountDashboard(router *chi.Mux, gate *handlers.Gatekeeper, dir string) {
	assets := http.FileServer(http.Dir(dir))
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, dir+"/index.html")
	})
	router.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, dir+"/login.html")
	})
	router.With(gate.RequirePage).Handle("/dashboard", http.StripPrefix("/dashboard", assets))
	router.With(gate.RequirePage).Handle("/dashboard/*", http.StripPrefix("/dashboard", assets))
}

func newObjectStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch cfg.Backend {
	case "minio":
		backend, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	case "gcs":
		backend, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
