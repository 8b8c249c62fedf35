package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/projecthub/apiserver/config"
	"github.com/projecthub/apiserver/internal/auth"
	"github.com/projecthub/apiserver/internal/authz"
	"github.com/projecthub/apiserver/internal/db"
	"github.com/projecthub/apiserver/internal/handlers"
	"github.com/projecthub/apiserver/internal/mq"
	"github.com/projecthub/apiserver/internal/services"
	"github.com/projecthub/apiserver/internal/storage"
	"github.com/projecthub/apiserver/internal/store"
)

// Dependencies are the collaborators the router is built from.
type Dependencies struct {
	Users    services.UserRepository
	Projects services.ProjectRepository
	Tokens   *auth.Tokens
	Gate     services.Gate
	Events   services.EventPublisher
	Archiver services.ProjectArchiver
	Ping     handlers.Pinger
	Logger   *slog.Logger
}

// NewRouter wires services and handlers onto a chi router with the standard
// middleware stack.
func NewRouter(deps Dependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	credentialService := services.NewCredentialService(deps.Users, deps.Tokens, deps.Events)
	userService := services.NewUserService(deps.Users)
	projectService := services.NewProjectService(deps.Projects, deps.Users, deps.Gate,
		services.WithProjectEvents(deps.Events),
		services.WithArchiver(deps.Archiver),
		services.WithLogger(logger),
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(deps.Ping))
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, credentialService, userService, logger)
	})
	router.Route("/projects", func(r chi.Router) {
		handlers.ProjectRouter(r, projectService, handlers.RequireAuth(deps.Tokens), logger)
	})
	return router
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *mongo.Database
	mq         *mq.MQ
	storage    storage.ObjectStorage
	logger     *slog.Logger
}

// New connects to MongoDB and the optional broker and object store, then
// builds the HTTP server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	database, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gate, err := authz.NewGate()
	if err != nil {
		_ = db.Close(database)
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = db.Close(database)
		return nil, err
	}

	var archiver services.ProjectArchiver
	objects, err := storage.Open(ctx, cfg.Storage)
	switch {
	case err == nil:
		archiver = storage.NewArchiver(objects)
	case errors.Is(err, storage.ErrDisabled):
		objects = nil
	default:
		_ = queue.Close()
		_ = db.Close(database)
		return nil, err
	}

	tokens := auth.NewTokens(cfg.JWTSecret)
	if !tokens.Configured() {
		logger.Warn("JWT_SECRET is not set; login and authenticated routes will fail")
	}

	router := NewRouter(Dependencies{
		Users:    store.NewUserRepository(database),
		Projects: store.NewProjectRepository(database),
		Tokens:   tokens,
		Gate:     gate,
		Events:   mq.NewEventPublisher(queue, logger),
		Archiver: archiver,
		Ping: func(ctx context.Context) error {
			return db.Ping(ctx, database)
		},
		Logger: logger,
	})

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
		db:         database,
		mq:         queue,
		storage:    objects,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker, object store
// and database connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.db != nil {
		_ = db.Close(s.db)
	}
	return err
}
