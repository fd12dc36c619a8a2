package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inkwell-blog/apiserver/config"
	"github.com/inkwell-blog/apiserver/internal/auth"
	"github.com/inkwell-blog/apiserver/internal/db"
	"github.com/inkwell-blog/apiserver/internal/entitlement"
	"github.com/inkwell-blog/apiserver/internal/events"
	"github.com/inkwell-blog/apiserver/internal/handlers"
	"github.com/inkwell-blog/apiserver/internal/services"
	"github.com/inkwell-blog/apiserver/internal/storage"
	"github.com/inkwell-blog/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *events.Publisher
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)

	tokenService := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	userService := services.NewUserService(userRepo)

	// With no oracle configured the gate fails closed: premium bodies stay
	// redacted for everyone.
	var oracle entitlement.Oracle
	if strings.TrimSpace(cfg.Entitlement.BaseURL) != "" {
		oracle, err = entitlement.NewHTTPOracle(cfg.Entitlement.BaseURL)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
	}
	gate := entitlement.NewGate(oracle, cfg.Entitlement.Timeout)

	postService := services.NewPostService(postRepo, gate, cfg.Content.TeaserLength)

	if cfg.Storage.Backend != "" {
		media, err := newMediaStore(ctx, cfg)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		if err := media.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		postService.WithMedia(media)
	}

	var publisher *events.Publisher
	if cfg.Events.Backend != "" {
		backend, err := NewEventsBackend(ctx, cfg)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		publisher = events.NewPublisher(backend, cfg.Events.Channel)
		postService.WithPublisher(publisher)
	}

	authMiddleware := handlers.RequireAuth(tokenService)
	optionalAuthMiddleware := handlers.OptionalAuth(tokenService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, tokenService)
	})
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, postService, authMiddleware, optionalAuthMiddleware)
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
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

// NewEventsBackend selects the configured event broker.
func NewEventsBackend(ctx context.Context, cfg config.Config) (events.Backend, error) {
	switch cfg.Events.Backend {
	case "rabbitmq":
		return events.NewRabbitMQClient(cfg.Events.RabbitMQ)
	case "pubsub":
		return events.NewPubSubClient(ctx, cfg.Events.PubSub)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}

func newMediaStore(ctx context.Context, cfg config.Config) (*storage.MediaStore, error) {
	switch cfg.Storage.Backend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewMediaStore(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewMediaStore(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
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
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
