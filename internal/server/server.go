package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/afero"
	"github.com/surrealdb/surrealdb.go"

	"github.com/linkdeck/linkdeck/internal/auth"
	"github.com/linkdeck/linkdeck/internal/config"
	"github.com/linkdeck/linkdeck/internal/database"
	"github.com/linkdeck/linkdeck/internal/handlers"
	"github.com/linkdeck/linkdeck/internal/hub"
	"github.com/linkdeck/linkdeck/internal/live"
	"github.com/linkdeck/linkdeck/internal/logging"
	appmiddleware "github.com/linkdeck/linkdeck/internal/middleware"
	"github.com/linkdeck/linkdeck/internal/pubsub"
	"github.com/linkdeck/linkdeck/internal/reorder"
	"github.com/linkdeck/linkdeck/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E   *echo.Echo
	DB  *surrealdb.DB
	Cfg *config.Config

	store   *database.SurrealProfileStore
	bus     *pubsub.WatermillBridge
	manager *live.Manager
	hub     *hub.Hub
	tokens  *auth.TokenStore

	publicHandler *handlers.PublicHandler
	authHandler   *handlers.AuthHandler
	adminHandler  *handlers.AdminHandler

	relayCancel context.CancelFunc
}

// New creates a new Server instance.
func New() *Server {
	logging.New() // Initialize the structured logger
	cfg := config.New()

	db, err := database.NewDB(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	store := database.NewSurrealProfileStore(db)
	bus := pubsub.NewWatermillBridge()
	manager := live.NewManager(store, bus)

	updateHub := hub.NewHub()
	go updateHub.Run()

	relayCtx, relayCancel := context.WithCancel(context.Background())
	if err := hub.StartRelay(relayCtx, bus, updateHub); err != nil {
		slog.Error("Failed to start update relay", "error", err)
		os.Exit(1)
	}

	blobs := storage.NewAferoStore(afero.NewBasePathFs(afero.NewOsFs(), cfg.StorageDir))
	images := storage.NewImageService(blobs, cfg.PublicBaseURL)

	verifier := auth.NewBcryptVerifier()
	tokens := auth.NewTokenStore()
	reconciler := reorder.NewReconciler(store)

	e := echo.New()
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(appmiddleware.Logger)
	e.Validator = handlers.NewValidator()

	// Configure and use session middleware
	cookieStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
	}
	e.Use(session.Middleware(cookieStore))

	return &Server{
		E:             e,
		DB:            db,
		Cfg:           cfg,
		store:         store,
		bus:           bus,
		manager:       manager,
		hub:           updateHub,
		tokens:        tokens,
		publicHandler: handlers.NewPublicHandler(manager, updateHub),
		authHandler:   handlers.NewAuthHandler(store, verifier, tokens),
		adminHandler:  handlers.NewAdminHandler(store, manager, reconciler, images, verifier),
		relayCancel:   relayCancel,
	}
}

// Store is a getter for the server's profile store, useful for testing.
func (s *Server) Store() *database.SurrealProfileStore {
	return s.store
}

// Manager is a getter for the server's aggregate manager, useful for testing.
func (s *Server) Manager() *live.Manager {
	return s.manager
}

// Tokens is a getter for the server's editor token store, useful for testing.
func (s *Server) Tokens() *auth.TokenStore {
	return s.tokens
}

// Shutdown releases everything the server holds: live aggregates with their
// change feeds, the update relay, the bus, and the database connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.manager.Close()
	s.relayCancel()
	if err := s.bus.Close(); err != nil {
		slog.Warn("Failed to close message bus", "error", err)
	}
	if err := s.DB.Close(ctx); err != nil {
		slog.Warn("Failed to close database connection", "error", err)
	}
	return s.E.Shutdown(ctx)
}
