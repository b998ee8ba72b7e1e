// Package server wires the HTTP surface together: router, middleware,
// and all route definitions. It is the composition root; every other
// package only sees the dependencies it is handed here.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"profile-service/internal/auth"
	"profile-service/internal/config"
	"profile-service/internal/handler"
	"profile-service/internal/middleware"
	"profile-service/internal/model"
	sqliteRepo "profile-service/internal/repository/sqlite"
	"profile-service/internal/service"
)

// Server owns the router and the database connection. The connection is
// closed during graceful shutdown so the WAL is flushed before exit.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
//
//	sqlite.DB → services (auth, profile) → handlers → routes
//
// Handlers never touch the database and services never touch HTTP.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and the route tree.
//
// ROUTE STRUCTURE:
//
//	GET    /health                  → liveness probe
//	GET    /login                   → start OAuth flow (rate limited)
//	GET    /login/auth/callback     → OAuth callback (rate limited)
//	POST   /login/refreshToken      → refresh grant (rate limited)
//	POST   /authorize               → legacy email+password (rate limited)
//	POST   /user/register           → local signup, no auth
//	POST   /user                    → create own profile (user token)
//	GET    /user                    → read own profile (user token)
//	PUT    /user                    → update own profile (user token)
//	DELETE /user                    → delete own profile (user token)
//	GET    /user/{id}               → public read (any valid token)
//	/organiser mirrors /user with the organiser token requirement.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler)

	codec, err := auth.NewTokenCodec(s.cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	passwords := auth.NewPasswordService()
	authService := service.NewAuthService(s.db, passwords, s.logger)
	profileService := service.NewProfileService(s.db, passwords, s.logger)

	google := auth.NewGoogleProvider(
		s.cfg.GoogleClientID,
		s.cfg.GoogleClientSecret,
		s.cfg.GoogleRedirectURL,
		s.cfg.GoogleCertsURL,
	)

	authHandler := handler.NewAuthHandler(google, codec, authService, s.logger)
	profileHandler := handler.NewProfileHandler(profileService, s.logger)

	s.router.Get("/health", profileHandler.HandleHealth)

	// The auth surface gets its own per-IP rate limit; these are the
	// endpoints worth brute forcing.
	authLimit := middleware.NewRateLimiter(s.cfg.AuthRateLimitRPM)
	s.router.Group(func(r chi.Router) {
		r.Use(authLimit.Handler)
		r.Get("/login", authHandler.HandleLogin)
		r.Get("/login/auth/callback", authHandler.HandleCallback)
		r.Post("/login/refreshToken", authHandler.HandleRefresh)
		r.Post("/authorize", authHandler.HandleAuthorize)
	})

	s.mountProfileRoutes("/user", model.KindUser, codec, profileHandler)
	s.mountProfileRoutes("/organiser", model.KindOrganiser, codec, profileHandler)

	// Read-only query surface; per-field access rules live in the schema.
	graphqlHandler, err := handler.NewGraphQLHandler(profileService, s.logger)
	if err != nil {
		return fmt.Errorf("building graphql schema: %w", err)
	}
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(codec))
		r.Post("/graphql", graphqlHandler.HandleQuery)
	})

	return nil
}

// mountProfileRoutes mounts one kind's profile surface. The self-scoped
// operations require a token of the matching kind; the by-ID read only
// requires a valid token of either kind.
func (s *Server) mountProfileRoutes(prefix string, kind model.ProfileKind, codec *auth.TokenCodec, h *handler.ProfileHandler) {
	s.router.Route(prefix, func(r chi.Router) {
		r.Post("/register", h.HandleRegister(kind))

		r.Group(func(gated chi.Router) {
			gated.Use(auth.RequireProfile(codec, kind))
			gated.Post("/", h.HandleCreate(kind))
			gated.Get("/", h.HandleGetOwn(kind))
			gated.Put("/", h.HandleUpdate(kind))
			gated.Delete("/", h.HandleDelete(kind))
		})

		r.Group(func(open chi.Router) {
			open.Use(auth.RequireAuth(codec))
			open.Get("/{id}", h.HandleGetByID(kind))
		})
	})
}

// Router exposes the configured route tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests,
// close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ServerReadTimeout,
		WriteTimeout: s.cfg.ServerWriteTimeout,
		IdleTimeout:  s.cfg.ServerIdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.cfg.ServerPort),
			slog.String("database", s.cfg.DBPath),
			slog.Bool("google_oauth", s.cfg.GoogleConfigured()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
