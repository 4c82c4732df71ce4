package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/s1natex/todo-web-GO/internal/config"
	"github.com/s1natex/todo-web-GO/internal/middleware"
	"github.com/s1natex/todo-web-GO/internal/session"
	"github.com/s1natex/todo-web-GO/internal/tasks"
	"github.com/s1natex/todo-web-GO/internal/telemetry"
)

// taskRepository is what the service needs plus lifecycle hooks.
type taskRepository interface {
	tasks.Repository
	Close() error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// app bundles everything newRouter wires together.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	repo     tasks.Repository
	svc      *tasks.Service
	page     *tasks.Page
	sessions *session.Manager
	limiter  *middleware.ClientLimiter
}

func main() {
	configPath := flag.String("config", os.Getenv("TODO_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger) // for third-party packages that use slog

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logger.Error("telemetry_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// No operation can proceed without storage, so failing here is fatal.
	repo, err := openRepository(ctx, cfg.Storage)
	if err != nil {
		logger.Error("storage_unavailable",
			slog.String("driver", cfg.Storage.Driver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	a, err := newApp(cfg, logger, repo)
	if err != nil {
		logger.Error("startup_error", slog.String("error", err.Error()))
		_ = repo.Close()
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen",
			slog.String("addr", cfg.Server.Addr),
			slog.String("storage", cfg.Storage.Driver),
			slog.String("theme", cfg.UI.Theme),
		)
		errCh <- srv.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("server_shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server_shutdown_error", slog.String("error", err.Error()))
			exitCode = 1
		}
		cancel()
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("telemetry_shutdown_error", slog.String("error", err.Error()))
	}
	cancel()
	if err := repo.Close(); err != nil {
		logger.Warn("storage_close_error", slog.String("error", err.Error()))
	}
	os.Exit(exitCode)
}

func newApp(cfg *config.Config, logger *slog.Logger, repo tasks.Repository) (*app, error) {
	secret := cfg.Session.Secret
	if secret == "" {
		// sessions will not survive a restart
		secret = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
		logger.Warn("session_secret_generated")
	}
	sessions, err := session.NewManager(session.Config{
		Secret:     secret,
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	})
	if err != nil {
		return nil, err
	}

	page, err := tasks.NewPage(cfg.UI.Theme, "/", "/logout")
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		svc:      tasks.NewService(repo, logger),
		page:     page,
		sessions: sessions,
		limiter:  middleware.NewClientLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}, nil
}

func openRepository(ctx context.Context, cfg config.StorageConfig) (taskRepository, error) {
	switch cfg.Driver {
	case "memory":
		return tasks.NewInMemoryRepo(), nil
	case "sqlite":
		dsn, err := tasks.SQLiteFileDSN(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo, err := tasks.NewSQLiteRepo(dsn)
		if err != nil {
			return nil, err
		}
		if err := repo.ApplyMigrations(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		return repo, nil
	case "postgres":
		repo, err := tasks.NewPostgresRepo(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := repo.ApplyMigrations(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// newRouter wires health, metrics, logout and the session-gated task page.
func newRouter(a *app) *chi.Mux {
	r := chi.NewRouter()

	// ---- Middleware stack (order matters a bit) ----
	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)

	// Panic recovery: never crash the server; returns 500 on panics
	r.Use(chimw.Recoverer)

	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RequestLogger(a.logger))

	// Timeouts: cancel handlers that exceed this duration
	r.Use(chimw.Timeout(a.cfg.Server.RequestTimeout))

	// Session cookies need explicit origins; without any configured the
	// endpoint stays same-origin only.
	if origins := a.cfg.CORS.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"X-Request-ID", "Trace-Id"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// ---- Routes ----

	r.Get("/health", healthHandler(a.repo))
	r.Handle("/metrics", middleware.MetricsHandler())

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		a.sessions.ClearCookie(w)
		w.Header().Set("Location", a.cfg.Session.LoginURL)
		w.WriteHeader(http.StatusSeeOther)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionGate(middleware.SessionGateConfig{
			Sessions: a.sessions,
			LoginURL: a.cfg.Session.LoginURL,
			Logger:   a.logger,
		}))
		r.Use(middleware.RateLimitMiddleware(a.limiter))

		// GET / renders the list, POST / applies add/delete/toggle
		tasks.RegisterRoutes(r, "/", a.svc, a.page, a.logger)
	})

	return r
}

func healthHandler(repo tasks.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := repo.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: l,
	})
	return slog.New(handler)
}
