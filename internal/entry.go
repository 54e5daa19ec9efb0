// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/arne-cl/rstWeb/internal/api"
	"github.com/arne-cl/rstWeb/internal/docstore"
	"github.com/arne-cl/rstWeb/internal/inbox"
	"github.com/arne-cl/rstWeb/internal/lifecycle"
	"github.com/arne-cl/rstWeb/internal/mcpserver"
	"github.com/arne-cl/rstWeb/internal/metrics"
	"github.com/arne-cl/rstWeb/internal/render"
	"github.com/arne-cl/rstWeb/internal/sse"
	"github.com/arne-cl/rstWeb/internal/staging"
)

// core bundles the components shared by the HTTP and MCP entry points.
type core struct {
	db       *docstore.DB
	area     *staging.Area
	tmpArea  bool
	manager  *lifecycle.Manager
	registry *prometheus.Registry
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// newCore opens the document store and staging area and builds the
// lifecycle manager. notify may be nil.
func newCore(cfg *Config, logger *slog.Logger, notify func(lifecycle.Event)) (*core, error) {
	c := &core{registry: prometheus.NewRegistry()}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	stagingPath := cfg.Staging.Path
	if stagingPath == "" {
		dir, err := os.MkdirTemp("", "rstweb-staging-*")
		if err != nil {
			return nil, fmt.Errorf("create staging dir: %w", err)
		}
		stagingPath, c.tmpArea = dir, true
	}
	area, err := staging.NewArea(stagingPath)
	if err != nil {
		return nil, fmt.Errorf("init staging: %w", err)
	}
	c.area = area

	db, err := docstore.Open(cfg.SQLite.Path)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init document store: %w", err)
	}
	c.db = db

	lopts := []lifecycle.Option{
		lifecycle.WithUser(cfg.App.User),
		lifecycle.WithTempProject(cfg.Convert.TempProject),
		lifecycle.WithEditorTemplate(cfg.Editor.URLTemplate),
		lifecycle.WithMetrics(metrics.NewLifecycle(c.registry)),
		lifecycle.WithLogger(logger),
	}
	if notify != nil {
		lopts = append(lopts, lifecycle.WithNotifier(notify))
	}
	renderer := render.NewHTTP(cfg.Renderer.URL, cfg.Renderer.Timeout)
	manager, err := lifecycle.New(db, renderer, area, lopts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init lifecycle manager: %w", err)
	}
	c.manager = manager
	return c, nil
}

// Close releases the store and, when it was created here, the staging directory.
func (c *core) Close() {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			slog.Error("close document store", slog.String("error", err.Error()))
		}
	}
	if c.tmpArea && c.area != nil {
		if err := c.area.Close(); err != nil {
			slog.Error("remove staging dir", slog.String("error", err.Error()))
		}
	}
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("renderer_url", cfg.Renderer.URL),
		slog.String("inbox_path", cfg.Inbox.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := newCore(cfg, logger, func(e lifecycle.Event) {
		broker.PublishChange(e.Kind, e.Project, e.File)
	})
	if err != nil {
		return err
	}
	defer c.Close()

	apiRouter := api.NewRouter(c.manager, api.RouterConfig{
		AllowedOrigin: cfg.CORS.AllowedOrigin,
		Events:        broker,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.manager.ListProjects(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler(c.registry))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Inbox.Enabled() {
		g.Go(func() error {
			if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
				return fmt.Errorf("create inbox dir: %w", err)
			}
			return inbox.Watch(gCtx, c.manager, cfg.Inbox.Path, logger)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams stay open until the broker closes them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so that background workers stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	c, err := newCore(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("MCP server starting", slog.String("version", app.version))

	errCh := make(chan error, 1)
	go func() { errCh <- mcpserver.New(c.manager, app.version).ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
