package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
	"golang.org/x/sync/errgroup"

	"github.com/simp-lee/gocontacts/internal/config"
	"github.com/simp-lee/gocontacts/internal/middleware"
	"github.com/simp-lee/gocontacts/internal/module/contact"
	"github.com/simp-lee/gocontacts/internal/notify"
	"github.com/simp-lee/gocontacts/web"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine   *gin.Engine
	sessions *contact.Sessions
	logger   *logger.Logger
	cfg      *config.Config
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, the contact service client, the contact module
// (repository, service, listing sessions, handlers), middleware, template
// rendering, and routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	// 1. Setup logger.
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior")
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	// 2. Setup the contact service client.
	client, err := config.SetupHTTPClient(&cfg.ContactAPI, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup contact api client: %w", err)
	}

	// 3. Manual dependency injection: repository → service → handler.
	repo, err := contact.NewContactRepository(client, cfg.ContactAPI.BaseURL, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup contact repository: %w", err)
	}
	sink := notify.Fanout{
		notify.LogSink{Logger: log.Logger},
		notify.ContextSink{},
	}
	svc := contact.NewContactService(repo, sink)
	schema := contact.NewSchema()
	sessions := contact.NewSessions(svc,
		cfg.Directory.Capacity(),
		cfg.Directory.TTL(),
		contact.WithDebounce(cfg.Directory.DebounceWindow()),
		contact.WithDirectoryLogger(log.Logger),
	)
	defer func() {
		if !success {
			sessions.Purge()
		}
	}()

	module := contact.NewModule(
		contact.NewContactHandler(svc, schema),
		contact.NewContactPageHandler(svc, schema, contact.NewAvatarIngestor(cfg.Avatar.MaxBytes()), sessions),
	)

	// 4. Create Gin engine with custom middleware (not gin.Default()).
	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: false,
		}),
		middleware.Logger(log.Logger),
	)
	if cfg.Server.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RPS:   cfg.Server.RateLimit.RPS,
			Burst: cfg.Server.RateLimit.Burst,
		}))
	}
	engine.Use(middleware.Notifications())

	// 5. Determine filesystem mode and set up template renderer.
	var fsys fs.FS
	if cfg.Server.Mode == gin.DebugMode {
		fsys, err = resolveDebugWebFS()
		if err != nil {
			return nil, fmt.Errorf("resolve debug template fs: %w", err)
		}
	} else {
		fsys = web.EmbeddedFS
	}

	renderer, err := NewTemplateRenderer(fsys, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}
	engine.HTMLRender = renderer

	// 6. Resolve CSRF secret.
	csrfSecret, err := resolveCSRFSecret(cfg.Server.Mode, cfg.Server.CSRFSecret)
	if err != nil {
		return nil, err
	}
	if csrfSecret != strings.TrimSpace(cfg.Server.CSRFSecret) {
		log.Warn("no csrf_secret configured, using random secret in non-release mode (will change on restart)")
	}

	// 7. Register all routes.
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules:    []Module{module},
		Upstream:   repo,
		Mode:       cfg.Server.Mode,
		CSRFSecret: csrfSecret,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	success = true
	return &App{
		engine:   engine,
		sessions: sessions,
		logger:   log,
		cfg:      cfg,
	}, nil
}

// resolveCSRFSecret returns the configured secret, or a random one outside
// release mode when the configured value is a placeholder.
func resolveCSRFSecret(mode, configured string) (string, error) {
	secret := strings.TrimSpace(configured)
	if !isPlaceholderCSRFSecret(secret) {
		return secret, nil
	}
	if mode == gin.ReleaseMode {
		return "", errors.New("csrf_secret must be a non-placeholder value in release mode")
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func isPlaceholderCSRFSecret(secret string) bool {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return true
	}

	switch strings.ToLower(trimmed) {
	case "change-me-to-a-random-secret", "change-me-in-env":
		return true
	default:
		return false
	}
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

func resolveDebugWebFS() (fs.FS, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		webDir := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "web"))
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	exePath, err := os.Executable()
	if err == nil {
		webDir := filepath.Join(filepath.Dir(exePath), "web")
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	return nil, errors.New("debug web directory not found")
}

// log returns the application logger, or the slog default when the App was
// built without one.
func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger.Logger
	}
	return slog.Default()
}

// Run starts the HTTP server and blocks until a shutdown signal is received
// or the server fails. It performs graceful shutdown with a 5-second timeout,
// then closes every open listing session and the logger.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine)

	// Listen for SIGINT / SIGTERM.
	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log().Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.log().Info("shutdown signal received")
		}

		// Graceful shutdown with 5-second deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log().Error("server shutdown error", slog.Any("error", err))
		}
		return nil
	})

	runErr := g.Wait()

	if a.sessions != nil {
		a.sessions.Purge()
		a.log().Info("listing sessions closed")
	}

	a.log().Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}

	return runErr
}
