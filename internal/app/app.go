package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"arklicense/internal/config"
	"arklicense/internal/infrastructure"
	customMiddleware "arklicense/internal/middleware"
	"arklicense/internal/services"
	"arklicense/internal/store"
	"arklicense/internal/token"
	handlers "arklicense/internal/transport/http"
)

// Application wires configuration, storage, token issuance, and the HTTP
// surface together.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         *store.Store
	Issuer        *token.Issuer
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	activation services.ActivationService
	admin      services.AdminService
	health     services.HealthService
}

// NewApplication builds a fully wired application. It fails fast when the
// signing key cannot be loaded: a server that cannot sign tokens must not
// accept activation traffic.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("license server starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", infrastructure.ServiceVersion),
		slog.String("app_id", cfg.App.ID))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices constructs the store, signing issuer, and the service
// layer in dependency order.
func (a *Application) initializeServices() error {
	keyPEM, err := token.LoadKeyMaterial(
		a.Config.Paths.PrivateKeyPEM,
		a.Config.Paths.PrivateKeyFile,
		"",
	)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	issuer, err := token.NewIssuer(a.Config.App.ID, a.Config.App.TokenTTL, keyPEM)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	a.Issuer = issuer

	a.Store = store.New(a.Config.Paths.StoreFile, a.Logger)
	a.Store.SetWriteHook(func() {
		a.Metrics.RecordStoreWrite(context.Background())
	})
	a.Logger.Info("license store ready",
		slog.String("path", a.Config.Paths.StoreFile))

	if !config.FileExists(a.Config.Paths.StoreFile) {
		a.Logger.Warn("license store file not found, starting with empty store",
			slog.String("path", a.Config.Paths.StoreFile))
	}

	a.activation = services.NewActivationService(a.Store, a.Issuer, a.Config.App.ID, a.Logger, a.Metrics)
	a.admin = services.NewAdminService(a.Store, a.Logger, a.Metrics)
	a.health = services.NewHealthService(a.Store, a.Config.App.ID, a.Logger)

	if a.Config.Security.AdminToken == "" {
		a.Logger.Warn("no admin token configured, admin endpoints will reject all requests")
	}

	return nil
}

// setupRouter configures the HTTP router. Middleware ordering:
// RequestID, RealIP, OTel, Logger, Recoverer, Timeout.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Group(func(r chi.Router) {
		otelMiddleware := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
		r.Use(otelMiddleware.Handler)

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
				Logger:         a.Logger,
			}))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.health, a.Logger)
		r.Get("/health", healthHandler.Health)
		r.Get("/version", healthHandler.Version)

		activationHandler := handlers.NewActivationHandler(a.activation, a.Logger)
		r.Mount("/api", activationHandler.Routes())

		adminHandler := handlers.NewAdminHandler(a.admin, a.Logger)
		r.Route("/admin", func(r chi.Router) {
			r.Use(customMiddleware.AdminAuth(a.Config.Security.AdminToken, a.Logger))
			r.Mount("/", adminHandler.Routes())
		})
	})

	// Prometheus endpoint stays outside the middleware group.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start begins serving. Server errors cancel the supplied context so the
// caller can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "listening",
		slog.Int("port", a.Config.Server.Port),
		slog.String("store_file", a.Config.Paths.StoreFile),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully drains in-flight requests and shuts down telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry",
				slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "error closing log file", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}

// Run serves until interrupted, then shuts down gracefully.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
