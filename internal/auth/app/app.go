package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/openlearnhub/lms-auth/internal/auth/http"
	"github.com/openlearnhub/lms-auth/internal/auth/mail"
	"github.com/openlearnhub/lms-auth/internal/auth/service"
	"github.com/openlearnhub/lms-auth/internal/auth/store"
	"github.com/openlearnhub/lms-auth/internal/auth/store/drivers/sqlite"
	"github.com/openlearnhub/lms-auth/pkg/jwtx"
	"github.com/openlearnhub/lms-auth/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.Signer

	authService         *service.AuthService
	twoFactorService    *service.TwoFactorService
	verificationService *service.VerificationService
	settingsService     *service.SettingsService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "lms-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initSigner(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start(context.Background())

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server, housekeeping and database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initSigner() error {
	if app.cfg.SigningKeyFile != "" {
		pemKey, err := os.ReadFile(app.cfg.SigningKeyFile)
		if err != nil {
			return fmt.Errorf("failed to read signing key: %w", err)
		}
		signer, err := jwtx.NewSignerFromPEM(app.cfg.Issuer, pemKey)
		if err != nil {
			return fmt.Errorf("failed to load signing key: %w", err)
		}
		app.signer = signer
		return nil
	}

	signer, err := jwtx.NewSigner(app.cfg.Issuer)
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}
	app.signer = signer
	app.logger.Warn("using ephemeral signing key; sessions will not survive restarts")
	return nil
}

func (app *Application) initServices() {
	var sender mail.Sender
	if app.cfg.PostmarkServerToken != "" {
		sender = mail.NewPostmarkSender(
			app.cfg.PostmarkServerToken,
			app.cfg.PostmarkAccountToken,
			app.cfg.MailFrom,
			app.cfg.MailReplyTo,
			app.cfg.FrontendURL,
			app.cfg.ProductName,
		)
	} else {
		sender = &mail.LogSender{Logger: app.logger}
		app.logger.Warn("no Postmark credentials configured; emails will be logged only")
	}

	app.settingsService = &service.SettingsService{Store: app.db}
	app.twoFactorService = &service.TwoFactorService{
		Store:  app.db,
		Issuer: app.cfg.ProductName,
	}
	app.verificationService = &service.VerificationService{
		Store:    app.db,
		Mail:     sender,
		Settings: app.settingsService,
	}
	app.authService = &service.AuthService{
		Store:        app.db,
		Signer:       app.signer,
		Settings:     app.settingsService,
		TwoFactor:    app.twoFactorService,
		Verification: app.verificationService,
		SessionTTL:   app.cfg.SessionTTL,
	}

	app.housekeepingService = &service.HousekeepingService{
		Store:    app.db,
		Logger:   app.logger,
		Interval: app.cfg.HousekeepingInterval,
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.TwoFactorService = app.twoFactorService
	router.VerificationService = app.verificationService
	router.SettingsService = app.settingsService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
