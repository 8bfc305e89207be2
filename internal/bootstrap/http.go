package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/darrenapfel/theagnt-website-sub001/config"
	httpx "github.com/darrenapfel/theagnt-website-sub001/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives listener failures. Optional.
	ErrCh chan<- error
}

// BuildHTTPHandler assembles the router with its middleware from the service container.
func BuildHTTPHandler(appCfg *config.AppConfig, svc ServiceContainer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	var dev httpx.DevBridge
	if svc.Dev != nil {
		dev = svc.Dev
	}
	return httpx.NewRouter(httpx.RouterServices{
		Auth:         svc.Auth,
		Providers:    svc.Auth.Providers(),
		MagicLinks:   svc.MagicLinks,
		Resolver:     svc.Resolver,
		Guard:        svc.Guard,
		Admin:        svc.Admin,
		Waitlist:     svc.Waitlist,
		Dev:          dev,
		Cookies:      &httpx.Cookies{Domain: appCfg.HTTP.CookieDomain, Signer: svc.Signer},
		BaseURL:      appCfg.HTTP.BaseURL,
		Decisions:    svc.Metrics,
		Metrics:      svc.MetricsHandler,
		HealthChecks: svc.Stores.Health,
		Logger:       logger,
	})
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil || cfg.Config == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := BuildHTTPHandler(cfg.Config, cfg.Services, logger)
	return startServer(logger, handler, cfg.Config.HTTP.Addr, cfg.ErrCh)
}

func startServer(logger *slog.Logger, handler http.Handler, addr string, errCh chan<- error) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if errCh != nil {
				select {
				case errCh <- fmt.Errorf("http server: %w", err):
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// A fresh context: the service context is already cancelled at this point.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
