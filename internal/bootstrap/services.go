package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/darrenapfel/theagnt-website-sub001/config"
	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/devauth"
	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/observability/metrics"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
	"github.com/darrenapfel/theagnt-website-sub001/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth       *service.AuthService
	MagicLinks *service.MagicLinkService
	Resolver   *service.SessionResolver
	Admin      *service.AdminService
	Waitlist   *service.WaitlistService
	Dev        *devauth.Bridge
	Guard      domainauth.Guard
	Signer     ports.SessionSigner
	Stores     Stores
	Metrics    *metrics.Auth
	// MetricsHandler is nil when metrics exposure is disabled.
	MetricsHandler http.Handler
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
}

// NewServices wires stores, providers and services from configuration.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stores, err := BuildStores(cfg, deps.DB, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}
	sender, err := BuildEmailSender(cfg, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	signer, err := BuildSessionSigner(cfg, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	authMetrics := metrics.NewAuth(metrics.Config{Registry: reg, Gatherer: reg})

	mode := cfg.BuildMode()
	classifier := domainauth.NewClassifier(cfg.Access.OrgDomain, cfg.Access.AdminEmail)
	if !mode.IsProduction() {
		logger.Warn("running in non-production build mode; dev session bridge is enabled", "env", cfg.Env)
	}

	container := ServiceContainer{
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Providers: BuildProviders(ctx, ProviderConfig{Auth: cfg.Auth, BaseURL: cfg.HTTP.BaseURL, Logger: logger}),
			Sessions:  stores.Sessions,
			Accounts:  stores.Accounts,
			Logger:    logger,
		}),
		MagicLinks: service.NewMagicLinkService(service.MagicLinkServiceOptions{
			Tokens:   stores.Tokens,
			Sender:   sender,
			Accounts: stores.Accounts,
			Config:   service.MagicLinkConfig{BaseURL: cfg.HTTP.BaseURL},
			Metrics:  authMetrics,
			Logger:   logger,
		}),
		Resolver: service.NewSessionResolver(service.SessionResolverOptions{
			Mode:       mode,
			Classifier: classifier,
			Sessions:   stores.Sessions,
			Signer:     signer,
			Metrics:    authMetrics,
			Logger:     logger,
		}),
		Admin: service.NewAdminService(service.AdminServiceOptions{
			Users:    stores.Directory,
			Waitlist: stores.Waitlist,
			Cache:    stores.Cache,
			Config:   service.AdminConfig{OrgDomain: cfg.Access.OrgDomain, CacheTTL: cfg.Storage.AdminCacheTTL},
			Logger:   logger,
		}),
		Waitlist: service.NewWaitlistService(service.WaitlistServiceOptions{Store: stores.Waitlist, Logger: logger}),
		Dev:      devauth.NewBridge(mode, classifier),
		Guard:    domainauth.NewGuard(classifier),
		Signer:   signer,
		Stores:   stores,
		Metrics:  authMetrics,
	}
	if cfg.Observability.MetricsEnabled {
		container.MetricsHandler = authMetrics.Handler()
	}
	return container, nil
}

// ServiceOrchestrationConfig contains dependencies for running services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// workerStopTimeout bounds how long shutdown waits for all background workers together.
const workerStopTimeout = 15 * time.Second

// worker is a background loop selected by one SERVICES entry.
type worker struct {
	mode config.ServiceMode
	name string
	run  func(context.Context) error
}

type runningWorker struct {
	name string
	done <-chan struct{}
}

// supervisor owns the HTTP server and background workers of one process. The first
// failure reported on failures, or a signal, stops everything.
type supervisor struct {
	logger   *slog.Logger
	enabled  map[config.ServiceMode]bool
	failures chan error
	server   *http.Server
	running  []runningWorker
	drain    time.Duration
}

func newSupervisor(logger *slog.Logger, enabled map[config.ServiceMode]bool, drain time.Duration) *supervisor {
	return &supervisor{
		logger:   logger,
		enabled:  enabled,
		failures: make(chan error, failureBuffer(enabled)),
		drain:    drain,
	}
}

// failureBuffer leaves one slot per enabled service plus one spare, so a late
// listener error never blocks its goroutine.
func failureBuffer(enabled map[config.ServiceMode]bool) int {
	n := 1
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			n++
		}
	}
	return n
}

func (s *supervisor) report(err error) {
	select {
	case s.failures <- err:
	default:
		s.logger.Warn("dropping service error", "error", err)
	}
}

// spawn starts w when its mode is enabled. A worker returning nil after cancellation is a clean stop.
func (s *supervisor) spawn(ctx context.Context, w worker) {
	if !s.enabled[w.mode] {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.run(ctx); err != nil && ctx.Err() == nil {
			s.report(fmt.Errorf("%s: %w", w.name, err))
		}
	}()
	s.running = append(s.running, runningWorker{name: w.name, done: done})
	s.logger.InfoContext(ctx, "background service started", "service", w.name, "mode", w.mode)
}

// wait blocks until a signal or the first failure, then stops everything. It returns
// the failure, or the stop error after a clean signal.
func (s *supervisor) wait(quit <-chan os.Signal, cancel context.CancelFunc) error {
	var cause error
	select {
	case sig := <-quit:
		s.logger.Info("shutdown requested", "signal", sig)
	case cause = <-s.failures:
		s.logger.Error("service failed, shutting down", "error", cause)
	}
	cancel()

	stopErr := s.stop()
	if cause == nil {
		return stopErr
	}
	if stopErr != nil {
		s.logger.Error("graceful stop failed", "error", stopErr)
	}
	return cause
}

// stop drains HTTP, then waits for the workers. Workers are awaited even when draining fails.
func (s *supervisor) stop() error {
	var httpErr error
	if s.server != nil {
		httpErr = ShutdownHTTPServer(ShutdownConfig{Server: s.server, Timeout: s.drain, Logger: s.logger})
	}

	deadline, cancel := context.WithTimeout(context.Background(), workerStopTimeout)
	defer cancel()
	for _, w := range s.running {
		select {
		case <-w.done:
			s.logger.Info("background service stopped", "service", w.name)
		case <-deadline.Done():
			s.logger.Warn("background service did not stop in time", "service", w.name)
		}
	}
	return httpErr
}

func tokenReaperWorker(cfg *ServiceOrchestrationConfig, logger *slog.Logger) worker {
	return worker{
		mode: config.ServiceModeTokenReaper,
		name: "token reaper",
		run: func(ctx context.Context) error {
			purger := cfg.Services.Stores.Purger
			if purger == nil {
				logger.InfoContext(ctx, "token store expires entries natively; token reaper idle")
				<-ctx.Done()
				return nil
			}
			return RunTokenReaper(ctx, TokenReaperConfig{
				Store:    purger,
				Interval: cfg.Config.Reaper.Interval,
				Grace:    cfg.Config.Reaper.Grace,
				Metrics:  cfg.Services.Metrics,
				Logger:   logger,
			})
		},
	}
}

// RunServicesWithShutdown starts the services named by SERVICES and blocks until
// SIGINT/SIGTERM or the first service failure.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config with AppConfig is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := newSupervisor(logger, enabled, cfg.Config.HTTP.ShutdownTimeout)
	if enabled[config.ServiceModeHTTP] {
		sup.server = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
			ErrCh:    sup.failures,
		})
	}
	sup.spawn(ctx, tokenReaperWorker(cfg, logger))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return sup.wait(quit, cancel)
}
