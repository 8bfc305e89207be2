package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darrenapfel/theagnt-website-sub001/config"
	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/memory"
)

func TestFailureBuffer(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{name: "no services enabled", want: 1},
		{name: "http only", modes: []config.ServiceMode{config.ServiceModeHTTP}, want: 2},
		{
			name:  "http and token reaper",
			modes: []config.ServiceMode{config.ServiceModeHTTP, config.ServiceModeTokenReaper},
			want:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}
			assert.Equal(t, tt.want, failureBuffer(enabled))
		})
	}
}

func memoryConfig() *config.AppConfig {
	cfg := &config.AppConfig{
		Env:      "test",
		Access:   config.AccessConfig{OrgDomain: "theagnt.ai", AdminEmail: "admin@theagnt.ai"},
		Storage:  config.StorageConfig{Backend: config.BackendMemory, SessionStore: config.BackendMemory},
		HTTP:     config.HTTPConfig{BaseURL: "http://app.test"},
		Email:    config.EmailConfig{Transport: config.TransportLog},
		Services: "http,token-reaper",
		Observability: config.ObservabilityConfig{
			MetricsEnabled: true,
		},
	}
	cfg.Sanitize()
	return cfg
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildStores(t *testing.T) {
	t.Run("memory backends", func(t *testing.T) {
		stores, err := BuildStores(memoryConfig(), nil, nil)
		require.NoError(t, err)
		assert.IsType(t, &memory.IdentityStore{}, stores.Accounts)
		assert.IsType(t, &memory.TokenStore{}, stores.Tokens)
		assert.NotNil(t, stores.Purger)
		assert.IsType(t, &memory.SessionStore{}, stores.Sessions)
		assert.Nil(t, stores.Cache)
		assert.Empty(t, stores.Health)
	})

	t.Run("postgres without a database", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Storage.Backend = config.BackendPostgres
		_, err := BuildStores(cfg, nil, nil)
		require.Error(t, err)
	})

	t.Run("redis tokens without a client", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Storage.TokenStore = config.BackendRedis
		_, err := BuildStores(cfg, nil, nil)
		require.Error(t, err)
	})
}

func TestBuildSessionSigner(t *testing.T) {
	cfg := memoryConfig()
	signer, err := BuildSessionSigner(cfg, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, signer)

	cfg.Auth.SessionSecret = strings.Repeat("k", 32)
	signer, err = BuildSessionSigner(cfg, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, signer)
	sig, err := signer.Sign("user@example.com", time.Now())
	require.NoError(t, err)
	assert.True(t, signer.Verify(sig, "user@example.com", time.Now()))

	cfg.Auth.SessionSecret = "short"
	_, err = BuildSessionSigner(cfg, discardLogger())
	require.Error(t, err)
}

func TestBuildEmailSender(t *testing.T) {
	cfg := memoryConfig()
	sender, err := BuildEmailSender(cfg, discardLogger())
	require.NoError(t, err)
	assert.NotNil(t, sender)

	cfg.Email = config.EmailConfig{Transport: config.TransportHTTP, APIURL: "https://mail.example.com/send", From: "noreply@theagnt.ai"}
	sender, err = BuildEmailSender(cfg, discardLogger())
	require.NoError(t, err)
	assert.NotNil(t, sender)
}

func TestGetEnabledServices(t *testing.T) {
	assert.Equal(t, []string{"http", "token-reaper"}, GetEnabledServices(memoryConfig()))
	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "bogus"}))
	assert.Empty(t, GetEnabledServices(nil))
}

func TestNewServices_HandlerServesHealthAndMetrics(t *testing.T) {
	// Console transport writes magic links to stdout; keep test output clean.
	stdout := os.Stdout
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { os.Stdout = stdout; devnull.Close() })
	os.Stdout = devnull

	cfg := memoryConfig()
	svc, err := NewServices(context.Background(), &ServiceDeps{
		Config:   cfg,
		Logger:   discardLogger(),
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	assert.Empty(t, svc.Auth.Providers())
	assert.True(t, svc.Dev.Enabled())

	handler := BuildHTTPHandler(cfg, svc, discardLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/signin?from=%2Fdashboard", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/magic-link", strings.NewReader(`{"email":"someone@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "theagnt_magic_link_issued_total")
}

func TestNewServices_RequiresConfig(t *testing.T) {
	_, err := NewServices(context.Background(), nil)
	require.Error(t, err)
}

func TestSupervisor_FailureStopsWorkers(t *testing.T) {
	sup := newSupervisor(discardLogger(), map[config.ServiceMode]bool{config.ServiceModeTokenReaper: true}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	sup.spawn(ctx, worker{mode: config.ServiceModeTokenReaper, name: "watcher", run: func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}})
	sup.report(errors.New("listener failed"))

	err := sup.wait(make(chan os.Signal), cancel)
	require.EqualError(t, err, "listener failed")
	select {
	case <-stopped:
	default:
		t.Fatal("worker was not stopped")
	}
}

func TestSupervisor_WorkerErrorIsReported(t *testing.T) {
	sup := newSupervisor(discardLogger(), map[config.ServiceMode]bool{config.ServiceModeTokenReaper: true}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.spawn(ctx, worker{mode: config.ServiceModeTokenReaper, name: "reaper", run: func(context.Context) error {
		return errors.New("boom")
	}})

	err := sup.wait(make(chan os.Signal), cancel)
	require.Error(t, err)
	assert.Equal(t, "reaper: boom", err.Error())
}

func TestSupervisor_SignalIsCleanStop(t *testing.T) {
	sup := newSupervisor(discardLogger(), map[config.ServiceMode]bool{config.ServiceModeTokenReaper: true}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.spawn(ctx, worker{mode: config.ServiceModeTokenReaper, name: "reaper", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	quit := make(chan os.Signal, 1)
	quit <- os.Interrupt

	require.NoError(t, sup.wait(quit, cancel))
	assert.Empty(t, sup.failures)
}

func TestSupervisor_DisabledWorkerNotStarted(t *testing.T) {
	sup := newSupervisor(discardLogger(), map[config.ServiceMode]bool{config.ServiceModeHTTP: true}, time.Second)
	started := false
	sup.spawn(context.Background(), worker{mode: config.ServiceModeTokenReaper, name: "reaper", run: func(context.Context) error {
		started = true
		return nil
	}})
	assert.Empty(t, sup.running)
	assert.False(t, started)
}
