// Package metrics exposes Prometheus counters for sign-in and access control.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultInvalid = "invalid"
)

// Config configures metric registration.
type Config struct {
	// Namespace prefixes every metric name (default "theagnt").
	Namespace string
	// Registry receives the collectors (default prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
	// Gatherer backs Handler (default prometheus.DefaultGatherer).
	Gatherer prometheus.Gatherer
}

// Auth holds the counters. A nil *Auth is valid and records nothing.
type Auth struct {
	magicLinkIssued   *prometheus.CounterVec
	magicLinkVerified *prometheus.CounterVec
	accessDecisions   *prometheus.CounterVec
	sessionResolved   *prometheus.CounterVec
	tokensPurged      prometheus.Counter
	gatherer          prometheus.Gatherer
}

// NewAuth registers the counters on cfg.Registry.
func NewAuth(cfg Config) *Auth {
	if cfg.Namespace == "" {
		cfg.Namespace = "theagnt"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	factory := promauto.With(cfg.Registry)

	return &Auth{
		magicLinkIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "magic_link_issued_total",
			Help:      "Magic links issued, by result",
		}, []string{"result"}),
		magicLinkVerified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "magic_link_verified_total",
			Help:      "Magic link verification attempts, by result",
		}, []string{"result"}),
		accessDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "access_decisions_total",
			Help:      "Route authorization decisions, by enforcement layer and outcome",
		}, []string{"layer", "outcome"}),
		sessionResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "session_resolved_total",
			Help:      "Session resolutions, by winning source",
		}, []string{"source"}),
		tokensPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "magic_link_tokens_purged_total",
			Help:      "Expired magic link tokens removed by the reaper",
		}),
		gatherer: cfg.Gatherer,
	}
}

func (a *Auth) MagicLinkIssued(result string) {
	if a == nil {
		return
	}
	a.magicLinkIssued.WithLabelValues(result).Inc()
}

// MagicLinkVerified records a verification attempt. result is "success" or a token failure name.
func (a *Auth) MagicLinkVerified(result string) {
	if a == nil {
		return
	}
	a.magicLinkVerified.WithLabelValues(result).Inc()
}

func (a *Auth) AccessDecision(layer, outcome string) {
	if a == nil {
		return
	}
	a.accessDecisions.WithLabelValues(layer, outcome).Inc()
}

// SessionResolved records the source that won resolution; "none" for unauthenticated.
func (a *Auth) SessionResolved(source string) {
	if a == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	a.sessionResolved.WithLabelValues(source).Inc()
}

// TokensPurged adds n removed tokens.
func (a *Auth) TokensPurged(n int64) {
	if a == nil || n <= 0 {
		return
	}
	a.tokensPurged.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (a *Auth) Handler() http.Handler {
	if a == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})
}
