package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/devauth"
	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
)

// CallbackPath is where identity providers return after login.
const CallbackPath = "/api/auth/callback"

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth       AuthServiceInterface      // Required; with no providers configured every login is refused
	Providers  []string                  // provider names shown on the sign-in page
	MagicLinks MagicLinkServiceInterface // Required
	Resolver   IdentityResolver          // Required
	Guard      domainauth.Guard
	Admin      AdminServiceInterface    // Required
	Waitlist   WaitlistServiceInterface // Required
	// Dev defaults to a production bridge, which refuses every call.
	Dev     DevBridge
	Cookies *Cookies
	BaseURL string // absolute origin used for the provider callback URL

	Decisions    decisionRecorder // Optional: access decision metrics
	Metrics      http.Handler     // Optional: served at /metrics
	HealthChecks map[string]HealthCheck
	Logger       *slog.Logger // Optional
}

// NewRouter creates the mux and wraps it with logging, recovery and the edge guard.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cookies := services.Cookies
	if cookies == nil {
		cookies = &Cookies{}
	}
	dev := services.Dev
	if dev == nil {
		dev = devauth.NewBridge(domainauth.BuildProduction, services.Guard.Classifier())
	}

	enforcer := NewEnforcer(EnforcerOptions{
		Resolver: services.Resolver,
		Guard:    services.Guard,
		Metrics:  services.Decisions,
		Logger:   logger,
	})
	pages := &PageHandlers{
		Enforcer:   enforcer,
		Providers:  services.Providers,
		DevEnabled: dev.Enabled(),
		Personas:   dev.Personas(),
		Logger:     logger,
	}
	magic := &MagicLinkHandlers{Svc: services.MagicLinks, Cookies: cookies, Logger: logger}
	devHandlers := &DevHandlers{Bridge: dev, Cookies: cookies, Logger: logger}
	admin := &AdminHandlers{Svc: services.Admin, Logger: logger}
	waitlist := &WaitlistHandlers{Svc: services.Waitlist, Logger: logger}

	sameOrigin := SameOrigin(services.BaseURL, logger)

	mux := http.NewServeMux()
	registerPageRoutes(mux, pages, enforcer)

	registerAuthRoutes(mux, &AuthHandlers{
		Svc:         services.Auth,
		Resolver:    services.Resolver,
		Cookies:     cookies,
		CallbackURL: strings.TrimRight(services.BaseURL, "/") + CallbackPath,
		Logger:      logger,
	}, sameOrigin)

	mux.HandleFunc("POST /api/auth/magic-link", magic.Request)
	mux.HandleFunc("GET /api/auth/verify-email", magic.Verify)
	mux.HandleFunc("POST /api/waitlist", waitlist.Join)

	mux.Handle("POST /api/dev/login", sameOrigin(http.HandlerFunc(devHandlers.Login)))
	mux.Handle("POST /api/dev/session", sameOrigin(http.HandlerFunc(devHandlers.CreateSession)))
	mux.Handle("DELETE /api/dev/session", sameOrigin(http.HandlerFunc(devHandlers.ClearSession)))

	mux.Handle("GET /api/admin", enforcer.RequireTier(domainauth.TierAdmin)(http.HandlerFunc(admin.Admin)))
	mux.Handle("GET /api/internal/waitlist",
		enforcer.RequireTier(domainauth.TierInternal)(http.HandlerFunc(admin.InternalWaitlist)))

	health := newHealthHandler(services.HealthChecks, logger)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}

	var h http.Handler = mux
	h = enforcer.Edge(h)
	h = SecurityHeaders(h)
	h = Recover(logger)(h)
	return Logging(logger)(h)
}

func registerPageRoutes(mux *http.ServeMux, pages *PageHandlers, enforcer *Enforcer) {
	mux.HandleFunc("GET /{$}", pages.Landing)
	mux.HandleFunc("GET /auth/signin", pages.SignIn)
	mux.HandleFunc("GET /auth/error", pages.AuthError)

	mux.HandleFunc("GET /dashboard", pages.Dashboard)
	mux.HandleFunc("GET /dashboard/", pages.Dashboard)

	internal := enforcer.RequireTier(domainauth.TierInternal)(http.HandlerFunc(pages.Internal))
	mux.Handle("GET /internal", internal)
	mux.Handle("GET /internal/", internal)

	admin := enforcer.RequireTier(domainauth.TierAdmin)(http.HandlerFunc(pages.Admin))
	mux.Handle("GET /admin", admin)
	mux.Handle("GET /admin/", admin)
}

// The provider callback is exempt from sameOrigin: Apple posts it cross-site.
func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, sameOrigin func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /auth/login/{provider}", h.Login)
	mux.HandleFunc("GET "+CallbackPath, h.Callback)
	mux.HandleFunc("POST "+CallbackPath, h.Callback)
	mux.HandleFunc("GET /auth/complete", h.Complete)
	mux.Handle("POST /api/auth/signout", sameOrigin(http.HandlerFunc(h.Signout)))
	mux.HandleFunc("GET /api/auth/session", h.Session)
}
