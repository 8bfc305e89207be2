package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/devauth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/memory"
	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	mockauth "github.com/darrenapfel/theagnt-website-sub001/internal/mocks/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
	"github.com/darrenapfel/theagnt-website-sub001/internal/service"
)

const (
	testOrgDomain  = "theagnt.ai"
	testAdminEmail = "admin@theagnt.ai"
	testBaseURL    = "http://app.test"
)

type outbox struct {
	mu   sync.Mutex
	msgs []ports.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg ports.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

// lastLink returns the path and query of the most recent magic link.
func (o *outbox) lastLink(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	raw := linkPattern.FindString(o.msgs[len(o.msgs)-1].Text)
	require.NotEmpty(t, raw)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.RequestURI()
}

type decisionLog struct {
	mu      sync.Mutex
	entries []string
}

func (d *decisionLog) AccessDecision(layer, outcome string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, layer+":"+outcome)
}

func (d *decisionLog) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.entries...)
}

type testApp struct {
	handler   http.Handler
	outbox    *outbox
	sessions  *memory.SessionStore
	store     *memory.IdentityStore
	provider  *mockauth.MockAuthProvider
	decisions *decisionLog
}

type appOptions struct {
	mode   domainauth.BuildMode
	signer ports.SessionSigner
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()
	logger := discardLogger()
	classifier := domainauth.NewClassifier(testOrgDomain, testAdminEmail)

	app := &testApp{
		outbox:    &outbox{},
		sessions:  memory.NewSessionStore(),
		store:     memory.NewIdentityStore(),
		provider:  mockauth.NewMockAuthProvider(),
		decisions: &decisionLog{},
	}
	resolver := service.NewSessionResolver(service.SessionResolverOptions{
		Mode:       opts.mode,
		Classifier: classifier,
		Sessions:   app.sessions,
		Signer:     opts.signer,
		Logger:     logger,
	})
	app.handler = NewRouter(RouterServices{
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Providers: []ports.AuthProvider{app.provider},
			Sessions:  app.sessions,
			Accounts:  app.store,
			Logger:    logger,
		}),
		Providers: []string{app.provider.Name()},
		MagicLinks: service.NewMagicLinkService(service.MagicLinkServiceOptions{
			Tokens:   memory.NewTokenStore(),
			Sender:   app.outbox,
			Accounts: app.store,
			Config:   service.MagicLinkConfig{BaseURL: testBaseURL},
			Logger:   logger,
		}),
		Resolver: resolver,
		Guard:    domainauth.NewGuard(classifier),
		Admin: service.NewAdminService(service.AdminServiceOptions{
			Users:    app.store,
			Waitlist: app.store,
			Config:   service.AdminConfig{OrgDomain: testOrgDomain},
			Logger:   logger,
		}),
		Waitlist:  service.NewWaitlistService(service.WaitlistServiceOptions{Store: app.store, Logger: logger}),
		Dev:       devauth.NewBridge(opts.mode, classifier),
		Cookies:   &Cookies{Signer: opts.signer},
		BaseURL:   testBaseURL,
		Decisions: app.decisions,
		Logger:    logger,
	})
	return app
}

type reqOptions struct {
	body    string
	cookies []*http.Cookie
	headers map[string]string
}

func (a *testApp) do(method, target string, opts reqOptions) *httptest.ResponseRecorder {
	var body io.Reader
	if opts.body != "" {
		body = strings.NewReader(opts.body)
	}
	req := httptest.NewRequest(method, target, body)
	if opts.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}
	for _, c := range opts.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func emailSession(email string) []*http.Cookie {
	return []*http.Cookie{{Name: domainauth.CookieEmailSession, Value: email}}
}

// liveCookies returns the cookies a browser would keep from rec.
func liveCookies(rec *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			out = append(out, c)
		}
	}
	return out
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type fixedResolver struct {
	id *domainauth.ResolvedIdentity
}

func (f fixedResolver) Resolve(context.Context, service.SessionCookies) *domainauth.ResolvedIdentity {
	return f.id
}

func httptestRecorder(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func newFormRequest(target string, form url.Values, cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-Proto", "https")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
