package httpx

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
)

const layoutTemplate = `{{define "layout"}}<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} · theagnt</title></head>
<body>
<header><a href="/">theagnt</a>{{if .User}} · {{.User.Email}} ({{.User.Access.Role}})
<form method="post" action="/api/auth/signout" style="display:inline"><button type="submit">Sign out</button></form>{{end}}</header>
<main>{{template "content" .}}</main>
</body>
</html>{{end}}`

var pageTemplates = map[string]string{
	"landing": `{{define "content"}}<h1>theagnt</h1>
<p><a href="/auth/signin">Sign in</a></p>
<form id="waitlist"><input type="email" name="email" required placeholder="you@example.com"><button type="submit">Join the waitlist</button></form>
<script>
document.getElementById("waitlist").addEventListener("submit", async (e) => {
  e.preventDefault();
  const email = e.target.email.value;
  await fetch("/api/waitlist", {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify({email})});
  e.target.replaceWith("Thanks, you are on the list.");
});
</script>{{end}}`,

	"signin": `{{define "content"}}<h1>Sign in</h1>
{{with .Message}}<p role="alert">{{.}}</p>{{end}}
<form id="magic"><input type="email" name="email" required placeholder="you@example.com"><button type="submit">Email me a link</button></form>
<p id="sent" hidden>Check your inbox for a sign-in link.</p>
{{range .Providers}}<p><a href="/auth/login/{{.}}?from={{$.From}}">Continue with {{.}}</a></p>{{end}}
{{if .DevEnabled}}<h2>Development</h2>{{range .Personas}}<button data-role="{{.Role}}">{{.DisplayName}} ({{.Email}})</button> {{end}}{{end}}
<script>
const from = {{.From}};
document.getElementById("magic").addEventListener("submit", async (e) => {
  e.preventDefault();
  const res = await fetch("/api/auth/magic-link", {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify({email: e.target.email.value, redirectTo: from})});
  if (res.ok) { document.getElementById("sent").hidden = false; }
});
document.querySelectorAll("button[data-role]").forEach((b) => b.addEventListener("click", async () => {
  const res = await fetch("/api/dev/session", {method: "POST", headers: {"Content-Type": "application/json"}, body: JSON.stringify({role: b.dataset.role})});
  if (res.ok) { window.location = from; }
}));
</script>{{end}}`,

	"error": `{{define "content"}}<h1>Sign-in problem</h1>
<p>{{.Message}}</p>
<p><a href="/auth/signin">Back to sign in</a></p>{{end}}`,

	"dashboard": `{{define "content"}}<h1>Dashboard</h1>
<p>Welcome, {{.User.DisplayName}}.</p>
<ul>
{{if .User.Access.CanAccessInternal}}<li><a href="/internal">Internal</a></li>{{end}}
{{if .User.Access.CanAccessAdmin}}<li><a href="/admin">Admin</a></li>{{end}}
</ul>{{end}}`,

	"internal": `{{define "content"}}<h1>Internal</h1>
<p>Organization tools for {{.User.Email}}. Waitlist data is at <a href="/api/internal/waitlist">/api/internal/waitlist</a>.</p>{{end}}`,

	"admin": `{{define "content"}}<h1>Admin</h1>
<p>Access metrics and accounts are at <a href="/api/admin">/api/admin</a>.</p>{{end}}`,
}

var pages = parsePages()

func parsePages() map[string]*template.Template {
	out := make(map[string]*template.Template, len(pageTemplates))
	for name, body := range pageTemplates {
		t := template.Must(template.New(name).Parse(layoutTemplate))
		out[name] = template.Must(t.Parse(body))
	}
	return out
}

var signInMessages = map[string]string{
	signInErrProvider: "That sign-in provider is not available.",
	signInErrOAuth:    "We could not complete sign-in with your provider. Please try again.",
	signInErrDenied:   "Sign-in was cancelled.",
	signInErrState:    "Your sign-in attempt expired. Please try again.",
	signInErrSession:  "We could not start your session. Check that cookies are enabled.",
}

var linkErrorMessages = map[string]string{
	linkErrInvalid: "This sign-in link is not valid.",
	linkErrExpired: "This sign-in link has expired. Request a new one.",
	linkErrUsed:    "This sign-in link has already been used. Request a new one.",
	linkErrServer:  "Something went wrong while signing you in. Please try again.",
}

type pageData struct {
	Title      string
	User       *domainauth.ResolvedIdentity
	Message    string
	From       string
	Providers  []string
	DevEnabled bool
	Personas   []domainauth.DevPayload
}

// PageHandlers renders the HTML pages. Area pages run their own tier check.
type PageHandlers struct {
	Enforcer   *Enforcer
	Providers  []string
	DevEnabled bool
	Personas   []domainauth.DevPayload
	Logger     *slog.Logger
}

// Landing renders GET /.
func (h *PageHandlers) Landing(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.Enforcer.AllowPage(w, r, domainauth.TierAuthPage); !ok {
		return
	}
	h.render(w, r, "landing", pageData{Title: "Welcome"})
}

// SignIn renders GET /auth/signin?from=&error=.
func (h *PageHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.Enforcer.AllowPage(w, r, domainauth.TierAuthPage); !ok {
		return
	}
	q := r.URL.Query()
	h.render(w, r, "signin", pageData{
		Title:      "Sign in",
		Message:    signInMessages[q.Get("error")],
		From:       domainauth.SafeRedirectPath(q.Get("from"), domainauth.DashboardPath),
		Providers:  h.Providers,
		DevEnabled: h.DevEnabled,
		Personas:   h.Personas,
	})
}

// AuthError renders GET /auth/error?code=. Unknown codes get the generic message.
func (h *PageHandlers) AuthError(w http.ResponseWriter, r *http.Request) {
	msg, ok := linkErrorMessages[r.URL.Query().Get("code")]
	if !ok {
		msg = linkErrorMessages[linkErrServer]
	}
	h.render(w, r, "error", pageData{Title: "Sign-in problem", Message: msg})
}

// Dashboard renders GET /dashboard.
func (h *PageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.area(w, r, "dashboard", "Dashboard", domainauth.TierAuthenticated)
}

// Internal renders GET /internal and everything below it.
func (h *PageHandlers) Internal(w http.ResponseWriter, r *http.Request) {
	h.area(w, r, "internal", "Internal", domainauth.TierInternal)
}

// Admin renders GET /admin.
func (h *PageHandlers) Admin(w http.ResponseWriter, r *http.Request) {
	h.area(w, r, "admin", "Admin", domainauth.TierAdmin)
}

func (h *PageHandlers) area(w http.ResponseWriter, r *http.Request, name, title string, tier domainauth.Tier) {
	id, ok := h.Enforcer.AllowPage(w, r, tier)
	if !ok {
		return
	}
	h.render(w, r, name, pageData{Title: title, User: id})
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	if data.User == nil {
		data.User, _ = IdentityFromContext(r.Context())
	}
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
