package httpx

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// SameOrigin returns a middleware that refuses cross-site state-changing requests.
// Browsers label the request with Sec-Fetch-Site, and with Origin on every POST;
// a request carrying neither did not come from a browser and is let through.
// trustedOrigin is the public base URL; the request's own scheme and host are
// accepted as well.
//
// GET, HEAD, OPTIONS, and TRACE requests are exempt.
func SameOrigin(trustedOrigin string, logger *slog.Logger) func(http.Handler) http.Handler {
	trusted := originOf(trustedOrigin)
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiresOriginCheck(r.Method) && !sameOriginRequest(r, trusted) {
				logger.WarnContext(r.Context(), "cross-site request refused",
					"path", r.URL.Path,
					"origin", r.Header.Get("Origin"),
					"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"))
				WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: errCodeForbidden})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requiresOriginCheck(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

func sameOriginRequest(r *http.Request, trusted string) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "same-origin", "none":
		return true
	case "":
	default:
		return false
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	origin = originOf(origin)
	if origin == "" {
		// "null" or garbage
		return false
	}
	if trusted != "" && origin == trusted {
		return true
	}
	scheme := "http"
	if isSecureRequest(r) {
		scheme = "https"
	}
	return origin == scheme+"://"+strings.ToLower(r.Host)
}

// originOf reduces a URL to its lower-cased scheme://host[:port], or "" when it has neither.
func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
