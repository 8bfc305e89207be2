package auth

import (
	"net/url"
	"strings"
)

// SafeRedirectPath reduces target to a same-origin relative path. Absolute URLs,
// protocol-relative and backslash tricks, and paths outside the site fall back.
func SafeRedirectPath(target, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return fallback
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.ContainsAny(target, "\\\r\n\t") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return fallback
	}
	out := u.EscapedPath()
	if out == "" || !strings.HasPrefix(out, "/") {
		return fallback
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}
