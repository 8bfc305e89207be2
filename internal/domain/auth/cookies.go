package auth

import "time"

// Cookie names shared by the HTTP layer and the session resolver.
const (
	CookieEmailSession = "email-session"
	CookieDevSession   = "dev-session"
	CookieOAuthSession = "session_id"
	// CookieEmailSessionSig holds a server signature over email-session when a signing secret is configured.
	CookieEmailSessionSig = "email-session-sig"
)

// SessionMaxAge is the lifetime of the email-session and dev-session cookies.
const SessionMaxAge = 7 * 24 * time.Hour
