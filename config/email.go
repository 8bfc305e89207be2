package config

import (
	"fmt"
	"strings"
	"time"
)

// EmailTransport names how magic-link emails leave the process.
type EmailTransport string

const (
	// TransportLog writes messages to the log; local development only.
	TransportLog EmailTransport = "log"
	// TransportHTTP posts messages to a transactional email API.
	TransportHTTP EmailTransport = "http"
)

// UnmarshalText implements encoding.TextUnmarshaler for EmailTransport.
func (t *EmailTransport) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch EmailTransport(v) {
	case TransportLog, TransportHTTP:
		*t = EmailTransport(v)
		return nil
	default:
		return fmt.Errorf("invalid EmailTransport: %q (valid options: log, http)", v)
	}
}

// EmailConfig configures the magic-link email transport.
type EmailConfig struct {
	Transport EmailTransport `env:"EMAIL_TRANSPORT" envDefault:"log"`
	APIURL    string         `env:"EMAIL_API_URL"`
	APIKey    string         `env:"EMAIL_API_KEY"`
	From      string         `env:"EMAIL_FROM"      envDefault:"theagnt <noreply@theagnt.ai>"`
	Timeout   time.Duration  `env:"EMAIL_TIMEOUT"   envDefault:"10s"`
}

// Sanitize trims values and clamps the timeout.
func (e *EmailConfig) Sanitize() {
	e.APIURL = strings.TrimSpace(e.APIURL)
	e.APIKey = strings.TrimSpace(e.APIKey)
	e.From = strings.TrimSpace(e.From)
	if e.Timeout <= 0 {
		e.Timeout = 10 * time.Second
	}
	if e.Timeout > time.Minute {
		e.Timeout = time.Minute
	}
}
