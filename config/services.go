package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeTokenReaper runs the expired magic-link token reaper.
	ServiceModeTokenReaper ServiceMode = "token-reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeTokenReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeTokenReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, token-reaper)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// TokenReaperConfig contains token reaper service configuration.
type TokenReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"TOKEN_REAPER_INTERVAL" envDefault:"15m"`

	// Grace keeps expired tokens long enough to report "expired" instead of "invalid".
	Grace time.Duration `env:"TOKEN_REAPER_GRACE" envDefault:"24h"`
}

// Sanitize applies guardrails to token reaper configuration values.
func (r *TokenReaperConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.Grace < 0 {
		r.Grace = 0
	}
}
