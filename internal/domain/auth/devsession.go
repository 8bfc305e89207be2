package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// DevPayload is the fabricated identity carried by the dev-session cookie.
type DevPayload struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role,omitempty"`
}

// Encode renders the payload as base64url JSON so it survives cookie value rules.
func (p DevPayload) Encode() (string, error) {
	blob, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(blob), nil
}

// ParseDevPayload decodes a dev-session cookie value. Any non-empty value is a
// valid marker; ok is false only for an empty value. The payload may be base64url
// or plain JSON; anything else yields a zero payload.
func ParseDevPayload(value string) (DevPayload, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DevPayload{}, false
	}
	raw := []byte(value)
	if decoded, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		raw = decoded
	}
	var p DevPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return DevPayload{}, true
	}
	p.Email = NormalizeEmail(p.Email)
	if _, err := ParseRole(string(p.Role)); err != nil {
		p.Role = ""
	}
	return p, true
}
