//revive:disable-next-line:var-naming // legacy package name used across the project
package model

import (
	"strings"
	"time"
)

// User is an account held by the identity store.
type User struct {
	ID           string     `json:"id"                        db:"id"`
	Email        string     `json:"email"                     db:"email"`
	DisplayName  string     `json:"display_name"              db:"display_name"`
	Provider     string     `json:"provider"                  db:"provider"`
	CreatedAt    time.Time  `json:"created_at"                db:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty" db:"last_sign_in_at"`
}

// EnsureUserRequest describes an account that must exist after a successful sign-in.
type EnsureUserRequest struct {
	Email       string
	DisplayName string
	Provider    string
}

// Normalize trims fields and lower-cases the email.
func (r *EnsureUserRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Provider = strings.TrimSpace(r.Provider)
}

// DisplayNameFromEmail derives a display name from the local part of an address.
func DisplayNameFromEmail(email string) string {
	local, _, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok {
		return ""
	}
	return local
}

// UserListOptions filters and paginates user listings.
type UserListOptions struct {
	Domain string // exact email domain match when non-empty
	Limit  int
	Offset int
}

// WaitlistEntry is an email that asked for access.
type WaitlistEntry struct {
	ID        string    `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Converted bool      `json:"converted"  db:"converted"`
}

// WaitlistListOptions paginates waitlist listings.
type WaitlistListOptions struct {
	Limit  int
	Offset int
}

// AccessMetrics are aggregate counts shown to admin and internal viewers.
type AccessMetrics struct {
	TotalUsers      int     `json:"total_users"`
	InternalUsers   int     `json:"internal_users"`
	WaitlistTotal   int     `json:"waitlist_total"`
	WaitlistSignups int     `json:"waitlist_converted"`
	ConversionRate  float64 `json:"conversion_rate"`
}

// ComputeConversionRate sets ConversionRate as converted/total, rounded to four places.
func (m *AccessMetrics) ComputeConversionRate() {
	if m.WaitlistTotal <= 0 {
		m.ConversionRate = 0
		return
	}
	rate := float64(m.WaitlistSignups) / float64(m.WaitlistTotal)
	m.ConversionRate = float64(int64(rate*10000+0.5)) / 10000
}
