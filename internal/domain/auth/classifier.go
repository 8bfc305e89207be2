package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// emailShape is a conservative local@domain.tld check over lower-case ASCII; it is
// not an RFC 5322 parser. Every accepted address is a valid cookie value as is.
var emailShape = regexp.MustCompile("^[a-z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-z0-9-]+(\\.[a-z0-9-]+)+$")

// NormalizeEmail trims and lower-cases an address and converts an IDN domain to
// punycode. Domains that need IDNA mapping (full-width forms, for one) are left
// as they are and fail the shape check.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return email
	}
	return email[:at+1] + toASCIIDomain(email[at+1:])
}

// IsValidEmail reports whether email has a local@domain.tld shape after normalization.
func IsValidEmail(email string) bool {
	return emailShape.MatchString(NormalizeEmail(email))
}

// Classifier maps an email to a role and capability set.
// It holds no mutable state; the same input always yields the same Access.
type Classifier struct {
	orgDomain  string
	adminEmail string
}

// NewClassifier builds a Classifier for the organization domain and the single admin address.
func NewClassifier(orgDomain, adminEmail string) Classifier {
	return Classifier{
		orgDomain:  normalizeDomain(orgDomain),
		adminEmail: NormalizeEmail(adminEmail),
	}
}

// OrgDomain returns the normalized organization domain.
func (c Classifier) OrgDomain() string { return c.orgDomain }

// AdminEmail returns the normalized admin address.
func (c Classifier) AdminEmail() string { return c.adminEmail }

// Classify never fails: empty or malformed input is external with no capabilities.
func (c Classifier) Classify(email string) Access {
	email = NormalizeEmail(email)
	if !emailShape.MatchString(email) {
		return Access{Role: RoleExternal, PermissionLevel: PermissionNone}
	}

	isAdmin := c.adminEmail != "" && email == c.adminEmail
	isInternal := c.orgDomain != "" && domainOf(email) == c.orgDomain

	access := Access{
		Role:              RoleExternal,
		IsAdmin:           isAdmin,
		IsInternal:        isInternal,
		CanAccessInternal: isAdmin || isInternal,
		CanAccessAdmin:    isAdmin,
		PermissionLevel:   PermissionBasic,
	}
	switch {
	case isAdmin:
		access.Role = RoleAdmin
		access.PermissionLevel = PermissionAdmin
	case isInternal:
		access.Role = RoleInternal
		access.PermissionLevel = PermissionInternal
	}
	return access
}

// domainOf expects a normalized address.
func domainOf(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return ""
	}
	return email[i+1:]
}

// normalizeDomain prepares the configured org domain so that unicode and
// punycode spellings compare equal with normalized addresses.
func normalizeDomain(domain string) string {
	return toASCIIDomain(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), "."))
}

// toASCIIDomain uses the registration profile, which maps nothing: input that
// only becomes valid after mapping is returned unchanged.
func toASCIIDomain(domain string) string {
	if isASCII(domain) {
		return domain
	}
	if ascii, err := idna.Registration.ToASCII(domain); err == nil {
		return ascii
	}
	return domain
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
