package config

import "strings"

// AccessConfig names the organization whose members are internal and the single admin.
type AccessConfig struct {
	OrgDomain  string `env:"ORG_DOMAIN"  envDefault:"theagnt.ai"`
	AdminEmail string `env:"ADMIN_EMAIL" envDefault:"admin@theagnt.ai"`
}

// Sanitize lowercases and trims both values.
func (a *AccessConfig) Sanitize() {
	a.OrgDomain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(a.OrgDomain)), "@")
	a.AdminEmail = strings.ToLower(strings.TrimSpace(a.AdminEmail))
}
