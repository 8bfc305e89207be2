package devauth

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
)

func newTestBridge(mode domainauth.BuildMode) *Bridge {
	return NewBridge(mode, domainauth.NewClassifier("theagnt.ai", "admin@theagnt.ai"))
}

func TestBridge_ProductionRefuses(t *testing.T) {
	b := newTestBridge(domainauth.BuildProduction)
	assert.False(t, b.Enabled())

	for _, role := range []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleInternal, domainauth.RoleExternal} {
		s, err := b.CreateDevSession(role)
		require.ErrorIs(t, err, domainauth.ErrForbidden)
		assert.Empty(t, s.EmailCookie)
		assert.Empty(t, s.MarkerCookie)
	}

	_, err := b.LoginAs("someone@example.com")
	assert.ErrorIs(t, err, domainauth.ErrForbidden)
	assert.ErrorIs(t, b.ClearDevSession(), domainauth.ErrForbidden)
}

func TestBridge_ZeroModeIsProduction(t *testing.T) {
	b := newTestBridge("")
	_, err := b.CreateDevSession(domainauth.RoleAdmin)
	assert.ErrorIs(t, err, domainauth.ErrForbidden)
}

func TestBridge_CreateDevSession(t *testing.T) {
	b := newTestBridge(domainauth.BuildDevelopment)
	classifier := domainauth.NewClassifier("theagnt.ai", "admin@theagnt.ai")

	tests := []struct {
		role      domainauth.Role
		wantEmail string
	}{
		{domainauth.RoleAdmin, "admin@theagnt.ai"},
		{domainauth.RoleInternal, "dev.internal@theagnt.ai"},
		{domainauth.RoleExternal, "dev.external@example.com"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			s, err := b.CreateDevSession(tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, s.Identity.Email)
			assert.Equal(t, tt.wantEmail, s.EmailCookie)
			assert.Equal(t, domainauth.DevSource{Role: tt.role}, s.Identity.Source)
			assert.Equal(t, tt.role, classifier.Classify(s.Identity.Email).Role)

			var p Payload
			raw, err := base64.RawURLEncoding.DecodeString(s.MarkerCookie)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, &p))
			assert.Equal(t, tt.wantEmail, p.Email)
			assert.Equal(t, tt.role, p.Role)
		})
	}

	_, err := b.CreateDevSession("superuser")
	assert.ErrorIs(t, err, domainauth.ErrInvalidRole)
}

func TestBridge_LoginAs(t *testing.T) {
	b := newTestBridge(domainauth.BuildDevelopment)

	s, err := b.LoginAs("  Tester@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "tester@example.com", s.EmailCookie)
	assert.Equal(t, "tester", s.Identity.DisplayName)

	_, err = b.LoginAs("not-an-email")
	assert.ErrorIs(t, err, domainauth.ErrInvalidEmail)

	assert.NoError(t, b.ClearDevSession())
}

func TestBridge_Personas(t *testing.T) {
	personas := newTestBridge(domainauth.BuildDevelopment).Personas()
	require.Len(t, personas, 3)
	assert.Equal(t, domainauth.RoleAdmin, personas[0].Role)
}
