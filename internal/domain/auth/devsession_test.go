package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevPayload_EncodeParse(t *testing.T) {
	in := DevPayload{Email: "dev.internal@theagnt.ai", DisplayName: "Dev Internal", Role: RoleInternal}
	v, err := in.Encode()
	require.NoError(t, err)
	assert.NotContains(t, v, `"`)

	out, ok := ParseDevPayload(v)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestParseDevPayload(t *testing.T) {
	p, ok := ParseDevPayload(`{"email":"Dev@TheAgnt.ai","displayName":"Dev","role":"internal"}`)
	require.True(t, ok)
	assert.Equal(t, "dev@theagnt.ai", p.Email)
	assert.Equal(t, RoleInternal, p.Role)

	p, ok = ParseDevPayload(base64.RawURLEncoding.EncodeToString([]byte(`{"email":"a@b.co","role":"root"}`)))
	require.True(t, ok)
	assert.Equal(t, "a@b.co", p.Email)
	assert.Empty(t, p.Role, "unknown roles are dropped")

	p, ok = ParseDevPayload("1")
	assert.True(t, ok, "bare marker")
	assert.Equal(t, DevPayload{}, p)

	_, ok = ParseDevPayload("  ")
	assert.False(t, ok)
}
