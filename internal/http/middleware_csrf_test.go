package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameOrigin(t *testing.T) {
	handler := SameOrigin("https://app.theagnt.ai/", nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		method  string
		host    string
		headers map[string]string
		want    int
	}{
		{"get is exempt", http.MethodGet, "", map[string]string{"Sec-Fetch-Site": "cross-site"}, http.StatusNoContent},
		{"no browser headers", http.MethodPost, "", nil, http.StatusNoContent},
		{"fetch same-origin", http.MethodPost, "", map[string]string{"Sec-Fetch-Site": "same-origin"}, http.StatusNoContent},
		{"fetch user-initiated", http.MethodPost, "", map[string]string{"Sec-Fetch-Site": "none"}, http.StatusNoContent},
		{"fetch cross-site", http.MethodPost, "", map[string]string{"Sec-Fetch-Site": "cross-site"}, http.StatusForbidden},
		{"fetch same-site sibling", http.MethodPost, "", map[string]string{"Sec-Fetch-Site": "same-site"}, http.StatusForbidden},
		{"cross-site wins over trusted origin", http.MethodPost, "", map[string]string{
			"Sec-Fetch-Site": "cross-site", "Origin": "https://app.theagnt.ai",
		}, http.StatusForbidden},
		{"trusted origin", http.MethodPost, "", map[string]string{"Origin": "https://APP.theagnt.ai"}, http.StatusNoContent},
		{"request host origin", http.MethodPost, "internal.example:8080", map[string]string{"Origin": "http://internal.example:8080"}, http.StatusNoContent},
		{"foreign origin", http.MethodPost, "", map[string]string{"Origin": "https://evil.example"}, http.StatusForbidden},
		{"scheme mismatch", http.MethodPost, "", map[string]string{"Origin": "http://app.theagnt.ai"}, http.StatusForbidden},
		{"opaque origin", http.MethodPost, "", map[string]string{"Origin": "null"}, http.StatusForbidden},
		{"delete is checked", http.MethodDelete, "", map[string]string{"Origin": "https://evil.example"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/auth/signout", nil)
			if tt.host != "" {
				req.Host = tt.host
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), errCodeForbidden)
			}
		})
	}
}

func TestOriginOf(t *testing.T) {
	assert.Equal(t, "https://app.theagnt.ai", originOf("https://App.theagnt.ai/path?q=1"))
	assert.Equal(t, "http://localhost:8080", originOf("http://localhost:8080"))
	assert.Empty(t, originOf("null"))
	assert.Empty(t, originOf(""))
	assert.Empty(t, originOf("/relative"))
}
