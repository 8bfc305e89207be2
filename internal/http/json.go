package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/darrenapfel/theagnt-website-sub001/internal/errors"
)

// Opaque error codes returned in JSON bodies.
const (
	errCodeInvalidJSON      = "invalid_json"
	errCodeInvalidEmail     = "invalid_email"
	errCodeInvalidRole      = "invalid_role"
	errCodeUnauthenticated  = "authentication_required"
	errCodeForbidden        = "forbidden"
	errCodeEmailUnavailable = "email_unavailable"
	errCodeServerError      = "server_error"
)

// errorMessages holds the user-visible text for each code. Internal error text is never echoed.
var errorMessages = map[string]string{
	errCodeInvalidJSON:      "The request body could not be read.",
	errCodeInvalidEmail:     "Enter a valid email address.",
	errCodeInvalidRole:      "Unknown role.",
	errCodeUnauthenticated:  "Sign in to continue.",
	errCodeForbidden:        "You do not have access to this resource.",
	errCodeEmailUnavailable: "We could not send the sign-in email. Please try again.",
	errCodeServerError:      "Something went wrong. Please try again.",
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 16

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: errCodeInvalidJSON})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError. Message overrides the generic text for ErrCode.
type ErrorParams struct {
	Code    int
	ErrCode string
	Message string
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	msg := p.Message
	if msg == "" {
		msg = errorMessages[p.ErrCode]
	}
	if msg == "" {
		msg = http.StatusText(p.Code)
	}
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": msg})
}

// upstreamStatus picks the 5xx for a failed store call. Classified timeouts and
// outages keep their mapped status; everything else is 503.
func upstreamStatus(err error) int {
	if code := apperrors.GetCode(err); code != "" {
		if status := apperrors.HTTPStatus(code); status >= http.StatusInternalServerError {
			return status
		}
	}
	return http.StatusServiceUnavailable
}
