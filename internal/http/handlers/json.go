package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dohyunkim-dev/authgate/internal/keycloak"
	"github.com/dohyunkim-dev/authgate/internal/oauth"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	AttemptsLeft     *int   `json:"attempts_left,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

// WriteError emits the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		RequestID:        rid,
	})
}

// WriteCodeError emits INVALID_CODE with the remaining attempt budget.
func WriteCodeError(w http.ResponseWriter, remaining int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            "INVALID_CODE",
		ErrorDescription: "Invalid code entered.",
		AttemptsLeft:     &remaining,
	})
}

// WriteJSON emits a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes a JSON body leniently (unknown fields pass). Validates
// Content-Type and caps the body at 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "malformed json")
		return false
	}
	return true
}

// WriteAuthError maps the error taxonomy onto HTTP statuses: missing or
// invalid credentials and failed refreshes are 401, identity mismatches
// 403, unknown providers 400, unreachable upstreams 502.
func WriteAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keycloak.ErrNoAccessToken):
		WriteError(w, http.StatusUnauthorized, "NO_ACCESS_TOKEN", "")
	case errors.Is(err, keycloak.ErrNoRefreshToken):
		WriteError(w, http.StatusUnauthorized, "NO_REFRESH_TOKEN", "")
	case errors.Is(err, keycloak.ErrRefreshFailed):
		WriteError(w, http.StatusUnauthorized, "REFRESH_FAILED", "")
	case errors.Is(err, keycloak.ErrUsernameMismatch):
		WriteError(w, http.StatusForbidden, "USERNAME_MISMATCH", "")
	case errors.Is(err, keycloak.ErrKeyFetch):
		WriteError(w, http.StatusBadGateway, "KEY_FETCH_FAILED", "signing keys unavailable")
	case errors.Is(err, keycloak.ErrInvalidToken):
		WriteError(w, http.StatusUnauthorized, "INVALID_TOKEN", "")
	case errors.Is(err, oauth.ErrUnsupportedProvider):
		WriteError(w, http.StatusBadRequest, "UNSUPPORTED_PROVIDER", "")
	default:
		var xe *oauth.ExchangeError
		var ue *oauth.UserInfoError
		if errors.As(err, &xe) {
			WriteError(w, http.StatusUnauthorized, "OAUTH_TOKEN_EXCHANGE_FAILED", xe.Provider)
			return
		}
		if errors.As(err, &ue) {
			WriteError(w, http.StatusUnauthorized, "USERINFO_FETCH_FAILED", ue.Provider)
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
