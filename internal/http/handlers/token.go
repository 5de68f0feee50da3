package handlers

import (
	"net/http"

	"github.com/dohyunkim-dev/authgate/internal/keycloak"
)

// NewTokenVerifyHandler authenticates the request from its cookies: verify
// the access token, refresh once on failure, rotate the cookie pair when a
// refresh happened.
func NewTokenVerifyHandler(guard *keycloak.Guard, cookies Cookies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := guard.Authenticate(r.Context(), AccessToken(r), RefreshToken(r))
		if err != nil {
			WriteAuthError(w, err)
			return
		}
		if sess.Rotated != nil {
			cookies.SetPair(w, sess.Rotated)
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":             "success",
			"preferred_username": sess.Claims.PreferredUsername,
			"sub":                sess.Claims.Subject,
		})
	}
}

// NewTokenVerifyUserHandler additionally pins the session to the username
// given in the query string.
func NewTokenVerifyUserHandler(guard *keycloak.Guard, cookies Cookies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			WriteError(w, http.StatusBadRequest, "missing_username", "")
			return
		}

		sess, err := guard.AuthenticateUser(r.Context(), AccessToken(r), RefreshToken(r), username)
		if err != nil {
			WriteAuthError(w, err)
			return
		}
		if sess.Rotated != nil {
			cookies.SetPair(w, sess.Rotated)
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":            "success",
			"verified_username": sess.Claims.PreferredUsername,
			"sub":               sess.Claims.Subject,
		})
	}
}

// NewTokenRefreshHandler explicitly exchanges the refresh cookie for a new
// pair and rotates both cookies.
func NewTokenRefreshHandler(client *keycloak.Client, cookies Cookies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refresh := RefreshToken(r)
		if refresh == "" {
			WriteAuthError(w, keycloak.ErrNoRefreshToken)
			return
		}

		pair, err := client.Refresh(r.Context(), refresh)
		if err != nil {
			WriteAuthError(w, err)
			return
		}
		cookies.SetPair(w, pair)
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":        "success",
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
		})
	}
}

// NewPublicKeyHandler relays the realm's JWKS document. Gated behind an
// API key by the router.
func NewPublicKeyHandler(keys *keycloak.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := keys.Raw(r.Context())
		if err != nil {
			WriteAuthError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	}
}
