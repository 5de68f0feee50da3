package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dohyunkim-dev/authgate/internal/keycloak"
	"github.com/dohyunkim-dev/authgate/internal/provision"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewLoginHandler performs a password grant and stores the issued pair in
// the session cookies.
func NewLoginHandler(client *keycloak.Client, cookies Cookies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !ReadJSON(w, r, &req) {
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			WriteError(w, http.StatusBadRequest, "missing_fields", "")
			return
		}

		pair, err := client.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "")
			return
		}

		cookies.SetPair(w, pair)
		WriteJSON(w, http.StatusOK, map[string]any{
			"access_token":       pair.AccessToken,
			"refresh_token":      pair.RefreshToken,
			"expires_in":         pair.ExpiresIn,
			"refresh_expires_in": pair.RefreshExpiresIn,
			"token_type":         pair.TokenType,
		})
	}
}

// NewLogoutHandler revokes the refresh session upstream and clears both
// cookies either way.
func NewLogoutHandler(client *keycloak.Client, cookies Cookies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refresh := RefreshToken(r); refresh != "" {
			// Best effort: the cookies are gone regardless.
			_ = client.Logout(r.Context(), refresh)
		}
		cookies.Clear(w)
		WriteJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}
}

// NewDeleteUserHandler removes the account named in the path.
func NewDeleteUserHandler(provisioner *provision.Provisioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		if username == "" {
			WriteError(w, http.StatusBadRequest, "missing_username", "")
			return
		}
		if err := provisioner.Delete(r.Context(), username); err != nil {
			WriteError(w, http.StatusNotFound, "USER_NOT_FOUND", "")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}
}
