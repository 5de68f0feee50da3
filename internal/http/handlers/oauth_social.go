package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dohyunkim-dev/authgate/internal/oauth"
)

// callbackURL rebuilds the absolute callback address for the provider in
// the path, honoring the proxy headers chi leaves untouched.
func callbackURL(r *http.Request, provider string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + "/api/v1/oauth/" + provider + "/callback"
}

// NewOAuthRedirectHandler sends the browser to the provider's consent
// screen.
func NewOAuthRedirectHandler(svc *oauth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		u, err := svc.AuthorizeURL(provider, callbackURL(r, provider))
		if err != nil {
			WriteAuthError(w, err)
			return
		}
		http.Redirect(w, r, u, http.StatusTemporaryRedirect)
	}
}

// NewOAuthCallbackHandler completes the code flow: exchange, userinfo,
// account provisioning. Provider tokens are handed back to the caller;
// they are not local session credentials.
func NewOAuthCallbackHandler(svc *oauth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		code := r.URL.Query().Get("code")
		if code == "" {
			WriteError(w, http.StatusBadRequest, "missing_code", "")
			return
		}

		res, err := svc.CompleteCallback(r.Context(), provider, code, callbackURL(r, provider))
		if err != nil {
			WriteAuthError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, map[string]any{
			"token": res.Token,
			"userinfo": map[string]any{
				"email":      res.Identity.Email,
				"first_name": res.Identity.FirstName,
				"last_name":  res.Identity.LastName,
				"provider":   res.Identity.Provider,
			},
		})
	}
}
