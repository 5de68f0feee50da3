package handlers

import (
	"net/http"

	"github.com/dohyunkim-dev/authgate/internal/keycloak"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

// Cookies writes the session credential pair. Both cookies always move
// together: rotated together on refresh, cleared together on logout.
type Cookies struct {
	Domain   string
	SameSite http.SameSite
	Secure   bool
}

// SetPair stores both halves of a token pair.
func (c Cookies) SetPair(w http.ResponseWriter, pair *keycloak.TokenPair) {
	http.SetCookie(w, c.cookie(accessCookie, pair.AccessToken, int(pair.ExpiresIn)))
	http.SetCookie(w, c.cookie(refreshCookie, pair.RefreshToken, int(pair.RefreshExpiresIn)))
}

// Clear drops both cookies.
func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(accessCookie, "", -1))
	http.SetCookie(w, c.cookie(refreshCookie, "", -1))
}

func (c Cookies) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// AccessToken reads the access credential cookie, empty when absent.
func AccessToken(r *http.Request) string {
	if ck, err := r.Cookie(accessCookie); err == nil {
		return ck.Value
	}
	return ""
}

// RefreshToken reads the refresh credential cookie, empty when absent.
func RefreshToken(r *http.Request) string {
	if ck, err := r.Cookie(refreshCookie); err == nil {
		return ck.Value
	}
	return ""
}
