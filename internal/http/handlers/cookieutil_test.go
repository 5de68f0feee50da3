package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dohyunkim-dev/authgate/internal/http/handlers"
	"github.com/dohyunkim-dev/authgate/internal/keycloak"
)

func findCookie(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestSetPairWritesBothCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	c := handlers.Cookies{Domain: "example.com", SameSite: http.SameSiteLaxMode, Secure: true}
	c.SetPair(rec, &keycloak.TokenPair{
		AccessToken:      "at",
		RefreshToken:     "rt",
		ExpiresIn:        300,
		RefreshExpiresIn: 1800,
	})

	cookies := rec.Result().Cookies()
	at := findCookie(t, cookies, "access_token")
	rt := findCookie(t, cookies, "refresh_token")

	if at.Value != "at" || at.MaxAge != 300 {
		t.Errorf("access cookie = %+v", at)
	}
	if rt.Value != "rt" || rt.MaxAge != 1800 {
		t.Errorf("refresh cookie = %+v", rt)
	}
	for _, ck := range []*http.Cookie{at, rt} {
		if !ck.HttpOnly || !ck.Secure || ck.Path != "/" || ck.Domain != "example.com" {
			t.Errorf("cookie attributes = %+v", ck)
		}
	}
}

func TestClearDropsBothCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.Cookies{}.Clear(rec)

	cookies := rec.Result().Cookies()
	for _, name := range []string{"access_token", "refresh_token"} {
		ck := findCookie(t, cookies, name)
		if ck.Value != "" || ck.MaxAge >= 0 {
			t.Errorf("%s not cleared: %+v", name, ck)
		}
	}
}

func TestTokenReaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if handlers.AccessToken(req) != "" || handlers.RefreshToken(req) != "" {
		t.Error("tokens read from a cookieless request")
	}

	req.AddCookie(&http.Cookie{Name: "access_token", Value: "at"})
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "rt"})
	if got := handlers.AccessToken(req); got != "at" {
		t.Errorf("access = %q", got)
	}
	if got := handlers.RefreshToken(req); got != "rt" {
		t.Errorf("refresh = %q", got)
	}
}
