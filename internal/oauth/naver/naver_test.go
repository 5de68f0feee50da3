package naver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dohyunkim-dev/authgate/internal/oauth"
	"github.com/dohyunkim-dev/authgate/internal/oauth/naver"
)

func TestAuthorizeURLCarriesState(t *testing.T) {
	h := naver.New("cid", "secret")
	u, err := url.Parse(h.AuthorizeURL("https://cb"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := u.Query().Get("state"); got == "" {
		t.Error("state param missing")
	}
}

// Naver takes the grant parameters in the query string, not a form body.
func TestExchangeCodeUsesQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("grant_type") != "authorization_code" || q.Get("code") != "the-code" {
			t.Errorf("query = %v", q)
		}
		if q.Get("state") == "" {
			t.Error("state param missing on the token leg")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	h := naver.New("cid", "secret")
	h.TokenURL = srv.URL

	tok, err := h.ExchangeCode(context.Background(), "the-code", "https://cb")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if tok.AccessToken != "at" {
		t.Errorf("token = %+v", tok)
	}
}

// The user payload sits inside a "response" envelope.
func TestFetchUserInfoEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"resultcode": "00",
			"message": "success",
			"response": {"email": "minsu@example.com", "name": "Minsu Park"}
		}`))
	}))
	defer srv.Close()

	h := naver.New("cid", "secret")
	h.UserInfoURL = srv.URL

	id, err := h.FetchUserInfo(context.Background(), &oauth.Token{AccessToken: "at"})
	if err != nil {
		t.Fatalf("userinfo: %v", err)
	}
	if id.Email != "minsu@example.com" {
		t.Errorf("email = %q", id.Email)
	}
	if id.FirstName != "Minsu" || id.LastName != "Park" {
		t.Errorf("name = %q %q", id.FirstName, id.LastName)
	}
	if id.Provider != "naver" {
		t.Errorf("provider = %q", id.Provider)
	}
}
