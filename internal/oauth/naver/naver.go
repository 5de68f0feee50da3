// Package naver implements the Naver authorization-code flow. Naver
// requires a state parameter on both legs and wraps the user payload in a
// "response" envelope.
package naver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/dohyunkim-dev/authgate/internal/oauth"
)

const (
	providerName = "naver"

	// TODO generate per-request state once the callback layer persists it
	state = "naver_state"
)

// Handler is the Naver OAuth client. The endpoint URLs default to Naver's
// production endpoints and are overridable for tests.
type Handler struct {
	ClientID     string
	ClientSecret string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	http *http.Client
}

func New(clientID, clientSecret string) *Handler {
	return &Handler{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      "https://nid.naver.com/oauth2.0/authorize",
		TokenURL:     "https://nid.naver.com/oauth2.0/token",
		UserInfoURL:  "https://openapi.naver.com/v1/nid/me",
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *Handler) Name() string { return providerName }

func (h *Handler) AuthorizeURL(callbackURL string) string {
	u, _ := url.Parse(h.AuthURL)
	q := u.Query()
	q.Set("client_id", h.ClientID)
	q.Set("redirect_uri", callbackURL)
	q.Set("response_type", "code")
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String()
}

// ExchangeCode posts the grant. Naver accepts the parameters in the query
// string rather than a form body.
func (h *Handler) ExchangeCode(ctx context.Context, code, callbackURL string) (*oauth.Token, error) {
	u, _ := url.Parse(h.TokenURL)
	q := u.Query()
	q.Set("grant_type", "authorization_code")
	q.Set("client_id", h.ClientID)
	q.Set("client_secret", h.ClientSecret)
	q.Set("redirect_uri", callbackURL)
	q.Set("code", code)
	q.Set("state", state)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, &oauth.ExchangeError{Provider: providerName, Err: err}
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, &oauth.ExchangeError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &oauth.ExchangeError{Provider: providerName, Status: resp.StatusCode}
	}

	var tok oauth.Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, &oauth.ExchangeError{Provider: providerName, Err: err}
	}
	return &tok, nil
}

func (h *Handler) FetchUserInfo(ctx context.Context, tok *oauth.Token) (*oauth.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.UserInfoURL, nil)
	if err != nil {
		return nil, &oauth.UserInfoError{Provider: providerName, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, &oauth.UserInfoError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &oauth.UserInfoError{Provider: providerName, Status: resp.StatusCode}
	}

	var raw struct {
		Response struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &oauth.UserInfoError{Provider: providerName, Err: err}
	}

	first, last := oauth.SplitName(raw.Response.Name)
	return &oauth.Identity{
		Email:     raw.Response.Email,
		FirstName: first,
		LastName:  last,
		Provider:  providerName,
	}, nil
}
