// Package google implements the Google authorization-code flow. Google
// returns profile data from a userinfo endpoint; the name field is split
// into first/last with the shared heuristic.
package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dohyunkim-dev/authgate/internal/oauth"
)

const providerName = "google"

// Handler is the Google OAuth client. The endpoint URLs default to Google's
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
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v3/userinfo",
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *Handler) Name() string { return providerName }

// AuthorizeURL builds the consent URL. offline access and forced consent
// make Google hand back a refresh token on every authorization.
func (h *Handler) AuthorizeURL(callbackURL string) string {
	u, _ := url.Parse(h.AuthURL)
	q := u.Query()
	q.Set("client_id", h.ClientID)
	q.Set("redirect_uri", callbackURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *Handler) ExchangeCode(ctx context.Context, code, callbackURL string) (*oauth.Token, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", h.ClientID)
	form.Set("client_secret", h.ClientSecret)
	form.Set("redirect_uri", callbackURL)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &oauth.ExchangeError{Provider: providerName, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &oauth.UserInfoError{Provider: providerName, Err: err}
	}

	first, last := oauth.SplitName(raw.Name)
	return &oauth.Identity{
		Email:     raw.Email,
		FirstName: first,
		LastName:  last,
		Provider:  providerName,
	}, nil
}
