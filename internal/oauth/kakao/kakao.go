// Package kakao implements the Kakao authorization-code flow. Kakao nests
// the identity under kakao_account/profile and exposes a nickname instead
// of a full name, which maps to the first name only.
package kakao

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dohyunkim-dev/authgate/internal/oauth"
)

const providerName = "kakao"

// Handler is the Kakao OAuth client. The endpoint URLs default to Kakao's
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
		AuthURL:      "https://kauth.kakao.com/oauth/authorize",
		TokenURL:     "https://kauth.kakao.com/oauth/token",
		UserInfoURL:  "https://kapi.kakao.com/v2/user/me",
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
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *Handler) ExchangeCode(ctx context.Context, code, callbackURL string) (*oauth.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", h.ClientID)
	form.Set("client_secret", h.ClientSecret)
	form.Set("redirect_uri", callbackURL)
	form.Set("code", code)

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
		KakaoAccount struct {
			Email   string `json:"email"`
			Profile struct {
				Nickname string `json:"nickname"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &oauth.UserInfoError{Provider: providerName, Err: err}
	}

	return &oauth.Identity{
		Email:     raw.KakaoAccount.Email,
		FirstName: raw.KakaoAccount.Profile.Nickname,
		LastName:  "",
		Provider:  providerName,
	}, nil
}
