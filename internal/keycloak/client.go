// Package keycloak is a verifying/relaying client of a Keycloak realm: it
// validates bearer tokens against the realm's published keys, exchanges
// credentials at the token endpoint and drives the admin user API. It never
// generates key material or stores users itself.
package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenPair is the access/refresh credential pair issued by the realm.
// Owned by the caller (typically stored as cookies); both halves rotate
// together on refresh and are cleared together on logout.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

// Client talks to one realm's OpenID Connect endpoints.
type Client struct {
	BaseURL      string // e.g. http://localhost:8081
	Realm        string
	ClientID     string
	ClientSecret string

	http *http.Client
}

func NewClient(baseURL, realm, clientID, clientSecret string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Realm:        realm,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) realmURL() string {
	return c.BaseURL + "/realms/" + c.Realm
}

// CertsURL is the realm's public signing keys endpoint.
func (c *Client) CertsURL() string {
	return c.realmURL() + "/protocol/openid-connect/certs"
}

func (c *Client) tokenURL() string {
	return c.realmURL() + "/protocol/openid-connect/token"
}

func (c *Client) logoutURL() string {
	return c.realmURL() + "/protocol/openid-connect/logout"
}

// Login performs a password grant and returns the issued pair.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.ClientID)
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}
	form.Set("username", username)
	form.Set("password", password)

	pair, status, err := c.postToken(ctx, form)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("keycloak: login rejected (%d)", status)
	}
	return pair, nil
}

// Refresh exchanges a refresh credential for a new pair. A non-2xx answer
// becomes ErrRefreshFailed regardless of whether the credential was
// revoked, expired or unknown.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.ClientID)
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}
	form.Set("refresh_token", refreshToken)

	pair, status, err := c.postToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrRefreshFailed, status)
	}
	return pair, nil
}

// Logout revokes the session behind the refresh credential.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("client_id", c.ClientID)
	if c.ClientSecret != "" {
		form.Set("client_secret", c.ClientSecret)
	}
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.logoutURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("keycloak: logout returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*TokenPair, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, resp.StatusCode, nil
	}
	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, resp.StatusCode, err
	}
	return &pair, resp.StatusCode, nil
}
