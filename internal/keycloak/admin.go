package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Admin drives Keycloak's administrative user-management API for one realm.
// It authenticates as the admin user against the master realm's admin-cli
// client and caches that token until shortly before expiry.
type Admin struct {
	BaseURL  string
	Realm    string
	Username string
	Password string

	http *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewAdmin(baseURL, realm, username, password string) *Admin {
	return &Admin{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Realm:    realm,
		Username: username,
		Password: password,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// UserRepresentation mirrors the admin API's user payload, limited to the
// fields this service sets.
type UserRepresentation struct {
	ID            string              `json:"id,omitempty"`
	Username      string              `json:"username"`
	Email         string              `json:"email"`
	FirstName     string              `json:"firstName,omitempty"`
	LastName      string              `json:"lastName,omitempty"`
	Enabled       bool                `json:"enabled"`
	EmailVerified bool                `json:"emailVerified"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
	Credentials   []Credential        `json:"credentials,omitempty"`
}

// Credential is a password credential for user creation.
type Credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// Role is a realm role representation.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// adminToken returns a valid admin bearer token, refreshing it via a
// password grant on master/admin-cli when the cached one is near expiry.
func (a *Admin) adminToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Now().Before(a.tokenExp) {
		return a.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", "admin-cli")
	form.Set("username", a.Username)
	form.Set("password", a.Password)

	endpoint := a.BaseURL + "/realms/master/protocol/openid-connect/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("keycloak admin: token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("keycloak admin: token endpoint returned %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}

	a.token = tok.AccessToken
	// renew a little early so in-flight calls don't race expiry
	a.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn-10) * time.Second)
	return a.token, nil
}

// do performs an authenticated admin API call and decodes out when non-nil.
func (a *Admin) do(ctx context.Context, method, path string, body any, out any) (*http.Response, error) {
	token, err := a.adminToken(ctx)
	if err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+"/admin/realms/"+a.Realm+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return resp, fmt.Errorf("keycloak admin: %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if out != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, err
		}
		return resp, nil
	}
	resp.Body.Close()
	return resp, nil
}

// CreateUser creates a user and returns the new id, taken from the
// Location header the admin API answers with.
func (a *Admin) CreateUser(ctx context.Context, u UserRepresentation) (string, error) {
	resp, err := a.do(ctx, http.MethodPost, "/users", u, nil)
	if err != nil {
		return "", err
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("keycloak admin: create user returned no Location header")
	}
	parts := strings.Split(loc, "/")
	return parts[len(parts)-1], nil
}

// FindUsersByEmail queries for exact email matches.
func (a *Admin) FindUsersByEmail(ctx context.Context, email string) ([]UserRepresentation, error) {
	var users []UserRepresentation
	q := "/users?exact=true&email=" + url.QueryEscape(email)
	if _, err := a.do(ctx, http.MethodGet, q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FindUsersByUsername queries for exact username matches.
func (a *Admin) FindUsersByUsername(ctx context.Context, username string) ([]UserRepresentation, error) {
	var users []UserRepresentation
	q := "/users?exact=true&username=" + url.QueryEscape(username)
	if _, err := a.do(ctx, http.MethodGet, q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser removes a user by id.
func (a *Admin) DeleteUser(ctx context.Context, id string) error {
	_, err := a.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
	return err
}

// RealmRole fetches a realm role by name.
func (a *Admin) RealmRole(ctx context.Context, name string) (*Role, error) {
	var role Role
	if _, err := a.do(ctx, http.MethodGet, "/roles/"+url.PathEscape(name), nil, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// AssignRealmRole maps a realm role onto a user.
func (a *Admin) AssignRealmRole(ctx context.Context, userID string, role *Role) error {
	path := "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
	_, err := a.do(ctx, http.MethodPost, path, []*Role{role}, nil)
	return err
}
