// Package oauth normalizes heterogeneous third-party authorization-code
// flows into one account-provisioning pipeline. Each provider lives in its
// own subpackage and is registered by key at startup; adding a provider
// means adding one implementation, the orchestrator does not change.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Identity is the provider-agnostic user identity produced from a
// provider's user-info payload. Transient; consumed by provisioning.
type Identity struct {
	Email     string
	FirstName string
	LastName  string
	Provider  string
}

// Token is a provider token response from the code exchange.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// Provider is implemented once per third-party OAuth provider.
type Provider interface {
	// Name returns the registry key ("google", "kakao", ...).
	Name() string

	// AuthorizeURL builds the provider's authorization redirect URL with
	// its required query parameters. Pure construction, no I/O.
	AuthorizeURL(callbackURL string) string

	// ExchangeCode posts the authorization-code grant to the provider's
	// token endpoint. Non-2xx answers become *ExchangeError.
	ExchangeCode(ctx context.Context, code, callbackURL string) (*Token, error)

	// FetchUserInfo gets the user-info endpoint with bearer auth and maps
	// the provider shape into an Identity. Non-2xx answers become
	// *UserInfoError.
	FetchUserInfo(ctx context.Context, tok *Token) (*Identity, error)
}

// ErrUnsupportedProvider is returned for unknown registry keys, before any
// network I/O.
var ErrUnsupportedProvider = errors.New("oauth: unsupported provider")

// ExchangeError tags a failed code exchange with its provider. Status is 0
// for transport failures (including caller-imposed timeouts).
type ExchangeError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth: %s code exchange failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("oauth: %s code exchange failed (status %d)", e.Provider, e.Status)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// UserInfoError tags a failed user-info fetch with its provider.
type UserInfoError struct {
	Provider string
	Status   int
	Err      error
}

func (e *UserInfoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth: %s userinfo fetch failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("oauth: %s userinfo fetch failed (status %d)", e.Provider, e.Status)
}

func (e *UserInfoError) Unwrap() error { return e.Err }

// Registry holds the configured providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers providers by their Name. Keys must be unique.
func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get looks a provider up by key.
func (r *Registry) Get(key string) (Provider, error) {
	p, ok := r.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, key)
	}
	return p, nil
}

// SplitName applies the shared name heuristic: the first whitespace
// delimited token is the first name, the remainder the last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
