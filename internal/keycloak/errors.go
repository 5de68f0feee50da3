package keycloak

import "errors"

// Error kinds surfaced by this package. Handlers map them to HTTP statuses;
// callers are expected to test with errors.Is.
var (
	// ErrKeyFetch means the realm's signing keys could not be fetched.
	// Fatal to any in-flight verification, never retried automatically.
	ErrKeyFetch = errors.New("keycloak: signing key fetch failed")

	// ErrInvalidToken covers malformed tokens, signature mismatches, wrong
	// audience and expiry. Callers cannot distinguish expiry from other
	// invalidity; the guard attempts a refresh on any of them.
	ErrInvalidToken = errors.New("keycloak: invalid token")

	// ErrUsernameMismatch means the token is valid but pinned to a
	// different preferred_username.
	ErrUsernameMismatch = errors.New("keycloak: preferred_username mismatch")

	// ErrNoAccessToken / ErrNoRefreshToken signal missing credentials.
	ErrNoAccessToken  = errors.New("keycloak: no access token")
	ErrNoRefreshToken = errors.New("keycloak: no refresh token")

	// ErrRefreshFailed means the token endpoint rejected the refresh
	// credential. Keycloak does not say whether it was revoked, expired or
	// unknown, so neither do we.
	ErrRefreshFailed = errors.New("keycloak: refresh failed")
)
