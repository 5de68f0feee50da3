package keycloak

import (
	"context"

	"go.uber.org/zap"

	"github.com/dohyunkim-dev/authgate/internal/observability/logger"
)

// Refresher exchanges a refresh credential for a new token pair.
// Implemented by *Client; faked in tests.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// Session is the outcome of a successful Authenticate call. Rotated is
// non-nil exactly when a refresh happened; the transport layer must then
// replace both of the caller's stored credentials.
type Session struct {
	Claims  *Claims
	Rotated *TokenPair
}

// Guard is the entry point request handlers use: verify the access token,
// on any verification failure attempt a single refresh, re-verify, and
// report the rotation. No retry loop, no backoff.
type Guard struct {
	verifier  *Verifier
	refresher Refresher
	audience  string
	log       *zap.Logger
}

func NewGuard(v *Verifier, r Refresher, audience string) *Guard {
	return &Guard{
		verifier:  v,
		refresher: r,
		audience:  audience,
		log:       logger.Named("guard"),
	}
}

// Authenticate runs the verify / refresh-once / re-verify sequence.
//
// Failure modes: ErrNoAccessToken when the access credential is absent,
// ErrNoRefreshToken when verification failed and there is nothing to
// refresh with, ErrRefreshFailed when the upstream rejected the refresh,
// and ErrKeyFetch/ErrInvalidToken from the verification steps.
func (g *Guard) Authenticate(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" {
		return nil, ErrNoAccessToken
	}

	claims, err := g.verifier.Decode(ctx, accessToken, g.audience)
	if err == nil {
		return &Session{Claims: claims}, nil
	}

	g.log.Debug("access token rejected, trying refresh", zap.Error(err))

	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	pair, err := g.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	claims, err = g.verifier.Decode(ctx, pair.AccessToken, g.audience)
	if err != nil {
		return nil, err
	}
	return &Session{Claims: claims, Rotated: pair}, nil
}

// AuthenticateUser composes the username pin after a successful
// authentication, for routes that require a specific identity.
func (g *Guard) AuthenticateUser(ctx context.Context, accessToken, refreshToken, expectedUsername string) (*Session, error) {
	sess, err := g.Authenticate(ctx, accessToken, refreshToken)
	if err != nil {
		return nil, err
	}
	if err := VerifyPreferredUsername(sess.Claims, expectedUsername); err != nil {
		return nil, err
	}
	return sess, nil
}
