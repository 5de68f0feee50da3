package keycloak

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded, signature- and audience-checked token payload.
// Built per verification call, never persisted.
type Claims struct {
	Subject           string
	PreferredUsername string
	Issuer            string
	ExpiresAt         time.Time
	Raw               jwtv5.MapClaims
}

// Verifier validates bearer tokens against the cached realm keys.
type Verifier struct {
	keys *KeySet
}

func NewVerifier(keys *KeySet) *Verifier {
	return &Verifier{keys: keys}
}

var errUnknownKid = errors.New("unknown kid")

// Decode verifies signature, audience and expiry and returns the claims.
// Any failure comes back as ErrInvalidToken; key endpoint trouble as
// ErrKeyFetch. When the token carries a kid the cache has never seen, the
// set is refetched once before giving up, so tokens signed right after a
// key rotation still verify.
func (v *Verifier) Decode(ctx context.Context, token, expectedAudience string) (*Claims, error) {
	claims, err := v.parse(ctx, token, expectedAudience)
	if errors.Is(err, errUnknownKid) {
		if rerr := v.keys.Refresh(ctx); rerr != nil {
			return nil, rerr
		}
		claims, err = v.parse(ctx, token, expectedAudience)
	}
	if err != nil {
		if errors.Is(err, ErrKeyFetch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (v *Verifier) parse(ctx context.Context, token, expectedAudience string) (*Claims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok, err := v.keys.Key(ctx, kid)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errUnknownKid
		}
		return key, nil
	}

	tok, err := jwtv5.Parse(token, keyfunc,
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithAudience(expectedAudience),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims type")
	}

	out := &Claims{
		Subject:           strClaim(mc, "sub"),
		PreferredUsername: strClaim(mc, "preferred_username"),
		Issuer:            strClaim(mc, "iss"),
		Raw:               mc,
	}
	if expf, ok := mc["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(expf), 0)
	}
	return out, nil
}

// VerifyPreferredUsername pins claims to a specific handle. Pure
// comparison, no I/O.
func VerifyPreferredUsername(c *Claims, expected string) error {
	if c == nil || c.PreferredUsername != expected {
		return ErrUsernameMismatch
	}
	return nil
}

func strClaim(m jwtv5.MapClaims, k string) string {
	s, _ := m[k].(string)
	return s
}
