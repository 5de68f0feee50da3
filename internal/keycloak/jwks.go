package keycloak

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"` // base64url
	E   string `json:"e"` // base64url
}

type jwksDoc struct {
	Keys []jwk `json:"keys"`
}

// KeySet caches the realm's public signing keys, keyed by kid.
//
// The set is replaced wholesale on every fetch and served stale to
// concurrent readers until someone refetches. Concurrent refetches are
// collapsed through singleflight. There is no TTL: the verifier forces a
// refetch when it sees a kid it does not know, which covers key rotation
// without a background refresher.
type KeySet struct {
	certsURL string
	http     *http.Client

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
	raw  json.RawMessage

	sf singleflight.Group
}

// NewKeySet builds a key cache for the realm certs endpoint
// ({base}/realms/{realm}/protocol/openid-connect/certs).
func NewKeySet(certsURL string) *KeySet {
	return &KeySet{
		certsURL: certsURL,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Key returns the RSA public key for kid, fetching the set on first use.
// Returns ErrKeyFetch when the endpoint is unreachable and a nil key with
// ok=false when the set is loaded but the kid is absent.
func (s *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, bool, error) {
	s.mu.RLock()
	loaded := s.keys != nil
	k, ok := s.keys[kid]
	s.mu.RUnlock()

	if !loaded {
		if err := s.Refresh(ctx); err != nil {
			return nil, false, err
		}
		s.mu.RLock()
		k, ok = s.keys[kid]
		s.mu.RUnlock()
	}
	return k, ok, nil
}

// Raw returns the JWKS document as fetched, for passthrough endpoints.
func (s *KeySet) Raw(ctx context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	raw := s.raw
	s.mu.RUnlock()
	if raw != nil {
		return raw, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw, nil
}

// Refresh replaces the cached set with a fresh fetch. Concurrent callers
// share one round trip.
func (s *KeySet) Refresh(ctx context.Context) error {
	_, err, _ := s.sf.Do("jwks", func() (any, error) {
		return nil, s.fetch(ctx)
	})
	return err
}

// Invalidate drops the cached set; the next read refetches.
func (s *KeySet) Invalidate() {
	s.mu.Lock()
	s.keys = nil
	s.raw = nil
	s.mu.Unlock()
}

func (s *KeySet) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.certsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: certs endpoint returned %d", ErrKeyFetch, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	var doc jwksDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := rsaPublicKey(k)
		if err != nil {
			continue // skip unparseable entries, keep the rest
		}
		keys[k.Kid] = pub
	}

	s.mu.Lock()
	s.keys = keys
	s.raw = raw
	s.mu.Unlock()
	return nil
}

func rsaPublicKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nb)
	e := 0
	if len(eb) == 0 {
		e = 65537
	} else {
		for _, b := range eb {
			e = (e << 8) | int(b)
		}
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}
