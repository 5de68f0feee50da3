package oauth

import (
	"context"

	"go.uber.org/zap"

	"github.com/dohyunkim-dev/authgate/internal/observability/logger"
	"github.com/dohyunkim-dev/authgate/internal/util"
)

// ProvisionResult reports what account provisioning actually did. Role
// assignment can fail without failing the flow, so it is surfaced here
// instead of being swallowed.
type ProvisionResult struct {
	AccountCreated bool
	RoleAssigned   bool
}

// Provisioner idempotently ensures an account exists for an externally
// authenticated identity.
type Provisioner interface {
	Ensure(ctx context.Context, id Identity) (ProvisionResult, error)
}

// CallbackResult is what a completed authorization-code flow yields.
type CallbackResult struct {
	Token     *Token
	Identity  *Identity
	Provision ProvisionResult
}

// Service dispatches to the configured provider by key and hands the
// normalized identity to account provisioning.
type Service struct {
	registry    *Registry
	provisioner Provisioner
	log         *zap.Logger
}

func NewService(registry *Registry, provisioner Provisioner) *Service {
	return &Service{
		registry:    registry,
		provisioner: provisioner,
		log:         logger.Named("oauth"),
	}
}

// AuthorizeURL returns the provider's authorization redirect URL.
func (s *Service) AuthorizeURL(providerKey, callbackURL string) (string, error) {
	p, err := s.registry.Get(providerKey)
	if err != nil {
		return "", err
	}
	return p.AuthorizeURL(callbackURL), nil
}

// CompleteCallback exchanges the code, fetches the normalized identity and
// ensures a local account exists for it.
func (s *Service) CompleteCallback(ctx context.Context, providerKey, code, callbackURL string) (*CallbackResult, error) {
	p, err := s.registry.Get(providerKey)
	if err != nil {
		return nil, err
	}

	tok, err := p.ExchangeCode(ctx, code, callbackURL)
	if err != nil {
		return nil, err
	}

	id, err := p.FetchUserInfo(ctx, tok)
	if err != nil {
		return nil, err
	}

	res, err := s.provisioner.Ensure(ctx, *id)
	if err != nil {
		return nil, err
	}
	if res.AccountCreated && !res.RoleAssigned {
		s.log.Warn("account provisioned without default role",
			zap.String("provider", providerKey),
			zap.String("email", util.MaskEmail(id.Email)))
	}

	return &CallbackResult{Token: tok, Identity: id, Provision: res}, nil
}
