// Package provision asserts that Keycloak-side accounts exist. It never
// stores user records locally; dedup is by email equality against the
// realm's user store.
package provision

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"

	"github.com/dohyunkim-dev/authgate/internal/keycloak"
	"github.com/dohyunkim-dev/authgate/internal/oauth"
	"github.com/dohyunkim-dev/authgate/internal/observability/logger"
)

// defaultRole is assigned to every account this service creates.
const defaultRole = "user"

// AdminAPI is the slice of the Keycloak admin client this package uses.
// Implemented by *keycloak.Admin; faked in tests.
type AdminAPI interface {
	CreateUser(ctx context.Context, u keycloak.UserRepresentation) (string, error)
	FindUsersByEmail(ctx context.Context, email string) ([]keycloak.UserRepresentation, error)
	FindUsersByUsername(ctx context.Context, username string) ([]keycloak.UserRepresentation, error)
	DeleteUser(ctx context.Context, id string) error
	RealmRole(ctx context.Context, name string) (*keycloak.Role, error)
	AssignRealmRole(ctx context.Context, userID string, role *keycloak.Role) error
}

// Provisioner creates realm accounts on demand.
type Provisioner struct {
	admin AdminAPI
	log   *zap.Logger
}

func New(admin AdminAPI) *Provisioner {
	return &Provisioner{admin: admin, log: logger.Named("provision")}
}

// Exists reports whether any realm account carries the email.
func (p *Provisioner) Exists(ctx context.Context, email string) (bool, error) {
	users, err := p.admin.FindUsersByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return len(users) > 0, nil
}

// Ensure creates an account for an externally authenticated identity
// unless one with the same email already exists. New accounts get a random
// password (never returned or logged), a pre-verified email, the origin
// provider as an attribute and the default realm role.
//
// Role assignment is deliberately best-effort: an account without its
// default role is recoverable by a reconciliation pass, a failed OAuth
// login is not. The outcome is reported instead of swallowed.
func (p *Provisioner) Ensure(ctx context.Context, id oauth.Identity) (oauth.ProvisionResult, error) {
	exists, err := p.Exists(ctx, id.Email)
	if err != nil {
		return oauth.ProvisionResult{}, err
	}
	if exists {
		return oauth.ProvisionResult{}, nil
	}

	pw, err := randomPassword()
	if err != nil {
		return oauth.ProvisionResult{}, err
	}

	userID, err := p.admin.CreateUser(ctx, keycloak.UserRepresentation{
		Username:      id.Email,
		Email:         id.Email,
		FirstName:     id.FirstName,
		LastName:      id.LastName,
		Enabled:       true,
		EmailVerified: true,
		Attributes:    map[string][]string{"login_type": {id.Provider}},
		Credentials: []keycloak.Credential{
			{Type: "password", Value: pw, Temporary: false},
		},
	})
	if err != nil {
		return oauth.ProvisionResult{}, err
	}

	res := oauth.ProvisionResult{AccountCreated: true}
	res.RoleAssigned = p.assignDefaultRole(ctx, userID)
	return res, nil
}

// Register creates a local-flow account after email verification. Returns
// the new user id and whether the default role landed.
func (p *Provisioner) Register(ctx context.Context, username, email, password, firstName, lastName string) (string, bool, error) {
	userID, err := p.admin.CreateUser(ctx, keycloak.UserRepresentation{
		Username:      username,
		Email:         email,
		FirstName:     firstName,
		LastName:      lastName,
		Enabled:       true,
		EmailVerified: true,
		Credentials: []keycloak.Credential{
			{Type: "password", Value: password, Temporary: false},
		},
	})
	if err != nil {
		return "", false, err
	}
	return userID, p.assignDefaultRole(ctx, userID), nil
}

// Delete removes the account with the given username, if any.
func (p *Provisioner) Delete(ctx context.Context, username string) error {
	users, err := p.admin.FindUsersByUsername(ctx, username)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return fmt.Errorf("provision: user %q not found", username)
	}
	return p.admin.DeleteUser(ctx, users[0].ID)
}

func (p *Provisioner) assignDefaultRole(ctx context.Context, userID string) bool {
	role, err := p.admin.RealmRole(ctx, defaultRole)
	if err == nil {
		err = p.admin.AssignRealmRole(ctx, userID, role)
	}
	if err != nil {
		p.log.Error("default role assignment failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return false
	}
	return true
}

func randomPassword() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
