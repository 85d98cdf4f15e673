// Package repoaccess turns a repository integration id into a usable
// repository context and enforces which repositories a run may touch.
package repoaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/store"
)

var (
	ErrNotFound      = errors.New("repository integration not found")
	ErrDisabled      = errors.New("repository integration disabled")
	ErrMisconfigured = errors.New("repository integration misconfigured")
	ErrNotAllowed    = errors.New("repository not allowed for this run")
)

// AccessError carries the user-facing message while still matching the
// sentinel errors above through errors.Is.
type AccessError struct {
	Kind          error
	IntegrationID string
	Message       string
}

func (e *AccessError) Error() string { return e.Message }

func (e *AccessError) Unwrap() error { return e.Kind }

// Decrypter opens encrypted integration secrets bound to a row id.
type Decrypter interface {
	Decrypt(stored, rowID string) (string, error)
}

type ResolveOptions struct {
	// OrganizationID, when set, constrains the lookup to that organization.
	OrganizationID string
}

type Resolver struct {
	repos     store.RepositoryStore
	decrypter Decrypter
}

func NewResolver(repos store.RepositoryStore, decrypter Decrypter) *Resolver {
	return &Resolver{repos: repos, decrypter: decrypter}
}

// Resolve is a pure read. Decryption failures are returned as-is and are
// fatal to the caller.
func (r *Resolver) Resolve(ctx context.Context, integrationID string, opts ResolveOptions) (*model.RepositoryContext, error) {
	integration, err := r.lookup(ctx, integrationID, opts.OrganizationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &AccessError{
				Kind:          ErrNotFound,
				IntegrationID: integrationID,
				Message:       fmt.Sprintf("Repository access denied. Unknown integrationId %s.", integrationID),
			}
		}
		return nil, fmt.Errorf("load repository integration %s: %w", integrationID, err)
	}

	if !integration.Enabled || !integration.RepositoryEnabled {
		return nil, &AccessError{
			Kind:          ErrDisabled,
			IntegrationID: integrationID,
			Message:       fmt.Sprintf("Repository access denied for integrationId %s. Integration is disabled.", integrationID),
		}
	}

	owner := strings.TrimSpace(integration.Owner)
	repo := strings.TrimSpace(integration.Repo)
	if owner == "" || repo == "" {
		return nil, &AccessError{
			Kind:          ErrMisconfigured,
			IntegrationID: integrationID,
			Message:       fmt.Sprintf("Repository configuration missing for integrationId %s.", integrationID),
		}
	}

	var token string
	if integration.EncryptedToken != nil && *integration.EncryptedToken != "" {
		token, err = r.decrypter.Decrypt(*integration.EncryptedToken, integration.ID)
		if err != nil {
			return nil, fmt.Errorf("decrypt token for integration %s: %w", integrationID, err)
		}
	}

	return &model.RepositoryContext{
		IntegrationID:  integration.ID,
		OrganizationID: integration.OrganizationID,
		Provider:       integration.Provider,
		Owner:          owner,
		Repo:           repo,
		DefaultBranch:  integration.DefaultBranch,
		APIBaseURL:     integration.APIBaseURL,
		Token:          token,
	}, nil
}

func (r *Resolver) lookup(ctx context.Context, integrationID, organizationID string) (*model.RepositoryIntegration, error) {
	if organizationID != "" {
		return r.repos.GetForOrganization(ctx, integrationID, organizationID)
	}
	return r.repos.GetByID(ctx, integrationID)
}
