package store

import (
	"context"

	"github.com/janburzinski/notra/core/db/sqlc"
	"github.com/janburzinski/notra/internal/model"
)

type repositoryStore struct {
	queries *sqlc.Queries
}

func newRepositoryStore(queries *sqlc.Queries) RepositoryStore {
	return &repositoryStore{queries: queries}
}

func (s *repositoryStore) GetByID(ctx context.Context, id string) (*model.RepositoryIntegration, error) {
	row, err := s.queries.GetRepositoryIntegration(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toRepositoryModel(row), nil
}

func (s *repositoryStore) GetForOrganization(ctx context.Context, id, organizationID string) (*model.RepositoryIntegration, error) {
	row, err := s.queries.GetRepositoryIntegrationForOrganization(ctx, sqlc.GetRepositoryIntegrationForOrganizationParams{
		ID:             id,
		OrganizationID: organizationID,
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toRepositoryModel(row), nil
}

func (s *repositoryStore) Create(ctx context.Context, integration *model.RepositoryIntegration) error {
	provider := integration.Provider
	if provider == "" {
		provider = model.ProviderGitHub
	}

	row, err := s.queries.CreateRepositoryIntegration(ctx, sqlc.CreateRepositoryIntegrationParams{
		ID:                     integration.ID,
		OrganizationID:         integration.OrganizationID,
		Provider:               string(provider),
		DisplayName:            integration.DisplayName,
		Owner:                  integration.Owner,
		Repo:                   integration.Repo,
		DefaultBranch:          integration.DefaultBranch,
		ApiBaseUrl:             integration.APIBaseURL,
		Enabled:                integration.Enabled,
		RepositoryEnabled:      integration.RepositoryEnabled,
		EncryptedToken:         integration.EncryptedToken,
		EncryptedWebhookSecret: integration.EncryptedWebhookSecret,
	})
	if err != nil {
		return err
	}
	*integration = *toRepositoryModel(row)
	return nil
}

func toRepositoryModel(row sqlc.RepositoryIntegration) *model.RepositoryIntegration {
	return &model.RepositoryIntegration{
		ID:                     row.ID,
		OrganizationID:         row.OrganizationID,
		Provider:               model.Provider(row.Provider),
		DisplayName:            row.DisplayName,
		Owner:                  row.Owner,
		Repo:                   row.Repo,
		DefaultBranch:          row.DefaultBranch,
		APIBaseURL:             row.ApiBaseUrl,
		Enabled:                row.Enabled,
		RepositoryEnabled:      row.RepositoryEnabled,
		EncryptedToken:         row.EncryptedToken,
		EncryptedWebhookSecret: row.EncryptedWebhookSecret,
		CreatedAt:              row.CreatedAt.Time,
		UpdatedAt:              row.UpdatedAt.Time,
	}
}
