package store

import (
	"context"
	"errors"

	"github.com/janburzinski/notra/common/id"
	"github.com/janburzinski/notra/core/db/sqlc"
	"github.com/janburzinski/notra/internal/model"
)

type organizationStore struct {
	queries *sqlc.Queries
}

func newOrganizationStore(queries *sqlc.Queries) OrganizationStore {
	return &organizationStore{queries: queries}
}

func (s *organizationStore) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	row, err := s.queries.GetOrganization(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toOrganizationModel(row), nil
}

func (s *organizationStore) Create(ctx context.Context, org *model.Organization) error {
	row, err := s.queries.CreateOrganization(ctx, sqlc.CreateOrganizationParams{
		ID:   org.ID,
		Name: org.Name,
		Slug: org.Slug,
	})
	if err != nil {
		return err
	}
	*org = *toOrganizationModel(row)
	return nil
}

func (s *organizationStore) GetBrandSettings(ctx context.Context, organizationID string) (*model.BrandSettings, error) {
	row, err := s.queries.GetBrandSettings(ctx, organizationID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toBrandSettingsModel(row), nil
}

func (s *organizationStore) UpsertBrandSettings(ctx context.Context, settings *model.BrandSettings) error {
	row, err := s.queries.UpsertBrandSettings(ctx, sqlc.UpsertBrandSettingsParams{
		OrganizationID:     settings.OrganizationID,
		ToneProfile:        settings.ToneProfile,
		CompanyName:        settings.CompanyName,
		CompanyDescription: settings.CompanyDescription,
		Audience:           settings.Audience,
		CustomInstructions: settings.CustomInstructions,
	})
	if err != nil {
		return err
	}
	*settings = *toBrandSettingsModel(row)
	return nil
}

func (s *organizationStore) ScheduledContentCreationEnabled(ctx context.Context, organizationID string) (bool, error) {
	row, err := s.queries.GetNotificationSettings(ctx, organizationID)
	if err != nil {
		if errors.Is(mapNotFound(err), ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return row.ScheduledContentCreation, nil
}

func (s *organizationStore) SetScheduledContentCreation(ctx context.Context, organizationID string, enabled bool) error {
	return s.queries.UpsertNotificationSettings(ctx, sqlc.UpsertNotificationSettingsParams{
		OrganizationID:           organizationID,
		ScheduledContentCreation: enabled,
	})
}

func (s *organizationStore) ListMemberEmails(ctx context.Context, organizationID string, role model.MemberRole) ([]string, error) {
	return s.queries.ListMemberEmailsByRole(ctx, sqlc.ListMemberEmailsByRoleParams{
		OrganizationID: organizationID,
		Role:           string(role),
	})
}

func (s *organizationStore) AddMember(ctx context.Context, organizationID, userID, email string, role model.MemberRole) error {
	if _, err := s.queries.CreateUser(ctx, sqlc.CreateUserParams{ID: userID, Email: email}); err != nil {
		return err
	}
	return s.queries.CreateMember(ctx, sqlc.CreateMemberParams{
		ID:             id.New(),
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           string(role),
	})
}

func toOrganizationModel(row sqlc.Organization) *model.Organization {
	return &model.Organization{
		ID:        row.ID,
		Name:      row.Name,
		Slug:      row.Slug,
		CreatedAt: row.CreatedAt.Time,
	}
}

func toBrandSettingsModel(row sqlc.BrandSetting) *model.BrandSettings {
	return &model.BrandSettings{
		OrganizationID:     row.OrganizationID,
		ToneProfile:        row.ToneProfile,
		CompanyName:        row.CompanyName,
		CompanyDescription: row.CompanyDescription,
		Audience:           row.Audience,
		CustomInstructions: row.CustomInstructions,
	}
}
