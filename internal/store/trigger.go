package store

import (
	"context"

	"github.com/janburzinski/notra/core/db/sqlc"
	"github.com/janburzinski/notra/internal/model"
)

type triggerStore struct {
	queries *sqlc.Queries
}

func newTriggerStore(queries *sqlc.Queries) TriggerStore {
	return &triggerStore{queries: queries}
}

func (s *triggerStore) GetByID(ctx context.Context, id string) (*model.Trigger, error) {
	row, err := s.queries.GetContentTrigger(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toTriggerModel(row), nil
}

func (s *triggerStore) GetForOrganization(ctx context.Context, id, organizationID string) (*model.Trigger, error) {
	row, err := s.queries.GetContentTriggerForOrganization(ctx, sqlc.GetContentTriggerForOrganizationParams{
		ID:             id,
		OrganizationID: organizationID,
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toTriggerModel(row), nil
}

func (s *triggerStore) ListWebhookTriggersForRepository(ctx context.Context, organizationID, repositoryID string) ([]model.Trigger, error) {
	rows, err := s.queries.ListWebhookTriggersForRepository(ctx, sqlc.ListWebhookTriggersForRepositoryParams{
		OrganizationID: organizationID,
		RepositoryID:   repositoryID,
	})
	if err != nil {
		return nil, err
	}

	triggers := make([]model.Trigger, 0, len(rows))
	for _, row := range rows {
		triggers = append(triggers, *toTriggerModel(row))
	}
	return triggers, nil
}

func (s *triggerStore) Create(ctx context.Context, trigger *model.Trigger) error {
	sourceConfig := trigger.SourceConfig
	if len(sourceConfig) == 0 {
		sourceConfig = []byte("{}")
	}
	targets := trigger.Targets
	if len(targets) == 0 {
		targets = []byte("{}")
	}

	row, err := s.queries.CreateContentTrigger(ctx, sqlc.CreateContentTriggerParams{
		ID:             trigger.ID,
		OrganizationID: trigger.OrganizationID,
		Name:           trigger.Name,
		SourceType:     string(trigger.SourceType),
		SourceConfig:   sourceConfig,
		Targets:        targets,
		OutputType:     string(trigger.OutputType),
		Enabled:        trigger.Enabled,
	})
	if err != nil {
		return err
	}
	*trigger = *toTriggerModel(row)
	return nil
}

func toTriggerModel(row sqlc.ContentTrigger) *model.Trigger {
	return &model.Trigger{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		Name:           row.Name,
		SourceType:     model.SourceType(row.SourceType),
		SourceConfig:   row.SourceConfig,
		Targets:        row.Targets,
		OutputType:     model.OutputType(row.OutputType),
		Enabled:        row.Enabled,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}
