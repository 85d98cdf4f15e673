package store

import (
	"context"
	"time"

	"github.com/janburzinski/notra/core/db/sqlc"
	"github.com/janburzinski/notra/internal/model"
)

type runLogStore struct {
	queries *sqlc.Queries
}

func newRunLogStore(queries *sqlc.Queries) RunLogStore {
	return &runLogStore{queries: queries}
}

// Create persists entry. ExpiresAt is derived from CreatedAt and
// RetentionDays when the caller left it zero.
func (s *runLogStore) Create(ctx context.Context, entry *model.RunLogEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	expiresAt := entry.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.AddDate(0, 0, entry.RetentionDays)
	}

	row, err := s.queries.CreateWebhookLog(ctx, sqlc.CreateWebhookLogParams{
		ID:              entry.ID,
		OrganizationID:  entry.OrganizationID,
		IntegrationID:   entry.IntegrationID,
		IntegrationType: string(entry.IntegrationType),
		Title:           entry.Title,
		Status:          string(entry.Status),
		StatusCode:      entry.StatusCode,
		ErrorMessage:    entry.ErrorMessage,
		ReferenceID:     entry.ReferenceID,
		Payload:         nullableJSON(entry.Payload),
		ExpiresAt:       timeToPgTimestamptz(expiresAt),
	})
	if err != nil {
		return err
	}

	retention := entry.RetentionDays
	*entry = *toRunLogModel(row)
	entry.RetentionDays = retention
	return nil
}

func (s *runLogStore) ListByOrganization(ctx context.Context, organizationID string, limit int32) ([]model.RunLogEntry, error) {
	rows, err := s.queries.ListWebhookLogs(ctx, sqlc.ListWebhookLogsParams{
		OrganizationID: organizationID,
		Limit:          limit,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]model.RunLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *toRunLogModel(row))
	}
	return entries, nil
}

func (s *runLogStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.queries.DeleteExpiredWebhookLogs(ctx, timeToPgTimestamptz(now))
}

func toRunLogModel(row sqlc.WebhookLog) *model.RunLogEntry {
	entry := &model.RunLogEntry{
		ID:              row.ID,
		OrganizationID:  row.OrganizationID,
		IntegrationID:   row.IntegrationID,
		IntegrationType: model.IntegrationType(row.IntegrationType),
		Title:           row.Title,
		Status:          model.LogStatus(row.Status),
		StatusCode:      row.StatusCode,
		ErrorMessage:    row.ErrorMessage,
		ReferenceID:     row.ReferenceID,
		Payload:         row.Payload,
		CreatedAt:       row.CreatedAt.Time,
		ExpiresAt:       row.ExpiresAt.Time,
	}
	if row.CreatedAt.Valid && row.ExpiresAt.Valid {
		entry.RetentionDays = int(row.ExpiresAt.Time.Sub(row.CreatedAt.Time).Hours() / 24)
	}
	return entry
}
