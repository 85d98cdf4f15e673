// Package notify records run outcomes in the organization's automation log
// and tells organization owners about new content.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/janburzinski/notra/common/id"
	"github.com/janburzinski/notra/internal/model"
)

type RunLogWriter interface {
	Create(ctx context.Context, entry *model.RunLogEntry) error
}

// Entry is one automation log line. Payload is marshalled as JSON when set.
type Entry struct {
	OrganizationID  string
	IntegrationID   string
	IntegrationType model.IntegrationType
	Title           string
	Status          model.LogStatus
	StatusCode      *int32
	ErrorMessage    *string
	ReferenceID     *string
	Payload         any
	RetentionDays   int
}

type AuditSink struct {
	logs   RunLogWriter
	now    func() time.Time
	logger *slog.Logger
}

func NewAuditSink(logs RunLogWriter, log *slog.Logger) *AuditSink {
	if log == nil {
		log = slog.Default()
	}
	return &AuditSink{logs: logs, now: time.Now, logger: log}
}

// Append writes e. A failed write is logged here and returned, so callers
// may carry on without losing track of it.
func (s *AuditSink) Append(ctx context.Context, e Entry) (*model.RunLogEntry, error) {
	var payload json.RawMessage
	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal log payload: %w", err)
		}
		payload = data
	}

	createdAt := s.now().UTC()
	entry := &model.RunLogEntry{
		ID:              id.New(),
		OrganizationID:  e.OrganizationID,
		IntegrationID:   e.IntegrationID,
		IntegrationType: e.IntegrationType,
		Title:           e.Title,
		Status:          e.Status,
		StatusCode:      e.StatusCode,
		ErrorMessage:    e.ErrorMessage,
		ReferenceID:     e.ReferenceID,
		Payload:         payload,
		RetentionDays:   e.RetentionDays,
		CreatedAt:       createdAt,
		ExpiresAt:       createdAt.AddDate(0, 0, e.RetentionDays),
	}

	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append run log",
			"organization_id", e.OrganizationID,
			"integration_id", e.IntegrationID,
			"status", e.Status,
			"error", err)
		return nil, fmt.Errorf("append run log: %w", err)
	}
	return entry, nil
}
