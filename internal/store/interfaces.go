package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/janburzinski/notra/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// TriggerStore reads content triggers. Workflows never mutate triggers.
type TriggerStore interface {
	GetByID(ctx context.Context, id string) (*model.Trigger, error)
	GetForOrganization(ctx context.Context, id, organizationID string) (*model.Trigger, error)
	ListWebhookTriggersForRepository(ctx context.Context, organizationID, repositoryID string) ([]model.Trigger, error)
	Create(ctx context.Context, trigger *model.Trigger) error
}

type RepositoryStore interface {
	GetByID(ctx context.Context, id string) (*model.RepositoryIntegration, error)
	GetForOrganization(ctx context.Context, id, organizationID string) (*model.RepositoryIntegration, error)
	Create(ctx context.Context, integration *model.RepositoryIntegration) error
}

type OrganizationStore interface {
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	Create(ctx context.Context, org *model.Organization) error
	GetBrandSettings(ctx context.Context, organizationID string) (*model.BrandSettings, error)
	UpsertBrandSettings(ctx context.Context, settings *model.BrandSettings) error
	// ScheduledContentCreationEnabled is false when no settings row exists.
	ScheduledContentCreationEnabled(ctx context.Context, organizationID string) (bool, error)
	SetScheduledContentCreation(ctx context.Context, organizationID string, enabled bool) error
	ListMemberEmails(ctx context.Context, organizationID string, role model.MemberRole) ([]string, error)
	AddMember(ctx context.Context, organizationID, userID, email string, role model.MemberRole) error
}

type PostStore interface {
	Create(ctx context.Context, post *model.Post) error
	GetForOrganization(ctx context.Context, id, organizationID string) (*model.Post, error)
	UpdateContent(ctx context.Context, post *model.Post) error
}

type RunLogStore interface {
	Create(ctx context.Context, entry *model.RunLogEntry) error
	ListByOrganization(ctx context.Context, organizationID string, limit int32) ([]model.RunLogEntry, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type WorkflowRunStore interface {
	Create(ctx context.Context, run *model.WorkflowRun) error
	GetByID(ctx context.Context, id string) (*model.WorkflowRun, error)
	// Claim marks a non-terminal run as running and bumps its attempt
	// counter. Terminal or unknown runs yield ErrNotFound.
	Claim(ctx context.Context, id string) (*model.WorkflowRun, error)
	Finish(ctx context.Context, id string, status model.RunStatus, result json.RawMessage, lastError *string) error
	MarkErrored(ctx context.Context, id string, status model.RunStatus, lastError string) error
}

type WorkflowStepStore interface {
	Get(ctx context.Context, runID, stepName string) (*model.WorkflowStep, error)
	Complete(ctx context.Context, runID, stepName string, result json.RawMessage, startedAt time.Time) error
	Fail(ctx context.Context, runID, stepName, errMsg string, startedAt time.Time) error
	List(ctx context.Context, runID string) ([]model.WorkflowStep, error)
}
