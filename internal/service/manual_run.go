package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/notify"
	"github.com/janburzinski/notra/internal/store"
	"github.com/janburzinski/notra/internal/workflow"
)

const (
	CodeTriggerNotFound       = "TRIGGER_NOT_FOUND"
	CodeTriggerDisabled       = "TRIGGER_DISABLED"
	CodeNoTargetRepository    = "NO_TARGET_REPOSITORY"
	CodeUnsupportedSourceType = "UNSUPPORTED_SOURCE_TYPE"

	manualRunNote = "Manual run from automation events"
)

type ManualRunKind string

const (
	ManualRunSchedule ManualRunKind = "schedule"
	ManualRunEvent    ManualRunKind = "event"
)

// ManualRunError is a rejection the caller can show as is.
type ManualRunError struct {
	Message string
	Code    string
	Status  int
}

func (e *ManualRunError) Error() string { return e.Message }

type ManualRunRequest struct {
	OrganizationID string
	TriggerID      string
	TriggeredBy    string
}

type ManualRunResult struct {
	Kind          ManualRunKind `json:"kind"`
	WorkflowRunID string        `json:"workflowRunId"`
}

type ManualRunService interface {
	Run(ctx context.Context, req ManualRunRequest) (*ManualRunResult, error)
}

type TriggerLookup interface {
	GetForOrganization(ctx context.Context, id, organizationID string) (*model.Trigger, error)
}

type RetentionLookup interface {
	RetentionDays(ctx context.Context, customerID string) int
}

type AuditAppender interface {
	Append(ctx context.Context, e notify.Entry) (*model.RunLogEntry, error)
}

type manualRunService struct {
	triggers  TriggerLookup
	starter   WorkflowStarter
	retention RetentionLookup
	audit     AuditAppender
	now       func() time.Time
	logger    *slog.Logger
}

func NewManualRunService(triggers TriggerLookup, starter WorkflowStarter, retention RetentionLookup, audit AuditAppender, logger *slog.Logger) ManualRunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &manualRunService{
		triggers:  triggers,
		starter:   starter,
		retention: retention,
		audit:     audit,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *manualRunService) Run(ctx context.Context, req ManualRunRequest) (*ManualRunResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		OrganizationID: logger.Ptr(req.OrganizationID),
		TriggerID:      logger.Ptr(req.TriggerID),
		Component:      "notra.service.manual_run",
	})

	trigger, err := s.triggers.GetForOrganization(ctx, req.TriggerID, req.OrganizationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ManualRunError{Message: "Trigger not found", Code: CodeTriggerNotFound, Status: http.StatusNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("loading trigger: %w", err)
	}

	if !trigger.Enabled {
		msg := "Cannot run a disabled trigger"
		if trigger.SourceType == model.SourceTypeCron {
			msg = "Cannot run a disabled schedule"
		}
		return nil, &ManualRunError{Message: msg, Code: CodeTriggerDisabled, Status: http.StatusBadRequest}
	}

	name := trigger.DisplayName(string(trigger.OutputType))

	var (
		kind    ManualRunKind
		run     RunRequest
		payload map[string]any
	)
	switch trigger.SourceType {
	case model.SourceTypeCron:
		kind = ManualRunSchedule
		run = RunRequest{
			Workflow: model.WorkflowSchedule,
			Payload:  workflow.SchedulePayload{TriggerID: trigger.ID, Manual: true},
		}
		payload = map[string]any{
			"triggerId":    trigger.ID,
			"scheduleName": name,
			"sourceType":   trigger.SourceType,
			"outputType":   trigger.OutputType,
			"triggeredBy":  req.TriggeredBy,
		}

	case model.SourceTypeGitHubWebhook:
		kind = ManualRunEvent
		event, err := s.manualEventPayload(trigger)
		if err != nil {
			return nil, err
		}
		run = RunRequest{Workflow: model.WorkflowEvent, Payload: event}
		payload = map[string]any{
			"triggerId":    trigger.ID,
			"sourceType":   trigger.SourceType,
			"outputType":   trigger.OutputType,
			"triggeredBy":  req.TriggeredBy,
			"repositoryId": event.RepositoryID,
			"eventType":    event.EventType,
			"eventAction":  event.EventAction,
			"manualRun":    true,
		}

	default:
		return nil, &ManualRunError{
			Message: fmt.Sprintf("Manual runs are not supported for source type '%s'", trigger.SourceType),
			Code:    CodeUnsupportedSourceType,
			Status:  http.StatusBadRequest,
		}
	}

	run.OrganizationID = trigger.OrganizationID
	run.TriggerID = trigger.ID
	ids, err := s.starter.Start(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("starting %s run: %w", run.Workflow, err)
	}
	runID := ids[0]
	payload["workflowRunId"] = runID

	_, err = s.audit.Append(ctx, notify.Entry{
		OrganizationID:  trigger.OrganizationID,
		IntegrationID:   trigger.ID,
		IntegrationType: model.IntegrationTypeManual,
		Title:           name,
		Status:          model.LogStatusSuccess,
		StatusCode:      logger.Ptr(int32(http.StatusOK)),
		ReferenceID:     &runID,
		Payload:         payload,
		RetentionDays:   s.retention.RetentionDays(ctx, trigger.OrganizationID),
	})
	if err != nil {
		// The run is already queued; a missing log line must not fail the request.
		s.logger.WarnContext(ctx, "failed to log manual run", "error", err, "run_id", runID)
	}

	s.logger.InfoContext(ctx, "manual run started", "kind", kind, "run_id", runID, "triggered_by", req.TriggeredBy)
	return &ManualRunResult{Kind: kind, WorkflowRunID: runID}, nil
}

func (s *manualRunService) manualEventPayload(trigger *model.Trigger) (workflow.EventPayload, error) {
	repositoryIDs := trigger.RepositoryIDs()
	if len(repositoryIDs) == 0 {
		return workflow.EventPayload{}, &ManualRunError{
			Message: "No repository targets configured",
			Code:    CodeNoTargetRepository,
			Status:  http.StatusBadRequest,
		}
	}

	eventType := "release"
	if types := trigger.EventTypes(); len(types) > 0 {
		eventType = strings.TrimSpace(types[0])
	}

	return workflow.EventPayload{
		TriggerID:    trigger.ID,
		RepositoryID: repositoryIDs[0],
		EventType:    eventType,
		EventAction:  manualEventAction(eventType),
		EventData: map[string]any{
			"manualRun":   true,
			"triggeredAt": s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
			"triggerId":   trigger.ID,
			"note":        manualRunNote,
		},
	}, nil
}

func manualEventAction(eventType string) string {
	switch eventType {
	case "release":
		return "published"
	case "push":
		return "pushed"
	default:
		return "manual"
	}
}
