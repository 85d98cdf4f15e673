package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/go-github/v74/github"

	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/store"
	"github.com/janburzinski/notra/internal/workflow"
)

var (
	ErrIntegrationNotFound  = errors.New("integration not found")
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrUnsupportedEvent     = errors.New("unsupported webhook event")
)

// GitHubDelivery is one webhook request as received.
type GitHubDelivery struct {
	IntegrationID string
	EventType     string // X-GitHub-Event
	DeliveryID    string // X-GitHub-Delivery
	Signature     string // X-Hub-Signature-256
	Body          []byte
}

type WebhookResult struct {
	EventType      string   `json:"eventType"`
	Ignored        bool     `json:"ignored,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	WorkflowRunIDs []string `json:"workflowRunIds,omitempty"`
}

type WebhookService interface {
	HandleGitHub(ctx context.Context, delivery GitHubDelivery) (*WebhookResult, error)
}

type IntegrationLookup interface {
	GetByID(ctx context.Context, id string) (*model.RepositoryIntegration, error)
}

type WebhookTriggerLister interface {
	ListWebhookTriggersForRepository(ctx context.Context, organizationID, repositoryID string) ([]model.Trigger, error)
}

type SecretDecrypter interface {
	Decrypt(stored, rowID string) (string, error)
}

type webhookService struct {
	integrations IntegrationLookup
	triggers     WebhookTriggerLister
	secrets      SecretDecrypter
	starter      WorkflowStarter
	logger       *slog.Logger
}

func NewWebhookService(integrations IntegrationLookup, triggers WebhookTriggerLister, secrets SecretDecrypter, starter WorkflowStarter, logger *slog.Logger) WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &webhookService{
		integrations: integrations,
		triggers:     triggers,
		secrets:      secrets,
		starter:      starter,
		logger:       logger,
	}
}

func (s *webhookService) HandleGitHub(ctx context.Context, d GitHubDelivery) (*WebhookResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "notra.service.webhook"})

	integration, err := s.integrations.GetByID(ctx, d.IntegrationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrIntegrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading integration: %w", err)
	}
	if integration.Provider != model.ProviderGitHub {
		return nil, ErrIntegrationNotFound
	}
	if integration.EncryptedWebhookSecret == nil || *integration.EncryptedWebhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}

	secret, err := s.secrets.Decrypt(*integration.EncryptedWebhookSecret, integration.ID)
	if err != nil {
		return nil, fmt.Errorf("decrypting webhook secret: %w", err)
	}
	if err := github.ValidateSignature(d.Signature, d.Body, []byte(secret)); err != nil {
		return nil, ErrInvalidSignature
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{OrganizationID: logger.Ptr(integration.OrganizationID)})
	result := &WebhookResult{EventType: d.EventType}

	if d.EventType == "ping" {
		result.Ignored, result.Reason = true, "pong"
		return result, nil
	}
	if !integration.Enabled || !integration.RepositoryEnabled {
		result.Ignored, result.Reason = true, "integration disabled"
		return result, nil
	}

	parsed, err := github.ParseWebHook(d.EventType, d.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, d.EventType)
	}

	var (
		action string
		data   map[string]any
		reason string
	)
	switch ev := parsed.(type) {
	case *github.ReleaseEvent:
		action, data, reason = releaseEventData(ev)
	case *github.PushEvent:
		action, data, reason = pushEventData(ev, integration.DefaultBranch)
	default:
		reason = "event type not handled"
	}
	if reason != "" {
		result.Ignored, result.Reason = true, reason
		s.logger.InfoContext(ctx, "github webhook ignored", "event", d.EventType, "delivery_id", d.DeliveryID, "reason", reason)
		return result, nil
	}

	triggers, err := s.triggers.ListWebhookTriggersForRepository(ctx, integration.OrganizationID, integration.ID)
	if err != nil {
		return nil, fmt.Errorf("listing webhook triggers: %w", err)
	}

	var runs []RunRequest
	for _, t := range triggers {
		if !t.Enabled || !t.ListensTo(d.EventType) {
			continue
		}
		runs = append(runs, RunRequest{
			Workflow:       model.WorkflowEvent,
			OrganizationID: t.OrganizationID,
			TriggerID:      t.ID,
			Payload: workflow.EventPayload{
				TriggerID:    t.ID,
				EventType:    d.EventType,
				EventAction:  action,
				EventData:    data,
				RepositoryID: integration.ID,
				DeliveryID:   d.DeliveryID,
			},
		})
	}
	if len(runs) == 0 {
		result.Ignored, result.Reason = true, "no matching triggers"
		return result, nil
	}

	ids, err := s.starter.Start(ctx, runs...)
	if err != nil {
		return nil, err
	}
	result.WorkflowRunIDs = ids

	s.logger.InfoContext(ctx, "github webhook dispatched",
		"event", d.EventType,
		"action", action,
		"delivery_id", d.DeliveryID,
		"runs", len(ids))
	return result, nil
}

func releaseEventData(ev *github.ReleaseEvent) (string, map[string]any, string) {
	action := ev.GetAction()
	release := ev.GetRelease()
	if release.GetDraft() {
		return "", nil, "draft release"
	}
	if action != "published" {
		return "", nil, "release action " + action
	}

	data := map[string]any{
		"tagName":    release.GetTagName(),
		"prerelease": release.GetPrerelease(),
		"draft":      false,
	}
	if at := release.GetPublishedAt(); !at.IsZero() {
		data["publishedAt"] = at.UTC().Format(time.RFC3339)
	}
	return action, data, ""
}

func pushEventData(ev *github.PushEvent, defaultBranch *string) (string, map[string]any, string) {
	ref := ev.GetRef()
	branch, ok := strings.CutPrefix(ref, "refs/heads/")
	if !ok {
		return "", nil, "not a branch push"
	}
	if ev.GetDeleted() {
		return "", nil, "branch deleted"
	}

	want := ev.GetRepo().GetDefaultBranch()
	if defaultBranch != nil && *defaultBranch != "" {
		want = *defaultBranch
	}
	if want != "" && branch != want {
		return "", nil, "push to non-default branch " + branch
	}

	commits := make([]any, 0, len(ev.Commits))
	for _, c := range ev.Commits {
		commit := map[string]any{"id": c.GetID()}
		if ts := c.GetTimestamp(); !ts.IsZero() {
			commit["timestamp"] = ts.UTC().Format(time.RFC3339)
		}
		commits = append(commits, commit)
	}

	data := map[string]any{
		"ref":     ref,
		"branch":  branch,
		"commits": commits,
	}
	if head := ev.GetHeadCommit(); head != nil {
		data["headCommit"] = map[string]any{"id": head.GetID()}
	}
	return "pushed", data, ""
}
