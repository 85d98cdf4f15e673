package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/internal/agent"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/repoaccess"
)

func (e *Engine) runEvent(ctx context.Context, sr *StepRunner, raw json.RawMessage) (Outcome, error) {
	p, err := ParseEventPayload(raw)
	if err != nil {
		e.logger.ErrorContext(ctx, "invalid event payload, canceling", "error", err)
		return Cancel("invalid payload"), nil
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{TriggerID: logger.Ptr(p.TriggerID)})

	trigger, err := Step(ctx, sr, stepFetchTrigger, func(ctx context.Context) (*model.Trigger, error) {
		return e.fetchTrigger(ctx, p.TriggerID)
	})
	if err != nil {
		return Outcome{}, err
	}
	if trigger == nil {
		e.logger.InfoContext(ctx, "trigger not found, canceling")
		return Cancel("trigger not found"), nil
	}
	if !trigger.Enabled {
		e.logger.InfoContext(ctx, "trigger is disabled, canceling")
		return Cancel("trigger disabled"), nil
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{OrganizationID: logger.Ptr(trigger.OrganizationID)})

	repo, err := Step(ctx, sr, stepFetchRepository, func(ctx context.Context) (*repositoryData, error) {
		return e.resolveRepository(ctx, p.RepositoryID, trigger.OrganizationID)
	})
	if err != nil {
		return Outcome{}, err
	}
	if repo == nil {
		e.logger.InfoContext(ctx, "repository not found for trigger, canceling", "repository_id", p.RepositoryID)
		return Cancel("repository not found"), nil
	}

	brand, err := Step(ctx, sr, stepFetchBrandSettings, func(ctx context.Context) (*model.BrandSettings, error) {
		return e.fetchBrandSettings(ctx, trigger.OrganizationID)
	})
	if err != nil {
		return Outcome{}, err
	}

	res, err := e.reserveCredit(ctx, sr, trigger.OrganizationID)
	if err != nil {
		return Outcome{}, err
	}
	if !res.Allowed {
		return Cancel("AI credit limit reached"), nil
	}

	// Errors from here on keep the reservation: a retried run resumes with
	// it and OnFailure refunds it once retries are exhausted.
	retention, err := Step(ctx, sr, stepFetchRetention, func(ctx context.Context) (int, error) {
		return e.ledger.RetentionDays(ctx, trigger.OrganizationID), nil
	})
	if err != nil {
		return Outcome{}, err
	}

	label := fmt.Sprintf("Event \"%s\"", trigger.DisplayName(p.EventType))
	return e.publish(ctx, sr, publication{
		trigger:         trigger,
		reservation:     res,
		retentionDays:   retention,
		integrationType: model.IntegrationTypeWebhook,
		label:           label,
		emailSubject:    fmt.Sprintf("New content created from %s event", p.EventType),
		emailName:       trigger.DisplayName(p.EventType + " event"),
		options: func(now time.Time) (agent.GenerateOptions, error) {
			return eventOptions(p, trigger, repo, brand, now)
		},
		result: func(postID string) any {
			return EventResult{Success: true, TriggerID: p.TriggerID, PostID: postID, EventType: p.EventType}
		},
	})
}

func eventOptions(p EventPayload, trigger *model.Trigger, repo *repositoryData, brand *model.BrandSettings, now time.Time) (agent.GenerateOptions, error) {
	input, err := agent.BuildEventPromptInput(agent.Event{
		Type:       p.EventType,
		Action:     p.EventAction,
		Data:       p.EventData,
		Owner:      repo.Owner,
		Repository: repo.Repo,
	}, brand, now)
	if err != nil {
		return agent.GenerateOptions{}, err
	}

	return agent.GenerateOptions{
		OrganizationID: trigger.OrganizationID,
		Repositories:   []repoaccess.AllowedRepository{{IntegrationID: repo.ID, Owner: repo.Owner, Repo: repo.Repo}},
		Tone:           toneOf(brand),
		PromptInput:    input,
		SourceMetadata: &model.SourceMetadata{
			TriggerID:         trigger.ID,
			TriggerSourceType: model.SourceTypeGitHubWebhook,
			EventType:         p.EventType,
			EventAction:       p.EventAction,
			Repositories:      []model.RepositoryRef{{Owner: repo.Owner, Repo: repo.Repo}},
		},
	}, nil
}
