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

func (e *Engine) runSchedule(ctx context.Context, sr *StepRunner, raw json.RawMessage) (Outcome, error) {
	p, err := ParseSchedulePayload(raw)
	if err != nil {
		e.logger.ErrorContext(ctx, "invalid schedule payload, canceling", "error", err)
		return Cancel("invalid payload"), nil
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{TriggerID: logger.Ptr(p.TriggerID)})

	trigger, err := Step(ctx, sr, stepFetchTrigger, func(ctx context.Context) (*model.Trigger, error) {
		return e.fetchTrigger(ctx, p.TriggerID)
	})
	if err != nil {
		return Outcome{}, err
	}
	switch {
	case trigger == nil:
		e.logger.InfoContext(ctx, "schedule not found, canceling")
		return Cancel("trigger not found"), nil
	case !trigger.Enabled:
		e.logger.InfoContext(ctx, "schedule is disabled, canceling")
		return Cancel("trigger disabled"), nil
	case trigger.SourceType != model.SourceTypeCron:
		e.logger.WarnContext(ctx, "trigger is not a schedule, canceling", "source_type", trigger.SourceType)
		return Cancel("trigger is not a schedule"), nil
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{OrganizationID: logger.Ptr(trigger.OrganizationID)})

	repos, err := Step(ctx, sr, stepFetchRepositories, func(ctx context.Context) ([]repositoryData, error) {
		var out []repositoryData
		for _, id := range trigger.RepositoryIDs() {
			repo, err := e.resolveRepository(ctx, id, trigger.OrganizationID)
			if err != nil {
				return nil, err
			}
			if repo == nil {
				e.logger.WarnContext(ctx, "skipping schedule target", "repository_id", id)
				continue
			}
			out = append(out, *repo)
		}
		return out, nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if len(repos) == 0 {
		e.logger.InfoContext(ctx, "schedule has no usable repositories, canceling")
		return Cancel("no repositories"), nil
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

	integrationType := model.IntegrationTypeWebhook
	if p.Manual {
		integrationType = model.IntegrationTypeManual
	}
	lookbackDays := trigger.LookbackDays(defaultLookbackDays)
	name := trigger.DisplayName(string(trigger.OutputType))

	// Errors from here on keep the reservation: a retried run resumes with
	// it and OnFailure refunds it once retries are exhausted.
	retention, err := Step(ctx, sr, stepFetchRetention, func(ctx context.Context) (int, error) {
		return e.ledger.RetentionDays(ctx, trigger.OrganizationID), nil
	})
	if err != nil {
		return Outcome{}, err
	}

	return e.publish(ctx, sr, publication{
		trigger:         trigger,
		reservation:     res,
		retentionDays:   retention,
		integrationType: integrationType,
		label:           fmt.Sprintf("Schedule \"%s\"", name),
		emailSubject:    fmt.Sprintf("New content created from your \"%s\" schedule", name),
		emailName:       name,
		options: func(now time.Time) (agent.GenerateOptions, error) {
			return scheduleOptions(trigger, repos, brand, lookbackDays, now), nil
		},
		result: func(postID string) any {
			return ScheduleResult{Success: true, TriggerID: trigger.ID, PostID: postID, LookbackDays: lookbackDays}
		},
	})
}

func scheduleOptions(trigger *model.Trigger, repos []repositoryData, brand *model.BrandSettings, lookbackDays int, now time.Time) agent.GenerateOptions {
	allowed := make([]repoaccess.AllowedRepository, len(repos))
	refs := make([]model.RepositoryRef, len(repos))
	for i, r := range repos {
		allowed[i] = repoaccess.AllowedRepository{IntegrationID: r.ID, Owner: r.Owner, Repo: r.Repo}
		refs[i] = model.RepositoryRef{Owner: r.Owner, Repo: r.Repo}
	}

	end := now.UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	return agent.GenerateOptions{
		OrganizationID: trigger.OrganizationID,
		Repositories:   allowed,
		Tone:           toneOf(brand),
		PromptInput:    agent.BuildSchedulePromptInput(refs, lookbackDays, brand, end),
		SourceMetadata: &model.SourceMetadata{
			TriggerID:         trigger.ID,
			TriggerSourceType: model.SourceTypeCron,
			Repositories:      refs,
			LookbackWindow:    &model.LookbackWindowRange{Start: start, End: end},
		},
	}
}
