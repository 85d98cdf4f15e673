package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/janburzinski/notra/internal/agent"
	"github.com/janburzinski/notra/internal/ledger"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/notify"
)

// publication is what the event and schedule pipelines hand to the shared
// generate, log and notify tail.
type publication struct {
	trigger         *model.Trigger
	reservation     ledger.Reservation
	retentionDays   int
	integrationType model.IntegrationType
	// label prefixes log titles, e.g. `Event "Releases"`.
	label        string
	emailSubject string
	emailName    string
	options      func(now time.Time) (agent.GenerateOptions, error)
	result       func(postID string) any
}

func (e *Engine) publish(ctx context.Context, sr *StepRunner, pub publication) (Outcome, error) {
	orgID := pub.trigger.OrganizationID

	gen, err := Step(ctx, sr, stepGenerateContent, func(stepCtx context.Context) (GenerationResult, error) {
		return e.generate(ctx, stepCtx, pub)
	})
	if err != nil {
		return Outcome{}, err
	}

	switch gen.Status {
	case GenerationUnsupported:
		e.refund(ctx, sr, stepRefundUnsupported, orgID, pub.reservation)
		e.logger.WarnContext(ctx, "output type not supported, canceling", "output_type", gen.OutputType)
		return Cancel("unsupported output type " + gen.OutputType), nil

	case GenerationFailed:
		e.refund(ctx, sr, stepRefundFailure, orgID, pub.reservation)
		err := Do(ctx, sr, stepLogFailure, func(ctx context.Context) error {
			e.appendLog(ctx, notify.Entry{
				OrganizationID:  orgID,
				IntegrationID:   pub.trigger.ID,
				IntegrationType: pub.integrationType,
				Title:           pub.label + " failed to generate content",
				Status:          model.LogStatusFailed,
				ErrorMessage:    &gen.Reason,
				RetentionDays:   pub.retentionDays,
			})
			return nil
		})
		if err != nil {
			return Outcome{}, err
		}
		e.logger.ErrorContext(ctx, "content generation failed", "reason", gen.Reason)
		return Cancel("generation failed: " + gen.Reason), nil

	case GenerationOK:

	default:
		return Outcome{}, fmt.Errorf("unknown generation status %q", gen.Status)
	}

	err = Do(ctx, sr, stepLogSuccess, func(ctx context.Context) error {
		e.appendLog(ctx, notify.Entry{
			OrganizationID:  orgID,
			IntegrationID:   pub.trigger.ID,
			IntegrationType: pub.integrationType,
			Title:           fmt.Sprintf("%s created \"%s\"", pub.label, gen.Title),
			Status:          model.LogStatusSuccess,
			ReferenceID:     &gen.PostID,
			RetentionDays:   pub.retentionDays,
		})
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	notification, err := Step(ctx, sr, stepFetchNotificationData, func(ctx context.Context) (model.NotificationData, error) {
		return e.fetchNotificationData(ctx, orgID), nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if notification.Enabled && len(notification.OwnerEmails) > 0 {
		_, err := Step(ctx, sr, stepSendNotifications, func(ctx context.Context) ([]notify.Delivery, error) {
			return e.sendNotifications(ctx, pub, notification, gen), nil
		})
		if err != nil {
			return Outcome{}, err
		}
	}

	return Complete(pub.result(gen.PostID)), nil
}

// generate maps agent errors to a failed generation. Only cancellation of
// the run itself surfaces as an error, so the run is retried later.
func (e *Engine) generate(runCtx, stepCtx context.Context, pub publication) (GenerationResult, error) {
	outputType := pub.trigger.OutputType
	if !agent.IsSupportedOutputType(outputType) {
		return GenerationResult{Status: GenerationUnsupported, OutputType: string(outputType)}, nil
	}

	opts, err := pub.options(e.now())
	if err != nil {
		return GenerationResult{Status: GenerationFailed, Reason: err.Error()}, nil
	}

	out, err := e.generator.Generate(stepCtx, outputType, opts)
	if err != nil {
		if runCtx.Err() != nil {
			return GenerationResult{}, err
		}
		return GenerationResult{Status: GenerationFailed, Reason: err.Error()}, nil
	}
	return GenerationResult{Status: GenerationOK, PostID: out.PostID, Title: out.Title}, nil
}

func (e *Engine) appendLog(ctx context.Context, entry notify.Entry) {
	if _, err := e.audit.Append(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "continuing without run log entry", "title", entry.Title, "error", err)
	}
}

// fetchNotificationData is best effort. Lookup failures leave notifications
// off or fall back to defaults.
func (e *Engine) fetchNotificationData(ctx context.Context, organizationID string) model.NotificationData {
	enabled, err := e.orgs.ScheduledContentCreationEnabled(ctx, organizationID)
	if err != nil {
		e.logger.WarnContext(ctx, "notification settings unavailable, skipping emails", "error", err)
		return model.NotificationData{}
	}
	if !enabled {
		return model.NotificationData{}
	}

	data := model.NotificationData{Enabled: true, OrganizationName: defaultOrganizationName}
	if org, err := e.orgs.GetByID(ctx, organizationID); err == nil {
		data.OrganizationName = org.Name
		data.OrganizationSlug = org.Slug
	} else {
		e.logger.WarnContext(ctx, "organization lookup failed for notification", "error", err)
	}

	emails, err := e.orgs.ListMemberEmails(ctx, organizationID, model.MemberRoleOwner)
	if err != nil {
		e.logger.WarnContext(ctx, "owner lookup failed for notification", "error", err)
	}
	data.OwnerEmails = emails
	return data
}

func (e *Engine) sendNotifications(ctx context.Context, pub publication, data model.NotificationData, gen GenerationResult) []notify.Delivery {
	if e.notifier == nil || !e.notifier.Enabled() {
		e.logger.DebugContext(ctx, "email sender not configured, skipping notifications")
		return nil
	}

	deliveries, err := e.notifier.SendContentCreated(ctx, data.OwnerEmails, notify.ContentCreatedEmail{
		Subject:          pub.emailSubject,
		OrganizationName: data.OrganizationName,
		OrganizationSlug: data.OrganizationSlug,
		ScheduleName:     pub.emailName,
		ContentTitle:     gen.Title,
		ContentType:      string(pub.trigger.OutputType),
		ContentLink:      fmt.Sprintf("%s/%s/content/%s", e.appURL, data.OrganizationSlug, gen.PostID),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to send content notifications", "error", err)
	}
	return deliveries
}
