package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/internal/agent"
	"github.com/janburzinski/notra/internal/ledger"
	"github.com/janburzinski/notra/internal/metrics"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/notify"
	"github.com/janburzinski/notra/internal/repoaccess"
	"github.com/janburzinski/notra/internal/store"
)

const (
	stepFetchTrigger          = "fetch-trigger"
	stepFetchRepository       = "fetch-repository"
	stepFetchRepositories     = "fetch-repositories"
	stepFetchBrandSettings    = "fetch-brand-settings"
	stepReserveCredit         = "reserve-ai-credit"
	stepFetchRetention        = "fetch-retention"
	stepGenerateContent       = "generate-content"
	stepRefundUnsupported     = "refund-ai-credit-unsupported"
	stepRefundFailure         = "refund-ai-credit-failure"
	stepRefundError           = "refund-ai-credit-error"
	stepLogFailure            = "log-generation-failure"
	stepLogSuccess            = "log-generation-success"
	stepFetchNotificationData = "fetch-notification-data"
	stepSendNotifications     = "send-notification-emails"

	defaultOrganizationName = "Your organization"
	defaultLookbackDays     = 7
)

type TriggerReader interface {
	GetByID(ctx context.Context, id string) (*model.Trigger, error)
}

type RepositoryResolver interface {
	Resolve(ctx context.Context, integrationID string, opts repoaccess.ResolveOptions) (*model.RepositoryContext, error)
}

type OrganizationReader interface {
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	GetBrandSettings(ctx context.Context, organizationID string) (*model.BrandSettings, error)
	ScheduledContentCreationEnabled(ctx context.Context, organizationID string) (bool, error)
	ListMemberEmails(ctx context.Context, organizationID string, role model.MemberRole) ([]string, error)
}

type CreditLedger interface {
	Reserve(ctx context.Context, customerID, featureID string) (ledger.Reservation, error)
	Refund(ctx context.Context, customerID, featureID string)
	RetentionDays(ctx context.Context, customerID string) int
}

type AuditLog interface {
	Append(ctx context.Context, e notify.Entry) (*model.RunLogEntry, error)
}

type Notifier interface {
	Enabled() bool
	SendContentCreated(ctx context.Context, recipients []string, email notify.ContentCreatedEmail) ([]notify.Delivery, error)
}

type Params struct {
	Triggers      TriggerReader
	Repositories  RepositoryResolver
	Organizations OrganizationReader
	Ledger        CreditLedger
	Audit         AuditLog
	Notifier      Notifier
	Generator     agent.Generator
	Steps         StepStore
	Timeouts      Timeouts
	AppURL        string
	Now           func() time.Time
	Logger        *slog.Logger
}

// Engine executes workflow runs. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	triggers  TriggerReader
	repos     RepositoryResolver
	orgs      OrganizationReader
	ledger    CreditLedger
	audit     AuditLog
	notifier  Notifier
	generator agent.Generator
	steps     StepStore
	timeouts  Timeouts
	appURL    string
	now       func() time.Time
	logger    *slog.Logger
}

func New(p Params) *Engine {
	e := &Engine{
		triggers:  p.Triggers,
		repos:     p.Repositories,
		orgs:      p.Organizations,
		ledger:    p.Ledger,
		audit:     p.Audit,
		notifier:  p.Notifier,
		generator: p.Generator,
		steps:     p.Steps,
		timeouts:  p.Timeouts,
		appURL:    strings.TrimRight(p.AppURL, "/"),
		now:       p.Now,
		logger:    p.Logger,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Execute runs or resumes run. A returned error means the run should be
// retried; cancellations come back as an Outcome.
func (e *Engine) Execute(ctx context.Context, run *model.WorkflowRun) (Outcome, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(run.ID),
		Workflow:  logger.Ptr(string(run.Workflow)),
		Component: "notra.workflow." + string(run.Workflow),
	})
	sr := NewStepRunner(run.ID, run.Workflow, e.steps, e.timeouts, e.logger)

	var (
		out Outcome
		err error
	)
	switch run.Workflow {
	case model.WorkflowEvent:
		out, err = e.runEvent(ctx, sr, run.Payload)
	case model.WorkflowSchedule:
		out, err = e.runSchedule(ctx, sr, run.Payload)
	default:
		return Outcome{}, fmt.Errorf("unknown workflow %q", run.Workflow)
	}

	switch {
	case err != nil:
		metrics.RecordRun(string(run.Workflow), "error")
	default:
		metrics.RecordRun(string(run.Workflow), string(out.Status))
	}
	return out, err
}

// OnFailure is called once a run has exhausted its retries. It logs the
// failure and refunds a reservation the run still holds. It never fails.
func (e *Engine) OnFailure(ctx context.Context, run *model.WorkflowRun, cause error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "workflow failure hook panicked", "panic", r)
		}
	}()

	var triggerID string
	var p struct {
		TriggerID string `json:"triggerId"`
	}
	if json.Unmarshal(run.Payload, &p) == nil {
		triggerID = p.TriggerID
	}

	e.logger.ErrorContext(ctx, "workflow run failed",
		"run_id", run.ID,
		"workflow", run.Workflow,
		"trigger_id", triggerID,
		"attempts", run.Attempts,
		"error", cause)

	e.compensate(ctx, run)
}

func (e *Engine) fetchTrigger(ctx context.Context, triggerID string) (*model.Trigger, error) {
	trigger, err := e.triggers.GetByID(ctx, triggerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load trigger: %w", err)
	}
	return trigger, nil
}

type repositoryData struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// resolveRepository returns nil for repositories the run may not use.
func (e *Engine) resolveRepository(ctx context.Context, integrationID, organizationID string) (*repositoryData, error) {
	repo, err := e.repos.Resolve(ctx, integrationID, repoaccess.ResolveOptions{OrganizationID: organizationID})
	if err != nil {
		var accessErr *repoaccess.AccessError
		if errors.As(err, &accessErr) {
			e.logger.InfoContext(ctx, "repository not usable", "integration_id", integrationID, "reason", accessErr.Message)
			return nil, nil
		}
		return nil, err
	}
	return &repositoryData{ID: repo.IntegrationID, Owner: repo.Owner, Repo: repo.Repo}, nil
}

// fetchBrandSettings never fails the run. Missing settings mean defaults.
func (e *Engine) fetchBrandSettings(ctx context.Context, organizationID string) (*model.BrandSettings, error) {
	brand, err := e.orgs.GetBrandSettings(ctx, organizationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.WarnContext(ctx, "brand settings unavailable, using defaults", "error", err)
		}
		return nil, nil
	}
	return brand, nil
}

func (e *Engine) reserveCredit(ctx context.Context, sr *StepRunner, organizationID string) (ledger.Reservation, error) {
	res, err := Step(ctx, sr, stepReserveCredit, func(ctx context.Context) (ledger.Reservation, error) {
		return e.ledger.Reserve(ctx, organizationID, ledger.FeatureAICredits)
	})
	if err != nil {
		return ledger.Reservation{}, err
	}
	if !res.Allowed {
		var balance float64
		if res.Balance != nil {
			balance = *res.Balance
		}
		e.logger.WarnContext(ctx, "AI credit limit reached, canceling", "balance", balance)
	}
	return res, nil
}

var refundSteps = []string{stepRefundUnsupported, stepRefundFailure, stepRefundError}

// refund compensates res under the step name. A reservation is refunded at
// most once per run, whichever refund step gets there first.
func (e *Engine) refund(ctx context.Context, sr *StepRunner, name, organizationID string, res ledger.Reservation) {
	if !res.Reserved {
		return
	}
	for _, step := range refundSteps {
		if _, done, err := completedResult[struct{}](ctx, sr, step); err != nil {
			e.logger.ErrorContext(ctx, "cannot check earlier refunds, skipping", "step", name, "error", err)
			return
		} else if done {
			e.logger.DebugContext(ctx, "credit already refunded", "step", name, "refunded_by", step)
			return
		}
	}
	err := Do(ctx, sr, name, func(ctx context.Context) error {
		e.ledger.Refund(ctx, organizationID, ledger.FeatureAICredits)
		return nil
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to record credit refund", "step", name, "error", err)
	}
}

// compensate returns the credit of a run that will not be retried again.
// Runs whose content was already generated keep their charge.
func (e *Engine) compensate(ctx context.Context, run *model.WorkflowRun) {
	sr := NewStepRunner(run.ID, run.Workflow, e.steps, e.timeouts, e.logger)

	res, reserved, err := completedResult[ledger.Reservation](ctx, sr, stepReserveCredit)
	if err != nil {
		e.logger.ErrorContext(ctx, "cannot read reservation of failed run", "error", err)
		return
	}
	if !reserved || !res.Reserved {
		return
	}

	gen, generated, err := completedResult[GenerationResult](ctx, sr, stepGenerateContent)
	if err != nil {
		e.logger.ErrorContext(ctx, "cannot read generation of failed run", "error", err)
		return
	}
	if generated && gen.Status == GenerationOK {
		e.logger.InfoContext(ctx, "failed run already generated content, keeping credit", "post_id", gen.PostID)
		return
	}

	trigger, ok, err := completedResult[*model.Trigger](ctx, sr, stepFetchTrigger)
	if err != nil || !ok || trigger == nil {
		e.logger.ErrorContext(ctx, "cannot resolve organization of failed run, credit not refunded", "error", err)
		return
	}
	e.refund(ctx, sr, stepRefundError, trigger.OrganizationID, res)
}

func toneOf(brand *model.BrandSettings) model.ToneProfile {
	if brand == nil {
		return model.ToneConversational
	}
	return model.ValidToneProfile(brand.ToneProfile, model.ToneConversational)
}
