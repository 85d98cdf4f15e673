// Package workflow runs the event and schedule pipelines on top of a
// durable step log. Each named step runs at most once to completion per
// run; a retried run replays completed steps from their stored results.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/internal/metrics"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/store"
)

const (
	DefaultStepTimeout       = time.Minute
	DefaultGenerationTimeout = 10 * time.Minute
)

type StepStore interface {
	Get(ctx context.Context, runID, stepName string) (*model.WorkflowStep, error)
	Complete(ctx context.Context, runID, stepName string, result json.RawMessage, startedAt time.Time) error
	Fail(ctx context.Context, runID, stepName, errMsg string, startedAt time.Time) error
}

// Timeouts bound each step's wall-clock time. Generation applies to
// generate-content, Step to everything else.
type Timeouts struct {
	Step       time.Duration
	Generation time.Duration
}

func (t Timeouts) forStep(name string) time.Duration {
	if name == stepGenerateContent {
		if t.Generation > 0 {
			return t.Generation
		}
		return DefaultGenerationTimeout
	}
	if t.Step > 0 {
		return t.Step
	}
	return DefaultStepTimeout
}

// StepRunner checkpoints the steps of one run.
type StepRunner struct {
	runID    string
	workflow model.WorkflowKind
	steps    StepStore
	timeouts Timeouts
	logger   *slog.Logger
}

func NewStepRunner(runID string, workflow model.WorkflowKind, steps StepStore, timeouts Timeouts, log *slog.Logger) *StepRunner {
	if log == nil {
		log = slog.Default()
	}
	return &StepRunner{
		runID:    runID,
		workflow: workflow,
		steps:    steps,
		timeouts: timeouts,
		logger:   log,
	}
}

// Step returns the stored result of a completed step, or executes fn and
// stores its result. fn runs under the step's timeout. A failure is
// recorded and returned; the step executes again when the run is retried.
func Step[T any](ctx context.Context, sr *StepRunner, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	rec, err := sr.steps.Get(ctx, sr.runID, name)
	switch {
	case err == nil && rec.Status == model.StepStatusCompleted:
		var out T
		if len(rec.Result) > 0 {
			if err := json.Unmarshal(rec.Result, &out); err != nil {
				return zero, fmt.Errorf("decode step %s result: %w", name, err)
			}
		}
		sr.logger.DebugContext(ctx, "step replayed", "step", name)
		return out, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return zero, fmt.Errorf("load step %s: %w", name, err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Step: logger.Ptr(name)})
	sc := logger.StartSpan(ctx, "workflow.step", trace.WithAttributes(
		attribute.String("workflow.run_id", sr.runID),
		attribute.String("workflow.kind", string(sr.workflow)),
		attribute.String("workflow.step", name),
	))
	defer sc.End()

	stepCtx, cancel := context.WithTimeout(sc.Context(), sr.timeouts.forStep(name))
	defer cancel()

	startedAt := time.Now().UTC()
	out, err := fn(stepCtx)
	metrics.ObserveStep(string(sr.workflow), name, time.Since(startedAt))

	if err != nil {
		sc.RecordError(err)
		if ferr := sr.steps.Fail(ctx, sr.runID, name, err.Error(), startedAt); ferr != nil {
			sr.logger.ErrorContext(ctx, "failed to record step failure", "error", ferr)
		}
		sr.logger.WarnContext(ctx, "step failed", "error", err, "duration_ms", time.Since(startedAt).Milliseconds())
		return zero, fmt.Errorf("step %s: %w", name, err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return zero, fmt.Errorf("encode step %s result: %w", name, err)
	}
	if err := sr.steps.Complete(ctx, sr.runID, name, data, startedAt); err != nil {
		return zero, fmt.Errorf("record step %s: %w", name, err)
	}

	sr.logger.DebugContext(ctx, "step completed", "duration_ms", time.Since(startedAt).Milliseconds())
	return out, nil
}

// Do is Step for side effects without a result.
func Do(ctx context.Context, sr *StepRunner, name string, fn func(ctx context.Context) error) error {
	_, err := Step(ctx, sr, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// completedResult reads a step's stored result without running anything.
// ok is false when the step has not completed.
func completedResult[T any](ctx context.Context, sr *StepRunner, name string) (T, bool, error) {
	var out T
	rec, err := sr.steps.Get(ctx, sr.runID, name)
	if errors.Is(err, store.ErrNotFound) {
		return out, false, nil
	}
	if err != nil {
		return out, false, fmt.Errorf("load step %s: %w", name, err)
	}
	if rec.Status != model.StepStatusCompleted {
		return out, false, nil
	}
	if len(rec.Result) > 0 {
		if err := json.Unmarshal(rec.Result, &out); err != nil {
			return out, false, fmt.Errorf("decode step %s result: %w", name, err)
		}
	}
	return out, true, nil
}
