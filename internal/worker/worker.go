// Package worker drains the workflow run stream and executes each run
// through the durable engine.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/queue"
	"github.com/janburzinski/notra/internal/store"
	"github.com/janburzinski/notra/internal/workflow"
)

type Config struct {
	MaxAttempts int
	// Concurrency caps how many runs of one batch execute at once.
	Concurrency int
}

type Worker struct {
	consumer Consumer
	runs     RunStore
	executor Executor
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, runs RunStore, executor Executor, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Worker{
		consumer:  consumer,
		runs:      runs,
		executor:  executor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "notra.worker"})
	slog.InfoContext(ctx, "worker started", "concurrency", w.cfg.Concurrency, "max_attempts", w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, msg := range messages {
		g.Go(func() error {
			w.Handle(ctx, msg)
			return nil
		})
	}
	return g.Wait()
}

// Handle processes one message and takes care of retry bookkeeping when it
// fails. It is the processor the reclaimer uses as well.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	if err := w.processMessageSafe(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "message processing failed",
			"error", err,
			"message_id", msg.ID,
			"run_id", msg.RunID,
			"attempt", msg.Attempt)
		w.handleFailedMessage(ctx, msg, err)
	}
	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"run_id", msg.RunID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage claims the run, executes it and records the outcome. A
// returned error leaves the message unacknowledged for the caller to retry.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(msg.ID),
		RunID:     logger.Ptr(msg.RunID),
		Workflow:  logger.Ptr(string(msg.TaskType.Workflow())),
	})

	span := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.run",
		trace.WithAttributes(
			attribute.String("run_id", msg.RunID),
			attribute.String("task_type", string(msg.TaskType)),
			attribute.Int("attempt", msg.Attempt),
		))
	defer span.End()
	ctx = span.Context()

	slog.InfoContext(ctx, "processing message", "attempt", msg.Attempt)

	run, err := w.runs.Claim(ctx, msg.RunID)
	if errors.Is(err, store.ErrNotFound) {
		slog.InfoContext(ctx, "run not claimable, skipping")
		w.ack(ctx, msg)
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("claiming run: %w", err)
	}

	start := time.Now()
	outcome, execErr := w.executor.Execute(ctx, run)
	if execErr != nil {
		span.RecordError(execErr)
		if markErr := w.runs.MarkErrored(ctx, run.ID, model.RunStatusPending, execErr.Error()); markErr != nil {
			slog.WarnContext(ctx, "failed to record run error", "error", markErr)
		}
		return fmt.Errorf("executing run: %w", execErr)
	}

	result, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encoding run outcome: %w", err)
	}
	status := model.RunStatusCompleted
	if outcome.Status == workflow.OutcomeCanceled {
		status = model.RunStatusCanceled
	}
	if err := w.runs.Finish(ctx, run.ID, status, result, nil); err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}

	w.ack(ctx, msg)

	slog.InfoContext(ctx, "run finished",
		"status", status,
		"reason", outcome.Reason,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt < w.cfg.MaxAttempts {
		slog.WarnContext(ctx, "requeuing failed message",
			"message_id", msg.ID,
			"run_id", msg.RunID,
			"attempt", msg.Attempt)
		if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
			slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
		}
		return
	}

	slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
		"message_id", msg.ID,
		"run_id", msg.RunID,
		"attempts", msg.Attempt)
	w.Abandon(ctx, msg, err)
}

// Abandon gives up on a run: the message goes to the DLQ, the run is marked
// failed and the executor's failure hook runs.
func (w *Worker) Abandon(ctx context.Context, msg queue.Message, cause error) {
	if dlqErr := w.consumer.SendDLQ(ctx, msg, cause.Error()); dlqErr != nil {
		slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
	}

	errMsg := cause.Error()
	if finishErr := w.runs.Finish(ctx, msg.RunID, model.RunStatusFailed, nil, &errMsg); finishErr != nil {
		slog.ErrorContext(ctx, "failed to mark run failed", "error", finishErr, "run_id", msg.RunID)
	}

	run, getErr := w.runs.GetByID(ctx, msg.RunID)
	if getErr != nil {
		run = &model.WorkflowRun{ID: msg.RunID, Workflow: msg.TaskType.Workflow(), Attempts: int32(msg.Attempt)}
	}
	w.executor.OnFailure(ctx, run, cause)
}

func (w *Worker) ack(ctx context.Context, msg queue.Message) {
	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer will pick it up again; Claim skips finished runs.
		slog.WarnContext(ctx, "failed to ACK message",
			"error", err,
			"message_id", msg.ID)
	}
}
