package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/janburzinski/notra/common/id"
	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/queue"
)

// RunRequest describes one workflow run to persist and dispatch.
type RunRequest struct {
	Workflow       model.WorkflowKind
	OrganizationID string
	TriggerID      string
	Payload        any
}

type WorkflowStarter interface {
	// Start persists every run in one transaction, then queues them in
	// order. It returns the run ids in request order.
	Start(ctx context.Context, reqs ...RunRequest) ([]string, error)
}

type workflowStarter struct {
	txRunner TxRunner
	queue    queue.Producer
	logger   *slog.Logger
}

func NewWorkflowStarter(txRunner TxRunner, producer queue.Producer, logger *slog.Logger) WorkflowStarter {
	if logger == nil {
		logger = slog.Default()
	}
	return &workflowStarter{
		txRunner: txRunner,
		queue:    producer,
		logger:   logger,
	}
}

func (s *workflowStarter) Start(ctx context.Context, reqs ...RunRequest) ([]string, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	runs := make([]*model.WorkflowRun, 0, len(reqs))
	for _, req := range reqs {
		if _, err := queue.TaskTypeFor(req.Workflow); err != nil {
			return nil, err
		}
		payload, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", req.Workflow, err)
		}
		runs = append(runs, &model.WorkflowRun{
			ID:             id.NewRunID(),
			Workflow:       req.Workflow,
			OrganizationID: optional(req.OrganizationID),
			TriggerID:      optional(req.TriggerID),
			Payload:        payload,
			Status:         model.RunStatusPending,
		})
	}

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		for _, run := range runs {
			if err := sp.WorkflowRuns().Create(ctx, run); err != nil {
				return fmt.Errorf("creating workflow run: %w", err)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	traceID := optional(logger.TraceID(ctx))
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		taskType, _ := queue.TaskTypeFor(run.Workflow)
		if err := s.queue.Enqueue(ctx, queue.Task{
			TaskType: taskType,
			RunID:    run.ID,
			TraceID:  traceID,
			Attempt:  1,
		}); err != nil {
			return nil, fmt.Errorf("enqueueing run %s: %w", run.ID, err)
		}
		ids = append(ids, run.ID)
	}

	s.logger.InfoContext(ctx, "workflow runs started", "count", len(ids), "run_ids", ids)
	return ids, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
