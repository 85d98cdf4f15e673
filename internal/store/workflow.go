package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/janburzinski/notra/core/db/sqlc"
	"github.com/janburzinski/notra/internal/model"
)

type workflowRunStore struct {
	queries *sqlc.Queries
}

func newWorkflowRunStore(queries *sqlc.Queries) WorkflowRunStore {
	return &workflowRunStore{queries: queries}
}

func (s *workflowRunStore) Create(ctx context.Context, run *model.WorkflowRun) error {
	row, err := s.queries.CreateWorkflowRun(ctx, sqlc.CreateWorkflowRunParams{
		ID:             run.ID,
		Workflow:       string(run.Workflow),
		OrganizationID: run.OrganizationID,
		TriggerID:      run.TriggerID,
		Payload:        run.Payload,
	})
	if err != nil {
		return err
	}
	*run = *toWorkflowRunModel(row)
	return nil
}

func (s *workflowRunStore) GetByID(ctx context.Context, id string) (*model.WorkflowRun, error) {
	row, err := s.queries.GetWorkflowRun(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toWorkflowRunModel(row), nil
}

func (s *workflowRunStore) Claim(ctx context.Context, id string) (*model.WorkflowRun, error) {
	row, err := s.queries.ClaimWorkflowRun(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toWorkflowRunModel(row), nil
}

func (s *workflowRunStore) Finish(ctx context.Context, id string, status model.RunStatus, result json.RawMessage, lastError *string) error {
	return s.queries.FinishWorkflowRun(ctx, sqlc.FinishWorkflowRunParams{
		ID:        id,
		Status:    string(status),
		Result:    nullableJSON(result),
		LastError: lastError,
	})
}

func (s *workflowRunStore) MarkErrored(ctx context.Context, id string, status model.RunStatus, lastError string) error {
	return s.queries.MarkWorkflowRunErrored(ctx, sqlc.MarkWorkflowRunErroredParams{
		ID:        id,
		Status:    string(status),
		LastError: &lastError,
	})
}

func toWorkflowRunModel(row sqlc.WorkflowRun) *model.WorkflowRun {
	return &model.WorkflowRun{
		ID:             row.ID,
		Workflow:       model.WorkflowKind(row.Workflow),
		OrganizationID: row.OrganizationID,
		TriggerID:      row.TriggerID,
		Payload:        row.Payload,
		Status:         model.RunStatus(row.Status),
		Attempts:       row.Attempts,
		LastError:      row.LastError,
		Result:         row.Result,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
		FinishedAt:     pgTimestamptzToPtr(row.FinishedAt),
	}
}

type workflowStepStore struct {
	queries *sqlc.Queries
}

func newWorkflowStepStore(queries *sqlc.Queries) WorkflowStepStore {
	return &workflowStepStore{queries: queries}
}

func (s *workflowStepStore) Get(ctx context.Context, runID, stepName string) (*model.WorkflowStep, error) {
	row, err := s.queries.GetWorkflowStep(ctx, sqlc.GetWorkflowStepParams{
		RunID:    runID,
		StepName: stepName,
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toWorkflowStepModel(row), nil
}

func (s *workflowStepStore) Complete(ctx context.Context, runID, stepName string, result json.RawMessage, startedAt time.Time) error {
	return s.queries.CompleteWorkflowStep(ctx, sqlc.CompleteWorkflowStepParams{
		RunID:     runID,
		StepName:  stepName,
		Result:    nullableJSON(result),
		StartedAt: timeToPgTimestamptz(startedAt),
	})
}

func (s *workflowStepStore) Fail(ctx context.Context, runID, stepName, errMsg string, startedAt time.Time) error {
	return s.queries.FailWorkflowStep(ctx, sqlc.FailWorkflowStepParams{
		RunID:     runID,
		StepName:  stepName,
		Error:     &errMsg,
		StartedAt: timeToPgTimestamptz(startedAt),
	})
}

func (s *workflowStepStore) List(ctx context.Context, runID string) ([]model.WorkflowStep, error) {
	rows, err := s.queries.ListWorkflowSteps(ctx, runID)
	if err != nil {
		return nil, err
	}

	steps := make([]model.WorkflowStep, 0, len(rows))
	for _, row := range rows {
		steps = append(steps, *toWorkflowStepModel(row))
	}
	return steps, nil
}

func toWorkflowStepModel(row sqlc.WorkflowStep) *model.WorkflowStep {
	return &model.WorkflowStep{
		RunID:       row.RunID,
		StepName:    row.StepName,
		Status:      model.StepStatus(row.Status),
		Result:      row.Result,
		Error:       row.Error,
		Attempts:    row.Attempts,
		StartedAt:   row.StartedAt.Time,
		CompletedAt: pgTimestamptzToPtr(row.CompletedAt),
	}
}
