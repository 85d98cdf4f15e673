package worker

import (
	"context"
	"encoding/json"

	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/queue"
	"github.com/janburzinski/notra/internal/workflow"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// RunStore is the subset of store.WorkflowRunStore the worker drives.
type RunStore interface {
	GetByID(ctx context.Context, id string) (*model.WorkflowRun, error)
	Claim(ctx context.Context, id string) (*model.WorkflowRun, error)
	Finish(ctx context.Context, id string, status model.RunStatus, result json.RawMessage, lastError *string) error
	MarkErrored(ctx context.Context, id string, status model.RunStatus, lastError string) error
}

// Executor runs a claimed workflow. Implemented by *workflow.Engine.
type Executor interface {
	Execute(ctx context.Context, run *model.WorkflowRun) (workflow.Outcome, error)
	OnFailure(ctx context.Context, run *model.WorkflowRun, cause error)
}
