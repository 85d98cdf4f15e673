package queue

import (
	"fmt"

	"github.com/janburzinski/notra/internal/model"
)

type TaskType string

const (
	TaskTypeEventWorkflow    TaskType = "event_workflow"
	TaskTypeScheduleWorkflow TaskType = "schedule_workflow"
)

// Task asks a worker to execute one persisted workflow run. The run row
// holds the payload; the stream only carries its id.
type Task struct {
	TaskType TaskType
	RunID    string
	TraceID  *string
	Attempt  int
}

func TaskTypeFor(kind model.WorkflowKind) (TaskType, error) {
	switch kind {
	case model.WorkflowEvent:
		return TaskTypeEventWorkflow, nil
	case model.WorkflowSchedule:
		return TaskTypeScheduleWorkflow, nil
	default:
		return "", fmt.Errorf("unknown workflow %q", kind)
	}
}

// Workflow maps the task type back to the workflow it runs.
func (t TaskType) Workflow() model.WorkflowKind {
	switch t {
	case TaskTypeEventWorkflow:
		return model.WorkflowEvent
	case TaskTypeScheduleWorkflow:
		return model.WorkflowSchedule
	default:
		return ""
	}
}
