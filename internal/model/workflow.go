package model

import (
	"encoding/json"
	"time"
)

type WorkflowKind string

const (
	WorkflowEvent    WorkflowKind = "event"
	WorkflowSchedule WorkflowKind = "schedule"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCanceled  RunStatus = "canceled"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether a run with this status must not execute again.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusCanceled
}

type WorkflowRun struct {
	ID             string          `json:"id"`
	Workflow       WorkflowKind    `json:"workflow"`
	OrganizationID *string         `json:"organizationId,omitempty"`
	TriggerID      *string         `json:"triggerId,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	Status         RunStatus       `json:"status"`
	Attempts       int32           `json:"attempts"`
	LastError      *string         `json:"lastError,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
}

type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// WorkflowStep is one entry of a run's write-ahead step log.
type WorkflowStep struct {
	RunID       string          `json:"runId"`
	StepName    string          `json:"stepName"`
	Status      StepStatus      `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Attempts    int32           `json:"attempts"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// NotificationData is what the content-created email needs about the org.
type NotificationData struct {
	Enabled          bool     `json:"enabled"`
	OrganizationName string   `json:"organizationName,omitempty"`
	OrganizationSlug string   `json:"organizationSlug,omitempty"`
	OwnerEmails      []string `json:"ownerEmails,omitempty"`
}
