package dto

import "encoding/json"

// EventWorkflowRequest is validated by workflow.ParseEventPayload, so the
// fields are kept raw here.
type EventWorkflowRequest struct {
	TriggerID    string          `json:"triggerId"`
	EventType    string          `json:"eventType"`
	EventAction  *string         `json:"eventAction"`
	EventData    json.RawMessage `json:"eventData"`
	RepositoryID string          `json:"repositoryId"`
	DeliveryID   string          `json:"deliveryId,omitempty"`
}

type ScheduleWorkflowRequest struct {
	TriggerID string `json:"triggerId" binding:"required"`
	Manual    bool   `json:"manual"`
}

type WorkflowRunResponse struct {
	WorkflowRunID string `json:"workflowRunId"`
}

type ManualRunResponse struct {
	Success       bool   `json:"success"`
	WorkflowRunID string `json:"workflowRunId"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Status  int    `json:"status,omitempty"`
}

type HealthcheckResponse struct {
	OK        bool    `json:"ok"`
	Time      string  `json:"time"`
	CommitSHA *string `json:"commitSha"`
}
