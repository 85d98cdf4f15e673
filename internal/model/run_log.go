package model

import (
	"encoding/json"
	"time"
)

type IntegrationType string

const (
	IntegrationTypeWebhook IntegrationType = "webhook"
	IntegrationTypeManual  IntegrationType = "manual"
)

type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusFailed  LogStatus = "failed"
)

// RunLogEntry is one row of the organization's automation audit log.
type RunLogEntry struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organizationId"`
	IntegrationID   string          `json:"integrationId"`
	IntegrationType IntegrationType `json:"integrationType"`
	Title           string          `json:"title"`
	Status          LogStatus       `json:"status"`
	StatusCode      *int32          `json:"statusCode"`
	ErrorMessage    *string         `json:"errorMessage"`
	ReferenceID     *string         `json:"referenceId"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	RetentionDays   int             `json:"retentionDays"`
	CreatedAt       time.Time       `json:"createdAt"`
	ExpiresAt       time.Time       `json:"expiresAt"`
}
