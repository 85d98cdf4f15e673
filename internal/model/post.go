package model

import "time"

type PostStatus string

const PostStatusDraft PostStatus = "draft"

type Post struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Title          string          `json:"title"`
	Markdown       string          `json:"markdown"`
	Content        string          `json:"content"`
	ContentType    OutputType      `json:"contentType"`
	SourceMetadata *SourceMetadata `json:"sourceMetadata,omitempty"`
	Status         PostStatus      `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// SourceMetadata records what produced a post.
type SourceMetadata struct {
	TriggerID         string               `json:"triggerId"`
	TriggerSourceType SourceType           `json:"triggerSourceType"`
	EventType         string               `json:"eventType,omitempty"`
	EventAction       string               `json:"eventAction,omitempty"`
	Repositories      []RepositoryRef      `json:"repositories"`
	LookbackWindow    *LookbackWindowRange `json:"lookbackWindow,omitempty"`
}

type RepositoryRef struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

type LookbackWindowRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
