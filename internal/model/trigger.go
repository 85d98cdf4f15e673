package model

import (
	"encoding/json"
	"strings"
	"time"
)

type SourceType string

const (
	SourceTypeCron          SourceType = "cron"
	SourceTypeGitHubWebhook SourceType = "github_webhook"
)

type OutputType string

const (
	OutputTypeChangelog    OutputType = "changelog"
	OutputTypeLinkedInPost OutputType = "linkedin_post"
)

// Trigger is an automation rule. SourceConfig and Targets are kept as the
// raw JSON the dashboard wrote; accessors below read the fields the
// workflows rely on and tolerate anything else.
type Trigger struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Name           string          `json:"name"`
	SourceType     SourceType      `json:"sourceType"`
	SourceConfig   json.RawMessage `json:"sourceConfig"`
	Targets        json.RawMessage `json:"targets"`
	OutputType     OutputType      `json:"outputType"`
	Enabled        bool            `json:"enabled"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// DisplayName returns the trimmed trigger name, or fallback when it is blank.
func (t *Trigger) DisplayName(fallback string) string {
	if name := strings.TrimSpace(t.Name); name != "" {
		return name
	}
	return fallback
}

// RepositoryIDs returns the non-empty string entries of targets.repositoryIds.
func (t *Trigger) RepositoryIDs() []string {
	var targets struct {
		RepositoryIDs []any `json:"repositoryIds"`
	}
	if err := json.Unmarshal(t.Targets, &targets); err != nil {
		return nil
	}
	return nonEmptyStrings(targets.RepositoryIDs)
}

// EventTypes returns the non-empty string entries of sourceConfig.eventTypes.
func (t *Trigger) EventTypes() []string {
	var cfg struct {
		EventTypes []any `json:"eventTypes"`
	}
	if err := json.Unmarshal(t.SourceConfig, &cfg); err != nil {
		return nil
	}
	return nonEmptyStrings(cfg.EventTypes)
}

// LookbackDays reads sourceConfig.lookbackDays, clamped to 1..90.
func (t *Trigger) LookbackDays(fallback int) int {
	var cfg struct {
		LookbackDays float64 `json:"lookbackDays"`
	}
	if err := json.Unmarshal(t.SourceConfig, &cfg); err != nil || cfg.LookbackDays < 1 {
		return fallback
	}
	return min(int(cfg.LookbackDays), 90)
}

// ListensTo reports whether the trigger reacts to the given webhook event
// type. A trigger without configured event types listens to releases only.
func (t *Trigger) ListensTo(eventType string) bool {
	types := t.EventTypes()
	if len(types) == 0 {
		return eventType == "release"
	}
	for _, et := range types {
		if et == eventType {
			return true
		}
	}
	return false
}

func nonEmptyStrings(values []any) []string {
	var out []string
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
