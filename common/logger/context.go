package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// A workflow run sets RunID and TriggerID once; every step, tool call and
// notification logged below it inherits them.
type LogFields struct {
	RunID          *string // Workflow run ID (wfr_...)
	TriggerID      *string // Content trigger ID
	OrganizationID *string // Owning organization
	Workflow       *string // "event" or "schedule"
	Step           *string // Durable step name, e.g. "reserve-ai-credit"
	MessageID      *string // Redis stream message ID
	Component      string  // Component name, e.g. "notra.workflow.event"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.RunID != nil {
		result.RunID = next.RunID
	}
	if next.TriggerID != nil {
		result.TriggerID = next.TriggerID
	}
	if next.OrganizationID != nil {
		result.OrganizationID = next.OrganizationID
	}
	if next.Workflow != nil {
		result.Workflow = next.Workflow
	}
	if next.Step != nil {
		result.Step = next.Step
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

func (f LogFields) attrs() []slog.Attr {
	var attrs []slog.Attr
	add := func(key string, v *string) {
		if v != nil {
			attrs = append(attrs, slog.String(key, *v))
		}
	}

	add("run_id", f.RunID)
	add("trigger_id", f.TriggerID)
	add("organization_id", f.OrganizationID)
	add("workflow", f.Workflow)
	add("step", f.Step)
	add("message_id", f.MessageID)
	if f.Component != "" {
		attrs = append(attrs, slog.String("component", f.Component))
	}

	return attrs
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
