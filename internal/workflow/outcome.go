package workflow

type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeCanceled is a deliberate stop. It is final and never retried.
	OutcomeCanceled OutcomeStatus = "canceled"
)

type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Result any           `json:"result,omitempty"`
}

func Cancel(reason string) Outcome {
	return Outcome{Status: OutcomeCanceled, Reason: reason}
}

func Complete(result any) Outcome {
	return Outcome{Status: OutcomeCompleted, Result: result}
}

// GenerationStatus tags a GenerationResult.
type GenerationStatus string

const (
	GenerationOK          GenerationStatus = "ok"
	GenerationFailed      GenerationStatus = "generation_failed"
	GenerationUnsupported GenerationStatus = "unsupported_output_type"
)

// GenerationResult is the stored outcome of generate-content. Which fields
// are set depends on Status.
type GenerationResult struct {
	Status     GenerationStatus `json:"status"`
	PostID     string           `json:"postId,omitempty"`
	Title      string           `json:"title,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	OutputType string           `json:"outputType,omitempty"`
}

// EventResult is what a completed event run returns.
type EventResult struct {
	Success   bool   `json:"success"`
	TriggerID string `json:"triggerId"`
	PostID    string `json:"postId"`
	EventType string `json:"eventType"`
}

// ScheduleResult is what a completed schedule run returns.
type ScheduleResult struct {
	Success      bool   `json:"success"`
	TriggerID    string `json:"triggerId"`
	PostID       string `json:"postId"`
	LookbackDays int    `json:"lookbackDays"`
}
