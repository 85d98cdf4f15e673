package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPayload = errors.New("invalid workflow payload")

// EventPayload starts an event run. EventData is untrusted.
type EventPayload struct {
	TriggerID    string         `json:"triggerId"`
	EventType    string         `json:"eventType"`
	EventAction  string         `json:"eventAction"`
	EventData    map[string]any `json:"eventData"`
	RepositoryID string         `json:"repositoryId"`
	DeliveryID   string         `json:"deliveryId,omitempty"`
}

type SchedulePayload struct {
	TriggerID string `json:"triggerId"`
	Manual    bool   `json:"manual"`
}

func ParseEventPayload(raw []byte) (EventPayload, error) {
	var wire struct {
		TriggerID    string          `json:"triggerId"`
		EventType    string          `json:"eventType"`
		EventAction  *string         `json:"eventAction"`
		EventData    json.RawMessage `json:"eventData"`
		RepositoryID string          `json:"repositoryId"`
		DeliveryID   string          `json:"deliveryId"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return EventPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var problems []string
	if strings.TrimSpace(wire.TriggerID) == "" {
		problems = append(problems, "triggerId is required")
	}
	if strings.TrimSpace(wire.EventType) == "" {
		problems = append(problems, "eventType is required")
	}
	if wire.EventAction == nil {
		problems = append(problems, "eventAction is required")
	}
	if strings.TrimSpace(wire.RepositoryID) == "" {
		problems = append(problems, "repositoryId is required")
	}
	var data map[string]any
	if err := json.Unmarshal(wire.EventData, &data); err != nil || data == nil {
		problems = append(problems, "eventData must be an object")
	}
	if len(problems) > 0 {
		return EventPayload{}, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(problems, "; "))
	}

	return EventPayload{
		TriggerID:    wire.TriggerID,
		EventType:    wire.EventType,
		EventAction:  *wire.EventAction,
		EventData:    data,
		RepositoryID: wire.RepositoryID,
		DeliveryID:   wire.DeliveryID,
	}, nil
}

func ParseSchedulePayload(raw []byte) (SchedulePayload, error) {
	var p SchedulePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return SchedulePayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(p.TriggerID) == "" {
		return SchedulePayload{}, fmt.Errorf("%w: triggerId is required", ErrInvalidPayload)
	}
	return p, nil
}
