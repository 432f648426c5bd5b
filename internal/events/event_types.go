package events

import (
	"time"

	"github.com/spec-kit/intranet/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventResourceCreated EventType = "resource_created"
	EventResourceUpdated EventType = "resource_updated"
	EventResourceDeleted EventType = "resource_deleted"
	EventStatusChanged   EventType = "status_changed"
	EventHistoryAppended EventType = "history_appended"
	EventOperationFailed EventType = "operation_failed"
)

// Event represents something that happened to a resource.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	Kind       domain.Kind `json:"kind"`
	ResourceID int64       `json:"resource_id,omitempty"`
	Actor      string      `json:"actor,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    any         `json:"payload,omitempty"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	From   domain.Status `json:"from"`
	To     domain.Status `json:"to"`
	Action string        `json:"action,omitempty"`
}

// HistoryAppendedPayload payload.
type HistoryAppendedPayload struct {
	Type        domain.HistoryType `json:"type"`
	Description string             `json:"description"`
}

// OperationFailedPayload payload.
type OperationFailedPayload struct {
	Operation    string `json:"operation"`
	Message      string `json:"message"`
	Inconsistent bool   `json:"inconsistent,omitempty"`
}
