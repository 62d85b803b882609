// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventControllerConnected    EventType = "CONTROLLER_CONNECTED"
	EventControllerDisconnected EventType = "CONTROLLER_DISCONNECTED"
	EventControllerError        EventType = "CONTROLLER_ERROR"
	EventOperationStarted       EventType = "OPERATION_STARTED"
	EventOperationCompleted     EventType = "OPERATION_COMPLETED"
	EventOperationFailed        EventType = "OPERATION_FAILED"
	EventReadingTaken           EventType = "READING_TAKEN"
	EventAlarmTriggered         EventType = "ALARM_TRIGGERED"
	EventStatusChange           EventType = "STATUS_CHANGE"
)

// ControllerEvent represents an event in the system
type ControllerEvent struct {
	ID           uuid.UUID  `json:"id"`
	EventType    EventType  `json:"event_type"`
	ControllerID uuid.UUID  `json:"controller_id"`
	Data         JSONObject `json:"data"`
	Timestamp    time.Time  `json:"timestamp"`
	Source       string     `json:"source"`
	Severity     string     `json:"severity"` // INFO, WARNING, ERROR, CRITICAL
}

// OperationEventData represents operation-related events
type OperationEventData struct {
	OperationID   uuid.UUID       `json:"operation_id"`
	OperationType OperationType   `json:"operation_type"`
	Status        OperationStatus `json:"status"`
	Duration      *int            `json:"duration_ms,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
}

// ReadingEventData represents a sampled value pushed to subscribers
type ReadingEventData struct {
	Channel string    `json:"channel"`
	Value   float64   `json:"value"`
	Unit    string    `json:"unit"`
	TakenAt time.Time `json:"taken_at"`
}
