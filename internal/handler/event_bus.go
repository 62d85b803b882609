// internal/handler/event_bus.go
package handler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"tempctl-service/internal/model"
	"tempctl-service/pkg/driver"
)

// EventBus manages event distribution
type EventBus struct {
	subscribers map[string][]chan Event
	events      chan Event
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// Event represents a system event
type Event struct {
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		events:      make(chan Event, 1000),
	}
}

// Start starts the event bus
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distributeEvent(event)
	}
}

// Publish publishes an event
func (eb *EventBus) Publish(event Event) {
	select {
	case eb.events <- event:
	default:
		// Event bus is full, log warning
		if eb.logger != nil {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", event.Type),
			)
		}
	}
}

// Subscribe subscribes to events of a specific type
func (eb *EventBus) Subscribe(eventType string) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	subscribers := eb.subscribers[event.Type]
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// ControllerEventHandler bridges driver events to WebSocket broadcasts
type ControllerEventHandler struct {
	websocketHandler *WebSocketHandler
	logger           *zap.Logger
}

// NewControllerEventHandler creates a new controller event handler
func NewControllerEventHandler(websocketHandler *WebSocketHandler, logger *zap.Logger) *ControllerEventHandler {
	return &ControllerEventHandler{
		websocketHandler: websocketHandler,
		logger:           logger,
	}
}

// OnControllerConnected handles controller connected events
func (ceh *ControllerEventHandler) OnControllerConnected(controllerID string) {
	ceh.websocketHandler.BroadcastControllerEvent(controllerID, "connected", map[string]interface{}{
		"status":  "online",
		"message": "Controller connected successfully",
	})

	ceh.logger.Info("Controller connected event broadcasted", zap.String("controller_id", controllerID))
}

// OnControllerDisconnected handles controller disconnected events
func (ceh *ControllerEventHandler) OnControllerDisconnected(controllerID string, reason string) {
	ceh.websocketHandler.BroadcastControllerEvent(controllerID, "disconnected", map[string]interface{}{
		"status": "offline",
		"reason": reason,
	})

	ceh.logger.Info("Controller disconnected event broadcasted",
		zap.String("controller_id", controllerID),
		zap.String("reason", reason),
	)
}

// OnControllerError handles controller error events
func (ceh *ControllerEventHandler) OnControllerError(controllerID string, err error) {
	ceh.websocketHandler.BroadcastControllerEvent(controllerID, "error", map[string]interface{}{
		"status": "error",
		"error":  err.Error(),
	})

	ceh.logger.Error("Controller error event broadcasted",
		zap.String("controller_id", controllerID),
		zap.Error(err),
	)
}

// OnOperationCompleted handles operation completed events
func (ceh *ControllerEventHandler) OnOperationCompleted(controllerID string, operationID string, result *driver.OperationResult) {
	data := map[string]interface{}{}
	if result != nil {
		data["success"] = result.Success
		if result.ErrorMessage != "" {
			data["error"] = result.ErrorMessage
		}
	}
	ceh.websocketHandler.BroadcastOperationEvent(operationID, controllerID, "completed", data)

	ceh.logger.Info("Operation completed event broadcasted",
		zap.String("controller_id", controllerID),
		zap.String("operation_id", operationID),
	)
}

// OnStatusChanged handles controller status change events
func (ceh *ControllerEventHandler) OnStatusChanged(controllerID string, oldStatus, newStatus model.ControllerStatus) {
	ceh.websocketHandler.BroadcastControllerEvent(controllerID, "status_changed", map[string]interface{}{
		"old_status": oldStatus,
		"new_status": newStatus,
	})

	ceh.logger.Info("Controller status change event broadcasted",
		zap.String("controller_id", controllerID),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(newStatus)),
	)
}

// OnReadingTaken handles new temperature readings
func (ceh *ControllerEventHandler) OnReadingTaken(controllerID string, channel string, value float64) {
	ceh.websocketHandler.BroadcastReading(controllerID, channel, value)
}
