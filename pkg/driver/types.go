// pkg/driver/types.go
package driver

import (
	"time"

	"tempctl-service/internal/model"
)

// Core data structures

// ControllerInfo contains basic controller information
type ControllerInfo struct {
	Brand           model.ControllerBrand `json:"brand"`
	Model           string                `json:"model"`
	SerialNumber    string                `json:"serial_number"`
	FirmwareVersion string                `json:"firmware_version"`
	Capabilities    []model.Capability    `json:"capabilities"`
	ConnectionType  model.ConnectionType  `json:"connection_type"`
	Manufacturer    string                `json:"manufacturer"`
	Channels        []string              `json:"channels"`
}

// ControllerStatus represents current controller status
type ControllerStatus struct {
	Status        model.ControllerStatus `json:"status"`
	IsReady       bool                   `json:"is_ready"`
	HasError      bool                   `json:"has_error"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	LastResponse  time.Time              `json:"last_response"`
	HeaterEnabled *bool                  `json:"heater_enabled,omitempty"`
}

// TuneParams holds the arguments for a PID autotune run. StepPower is the
// output step in watts; LagSeconds is how long the loop waits for the plant
// to respond before checking the tune outcome.
type TuneParams struct {
	StepPower  float64 `json:"step_power"`
	LagSeconds int     `json:"lag_seconds"`
}

// OperationResult represents the result of a controller operation
type OperationResult struct {
	Success      bool                   `json:"success"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Duration     string                 `json:"duration"`
	Timestamp    time.Time              `json:"timestamp"`
}

// HealthMetrics contains controller health information
type HealthMetrics struct {
	HealthScore     int           `json:"health_score"` // 0-100
	ResponseTime    time.Duration `json:"response_time"`
	SuccessRate     float64       `json:"success_rate"` // 0.0-1.0
	ErrorCount      int64         `json:"error_count"`
	TotalOperations int64         `json:"total_operations"`
	UptimePercent   float64       `json:"uptime_percent"`
	LastErrorTime   *time.Time    `json:"last_error_time,omitempty"`
	LastSuccessTime *time.Time    `json:"last_success_time,omitempty"`
}

// EventHandler handles controller events
type EventHandler interface {
	OnControllerConnected(controllerID string)
	OnControllerDisconnected(controllerID string, reason string)
	OnControllerError(controllerID string, err error)
	OnOperationCompleted(controllerID string, operationID string, result *OperationResult)
	OnStatusChanged(controllerID string, oldStatus, newStatus model.ControllerStatus)
	OnReadingTaken(controllerID string, channel string, value float64)
}
