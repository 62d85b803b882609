// internal/model/operation.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationType represents the type of control operation
type OperationType string

const (
	OperationTypeReadChannel   OperationType = "READ_CHANNEL"
	OperationTypeReadSetpoint  OperationType = "READ_SETPOINT"
	OperationTypeWriteSetpoint OperationType = "WRITE_SETPOINT"
	OperationTypeHeaterEnable  OperationType = "HEATER_ENABLE"
	OperationTypeHeaterDisable OperationType = "HEATER_DISABLE"
	OperationTypePIDEnable     OperationType = "PID_ENABLE"
	OperationTypePIDDisable    OperationType = "PID_DISABLE"
	OperationTypePIDTune       OperationType = "PID_TUNE"
	OperationTypeAlarmSet      OperationType = "ALARM_SET"
	OperationTypeAlarmClear    OperationType = "ALARM_CLEAR"
	OperationTypeStatusCheck   OperationType = "STATUS_CHECK"
)

// OperationStatus represents the status of an operation
type OperationStatus string

const (
	OperationStatusPending    OperationStatus = "PENDING"
	OperationStatusProcessing OperationStatus = "PROCESSING"
	OperationStatusSuccess    OperationStatus = "SUCCESS"
	OperationStatusFailed     OperationStatus = "FAILED"
	OperationStatusTimeout    OperationStatus = "TIMEOUT"
	OperationStatusCancelled  OperationStatus = "CANCELLED"
)

// OperationPriority represents operation priority
type OperationPriority int

const (
	PriorityCritical   OperationPriority = 1 // heater disable, alarm handling
	PriorityHigh       OperationPriority = 2 // setpoint writes, PID mode changes
	PriorityNormal     OperationPriority = 3 // channel reads, status checks
	PriorityBackground OperationPriority = 4 // scheduled polling, PID tuning
)

// ControlOperation represents an operation performed on a controller
type ControlOperation struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	ControllerID  uuid.UUID         `json:"controller_id" db:"controller_id"`
	OperationType OperationType     `json:"operation_type" db:"operation_type"`
	OperationData JSONObject        `json:"operation_data" db:"operation_data"`
	Priority      OperationPriority `json:"priority" db:"priority"`
	Status        OperationStatus   `json:"status" db:"status"`
	StartedAt     time.Time         `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time        `json:"completed_at" db:"completed_at"`
	DurationMs    *int              `json:"duration_ms" db:"duration_ms"`
	ErrorMessage  *string           `json:"error_message" db:"error_message"`
	CorrelationID *uuid.UUID        `json:"correlation_id" db:"correlation_id"`
	Result        JSONObject        `json:"result" db:"result"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}

// IsCompleted checks if the operation reached a terminal state
func (op *ControlOperation) IsCompleted() bool {
	return op.Status == OperationStatusSuccess ||
		op.Status == OperationStatusFailed ||
		op.Status == OperationStatusTimeout ||
		op.Status == OperationStatusCancelled
}

// IsCritical checks if the operation has critical priority
func (op *ControlOperation) IsCritical() bool {
	return op.Priority <= PriorityHigh
}

// Operation data structures for the different operation types.
// Temperature values travel as decimals so persisted operation data stays
// exact; drivers convert to float64 at the wire.

// ReadOperationData represents a channel read request
type ReadOperationData struct {
	Channel string `json:"channel"`
}

// SetpointOperationData represents a setpoint read or write request
type SetpointOperationData struct {
	Channel  string          `json:"channel"`
	Setpoint decimal.Decimal `json:"setpoint"`
}

// PIDOperationData represents a PID loop mode change
type PIDOperationData struct {
	Channel string `json:"channel"`
}

// TuneOperationData represents a PID tuning request. StepPower is the power
// (in watts) the heater applies during the tune, LagSeconds how long it stays
// on. The sample temperature should be stable before tuning.
type TuneOperationData struct {
	Channel    string          `json:"channel"`
	StepPower  decimal.Decimal `json:"step_power"`
	LagSeconds int             `json:"lag_seconds"`
}

// AlarmOperationData represents an alarm configuration request
type AlarmOperationData struct {
	Channel string          `json:"channel"`
	MinTemp decimal.Decimal `json:"min_temp"`
	MaxTemp decimal.Decimal `json:"max_temp"`
}
