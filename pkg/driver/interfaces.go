// pkg/driver/interfaces.go
package driver

import (
	"context"

	"tempctl-service/internal/model"
)

// ControllerDriver is the main interface that all temperature controller
// drivers must implement
type ControllerDriver interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Controller information
	GetControllerInfo() (*ControllerInfo, error)
	GetCapabilities() []model.Capability
	GetStatus() (*ControllerStatus, error)

	// Temperature operations
	ReadChannel(ctx context.Context, channel int) (float64, error)
	ReadSetpoint(ctx context.Context, channel int) (float64, error)
	WriteSetpoint(ctx context.Context, channel int, setpoint float64) error

	// Heater control
	EnableHeater(ctx context.Context) error
	DisableHeater(ctx context.Context) error

	// PID loop control
	EnablePID(ctx context.Context, channel int) error
	DisablePID(ctx context.Context, channel int) error
	TunePID(ctx context.Context, channel int, params *TuneParams) (string, error)

	// Alarm management
	SetAlarm(ctx context.Context, channel int, minTemp, maxTemp float64) error
	ClearAlarm(ctx context.Context, channel int) error

	// Generic operation dispatch
	ExecuteOperation(ctx context.Context, operation *model.ControlOperation) (*OperationResult, error)

	// Health and monitoring
	Ping(ctx context.Context) error
	GetHealthMetrics() (*HealthMetrics, error)

	// Event handling
	SetEventHandler(handler EventHandler)

	// Cleanup
	Close() error
}
