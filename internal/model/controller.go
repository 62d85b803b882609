// internal/model/controller.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ControllerStatus represents the current status of a controller
type ControllerStatus string

const (
	ControllerStatusOnline      ControllerStatus = "ONLINE"
	ControllerStatusOffline     ControllerStatus = "OFFLINE"
	ControllerStatusError       ControllerStatus = "ERROR"
	ControllerStatusMaintenance ControllerStatus = "MAINTENANCE"
	ControllerStatusConnecting  ControllerStatus = "CONNECTING"
)

// ConnectionType represents how the controller is connected
type ConnectionType string

const (
	ConnectionTypeSerial ConnectionType = "SERIAL"
	// USB-attached controllers enumerate as CDC-ACM serial devices, so USB
	// resolves to the serial transport with a /dev/ttyACM* device path.
	ConnectionTypeUSB ConnectionType = "USB"
	ConnectionTypeTCP ConnectionType = "TCP"
)

// ControllerBrand represents supported controller brands
type ControllerBrand string

const (
	BrandSRS       ControllerBrand = "SRS"
	BrandLakeshore ControllerBrand = "LAKESHORE"
	BrandGeneric   ControllerBrand = "GENERIC"
)

// Capability represents what a controller can do
type Capability string

const (
	CapabilityRead     Capability = "READ"
	CapabilitySetpoint Capability = "SETPOINT"
	CapabilityHeater   Capability = "HEATER"
	CapabilityPIDTune  Capability = "PID_TUNE"
	CapabilityAlarm    Capability = "ALARM"
	CapabilityStatus   Capability = "STATUS"
)

// JSONArray type for PostgreSQL JSONB arrays
type JSONArray []interface{}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Controller represents a physical temperature controller in the system
type Controller struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	ControllerID     string           `json:"controller_id" db:"controller_id"`
	Brand            ControllerBrand  `json:"brand" db:"brand"`
	Model            string           `json:"model" db:"model"`
	FirmwareVersion  *string          `json:"firmware_version" db:"firmware_version"`
	ConnectionType   ConnectionType   `json:"connection_type" db:"connection_type"`
	ConnectionConfig JSONObject       `json:"connection_config" db:"connection_config"`
	Capabilities     JSONArray        `json:"capabilities" db:"capabilities"`
	Channels         JSONArray        `json:"channels" db:"channels"`
	Location         *string          `json:"location" db:"location"`
	Status           ControllerStatus `json:"status" db:"status"`
	LastPing         *time.Time       `json:"last_ping" db:"last_ping"`
	ErrorInfo        JSONObject       `json:"error_info" db:"error_info"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// HasCapability checks if the controller has a specific capability
func (c *Controller) HasCapability(capability Capability) bool {
	for _, cap := range c.Capabilities {
		if cap == string(capability) {
			return true
		}
	}
	return false
}

// HasChannel checks if a channel name is part of the configured channel list
func (c *Controller) HasChannel(channel string) bool {
	for _, ch := range c.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// ChannelNames returns the configured channel list as strings
func (c *Controller) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for _, ch := range c.Channels {
		if name, ok := ch.(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// IsOnline checks if the controller is currently online
func (c *Controller) IsOnline() bool {
	return c.Status == ControllerStatusOnline
}

// ConnectionConfig structures for the supported connection types

type SerialConfig struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

type TCPConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ControllerHealth represents controller health metrics
type ControllerHealth struct {
	ControllerID  uuid.UUID  `json:"controller_id" db:"controller_id"`
	HealthScore   int        `json:"health_score" db:"health_score"`
	ResponseTime  *int       `json:"response_time" db:"response_time"`
	ErrorRate     *float64   `json:"error_rate" db:"error_rate"`
	Uptime        *float64   `json:"uptime" db:"uptime"`
	LastErrorTime *time.Time `json:"last_error_time" db:"last_error_time"`
	RecordedAt    time.Time  `json:"recorded_at" db:"recorded_at"`
}

// ErrorInfo structure stored in the controllers table
type ErrorInfo struct {
	LastError     *string    `json:"last_error,omitempty"`
	ErrorCode     *string    `json:"error_code,omitempty"`
	ErrorTime     *time.Time `json:"error_time,omitempty"`
	ErrorCount    int        `json:"error_count"`
	CriticalError bool       `json:"critical_error"`
}
