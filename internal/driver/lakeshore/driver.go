// internal/driver/lakeshore/driver.go
package lakeshore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tempctl-service/internal/model"
	"tempctl-service/internal/protocol"
	"tempctl-service/internal/utils"
	"tempctl-service/pkg/driver"
)

// celsiusToKelvin converts the CRDG reading to the service unit
const celsiusToKelvin = 273.15

// heaterRangeHigh is the range the driver selects when the heater is enabled
const heaterRangeHigh = 3

// LakeshoreDriver implements driver.ControllerDriver for Lake Shore 331/332
// temperature controllers. The instrument has no remotely drivable autotune,
// so TunePID reports the operation unsupported.
type LakeshoreDriver struct {
	config         *LakeshoreConfig
	protocol       protocol.DeviceProtocol
	logger         *utils.ControllerLogger
	eventHandler   driver.EventHandler
	isConnected    bool
	lastPing       time.Time
	healthMetrics  *driver.HealthMetrics
	mutex          sync.RWMutex
	cmdMutex       sync.Mutex
	controllerInfo *driver.ControllerInfo
}

// LakeshoreConfig represents Lake Shore driver configuration
type LakeshoreConfig struct {
	ControllerID     string                 `json:"controller_id"`
	Model            string                 `json:"model"`
	ConnectionType   model.ConnectionType   `json:"connection_type"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
	CommandTimeout   time.Duration          `json:"command_timeout"`
}

// NewLakeshoreDriver creates a new Lake Shore driver
func NewLakeshoreDriver(controller *model.Controller, connectionConfig interface{}, logger *zap.Logger) (driver.ControllerDriver, error) {
	connConfig, err := parseConnectionConfig(connectionConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid connection configuration: %w", err)
	}

	// The instrument requires 7 data bits with odd parity; fill them in when
	// the stored config doesn't say otherwise
	if _, ok := connConfig["data_bits"]; !ok {
		connConfig["data_bits"] = 7
	}
	if _, ok := connConfig["parity"]; !ok {
		connConfig["parity"] = "odd"
	}

	config := &LakeshoreConfig{
		ControllerID:     controller.ControllerID,
		Model:            controller.Model,
		ConnectionType:   controller.ConnectionType,
		ConnectionConfig: connConfig,
		CommandTimeout:   2 * time.Second,
	}

	if timeout, ok := connConfig["command_timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeout); err == nil {
			config.CommandTimeout = dur
		}
	}

	controllerLogger := utils.NewControllerLogger(logger, controller.ControllerID, string(controller.Brand), controller.Model)

	lsDriver := &LakeshoreDriver{
		config: config,
		logger: controllerLogger,
		healthMetrics: &driver.HealthMetrics{
			HealthScore: 0,
		},
		controllerInfo: &driver.ControllerInfo{
			Brand:          controller.Brand,
			Model:          controller.Model,
			ConnectionType: controller.ConnectionType,
			Capabilities:   lakeshoreCapabilities(),
			Manufacturer:   "Lake Shore Cryotronics",
			Channels:       controller.ChannelNames(),
		},
	}

	protocolInstance, err := protocol.CreateProtocol(
		controller.ConnectionType,
		connConfig,
		controllerLogger.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s transport: %w", controller.ConnectionType, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := protocolInstance.Open(ctx); err != nil {
		controllerLogger.Warn("Driver created without active connection, will retry on first operation", zap.Error(err))
		return lsDriver, nil
	}

	lsDriver.protocol = protocolInstance
	lsDriver.isConnected = true
	lsDriver.lastPing = time.Now()

	return lsDriver, nil
}

// Connect establishes connection to the controller
func (d *LakeshoreDriver) Connect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.isConnected && d.protocol != nil && d.protocol.IsOpen() {
		return nil
	}

	protocolInstance, err := protocol.CreateProtocol(
		d.config.ConnectionType,
		d.config.ConnectionConfig,
		d.logger.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create %s transport: %w", d.config.ConnectionType, err)
	}

	if err := protocolInstance.Open(ctx); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrConnectionFailed, err)
	}

	d.protocol = protocolInstance
	d.isConnected = true
	d.lastPing = time.Now()

	if d.eventHandler != nil {
		d.eventHandler.OnControllerConnected(d.config.ControllerID)
	}

	d.logger.Info("Lake Shore controller connected",
		zap.String("model", d.config.Model),
	)
	return nil
}

// Disconnect closes the connection to the controller
func (d *LakeshoreDriver) Disconnect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.isConnected {
		return nil
	}

	if d.protocol != nil {
		if err := d.protocol.Close(); err != nil {
			d.logger.Error("Failed to close transport", zap.Error(err))
		}
		d.protocol = nil
	}

	d.isConnected = false
	if d.eventHandler != nil {
		d.eventHandler.OnControllerDisconnected(d.config.ControllerID, "manual disconnect")
	}

	return nil
}

// IsConnected returns connection status
func (d *LakeshoreDriver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected && d.protocol != nil && d.protocol.IsOpen()
}

// GetControllerInfo returns controller information
func (d *LakeshoreDriver) GetControllerInfo() (*driver.ControllerInfo, error) {
	return d.controllerInfo, nil
}

// GetCapabilities returns controller capabilities
func (d *LakeshoreDriver) GetCapabilities() []model.Capability {
	return lakeshoreCapabilities()
}

// GetStatus returns current controller status
func (d *LakeshoreDriver) GetStatus() (*driver.ControllerStatus, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	status := model.ControllerStatusOffline
	ready := false
	if d.isConnected {
		status = model.ControllerStatusOnline
		ready = true
	}

	return &driver.ControllerStatus{
		Status:       status,
		IsReady:      ready,
		LastResponse: d.lastPing,
	}, nil
}

// ReadChannel reads the temperature of a sensor input in kelvin
func (d *LakeshoreDriver) ReadChannel(ctx context.Context, channel int) (float64, error) {
	command := readCommand(channel)

	celsius, err := d.queryFloat(ctx, command)
	if err != nil {
		return 0, err
	}

	return celsius + celsiusToKelvin, nil
}

// ReadSetpoint reads the setpoint of a control loop in kelvin
func (d *LakeshoreDriver) ReadSetpoint(ctx context.Context, channel int) (float64, error) {
	return d.queryFloat(ctx, readSetpointCommand(channel))
}

// WriteSetpoint sets the setpoint of a control loop in kelvin
func (d *LakeshoreDriver) WriteSetpoint(ctx context.Context, channel int, setpoint float64) error {
	return d.send(ctx, writeSetpointCommand(channel, setpoint))
}

// EnableHeater selects the high heater range
func (d *LakeshoreDriver) EnableHeater(ctx context.Context) error {
	return d.send(ctx, heaterRangeCommand(heaterRangeHigh))
}

// DisableHeater switches the heater range off
func (d *LakeshoreDriver) DisableHeater(ctx context.Context) error {
	return d.send(ctx, heaterRangeCommand(0))
}

// EnablePID enables closed-loop control by switching the heater range on; the
// 332 runs its control loop whenever a range is selected
func (d *LakeshoreDriver) EnablePID(ctx context.Context, channel int) error {
	return d.EnableHeater(ctx)
}

// DisablePID stops closed-loop control
func (d *LakeshoreDriver) DisablePID(ctx context.Context, channel int) error {
	return d.DisableHeater(ctx)
}

// TunePID is not available over the remote interface on this instrument
func (d *LakeshoreDriver) TunePID(ctx context.Context, channel int, params *driver.TuneParams) (string, error) {
	return "", fmt.Errorf("%w: PID autotune on %s", driver.ErrUnsupportedOp, d.config.Model)
}

// SetAlarm arms the alarm on a sensor input for the given temperature range
func (d *LakeshoreDriver) SetAlarm(ctx context.Context, channel int, minTemp, maxTemp float64) error {
	if minTemp >= maxTemp {
		return fmt.Errorf("alarm range invalid: min %g >= max %g", minTemp, maxTemp)
	}
	return d.send(ctx, setAlarmCommand(channel, minTemp, maxTemp))
}

// ClearAlarm disarms the alarm on a sensor input
func (d *LakeshoreDriver) ClearAlarm(ctx context.Context, channel int) error {
	return d.send(ctx, clearAlarmCommand(channel))
}

// ExecuteOperation executes a control operation
func (d *LakeshoreDriver) ExecuteOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	startTime := time.Now()

	var data map[string]interface{}
	var err error

	switch operation.OperationType {
	case model.OperationTypeReadChannel:
		data, err = d.executeRead(ctx, operation)
	case model.OperationTypeReadSetpoint:
		data, err = d.executeReadSetpoint(ctx, operation)
	case model.OperationTypeWriteSetpoint:
		data, err = d.executeWriteSetpoint(ctx, operation)
	case model.OperationTypeHeaterEnable:
		err = d.EnableHeater(ctx)
		data = map[string]interface{}{"heater_enabled": true}
	case model.OperationTypeHeaterDisable:
		err = d.DisableHeater(ctx)
		data = map[string]interface{}{"heater_enabled": false}
	case model.OperationTypeAlarmSet:
		data, err = d.executeAlarmSet(ctx, operation)
	case model.OperationTypeAlarmClear:
		data, err = d.executeAlarmClear(ctx, operation)
	case model.OperationTypeStatusCheck:
		data, err = d.executeStatusCheck(ctx)
	case model.OperationTypePIDTune:
		return nil, fmt.Errorf("%w: PID autotune on %s", driver.ErrUnsupportedOp, d.config.Model)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", operation.OperationType)
	}

	duration := time.Since(startTime)

	if err != nil {
		d.updateHealthMetrics(false, duration)
		return nil, err
	}

	d.updateHealthMetrics(true, duration)

	result := &driver.OperationResult{
		Success:   true,
		Data:      data,
		Duration:  duration.String(),
		Timestamp: time.Now(),
	}

	if d.eventHandler != nil {
		d.eventHandler.OnOperationCompleted(d.config.ControllerID, operation.ID.String(), result)
	}

	return result, nil
}

// Ping tests controller connectivity by querying the identity string
func (d *LakeshoreDriver) Ping(ctx context.Context) error {
	if !d.IsConnected() {
		return driver.ErrNotConnected
	}

	if _, err := d.query(ctx, cmdIdentify); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	d.mutex.Lock()
	d.lastPing = time.Now()
	d.mutex.Unlock()
	return nil
}

// GetHealthMetrics returns health metrics
func (d *LakeshoreDriver) GetHealthMetrics() (*driver.HealthMetrics, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	metrics := *d.healthMetrics
	return &metrics, nil
}

// SetEventHandler sets the event handler
func (d *LakeshoreDriver) SetEventHandler(handler driver.EventHandler) {
	d.eventHandler = handler
}

// Close cleans up resources
func (d *LakeshoreDriver) Close() error {
	return d.Disconnect(context.Background())
}

// Command exchange. Queries produce a CRLF-terminated reply line; plain
// commands produce none, so send returns after the write.

func (d *LakeshoreDriver) query(ctx context.Context, command string) (string, error) {
	d.cmdMutex.Lock()
	defer d.cmdMutex.Unlock()

	proto := d.transport()
	if proto == nil {
		return "", driver.ErrNotConnected
	}

	if err := proto.Write(ctx, []byte(command+commandTerminator)); err != nil {
		return "", fmt.Errorf("write %q: %w", command, err)
	}

	reply, err := protocol.ReadLine(ctx, proto, replyTerminator, d.config.CommandTimeout)
	if err != nil {
		var timeoutErr *driver.TimeoutError
		if errors.As(err, &timeoutErr) {
			timeoutErr.Command = command
		}
		return "", err
	}

	d.mutex.Lock()
	d.lastPing = time.Now()
	d.mutex.Unlock()

	return reply, nil
}

func (d *LakeshoreDriver) send(ctx context.Context, command string) error {
	d.cmdMutex.Lock()
	defer d.cmdMutex.Unlock()

	proto := d.transport()
	if proto == nil {
		return driver.ErrNotConnected
	}

	if err := proto.Write(ctx, []byte(command+commandTerminator)); err != nil {
		return fmt.Errorf("write %q: %w", command, err)
	}
	return nil
}

func (d *LakeshoreDriver) queryFloat(ctx context.Context, command string) (float64, error) {
	reply, err := d.query(ctx, command)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, &driver.ParseError{
			Command: command,
			Reply:   reply,
			Want:    "numeric value",
		}
	}
	return value, nil
}

func (d *LakeshoreDriver) transport() protocol.DeviceProtocol {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if !d.isConnected || d.protocol == nil || !d.protocol.IsOpen() {
		return nil
	}
	return d.protocol
}

// Operation handlers

func (d *LakeshoreDriver) executeRead(ctx context.Context, operation *model.ControlOperation) (map[string]interface{}, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	value, err := d.ReadChannel(ctx, channel)
	if err != nil {
		return nil, err
	}

	if d.eventHandler != nil {
		d.eventHandler.OnReadingTaken(d.config.ControllerID, channelLetter(channel), value)
	}

	return map[string]interface{}{
		"channel": channelLetter(channel),
		"value":   value,
		"unit":    model.UnitKelvin,
	}, nil
}

func (d *LakeshoreDriver) executeReadSetpoint(ctx context.Context, operation *model.ControlOperation) (map[string]interface{}, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	value, err := d.ReadSetpoint(ctx, channel)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"channel":  channel,
		"setpoint": value,
		"unit":     model.UnitKelvin,
	}, nil
}

func (d *LakeshoreDriver) executeWriteSetpoint(ctx context.Context, operation *model.ControlOperation) (map[string]interface{}, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	setpoint, ok := operation.OperationData["setpoint"].(float64)
	if !ok {
		return nil, fmt.Errorf("setpoint is required")
	}

	if err := d.WriteSetpoint(ctx, channel, setpoint); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"channel":  channel,
		"setpoint": setpoint,
		"unit":     model.UnitKelvin,
	}, nil
}

func (d *LakeshoreDriver) executeAlarmSet(ctx context.Context, operation *model.ControlOperation) (map[string]interface{}, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	minTemp, okMin := operation.OperationData["min_temp"].(float64)
	maxTemp, okMax := operation.OperationData["max_temp"].(float64)
	if !okMin || !okMax {
		return nil, fmt.Errorf("min_temp and max_temp are required")
	}

	if err := d.SetAlarm(ctx, channel, minTemp, maxTemp); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"channel":  channelLetter(channel),
		"armed":    true,
		"min_temp": minTemp,
		"max_temp": maxTemp,
	}, nil
}

func (d *LakeshoreDriver) executeAlarmClear(ctx context.Context, operation *model.ControlOperation) (map[string]interface{}, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	if err := d.ClearAlarm(ctx, channel); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"channel": channelLetter(channel),
		"armed":   false,
	}, nil
}

func (d *LakeshoreDriver) executeStatusCheck(ctx context.Context) (map[string]interface{}, error) {
	status, err := d.GetStatus()
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"status":          status,
		"connection_type": d.config.ConnectionType,
		"model":           d.config.Model,
		"capabilities":    d.GetCapabilities(),
	}

	if identity, err := d.query(ctx, cmdIdentify); err == nil {
		data["identity"] = strings.TrimSpace(identity)
	}

	return data, nil
}

// Helpers

func (d *LakeshoreDriver) updateHealthMetrics(success bool, responseTime time.Duration) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.healthMetrics.TotalOperations++
	d.healthMetrics.ResponseTime = responseTime

	now := time.Now()
	if success {
		d.healthMetrics.LastSuccessTime = &now
	} else {
		d.healthMetrics.ErrorCount++
		d.healthMetrics.LastErrorTime = &now
	}
	d.healthMetrics.SuccessRate = float64(d.healthMetrics.TotalOperations-d.healthMetrics.ErrorCount) / float64(d.healthMetrics.TotalOperations)
	d.healthMetrics.HealthScore = int(d.healthMetrics.SuccessRate * 100)
}

func lakeshoreCapabilities() []model.Capability {
	return []model.Capability{
		model.CapabilityRead,
		model.CapabilitySetpoint,
		model.CapabilityHeater,
		model.CapabilityAlarm,
		model.CapabilityStatus,
	}
}

func parseConnectionConfig(config interface{}) (map[string]interface{}, error) {
	var configMap map[string]interface{}

	switch v := config.(type) {
	case map[string]interface{}:
		configMap = v
	case model.JSONObject:
		configMap = map[string]interface{}(v)
	case *model.JSONObject:
		if v != nil {
			configMap = map[string]interface{}(*v)
		} else {
			return nil, fmt.Errorf("config is nil")
		}
	default:
		return nil, fmt.Errorf("invalid config type: %T", config)
	}

	if configMap == nil {
		return nil, fmt.Errorf("config map is nil")
	}

	return configMap, nil
}

func channelFromData(data model.JSONObject) (int, error) {
	raw, ok := data["channel"]
	if !ok {
		return 0, fmt.Errorf("channel is required")
	}

	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
		// Accept the instrument's A/B letters too
		if len(v) == 1 && v[0] >= 'A' && v[0] <= 'Z' {
			return int(v[0]-'A') + 1, nil
		}
		return 0, fmt.Errorf("invalid channel: %q", v)
	default:
		return 0, fmt.Errorf("invalid channel type: %T", raw)
	}
}
