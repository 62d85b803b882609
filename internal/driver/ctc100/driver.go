// internal/driver/ctc100/driver.go
package ctc100

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"tempctl-service/internal/model"
	"tempctl-service/internal/protocol"
	"tempctl-service/internal/utils"
	"tempctl-service/pkg/driver"
)

// tuneSuccessMessage is returned by TunePID when the controller reports the
// autotune converged and the PID parameters were updated.
const tuneSuccessMessage = "PID tuning succeeded, parameters updated"

// CTC100Driver implements driver.ControllerDriver for the SRS CTC100
// programmable temperature controller
type CTC100Driver struct {
	config         *CTC100Config
	protocol       protocol.DeviceProtocol
	logger         *utils.ControllerLogger
	eventHandler   driver.EventHandler
	isConnected    bool
	lastPing       time.Time
	healthMetrics  *driver.HealthMetrics
	mutex          sync.RWMutex
	cmdMutex       sync.Mutex // serializes command/reply exchanges
	controllerInfo *driver.ControllerInfo
}

// CTC100Config represents CTC100 driver configuration
type CTC100Config struct {
	ControllerID     string                 `json:"controller_id"`
	Model            string                 `json:"model"`
	ConnectionType   model.ConnectionType   `json:"connection_type"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
	CommandTimeout   time.Duration          `json:"command_timeout"`
	Channels         []string               `json:"channels"`
}

// NewCTC100Driver creates a new CTC100 driver
func NewCTC100Driver(controller *model.Controller, connectionConfig interface{}, logger *zap.Logger) (driver.ControllerDriver, error) {
	connConfig, err := parseConnectionConfig(connectionConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid connection configuration: %w", err)
	}

	config := &CTC100Config{
		ControllerID:     controller.ControllerID,
		Model:            controller.Model,
		ConnectionType:   controller.ConnectionType,
		ConnectionConfig: connConfig,
		CommandTimeout:   2 * time.Second,
		Channels:         controller.ChannelNames(),
	}

	if timeout, ok := connConfig["command_timeout"].(string); ok {
		if dur, err := time.ParseDuration(timeout); err == nil {
			config.CommandTimeout = dur
		}
	}

	controllerLogger := utils.NewControllerLogger(logger, controller.ControllerID, string(controller.Brand), controller.Model)

	ctcDriver := &CTC100Driver{
		config: config,
		logger: controllerLogger,
		healthMetrics: &driver.HealthMetrics{
			HealthScore: 0,
		},
		controllerInfo: &driver.ControllerInfo{
			Brand:          controller.Brand,
			Model:          controller.Model,
			ConnectionType: controller.ConnectionType,
			Capabilities:   ctc100Capabilities(),
			Manufacturer:   "Stanford Research Systems",
			Channels:       config.Channels,
		},
		isConnected: false,
	}

	controllerLogger.Info("Creating transport during driver initialization",
		zap.String("connection_type", string(controller.ConnectionType)),
	)

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
		controllerLogger.Error("Failed to open transport during driver creation", zap.Error(err))
		// Keep the driver; Connect retries on first use
		ctcDriver.protocol = nil
		ctcDriver.isConnected = false
		controllerLogger.Warn("Driver created without active connection, will retry on first operation")
		return ctcDriver, nil
	}

	ctcDriver.protocol = protocolInstance
	ctcDriver.isConnected = true
	ctcDriver.lastPing = time.Now()

	controllerLogger.Info("CTC100 driver created with active connection",
		zap.String("connection_type", string(controller.ConnectionType)),
		zap.Bool("transport_open", protocolInstance.IsOpen()),
	)

	return ctcDriver, nil
}

// Connect establishes connection to the controller
func (d *CTC100Driver) Connect(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.isConnected && d.protocol != nil && d.protocol.IsOpen() {
		return nil
	}

	startTime := time.Now()

	protocolInstance, err := protocol.CreateProtocol(
		d.config.ConnectionType,
		d.config.ConnectionConfig,
		d.logger.Logger,
	)
	if err != nil {
		d.updateHealthMetrics(false, time.Since(startTime), err)
		return fmt.Errorf("failed to create %s transport: %w", d.config.ConnectionType, err)
	}

	if err := protocolInstance.Open(ctx); err != nil {
		d.updateHealthMetrics(false, time.Since(startTime), err)
		return fmt.Errorf("%w: %v", driver.ErrConnectionFailed, err)
	}

	d.protocol = protocolInstance
	d.isConnected = true
	d.lastPing = time.Now()

	d.updateHealthMetrics(true, time.Since(startTime), nil)
	d.notifyConnected()

	d.logger.Info("CTC100 connected",
		zap.String("connection_type", string(d.config.ConnectionType)),
		zap.String("model", d.config.Model),
	)

	return nil
}

// Disconnect closes the connection to the controller
func (d *CTC100Driver) Disconnect(ctx context.Context) error {
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
	d.notifyDisconnected("manual disconnect")

	d.logger.Info("CTC100 disconnected")
	return nil
}

// IsConnected returns connection status
func (d *CTC100Driver) IsConnected() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.isConnected && d.protocol != nil && d.protocol.IsOpen()
}

// GetControllerInfo returns controller information
func (d *CTC100Driver) GetControllerInfo() (*driver.ControllerInfo, error) {
	return d.controllerInfo, nil
}

// GetCapabilities returns controller capabilities
func (d *CTC100Driver) GetCapabilities() []model.Capability {
	return ctc100Capabilities()
}

// GetStatus returns current controller status
func (d *CTC100Driver) GetStatus() (*driver.ControllerStatus, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if !d.isConnected {
		return &driver.ControllerStatus{
			Status:       model.ControllerStatusOffline,
			IsReady:      false,
			HasError:     false,
			LastResponse: d.lastPing,
		}, nil
	}

	return &driver.ControllerStatus{
		Status:       model.ControllerStatusOnline,
		IsReady:      true,
		HasError:     false,
		LastResponse: d.lastPing,
	}, nil
}

// ReadChannel reads the temperature of an input channel in kelvin
func (d *CTC100Driver) ReadChannel(ctx context.Context, channel int) (float64, error) {
	command := queryCommand(valueVariable(channel))

	reply, err := d.exchange(ctx, command)
	if err != nil {
		return 0, err
	}

	return decodeFloat(command, reply)
}

// ReadSetpoint reads the PID setpoint of an output channel in kelvin
func (d *CTC100Driver) ReadSetpoint(ctx context.Context, channel int) (float64, error) {
	command := queryCommand(setpointVariable(channel))

	reply, err := d.exchange(ctx, command)
	if err != nil {
		return 0, err
	}

	return decodeFloat(command, reply)
}

// WriteSetpoint sets the PID setpoint of an output channel in kelvin
func (d *CTC100Driver) WriteSetpoint(ctx context.Context, channel int, setpoint float64) error {
	return d.send(ctx, setFloatCommand(setpointVariable(channel), setpoint))
}

// EnableHeater enables the controller's output stage
func (d *CTC100Driver) EnableHeater(ctx context.Context) error {
	return d.send(ctx, cmdHeaterOn)
}

// DisableHeater disables the controller's output stage
func (d *CTC100Driver) DisableHeater(ctx context.Context) error {
	return d.send(ctx, cmdHeaterOff)
}

// EnablePID turns on the PID loop for an output channel. The output stage is
// enabled first; the loop drives nothing with the outputs off. PID parameters
// should be set by a tuning run before enabling.
func (d *CTC100Driver) EnablePID(ctx context.Context, channel int) error {
	if err := d.EnableHeater(ctx); err != nil {
		return err
	}
	return d.send(ctx, setCommand(pidModeVariable(channel), "On"))
}

// DisablePID turns off the PID loop for an output channel and disables the
// output stage
func (d *CTC100Driver) DisablePID(ctx context.Context, channel int) error {
	if err := d.DisableHeater(ctx); err != nil {
		return err
	}
	return d.send(ctx, setCommand(pidModeVariable(channel), "Off"))
}

// TunePID runs the controller's PID autotune procedure. The heater applies
// StepPower watts for LagSeconds; both should be sized so the sample
// temperature rises noticeably over the lag, and the temperature must be
// stable before tuning starts. Blocks for the whole lag window, cancellable
// through ctx.
func (d *CTC100Driver) TunePID(ctx context.Context, channel int, params *driver.TuneParams) (string, error) {
	if params == nil || params.StepPower <= 0 || params.LagSeconds <= 0 {
		return "", fmt.Errorf("tune parameters require positive step power and lag")
	}

	d.logger.Info("Starting PID autotune",
		zap.Int("channel", channel),
		zap.Float64("step_power", params.StepPower),
		zap.Int("lag_seconds", params.LagSeconds),
	)

	if err := d.send(ctx, setFloatCommand(tuneVariable(channel, "StepY"), params.StepPower)); err != nil {
		return "", err
	}
	if err := d.send(ctx, setFloatCommand(tuneVariable(channel, "Lag"), float64(params.LagSeconds))); err != nil {
		return "", err
	}

	if err := d.EnableHeater(ctx); err != nil {
		return "", err
	}
	if err := d.send(ctx, setCommand(tuneVariable(channel, "Type"), "Auto")); err != nil {
		return "", err
	}
	// Setting Tune.Mode starts the procedure
	if err := d.send(ctx, setCommand(tuneVariable(channel, "Mode"), "Auto")); err != nil {
		return "", err
	}

	// The controller needs the full lag before the tune outcome is readable
	select {
	case <-time.After(time.Duration(params.LagSeconds) * time.Second):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	modeCommand := queryCommand(pidModeVariable(channel))
	reply, err := d.exchange(ctx, modeCommand)
	if err != nil {
		return "", err
	}

	tuned, err := decodeOnOff(modeCommand, reply)
	if err != nil {
		return "", err
	}

	if !tuned {
		d.logger.Warn("PID autotune failed",
			zap.Int("channel", channel),
		)
		return "", &driver.DeviceError{
			Command: modeCommand,
			Message: "autotune did not converge, try a higher step power or a longer lag",
		}
	}

	// A successful tune switches the loop on by itself; switch it back off and
	// dismiss the confirmation dialog on the front panel
	if err := d.DisablePID(ctx, channel); err != nil {
		return "", err
	}
	if err := d.send(ctx, cmdDismissScreen); err != nil {
		return "", err
	}

	d.logger.Info("PID autotune succeeded", zap.Int("channel", channel))
	return tuneSuccessMessage, nil
}

// SetAlarm arms the alarm on an input channel for the given temperature range
func (d *CTC100Driver) SetAlarm(ctx context.Context, channel int, minTemp, maxTemp float64) error {
	if minTemp >= maxTemp {
		return fmt.Errorf("alarm range invalid: min %g >= max %g", minTemp, maxTemp)
	}

	if err := d.send(ctx, setCommand(alarmVariable(channel, "sound"), "4 beeps")); err != nil {
		return err
	}
	if err := d.send(ctx, setFloatCommand(alarmVariable(channel, "min"), minTemp)); err != nil {
		return err
	}
	if err := d.send(ctx, setFloatCommand(alarmVariable(channel, "max"), maxTemp)); err != nil {
		return err
	}
	return d.send(ctx, setCommand(alarmVariable(channel, "mode"), "Level"))
}

// ClearAlarm disarms the alarm on an input channel
func (d *CTC100Driver) ClearAlarm(ctx context.Context, channel int) error {
	return d.send(ctx, setCommand(alarmVariable(channel, "mode"), "Off"))
}

// ExecuteOperation executes a control operation
func (d *CTC100Driver) ExecuteOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	startTime := time.Now()

	var result *driver.OperationResult
	var err error

	switch operation.OperationType {
	case model.OperationTypeReadChannel:
		result, err = d.handleReadOperation(ctx, operation)
	case model.OperationTypeReadSetpoint:
		result, err = d.handleReadSetpointOperation(ctx, operation)
	case model.OperationTypeWriteSetpoint:
		result, err = d.handleWriteSetpointOperation(ctx, operation)
	case model.OperationTypeHeaterEnable:
		err = d.EnableHeater(ctx)
		result = simpleResult(map[string]interface{}{"heater_enabled": true})
	case model.OperationTypeHeaterDisable:
		err = d.DisableHeater(ctx)
		result = simpleResult(map[string]interface{}{"heater_enabled": false})
	case model.OperationTypePIDEnable:
		result, err = d.handlePIDModeOperation(ctx, operation, true)
	case model.OperationTypePIDDisable:
		result, err = d.handlePIDModeOperation(ctx, operation, false)
	case model.OperationTypePIDTune:
		result, err = d.handleTuneOperation(ctx, operation)
	case model.OperationTypeAlarmSet:
		result, err = d.handleAlarmSetOperation(ctx, operation)
	case model.OperationTypeAlarmClear:
		result, err = d.handleAlarmClearOperation(ctx, operation)
	case model.OperationTypeStatusCheck:
		result, err = d.handleStatusOperation(ctx, operation)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", operation.OperationType)
	}

	duration := time.Since(startTime)

	if err != nil {
		d.updateHealthMetrics(false, duration, err)
		return nil, err
	}

	d.updateHealthMetrics(true, duration, nil)
	result.Duration = duration.String()
	result.Timestamp = time.Now()

	d.notifyOperationCompleted(operation.ID.String(), result)

	return result, nil
}

// Ping tests controller connectivity
func (d *CTC100Driver) Ping(ctx context.Context) error {
	if !d.IsConnected() {
		return driver.ErrNotConnected
	}

	startTime := time.Now()
	err := d.protocol.Ping(ctx)

	if err != nil {
		d.updateHealthMetrics(false, time.Since(startTime), err)
		return fmt.Errorf("ping failed: %w", err)
	}

	d.mutex.Lock()
	d.lastPing = time.Now()
	d.mutex.Unlock()

	d.updateHealthMetrics(true, time.Since(startTime), nil)
	return nil
}

// GetHealthMetrics returns health metrics
func (d *CTC100Driver) GetHealthMetrics() (*driver.HealthMetrics, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	metrics := *d.healthMetrics
	return &metrics, nil
}

// SetEventHandler sets the event handler
func (d *CTC100Driver) SetEventHandler(handler driver.EventHandler) {
	d.eventHandler = handler
}

// Close cleans up resources
func (d *CTC100Driver) Close() error {
	return d.Disconnect(context.Background())
}

// Command exchange

// exchange writes one command line and reads the CRLF-terminated reply. One
// exchange at a time; the command mutex serializes concurrent callers.
func (d *CTC100Driver) exchange(ctx context.Context, command string) (string, error) {
	d.cmdMutex.Lock()
	defer d.cmdMutex.Unlock()

	d.mutex.RLock()
	proto := d.protocol
	connected := d.isConnected
	d.mutex.RUnlock()

	if !connected || proto == nil || !proto.IsOpen() {
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

	d.logger.Debug("Command exchange completed",
		zap.String("command", command),
		zap.String("reply", reply),
	)

	return reply, nil
}

// send runs an exchange and discards the reply; the controller acknowledges
// every command line
func (d *CTC100Driver) send(ctx context.Context, command string) error {
	_, err := d.exchange(ctx, command)
	return err
}

// Operation handlers

func (d *CTC100Driver) handleReadOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	value, err := d.ReadChannel(ctx, channel)
	if err != nil {
		return nil, err
	}

	if d.eventHandler != nil {
		d.eventHandler.OnReadingTaken(d.config.ControllerID, inputName(channel), value)
	}

	return simpleResult(map[string]interface{}{
		"channel": inputName(channel),
		"value":   value,
		"unit":    model.UnitKelvin,
	}), nil
}

func (d *CTC100Driver) handleReadSetpointOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	value, err := d.ReadSetpoint(ctx, channel)
	if err != nil {
		return nil, err
	}

	return simpleResult(map[string]interface{}{
		"channel":  channel,
		"setpoint": value,
		"unit":     model.UnitKelvin,
	}), nil
}

func (d *CTC100Driver) handleWriteSetpointOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	setpoint, err := floatFromData(operation.OperationData, "setpoint")
	if err != nil {
		return nil, err
	}

	if err := d.WriteSetpoint(ctx, channel, setpoint); err != nil {
		return nil, err
	}

	return simpleResult(map[string]interface{}{
		"channel":  channel,
		"setpoint": setpoint,
		"unit":     model.UnitKelvin,
	}), nil
}

func (d *CTC100Driver) handlePIDModeOperation(ctx context.Context, operation *model.ControlOperation, enable bool) (*driver.OperationResult, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	if enable {
		err = d.EnablePID(ctx, channel)
	} else {
		err = d.DisablePID(ctx, channel)
	}
	if err != nil {
		return nil, err
	}

	return simpleResult(map[string]interface{}{
		"channel":     channel,
		"pid_enabled": enable,
	}), nil
}

func (d *CTC100Driver) handleTuneOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	stepPower, err := floatFromData(operation.OperationData, "step_power")
	if err != nil {
		return nil, err
	}

	lagSeconds, err := intFromData(operation.OperationData, "lag_seconds")
	if err != nil {
		return nil, err
	}

	message, err := d.TunePID(ctx, channel, &driver.TuneParams{
		StepPower:  stepPower,
		LagSeconds: lagSeconds,
	})
	if err != nil {
		return nil, err
	}

	return simpleResult(map[string]interface{}{
		"channel":     channel,
		"tuned":       true,
		"message":     message,
		"step_power":  stepPower,
		"lag_seconds": lagSeconds,
	}), nil
}

func (d *CTC100Driver) handleAlarmSetOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	minTemp, err := floatFromData(operation.OperationData, "min_temp")
	if err != nil {
		return nil, err
	}

	maxTemp, err := floatFromData(operation.OperationData, "max_temp")
	if err != nil {
		return nil, err
	}

	if err := d.SetAlarm(ctx, channel, minTemp, maxTemp); err != nil {
		return nil, err
	}

	return simpleResult(map[string]interface{}{
		"channel":  inputName(channel),
		"armed":    true,
		"min_temp": minTemp,
		"max_temp": maxTemp,
	}), nil
}

func (d *CTC100Driver) handleAlarmClearOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	channel, err := channelFromData(operation.OperationData)
	if err != nil {
		return nil, err
	}

	if err := d.ClearAlarm(ctx, channel); err != nil {
		return nil, err
	}

	return simpleResult(map[string]interface{}{
		"channel": inputName(channel),
		"armed":   false,
	}), nil
}

func (d *CTC100Driver) handleStatusOperation(ctx context.Context, operation *model.ControlOperation) (*driver.OperationResult, error) {
	status, err := d.GetStatus()
	if err != nil {
		return nil, err
	}

	description := ""
	if reply, err := d.exchange(ctx, cmdIdentify); err == nil {
		description = reply
	} else {
		d.logger.Warn("Failed to read controller description", zap.Error(err))
	}

	data := map[string]interface{}{
		"status":          status,
		"connection_type": d.config.ConnectionType,
		"model":           d.config.Model,
		"capabilities":    d.GetCapabilities(),
	}
	if description != "" {
		data["description"] = description
	}

	return simpleResult(data), nil
}

// Helpers

func (d *CTC100Driver) updateHealthMetrics(success bool, responseTime time.Duration, err error) {
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
	if responseTime > 5*time.Second {
		d.healthMetrics.HealthScore -= 10
	}
	if d.healthMetrics.HealthScore < 0 {
		d.healthMetrics.HealthScore = 0
	}
}

func (d *CTC100Driver) notifyConnected() {
	if d.eventHandler != nil {
		d.eventHandler.OnControllerConnected(d.config.ControllerID)
	}
}

func (d *CTC100Driver) notifyDisconnected(reason string) {
	if d.eventHandler != nil {
		d.eventHandler.OnControllerDisconnected(d.config.ControllerID, reason)
	}
}

func (d *CTC100Driver) notifyOperationCompleted(operationID string, result *driver.OperationResult) {
	if d.eventHandler != nil {
		d.eventHandler.OnOperationCompleted(d.config.ControllerID, operationID, result)
	}
}

func simpleResult(data map[string]interface{}) *driver.OperationResult {
	return &driver.OperationResult{
		Success: true,
		Data:    data,
	}
}

func ctc100Capabilities() []model.Capability {
	return []model.Capability{
		model.CapabilityRead,
		model.CapabilitySetpoint,
		model.CapabilityHeater,
		model.CapabilityPIDTune,
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
		return nil, fmt.Errorf("invalid config type: %T, expected map[string]interface{} or model.JSONObject", config)
	}

	if configMap == nil {
		return nil, fmt.Errorf("config map is nil")
	}

	return configMap, nil
}

// channelFromData reads the channel number out of operation data; both
// numeric and string forms are accepted
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
		return 0, fmt.Errorf("invalid channel: %q", v)
	default:
		return 0, fmt.Errorf("invalid channel type: %T", raw)
	}
}

func floatFromData(data model.JSONObject, key string) (float64, error) {
	raw, ok := data[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	default:
		return 0, fmt.Errorf("invalid %s type: %T", key, raw)
	}
}

func intFromData(data model.JSONObject, key string) (int, error) {
	value, err := floatFromData(data, key)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}
