// internal/driver/ctc100/driver_test.go
package ctc100

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempctl-service/internal/model"
	"tempctl-service/internal/protocol"
	"tempctl-service/internal/utils"
	"tempctl-service/pkg/driver"
)

// fakeProtocol is a scripted transport: every Write is recorded and every
// ReadLine pulls the next queued reply.
type fakeProtocol struct {
	mu      sync.Mutex
	open    bool
	writes  []string
	replies [][]byte
}

func (f *fakeProtocol) Open(ctx context.Context) error { f.open = true; return nil }
func (f *fakeProtocol) Close() error                   { f.open = false; return nil }
func (f *fakeProtocol) IsOpen() bool                   { return f.open }

func (f *fakeProtocol) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, string(data))
	return nil
}

func (f *fakeProtocol) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		// Nothing buffered; a real transport returns an empty chunk
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	chunk := f.replies[0]
	f.replies = f.replies[1:]
	return chunk, nil
}

func (f *fakeProtocol) GetProtocolType() model.ConnectionType { return model.ConnectionTypeSerial }
func (f *fakeProtocol) Ping(ctx context.Context) error        { return nil }
func (f *fakeProtocol) Stats() protocol.ProtocolStats         { return protocol.ProtocolStats{} }

func (f *fakeProtocol) queueReply(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range lines {
		f.replies = append(f.replies, []byte(line+"\r\n"))
	}
}

func (f *fakeProtocol) writtenCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	copy(out, f.writes)
	return out
}

// recordingEventHandler captures driver event callbacks
type recordingEventHandler struct {
	mu       sync.Mutex
	readings []string
	values   []float64
}

func (h *recordingEventHandler) OnControllerConnected(controllerID string)                  {}
func (h *recordingEventHandler) OnControllerDisconnected(controllerID string, reason string) {}
func (h *recordingEventHandler) OnControllerError(controllerID string, err error)           {}
func (h *recordingEventHandler) OnOperationCompleted(controllerID string, operationID string, result *driver.OperationResult) {
}
func (h *recordingEventHandler) OnStatusChanged(controllerID string, oldStatus, newStatus model.ControllerStatus) {
}

func (h *recordingEventHandler) OnReadingTaken(controllerID string, channel string, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readings = append(h.readings, channel)
	h.values = append(h.values, value)
}

func newTestDriver(t *testing.T) (*CTC100Driver, *fakeProtocol) {
	t.Helper()

	fake := &fakeProtocol{open: true}
	d := &CTC100Driver{
		config: &CTC100Config{
			ControllerID:   "TC-TEST-1",
			Model:          "CTC100",
			ConnectionType: model.ConnectionTypeSerial,
			CommandTimeout: 200 * time.Millisecond,
			Channels:       []string{"1", "2", "3", "4"},
		},
		protocol:      fake,
		isConnected:   true,
		logger:        utils.NewControllerLogger(zap.NewNop(), "TC-TEST-1", "SRS", "CTC100"),
		healthMetrics: &driver.HealthMetrics{},
		controllerInfo: &driver.ControllerInfo{
			Brand:        model.BrandSRS,
			Model:        "CTC100",
			Capabilities: ctc100Capabilities(),
			Manufacturer: "Stanford Research Systems",
		},
	}
	return d, fake
}

func TestReadChannel(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("301.221")

	value, err := d.ReadChannel(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 301.221, value, 1e-9)
	assert.Equal(t, []string{"In1.value?\n"}, fake.writtenCommands())
}

func TestReadChannelVerboseReply(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("In2.value = 77.350")

	value, err := d.ReadChannel(context.Background(), 2)
	require.NoError(t, err)
	assert.InDelta(t, 77.35, value, 1e-9)
}

func TestReadChannelParseError(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("FAULT")

	_, err := d.ReadChannel(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, driver.IsParseError(err))
}

func TestReadChannelTimeout(t *testing.T) {
	d, _ := newTestDriver(t)
	// No reply queued; the command window elapses

	_, err := d.ReadChannel(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, driver.IsTimeout(err))

	var timeoutErr *driver.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "In1.value?", timeoutErr.Command)
}

func TestReadChannelNotConnected(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.open = false

	_, err := d.ReadChannel(context.Background(), 1)
	assert.ErrorIs(t, err, driver.ErrNotConnected)
}

func TestWriteSetpoint(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("Out1.PID.setpoint = 145")

	err := d.WriteSetpoint(context.Background(), 1, 145)
	require.NoError(t, err)
	assert.Equal(t, []string{"Out1.PID.setpoint = (145)\n"}, fake.writtenCommands())
}

func TestReadSetpoint(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("145.000")

	value, err := d.ReadSetpoint(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 145.0, value, 1e-9)
	assert.Equal(t, []string{"Out1.PID.setpoint?\n"}, fake.writtenCommands())
}

func TestHeaterControl(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("ok", "ok")

	require.NoError(t, d.EnableHeater(context.Background()))
	require.NoError(t, d.DisableHeater(context.Background()))

	assert.Equal(t, []string{"outputEnable on\n", "outputEnable off\n"}, fake.writtenCommands())
}

func TestPIDModeControl(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("ok", "ok", "ok", "ok")

	require.NoError(t, d.EnablePID(context.Background(), 1))
	require.NoError(t, d.DisablePID(context.Background(), 1))

	assert.Equal(t, []string{
		"outputEnable on\n",
		"Out1.PID.Mode = (On)\n",
		"outputEnable off\n",
		"Out1.PID.Mode = (Off)\n",
	}, fake.writtenCommands())
}

func TestTunePIDSuccess(t *testing.T) {
	d, fake := newTestDriver(t)
	// Parameter writes, heater on, tune type, tune start
	fake.queueReply("ok", "ok", "ok", "ok", "ok")
	// Mode query after the lag, then heater off, mode off, screen dismissal
	fake.queueReply("On", "ok", "ok", "ok")

	message, err := d.TunePID(context.Background(), 1, &driver.TuneParams{
		StepPower:  0.5,
		LagSeconds: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, tuneSuccessMessage, message)

	writes := fake.writtenCommands()
	require.Len(t, writes, 9)
	assert.Equal(t, "Out1.Tune.StepY = (0.5)\n", writes[0])
	assert.Equal(t, "Out1.Tune.Lag = (1)\n", writes[1])
	assert.Equal(t, "outputEnable on\n", writes[2])
	assert.Equal(t, "Out1.Tune.Type = (Auto)\n", writes[3])
	assert.Equal(t, "Out1.Tune.Mode = (Auto)\n", writes[4])
	assert.Equal(t, "Out1.PID.Mode?\n", writes[5])
	assert.Equal(t, "menu 4\n", writes[8])
}

func TestTunePIDFailure(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("ok", "ok", "ok", "ok", "ok")
	// The loop stays off when the tune did not converge
	fake.queueReply("Off")

	_, err := d.TunePID(context.Background(), 1, &driver.TuneParams{
		StepPower:  0.5,
		LagSeconds: 1,
	})
	require.Error(t, err)
	assert.True(t, driver.IsDeviceError(err))
}

func TestTunePIDValidation(t *testing.T) {
	d, fake := newTestDriver(t)

	_, err := d.TunePID(context.Background(), 1, nil)
	assert.Error(t, err)

	_, err = d.TunePID(context.Background(), 1, &driver.TuneParams{StepPower: 0, LagSeconds: 5})
	assert.Error(t, err)

	_, err = d.TunePID(context.Background(), 1, &driver.TuneParams{StepPower: 0.5, LagSeconds: 0})
	assert.Error(t, err)

	assert.Empty(t, fake.writtenCommands())
}

func TestSetAlarm(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("ok", "ok", "ok", "ok")

	err := d.SetAlarm(context.Background(), 1, 70, 80)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"In1.alarm.sound = (4 beeps)\n",
		"In1.alarm.min = (70)\n",
		"In1.alarm.max = (80)\n",
		"In1.alarm.mode = (Level)\n",
	}, fake.writtenCommands())
}

func TestSetAlarmInvalidRange(t *testing.T) {
	d, fake := newTestDriver(t)

	err := d.SetAlarm(context.Background(), 1, 80, 70)
	assert.Error(t, err)
	assert.Empty(t, fake.writtenCommands())
}

func TestClearAlarm(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("ok")

	require.NoError(t, d.ClearAlarm(context.Background(), 1))
	assert.Equal(t, []string{"In1.alarm.mode = (Off)\n"}, fake.writtenCommands())
}

func TestExecuteOperationReadChannel(t *testing.T) {
	d, fake := newTestDriver(t)
	handler := &recordingEventHandler{}
	d.SetEventHandler(handler)
	fake.queueReply("77.350")

	operation := &model.ControlOperation{
		ID:            uuid.New(),
		OperationType: model.OperationTypeReadChannel,
		OperationData: model.JSONObject{"channel": float64(1)},
	}

	result, err := d.ExecuteOperation(context.Background(), operation)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "In1", result.Data["channel"])
	assert.InDelta(t, 77.35, result.Data["value"].(float64), 1e-9)
	assert.Equal(t, model.UnitKelvin, result.Data["unit"])

	assert.Equal(t, []string{"In1"}, handler.readings)
}

func TestExecuteOperationWriteSetpoint(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("ok")

	operation := &model.ControlOperation{
		ID:            uuid.New(),
		OperationType: model.OperationTypeWriteSetpoint,
		OperationData: model.JSONObject{"channel": float64(1), "setpoint": 145.0},
	}

	result, err := d.ExecuteOperation(context.Background(), operation)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.InDelta(t, 145.0, result.Data["setpoint"].(float64), 1e-9)
	assert.Equal(t, []string{"Out1.PID.setpoint = (145)\n"}, fake.writtenCommands())
}

func TestExecuteOperationMissingChannel(t *testing.T) {
	d, _ := newTestDriver(t)

	operation := &model.ControlOperation{
		ID:            uuid.New(),
		OperationType: model.OperationTypeReadChannel,
		OperationData: model.JSONObject{},
	}

	_, err := d.ExecuteOperation(context.Background(), operation)
	assert.Error(t, err)
}

func TestExecuteOperationUnsupportedType(t *testing.T) {
	d, _ := newTestDriver(t)

	operation := &model.ControlOperation{
		ID:            uuid.New(),
		OperationType: model.OperationType("FIRMWARE_UPDATE"),
		OperationData: model.JSONObject{},
	}

	_, err := d.ExecuteOperation(context.Background(), operation)
	assert.Error(t, err)
}

func TestHealthMetricsTracking(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("301.221")

	operation := &model.ControlOperation{
		ID:            uuid.New(),
		OperationType: model.OperationTypeReadChannel,
		OperationData: model.JSONObject{"channel": float64(1)},
	}

	_, err := d.ExecuteOperation(context.Background(), operation)
	require.NoError(t, err)

	metrics, err := d.GetHealthMetrics()
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.TotalOperations)
	assert.Equal(t, int64(0), metrics.ErrorCount)
	assert.Equal(t, 100, metrics.HealthScore)

	// A failed operation drags the success rate down
	_, err = d.ExecuteOperation(context.Background(), operation)
	require.Error(t, err)

	metrics, err = d.GetHealthMetrics()
	require.NoError(t, err)
	assert.Equal(t, int64(2), metrics.TotalOperations)
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.InDelta(t, 0.5, metrics.SuccessRate, 1e-9)
}

func TestChannelFromData(t *testing.T) {
	channel, err := channelFromData(model.JSONObject{"channel": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, channel)

	channel, err = channelFromData(model.JSONObject{"channel": "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, channel)

	_, err = channelFromData(model.JSONObject{"channel": true})
	assert.Error(t, err)

	_, err = channelFromData(model.JSONObject{})
	assert.Error(t, err)
}
