// internal/driver/lakeshore/driver_test.go
package lakeshore

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

func newTestDriver(t *testing.T) (*LakeshoreDriver, *fakeProtocol) {
	t.Helper()

	fake := &fakeProtocol{open: true}
	d := &LakeshoreDriver{
		config: &LakeshoreConfig{
			ControllerID:   "LS-TEST-1",
			Model:          "332",
			ConnectionType: model.ConnectionTypeSerial,
			CommandTimeout: 200 * time.Millisecond,
		},
		protocol:      fake,
		isConnected:   true,
		logger:        utils.NewControllerLogger(zap.NewNop(), "LS-TEST-1", "LAKESHORE", "332"),
		healthMetrics: &driver.HealthMetrics{},
		controllerInfo: &driver.ControllerInfo{
			Brand:        model.BrandLakeshore,
			Model:        "332",
			Capabilities: lakeshoreCapabilities(),
			Manufacturer: "Lake Shore Cryotronics",
		},
	}
	return d, fake
}

func TestChannelLetter(t *testing.T) {
	assert.Equal(t, "A", channelLetter(1))
	assert.Equal(t, "B", channelLetter(2))
}

func TestCommandBuilding(t *testing.T) {
	assert.Equal(t, "CRDG? A", readCommand(1))
	assert.Equal(t, "SETP? 1", readSetpointCommand(1))
	assert.Equal(t, "SETP 1,77.35", writeSetpointCommand(1, 77.35))
	assert.Equal(t, "RANGE 3", heaterRangeCommand(3))
	assert.Equal(t, "RANGE 0", heaterRangeCommand(0))
	// The ALARM mnemonic takes the high limit before the low limit
	assert.Equal(t, "ALARM A,1,80,70,0,0", setAlarmCommand(1, 70, 80))
	assert.Equal(t, "ALARM B,0,0,0,0,0", clearAlarmCommand(2))
}

func TestReadChannelConvertsToKelvin(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("+25.000")

	value, err := d.ReadChannel(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 298.15, value, 1e-9)
	assert.Equal(t, []string{"CRDG? A\r\n"}, fake.writtenCommands())
}

func TestReadChannelParseError(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("NO SENSOR")

	_, err := d.ReadChannel(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, driver.IsParseError(err))
}

func TestReadSetpoint(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("77.350")

	value, err := d.ReadSetpoint(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 77.35, value, 1e-9)
}

func TestWriteSetpointNoReplyExpected(t *testing.T) {
	d, fake := newTestDriver(t)
	// Plain commands produce no reply line; send must not block on one

	err := d.WriteSetpoint(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"SETP 1,100\r\n"}, fake.writtenCommands())
}

func TestHeaterControl(t *testing.T) {
	d, fake := newTestDriver(t)

	require.NoError(t, d.EnableHeater(context.Background()))
	require.NoError(t, d.DisableHeater(context.Background()))

	assert.Equal(t, []string{"RANGE 3\r\n", "RANGE 0\r\n"}, fake.writtenCommands())
}

func TestTunePIDUnsupported(t *testing.T) {
	d, fake := newTestDriver(t)

	_, err := d.TunePID(context.Background(), 1, &driver.TuneParams{StepPower: 0.5, LagSeconds: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrUnsupportedOp)
	assert.Empty(t, fake.writtenCommands())
}

func TestExecuteOperationTuneUnsupported(t *testing.T) {
	d, _ := newTestDriver(t)

	operation := &model.ControlOperation{
		ID:            uuid.New(),
		OperationType: model.OperationTypePIDTune,
		OperationData: model.JSONObject{"channel": float64(1)},
	}

	_, err := d.ExecuteOperation(context.Background(), operation)
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrUnsupportedOp)
}

func TestExecuteOperationReadChannel(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.queueReply("-196.000")

	operation := &model.ControlOperation{
		ID:            uuid.New(),
		OperationType: model.OperationTypeReadChannel,
		OperationData: model.JSONObject{"channel": "A"},
	}

	result, err := d.ExecuteOperation(context.Background(), operation)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "A", result.Data["channel"])
	assert.InDelta(t, 77.15, result.Data["value"].(float64), 1e-9)
	assert.Equal(t, model.UnitKelvin, result.Data["unit"])
}

func TestSetAlarmInvalidRange(t *testing.T) {
	d, fake := newTestDriver(t)

	err := d.SetAlarm(context.Background(), 1, 80, 70)
	assert.Error(t, err)
	assert.Empty(t, fake.writtenCommands())
}

func TestChannelFromDataAcceptsLetters(t *testing.T) {
	channel, err := channelFromData(model.JSONObject{"channel": "B"})
	require.NoError(t, err)
	assert.Equal(t, 2, channel)

	channel, err = channelFromData(model.JSONObject{"channel": float64(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, channel)
}

func TestNotConnected(t *testing.T) {
	d, fake := newTestDriver(t)
	fake.open = false

	_, err := d.ReadChannel(context.Background(), 1)
	assert.ErrorIs(t, err, driver.ErrNotConnected)

	err = d.WriteSetpoint(context.Background(), 1, 100)
	assert.ErrorIs(t, err, driver.ErrNotConnected)
}
