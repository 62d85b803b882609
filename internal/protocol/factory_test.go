// internal/protocol/factory_test.go
package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempctl-service/internal/model"
)

func TestCreateProtocolSerial(t *testing.T) {
	p, err := CreateProtocol(model.ConnectionTypeSerial, map[string]interface{}{
		"port":      "/dev/ttyUSB0",
		"baud_rate": float64(9600),
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionTypeSerial, p.GetProtocolType())
}

func TestCreateProtocolUSBResolvesToSerial(t *testing.T) {
	p, err := CreateProtocol(model.ConnectionTypeUSB, map[string]interface{}{
		"port": "/dev/ttyACM0",
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionTypeSerial, p.GetProtocolType())
}

func TestCreateProtocolSerialRequiresPort(t *testing.T) {
	_, err := CreateProtocol(model.ConnectionTypeSerial, map[string]interface{}{}, zap.NewNop())
	assert.Error(t, err)
}

func TestCreateProtocolTCP(t *testing.T) {
	p, err := CreateProtocol(model.ConnectionTypeTCP, map[string]interface{}{
		"host": "192.168.1.50",
		"port": float64(23),
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionTypeTCP, p.GetProtocolType())
}

func TestCreateProtocolTCPRequiresHost(t *testing.T) {
	_, err := CreateProtocol(model.ConnectionTypeTCP, map[string]interface{}{}, zap.NewNop())
	assert.Error(t, err)
}

func TestCreateProtocolUnsupportedType(t *testing.T) {
	_, err := CreateProtocol(model.ConnectionType("BLUETOOTH"), map[string]interface{}{}, zap.NewNop())
	assert.Error(t, err)
}

func TestValidateSerialConfig(t *testing.T) {
	err := ValidateConfig(model.ConnectionTypeSerial, map[string]interface{}{
		"port":      "/dev/ttyUSB0",
		"baud_rate": float64(9600),
	})
	assert.NoError(t, err)

	err = ValidateConfig(model.ConnectionTypeSerial, map[string]interface{}{
		"port":      "/dev/ttyUSB0",
		"baud_rate": float64(12345),
	})
	assert.Error(t, err)

	err = ValidateConfig(model.ConnectionTypeSerial, map[string]interface{}{})
	assert.Error(t, err)
}

func TestValidateTCPConfig(t *testing.T) {
	err := ValidateConfig(model.ConnectionTypeTCP, map[string]interface{}{
		"host": "10.0.0.5",
		"port": float64(23),
	})
	assert.NoError(t, err)

	err = ValidateConfig(model.ConnectionTypeTCP, map[string]interface{}{
		"host": "10.0.0.5",
		"port": float64(70000),
	})
	assert.Error(t, err)
}
