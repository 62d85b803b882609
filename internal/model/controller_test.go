// internal/model/controller_test.go
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerCapabilities(t *testing.T) {
	controller := &Controller{
		Capabilities: JSONArray{
			string(CapabilityRead),
			string(CapabilitySetpoint),
			string(CapabilityPIDTune),
		},
	}

	assert.True(t, controller.HasCapability(CapabilityRead))
	assert.True(t, controller.HasCapability(CapabilityPIDTune))
	assert.False(t, controller.HasCapability(CapabilityAlarm))
}

func TestControllerChannels(t *testing.T) {
	controller := &Controller{
		Channels: JSONArray{"1", "2", "3", "4"},
	}

	assert.True(t, controller.HasChannel("2"))
	assert.False(t, controller.HasChannel("A"))
	assert.Equal(t, []string{"1", "2", "3", "4"}, controller.ChannelNames())
}

func TestChannelNamesSkipsNonStrings(t *testing.T) {
	// JSONB round-trips numbers as float64; only strings count as channels
	controller := &Controller{
		Channels: JSONArray{"A", float64(2), "B"},
	}

	assert.Equal(t, []string{"A", "B"}, controller.ChannelNames())
}

func TestControllerIsOnline(t *testing.T) {
	assert.True(t, (&Controller{Status: ControllerStatusOnline}).IsOnline())
	assert.False(t, (&Controller{Status: ControllerStatusConnecting}).IsOnline())
	assert.False(t, (&Controller{Status: ControllerStatusError}).IsOnline())
}

func TestJSONObjectScanValue(t *testing.T) {
	obj := JSONObject{"port": "/dev/ttyACM0", "baud_rate": float64(9600)}

	raw, err := obj.Value()
	require.NoError(t, err)

	var scanned JSONObject
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, obj, scanned)

	var nilObj JSONObject
	require.NoError(t, nilObj.Scan(nil))
	assert.Nil(t, nilObj)

	nilValue, err := JSONObject(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, nilValue)
}

func TestJSONArrayScanValue(t *testing.T) {
	arr := JSONArray{"1", "2"}

	raw, err := arr.Value()
	require.NoError(t, err)

	var scanned JSONArray
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, arr, scanned)
}
