// internal/driver/ctc100/decode_test.go
package ctc100

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempctl-service/pkg/driver"
)

func TestDecodeFloat(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{"plain value", "301.221", 301.221},
		{"negative value", "-12.500", -12.5},
		{"leading sign", "+4.200", 4.2},
		{"verbose mode prefix", "In1.value = 301.221", 301.221},
		{"surrounding whitespace", "  77.350  ", 77.35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := decodeFloat("In1.value?", tt.reply)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, value, 1e-9)
		})
	}
}

func TestDecodeFloatMalformed(t *testing.T) {
	for _, reply := range []string{"", "FAULT", "Error: bad channel", "NaN"} {
		_, err := decodeFloat("In1.value?", reply)
		require.Error(t, err)
		assert.True(t, driver.IsParseError(err), "reply %q should produce a parse error", reply)

		var parseErr *driver.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "In1.value?", parseErr.Command)
		assert.Equal(t, reply, parseErr.Reply)
	}
}

func TestDecodeOnOff(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"On", true},
		{"Off", false},
		{"on", true},
		{"OFF", false},
		{"Out1.PID.Mode = On", true},
		{"Out1.PID.Mode = Off", false},
	}

	for _, tt := range tests {
		state, err := decodeOnOff("Out1.PID.Mode?", tt.reply)
		require.NoError(t, err, "reply %q", tt.reply)
		assert.Equal(t, tt.want, state, "reply %q", tt.reply)
	}
}

func TestDecodeOnOffMalformed(t *testing.T) {
	_, err := decodeOnOff("Out1.PID.Mode?", "Maybe")
	require.Error(t, err)
	assert.True(t, driver.IsParseError(err))
}
