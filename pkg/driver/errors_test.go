// pkg/driver/errors_test.go
package driver

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Command: "In1.value?", Window: 2 * time.Second}

	assert.True(t, IsTimeout(err))
	assert.False(t, IsParseError(err))
	assert.Contains(t, err.Error(), "In1.value?")
	assert.Contains(t, err.Error(), "2s")

	// Classification survives wrapping
	wrapped := fmt.Errorf("read channel: %w", err)
	assert.True(t, IsTimeout(wrapped))
}

func TestParseError(t *testing.T) {
	err := &ParseError{Command: "In1.value?", Reply: "FAULT", Want: "numeric value"}

	assert.True(t, IsParseError(err))
	assert.False(t, IsTimeout(err))
	assert.Contains(t, err.Error(), `"FAULT"`)
	assert.Contains(t, err.Error(), "numeric value")
}

func TestDeviceError(t *testing.T) {
	err := &DeviceError{Command: "Out1.PID.Mode?", Message: "autotune did not converge"}

	assert.True(t, IsDeviceError(err))
	assert.Contains(t, err.Error(), "autotune did not converge")

	// The command is optional
	bare := &DeviceError{Message: "overtemperature trip"}
	assert.Contains(t, bare.Error(), "overtemperature trip")
	assert.NotContains(t, bare.Error(), `""`)
}

func TestSentinelErrors(t *testing.T) {
	wrapped := fmt.Errorf("%w: open /dev/ttyUSB0: no such file", ErrConnectionFailed)
	assert.ErrorIs(t, wrapped, ErrConnectionFailed)

	assert.False(t, errors.Is(ErrNotConnected, ErrConnectionFailed))
	assert.False(t, IsTimeout(ErrNotConnected))
	assert.False(t, IsDeviceError(ErrUnsupportedOp))
}
