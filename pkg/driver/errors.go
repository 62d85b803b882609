// pkg/driver/errors.go
package driver

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by all controller drivers
var (
	ErrNotConnected        = errors.New("controller not connected")
	ErrUnsupportedOp       = errors.New("operation not supported by this controller")
	ErrConnectionFailed    = errors.New("failed to open controller connection")
	ErrOperationInProgress = errors.New("another command exchange is in progress")
)

// TimeoutError indicates that no complete reply arrived within the command window
type TimeoutError struct {
	Command string
	Window  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no reply to %q within %s", e.Command, e.Window)
}

// ParseError indicates that a device reply did not match the shape expected
// for the command that produced it
type ParseError struct {
	Command string
	Reply   string
	Want    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed reply to %q: got %q, want %s", e.Command, e.Reply, e.Want)
}

// DeviceError indicates that the device explicitly reported a failure
// condition, e.g. a failed PID tune
type DeviceError struct {
	Command string
	Message string
}

func (e *DeviceError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("device reported failure: %s", e.Message)
	}
	return fmt.Sprintf("device reported failure for %q: %s", e.Command, e.Message)
}

// IsTimeout reports whether err is (or wraps) a command timeout
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsParseError reports whether err is (or wraps) a malformed-reply error
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsDeviceError reports whether err is (or wraps) a device-reported failure
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
