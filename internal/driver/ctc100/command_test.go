// internal/driver/ctc100/command_test.go
package ctc100

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariableNames(t *testing.T) {
	assert.Equal(t, "In1", inputName(1))
	assert.Equal(t, "In4", inputName(4))
	assert.Equal(t, "In2.value", valueVariable(2))
	assert.Equal(t, "Out1.PID.setpoint", setpointVariable(1))
	assert.Equal(t, "Out3.PID.Mode", pidModeVariable(3))
	assert.Equal(t, "Out1.Tune.StepY", tuneVariable(1, "StepY"))
	assert.Equal(t, "In1.alarm.mode", alarmVariable(1, "mode"))
}

func TestQueryCommand(t *testing.T) {
	assert.Equal(t, "In1.value?", queryCommand(valueVariable(1)))
	assert.Equal(t, "Out1.PID.setpoint?", queryCommand(setpointVariable(1)))

	// Spaces in variable names are stripped before the query is built
	assert.Equal(t, "Out1PID.setpoint?", queryCommand("Out1 PID.setpoint"))
}

func TestSetCommand(t *testing.T) {
	assert.Equal(t, "Out1.PID.setpoint = (145)", setFloatCommand(setpointVariable(1), 145))
	assert.Equal(t, "Out1.PID.setpoint = (4.2)", setFloatCommand(setpointVariable(1), 4.2))

	// Parenthesized values survive embedded spaces
	assert.Equal(t, "In1.alarm.sound = (4 beeps)", setCommand(alarmVariable(1, "sound"), "4 beeps"))
	assert.Equal(t, "Out2.PID.Mode = (Off)", setCommand(pidModeVariable(2), "Off"))
}

func TestIncrementCommand(t *testing.T) {
	assert.Equal(t, "Out1.PID.setpoint += (0.5)", incrementCommand(setpointVariable(1), 0.5))
	assert.Equal(t, "Out1.PID.setpoint += (-2)", incrementCommand(setpointVariable(1), -2))
}

func TestFormatFloat(t *testing.T) {
	// Integral setpoints should not carry a trailing fraction
	assert.Equal(t, "145", formatFloat(145.0))
	assert.Equal(t, "301.221", formatFloat(301.221))
	assert.Equal(t, "-0.5", formatFloat(-0.5))
}
