// internal/driver/ctc100/command.go
package ctc100

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire framing. Commands are terminated by a bare linefeed; the controller
// terminates every reply with CRLF.
const (
	commandTerminator = "\n"
	replyTerminator   = "\r\n"
)

// Fixed command lines
const (
	cmdHeaterOn      = "outputEnable on"
	cmdHeaterOff     = "outputEnable off"
	cmdDismissScreen = "menu 4" // presses OK on the front panel dialog
	cmdIdentify      = "description?"
)

// Variable name templates. Integer channels address the input side as In<N>;
// control loops live on the output side as Out<N>.
func inputName(channel int) string {
	return fmt.Sprintf("In%d", channel)
}

func valueVariable(channel int) string {
	return inputName(channel) + ".value"
}

func setpointVariable(channel int) string {
	return fmt.Sprintf("Out%d.PID.setpoint", channel)
}

func pidModeVariable(channel int) string {
	return fmt.Sprintf("Out%d.PID.Mode", channel)
}

func tuneVariable(channel int, field string) string {
	return fmt.Sprintf("Out%d.Tune.%s", channel, field)
}

func alarmVariable(channel int, field string) string {
	return fmt.Sprintf("%s.alarm.%s", inputName(channel), field)
}

// queryCommand builds "<var>?". Spaces are stripped from the variable name;
// they are optional on the device and confuse its parser in verbose mode.
func queryCommand(variable string) string {
	return stripSpaces(variable) + "?"
}

// setCommand builds "<var> = (<value>)". The parentheses keep values that
// contain spaces (like "4 beeps") from being split into separate arguments.
func setCommand(variable, value string) string {
	return fmt.Sprintf("%s = (%s)", stripSpaces(variable), value)
}

// setFloatCommand builds a set command for a numeric value
func setFloatCommand(variable string, value float64) string {
	return setCommand(variable, formatFloat(value))
}

// incrementCommand builds "<var> += (<value>)"
func incrementCommand(variable string, value float64) string {
	return fmt.Sprintf("%s += (%s)", stripSpaces(variable), formatFloat(value))
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

func stripSpaces(variable string) string {
	return strings.ReplaceAll(variable, " ", "")
}
