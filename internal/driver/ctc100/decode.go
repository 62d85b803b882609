// internal/driver/ctc100/decode.go
package ctc100

import (
	"regexp"
	"strconv"
	"strings"

	"tempctl-service/pkg/driver"
)

// floatPattern matches the numeric token in a reply. When the controller is
// in verbose mode a query reply is prefixed with the variable name, so the
// decoder extracts the number instead of parsing the whole line.
var floatPattern = regexp.MustCompile(`[-+]?\d*\.\d+`)

// decodeFloat extracts a float value from a reply line
func decodeFloat(command, reply string) (float64, error) {
	match := floatPattern.FindString(reply)
	if match == "" {
		return 0, &driver.ParseError{
			Command: command,
			Reply:   reply,
			Want:    "numeric value",
		}
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, &driver.ParseError{
			Command: command,
			Reply:   reply,
			Want:    "numeric value",
		}
	}

	return value, nil
}

// decodeOnOff extracts an On/Off state from a reply line
func decodeOnOff(command, reply string) (bool, error) {
	token := strings.TrimSpace(reply)

	// Verbose mode prefixes the variable name, keep the last token
	if idx := strings.LastIndexAny(token, " ="); idx >= 0 {
		token = strings.TrimSpace(token[idx+1:])
	}

	switch strings.ToLower(token) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, &driver.ParseError{
			Command: command,
			Reply:   reply,
			Want:    "On or Off",
		}
	}
}
