// internal/driver/lakeshore/command.go
package lakeshore

import "fmt"

// The Lake Shore 331/332 serial interface per the instrument manual:
// 300/1200/9600 baud, 7 data bits, odd parity, 1 stop bit, CRLF terminators,
// fewer than 20 commands per second. Query mnemonics end in "?" and produce a
// reply line; plain commands produce none.
const (
	commandTerminator = "\r\n"
	replyTerminator   = "\r\n"

	cmdIdentify = "*IDN?"
)

// channelLetter maps integer channels to the instrument's A/B sensor inputs
func channelLetter(channel int) string {
	return string(rune('A' + channel - 1))
}

// queryCommand builds "<mnemonic>? <param>"
func queryCommand(mnemonic, parameter string) string {
	if parameter == "" {
		return mnemonic + "?"
	}
	return fmt.Sprintf("%s? %s", mnemonic, parameter)
}

func readCommand(channel int) string {
	return queryCommand("CRDG", channelLetter(channel))
}

func readSetpointCommand(loop int) string {
	return queryCommand("SETP", fmt.Sprintf("%d", loop))
}

func writeSetpointCommand(loop int, value float64) string {
	return fmt.Sprintf("SETP %d,%g", loop, value)
}

// heaterRangeCommand selects the heater range; 0 is off, 3 is the highest
func heaterRangeCommand(rangeIndex int) string {
	return fmt.Sprintf("RANGE %d", rangeIndex)
}

func setAlarmCommand(channel int, minTemp, maxTemp float64) string {
	return fmt.Sprintf("ALARM %s,1,%g,%g,0,0", channelLetter(channel), maxTemp, minTemp)
}

func clearAlarmCommand(channel int) string {
	return fmt.Sprintf("ALARM %s,0,0,0,0,0", channelLetter(channel))
}
