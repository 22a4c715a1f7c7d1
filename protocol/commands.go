// Package protocol serves the masthead register file to a bus master and
// provides the master side client.
//
// The master writes a command byte, optionally followed by a payload, and
// then reads the response. The slave sees the transfer as a stream of
// receive, request and end-of-transaction events.
package protocol

import "fmt"

type Command byte

const (
	SetRTC            Command = 0x00
	ReadRTC           Command = 0x01
	ReadWindSpeed     Command = 0x02
	ReadWindDirection Command = 0x03
	ReadRainRate      Command = 0x04
	ReadRainDaily     Command = 0x05
	// diagnostic, int32 little endian
	ReadRainPulses Command = 0x06
)

func (c Command) String() string {
	switch c {
	case SetRTC:
		return "SET_RTC"
	case ReadRTC:
		return "READ_RTC"
	case ReadWindSpeed:
		return "READ_WIND_SPEED"
	case ReadWindDirection:
		return "READ_WIND_DIRECTION"
	case ReadRainRate:
		return "READ_RAIN_RATE"
	case ReadRainDaily:
		return "READ_RAIN_DAILY"
	case ReadRainPulses:
		return "READ_RAIN_PULSES"
	}
	return fmt.Sprintf("0x%02X", byte(c))
}

type State int

const (
	Idle State = iota
	AwaitingCommandPayload
	RespondingCommandPending
	Responding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingCommandPayload:
		return "AwaitingCommandPayload"
	case RespondingCommandPending:
		return "RespondingCommandPending"
	case Responding:
		return "Responding"
	}
	return "unknown"
}
