package plug

import (
	"fmt"
	"strings"
)

// Frame layout constants
const (
	frameMagic   byte = 0x57
	frameVersion byte = 0x0f

	opcodeWrite byte = 0x50
	opcodeRead  byte = 0x51

	powerChannel byte = 0x01

	actionSet    byte = 0x01
	actionToggle byte = 0x02

	statusAck byte = 0x01

	sentinelOff byte = 0x00
	sentinelOn  byte = 0x80

	responseLen = 2
)

// Op identifies a plug command
type Op uint8

const (
	OpGetPower Op = iota + 1
	OpSetPower
	OpTogglePower
)

// Command is a single plug request. On is only meaningful for OpSetPower.
type Command struct {
	Op Op
	On bool
}

var (
	GetPower    = Command{Op: OpGetPower}
	TogglePower = Command{Op: OpTogglePower}
)

// SetPower returns the command switching the plug to the requested state
func SetPower(on bool) Command {
	return Command{Op: OpSetPower, On: on}
}

func (c Command) String() string {
	switch c.Op {
	case OpGetPower:
		return "get-power"
	case OpSetPower:
		if c.On {
			return "set-power(on)"
		}
		return "set-power(off)"
	case OpTogglePower:
		return "toggle-power"
	default:
		return fmt.Sprintf("op(%d)", c.Op)
	}
}

// Frame builds the wire bytes for the command
func (c Command) Frame() []byte {
	switch c.Op {
	case OpGetPower:
		return []byte{frameMagic, frameVersion, opcodeRead, powerChannel}
	case OpSetPower:
		state := sentinelOff
		if c.On {
			state = sentinelOn
		}
		return []byte{frameMagic, frameVersion, opcodeWrite, powerChannel, actionSet, state}
	case OpTogglePower:
		return []byte{frameMagic, frameVersion, opcodeWrite, powerChannel, actionToggle, sentinelOn}
	default:
		return nil
	}
}

// ParseCommand maps a user-facing action name to a Command.
// Accepted: status|get, on, off, toggle.
func ParseCommand(action string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "status", "get":
		return GetPower, nil
	case "on":
		return SetPower(true), nil
	case "off":
		return SetPower(false), nil
	case "toggle":
		return TogglePower, nil
	default:
		return Command{}, fmt.Errorf("unknown action %q (must be status, on, off or toggle)", action)
	}
}

// PowerState is the decoded power state of the plug
type PowerState bool

const (
	PowerOff PowerState = false
	PowerOn  PowerState = true
)

func (p PowerState) String() string {
	if p {
		return "on"
	}
	return "off"
}

// DecodeResponse validates a response frame and decodes it for cmd.
//
// A frame is well-formed only when it is exactly two bytes and starts with the
// status acknowledgement. The second byte must be one of the power sentinels.
// For SetPower the decoded state must also equal the requested one.
func DecodeResponse(cmd Command, resp []byte) (PowerState, error) {
	if len(resp) != responseLen {
		return PowerOff, newError(CodeInvalidResponse, "", fmt.Errorf("expected %d bytes, got %d (% x)", responseLen, len(resp), resp))
	}
	if resp[0] != statusAck {
		return PowerOff, newError(CodeInvalidResponse, "", fmt.Errorf("unexpected status byte 0x%02x", resp[0]))
	}

	var state PowerState
	switch resp[1] {
	case sentinelOff:
		state = PowerOff
	case sentinelOn:
		state = PowerOn
	default:
		return PowerOff, newError(CodeInvalidResponse, "", fmt.Errorf("unexpected power byte 0x%02x", resp[1]))
	}

	if cmd.Op == OpSetPower && state != PowerState(cmd.On) {
		return state, newError(CodeOperationFailed, "", fmt.Errorf("requested power %s, plug reports %s", PowerState(cmd.On), state))
	}
	return state, nil
}

func hexBytes(b []byte) string {
	return fmt.Sprintf("% X", b)
}
