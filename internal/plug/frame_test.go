package plug

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandFrame(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected []byte
	}{
		{name: "get power", cmd: GetPower, expected: []byte{0x57, 0x0f, 0x51, 0x01}},
		{name: "set power on", cmd: SetPower(true), expected: []byte{0x57, 0x0f, 0x50, 0x01, 0x01, 0x80}},
		{name: "set power off", cmd: SetPower(false), expected: []byte{0x57, 0x0f, 0x50, 0x01, 0x01, 0x00}},
		{name: "toggle", cmd: TogglePower, expected: []byte{0x57, 0x0f, 0x50, 0x01, 0x02, 0x80}},
		{name: "unknown op", cmd: Command{Op: 99}, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cmd.Frame(), "frame bytes MUST match the wire format")
		})
	}
}

func TestCommandFrame_FreshPerCall(t *testing.T) {
	first := GetPower.Frame()
	first[0] = 0xff

	assert.Equal(t, byte(0x57), GetPower.Frame()[0], "frames MUST be built fresh for every call")
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		resp     []byte
		expected PowerState
		code     Code
	}{
		{name: "get power off", cmd: GetPower, resp: []byte{0x01, 0x00}, expected: PowerOff},
		{name: "get power on", cmd: GetPower, resp: []byte{0x01, 0x80}, expected: PowerOn},
		{name: "toggle reports new state", cmd: TogglePower, resp: []byte{0x01, 0x80}, expected: PowerOn},
		{name: "set on confirmed", cmd: SetPower(true), resp: []byte{0x01, 0x80}, expected: PowerOn},
		{name: "set off confirmed", cmd: SetPower(false), resp: []byte{0x01, 0x00}, expected: PowerOff},
		{name: "empty", cmd: GetPower, resp: nil, code: CodeInvalidResponse},
		{name: "one byte", cmd: GetPower, resp: []byte{0x01}, code: CodeInvalidResponse},
		{name: "three bytes", cmd: GetPower, resp: []byte{0x01, 0x80, 0x00}, code: CodeInvalidResponse},
		{name: "bad status", cmd: GetPower, resp: []byte{0x05, 0x80}, code: CodeInvalidResponse},
		{name: "bad state byte", cmd: GetPower, resp: []byte{0x01, 0x42}, code: CodeInvalidResponse},
		{name: "bad state byte on set", cmd: SetPower(true), resp: []byte{0x01, 0x01}, code: CodeInvalidResponse},
		{name: "set on refused", cmd: SetPower(true), resp: []byte{0x01, 0x00}, expected: PowerOff, code: CodeOperationFailed},
		{name: "set off refused", cmd: SetPower(false), resp: []byte{0x01, 0x80}, expected: PowerOn, code: CodeOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := DecodeResponse(tt.cmd, tt.resp)

			if tt.code == "" {
				require.NoError(t, err, "well-formed response MUST decode")
				assert.Equal(t, tt.expected, state)
				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err), "error code MUST match")
			if tt.code == CodeOperationFailed {
				assert.Equal(t, tt.expected, state, "refused set MUST still report the decoded state")
			}
		})
	}
}

func TestDecodeResponse_BadStatusForEveryCommand(t *testing.T) {
	commands := []Command{GetPower, SetPower(true), SetPower(false), TogglePower}
	for _, resp := range [][]byte{{0x02, 0x80}, {0x00, 0x80}, {0x02, 0x00}} {
		for _, cmd := range commands {
			t.Run(fmt.Sprintf("%s % x", cmd, resp), func(t *testing.T) {
				_, err := DecodeResponse(cmd, resp)
				assert.ErrorIs(t, err, ErrInvalidResponse, "non-ack status MUST be invalid for every command")
				assert.NotErrorIs(t, err, ErrOperationFailed, "status MUST be checked before the outcome")
			})
		}
	}
}

func TestDecodeResponse_AnyOtherLengthIsInvalid(t *testing.T) {
	for n := 0; n <= 8; n++ {
		if n == 2 {
			continue
		}
		resp := make([]byte, n)
		if n > 0 {
			resp[0] = 0x01
		}
		_, err := DecodeResponse(GetPower, resp)
		assert.ErrorIs(t, err, ErrInvalidResponse, "length %d MUST be rejected", n)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		expected Command
		wantErr  bool
	}{
		{input: "status", expected: GetPower},
		{input: "get", expected: GetPower},
		{input: "ON", expected: SetPower(true)},
		{input: " off ", expected: SetPower(false)},
		{input: "toggle", expected: TogglePower},
		{input: "dim", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := ParseCommand(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cmd)
		})
	}
}

func TestCommandAndStateStrings(t *testing.T) {
	assert.Equal(t, "get-power", GetPower.String())
	assert.Equal(t, "set-power(on)", SetPower(true).String())
	assert.Equal(t, "set-power(off)", SetPower(false).String())
	assert.Equal(t, "toggle-power", TogglePower.String())
	assert.Equal(t, "on", PowerOn.String())
	assert.Equal(t, "off", PowerOff.String())
}

func TestError(t *testing.T) {
	cause := errors.New("radio busy")
	err := newError(CodeConnectFailed, "aa:bb", cause)

	assert.Equal(t, "CONNECT_FAILED [aa:bb]: radio busy", err.Error())
	assert.ErrorIs(t, err, ErrConnectFailed, "errors.Is MUST match by code")
	assert.ErrorIs(t, err, cause, "cause MUST stay reachable")
	assert.NotErrorIs(t, err, ErrServiceNotFound)
	assert.Equal(t, CodeConnectFailed, CodeOf(err))
	assert.Equal(t, Code(""), CodeOf(cause))
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, "DEVICE_NOT_FOUND", ErrDeviceNotFound.Error())
}
