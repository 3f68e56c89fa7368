package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/plugmini/internal/device"
	"github.com/srg/plugmini/internal/plug"
)

// Command-level errors
var (
	// ErrNoAddress indicates that no plug address was given by argument, flag or config.
	ErrNoAddress = errors.New("no plug address: pass it as an argument, with --address, or set address in the config file")
)

// FormatUserError turns an error into a one-line message for the terminal
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off. Turn it on and try again."
	case device.IsConnectionState(err, device.AlreadyConnected):
		return "the plug already has an open session in this process"
	case errors.Is(err, device.ErrUnsupported) && plug.CodeOf(err) == "":
		return fmt.Sprintf("Bluetooth is not supported on this platform (%v)", err)
	case errors.Is(err, context.DeadlineExceeded) && plug.CodeOf(err) == "":
		return "operation timed out"
	}

	var perr *plug.Error
	if !errors.As(err, &perr) {
		return err.Error()
	}

	target := "the plug"
	if perr.Address != "" {
		target = "plug " + perr.Address
	}

	var hint string
	switch perr.Code {
	case plug.CodeDeviceNotFound:
		hint = fmt.Sprintf("%s was not found; check that it is powered and in range (run 'plugmini discover')", target)
	case plug.CodeConnectFailed:
		hint = fmt.Sprintf("could not connect to %s", target)
	case plug.CodeServiceNotFound, plug.CodeWriteEndpointNotFound, plug.CodeNotifyEndpointNotFound, plug.CodeNotifyUnsupported:
		hint = fmt.Sprintf("%s does not look like a Plug Mini", target)
	case plug.CodeInvalidResponse:
		hint = fmt.Sprintf("%s sent an unexpected reply", target)
	case plug.CodeOperationFailed:
		hint = fmt.Sprintf("%s did not switch to the requested state", target)
	case plug.CodeResponseTimeout:
		hint = fmt.Sprintf("%s did not reply in time", target)
	case plug.CodeWriteFailed:
		hint = fmt.Sprintf("could not send the command to %s", target)
	case plug.CodeConnectionLost:
		hint = fmt.Sprintf("connection to %s was lost", target)
	case plug.CodeUnsupportedCommand:
		hint = fmt.Sprintf("%s cannot run this command", target)
	case plug.CodeCanceled:
		return "canceled"
	default:
		return err.Error()
	}

	if perr.Err != nil {
		return fmt.Sprintf("%s [%s]: %v", hint, perr.Code, perr.Err)
	}
	return fmt.Sprintf("%s [%s]", hint, perr.Code)
}
