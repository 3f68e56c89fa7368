package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/plugmini/internal/device"
)

// messageErrors maps lowercase fragments of platform error messages to device
// errors. Checked in order; the first match wins.
var messageErrors = []struct {
	fragment string
	target   error
}{
	{"is bluetooth turned on", device.ErrBluetoothOff},
	{"bluetooth is turned off", device.ErrBluetoothOff},
	{"powered off", device.ErrBluetoothOff},
	{"device already connected", device.ErrAlreadyConnected},
	{"device not connected", device.ErrNotConnected},
	{"disconnected", device.ErrNotConnected},
	{"connection is not initialized", device.ErrNotInitialized},
	{"timed out", device.ErrTimeout},
	{"timeout", device.ErrTimeout},
}

// NormalizeError maps go-ble and platform errors seen on the scan, dial,
// write and subscribe paths to device errors. The original error text is kept.
//
// Context errors pass through unchanged. ATT error responses (e.g. a refused
// write or a CCCD the plug will not enable) become device.ErrRejected.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var attErr ble.ATTError
	if errors.As(err, &attErr) && attErr != ble.ErrSuccess {
		return fmt.Errorf("%w: %w", device.ErrRejected, err)
	}
	if errors.Is(err, ble.ErrNotImplemented) {
		return fmt.Errorf("%w: %v", device.ErrUnsupported, err)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range messageErrors {
		if strings.Contains(msg, m.fragment) {
			return fmt.Errorf("%w: %v", m.target, err)
		}
	}
	return err
}
