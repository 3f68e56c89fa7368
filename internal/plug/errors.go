package plug

import (
	"errors"
	"fmt"
)

// Code is a stable error identifier surfaced to callers and displays
type Code string

const (
	CodeDeviceNotFound         Code = "DEVICE_NOT_FOUND"
	CodeConnectFailed          Code = "CONNECT_FAILED"
	CodeServiceNotFound        Code = "SERVICE_NOT_FOUND"
	CodeWriteEndpointNotFound  Code = "CHAR_RX_NOT_FOUND"
	CodeNotifyEndpointNotFound Code = "CHAR_TX_NOT_FOUND"
	CodeNotifyUnsupported      Code = "CHAR_TX_NOT_SUPPORT_NOTIFY"
	CodeInvalidResponse        Code = "INVALID_RESPONSE"
	CodeOperationFailed        Code = "OPERATION_FAILED"
	CodeResponseTimeout        Code = "RESPONSE_TIMEOUT"
	CodeWriteFailed            Code = "WRITE_FAILED"
	CodeConnectionLost         Code = "CONNECTION_LOST"
	CodeCanceled               Code = "CANCELED"
	CodeUnsupportedCommand     Code = "UNSUPPORTED_COMMAND"
)

// Error is a plug operation failure carrying a stable Code.
// errors.Is matches two Errors by Code only.
type Error struct {
	Code    Code
	Address string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Code)
	if e.Address != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Address)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare Error values by Code
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors, one per code
var (
	ErrDeviceNotFound         = &Error{Code: CodeDeviceNotFound}
	ErrConnectFailed          = &Error{Code: CodeConnectFailed}
	ErrServiceNotFound        = &Error{Code: CodeServiceNotFound}
	ErrWriteEndpointNotFound  = &Error{Code: CodeWriteEndpointNotFound}
	ErrNotifyEndpointNotFound = &Error{Code: CodeNotifyEndpointNotFound}
	ErrNotifyUnsupported      = &Error{Code: CodeNotifyUnsupported}
	ErrInvalidResponse        = &Error{Code: CodeInvalidResponse}
	ErrOperationFailed        = &Error{Code: CodeOperationFailed}
	ErrResponseTimeout        = &Error{Code: CodeResponseTimeout}
	ErrWriteFailed            = &Error{Code: CodeWriteFailed}
	ErrConnectionLost         = &Error{Code: CodeConnectionLost}
	ErrCanceled               = &Error{Code: CodeCanceled}
	ErrUnsupportedCommand     = &Error{Code: CodeUnsupportedCommand}
)

func newError(code Code, address string, err error) *Error {
	return &Error{Code: code, Address: address, Err: err}
}

// CodeOf returns the Code carried by err, or "" if err is nil or not a plug error
func CodeOf(err error) Code {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}
