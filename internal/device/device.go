package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Operation errors
var (
	ErrBluetoothOff = errors.New("bluetooth is turned off")
	ErrUnsupported  = errors.New("unsupported")
	ErrTimeout      = errors.New("timed out")
	ErrRejected     = errors.New("rejected by peripheral")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// ServiceData is a single service-data element of an advertisement
type ServiceData struct {
	UUID string
	Data []byte
}

// Advertisement is a received advertising report
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	ServiceData() []ServiceData
	Connectable() bool
	RSSI() int
	Addr() string
}

// Scanner represents a radio capable of scanning for advertisements.
// Scan blocks until ctx is done or the scan fails.
type Scanner interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Dialer establishes GATT links to peripherals by address
type Dialer interface {
	Dial(ctx context.Context, address string) (Link, error)
}

// Transport is the full capability set a peripheral client needs from the radio
type Transport interface {
	Scanner
	Dialer
}

// Link is an established transport-level connection to one peripheral
type Link interface {
	Address() string
	Service(uuid string) (RemoteService, error)
	// Disconnected is closed when the peripheral drops the link.
	// Nil when the platform cannot report it.
	Disconnected() <-chan struct{}
	Close() error
}

// RemoteService is a GATT service resolved on the peripheral
type RemoteService interface {
	UUID() string
	Characteristic(uuid string) (RemoteCharacteristic, error)
}

// RemoteCharacteristic is a GATT characteristic resolved on the peripheral
type RemoteCharacteristic interface {
	UUID() string
	Properties() Property
	CanNotify() bool
	Write(data []byte, withResponse bool) error
	Subscribe(handler func(data []byte)) error
	Unsubscribe() error
}

// Property is a bit set of GATT characteristic properties
type Property uint8

const (
	PropBroadcast Property = 1 << iota
	PropRead
	PropWriteWithoutResponse
	PropWrite
	PropNotify
	PropIndicate
)

var propertyNames = []struct {
	p    Property
	name string
}{
	{PropBroadcast, "broadcast"},
	{PropRead, "read"},
	{PropWriteWithoutResponse, "write-without-response"},
	{PropWrite, "write"},
	{PropNotify, "notify"},
	{PropIndicate, "indicate"},
}

// Has reports whether all bits of f are set
func (p Property) Has(f Property) bool {
	return p&f == f
}

func (p Property) String() string {
	var names []string
	for _, pn := range propertyNames {
		if p.Has(pn.p) {
			names = append(names, pn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
