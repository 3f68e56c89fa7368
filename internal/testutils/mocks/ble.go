// Package mocks holds testify mocks for the go-ble surfaces the transport adapter drives.
package mocks

import (
	"context"

	"github.com/go-ble/ble"
	goble "github.com/srg/plugmini/internal/device/go-ble"
	"github.com/stretchr/testify/mock"
)

// MockAddr is a mock ble.Addr
type MockAddr struct {
	mock.Mock
}

func (m *MockAddr) String() string {
	args := m.Called()
	return args.String(0)
}

// MockAdvertisement is a mock ble.Advertisement.
// Methods of ble.Advertisement not overridden here panic if called.
type MockAdvertisement struct {
	mock.Mock
	ble.Advertisement
}

func (m *MockAdvertisement) LocalName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockAdvertisement) ManufacturerData() []byte {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]byte)
	}
	return nil
}

func (m *MockAdvertisement) ServiceData() []ble.ServiceData {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.ServiceData)
	}
	return nil
}

func (m *MockAdvertisement) Services() []ble.UUID {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.UUID)
	}
	return nil
}

func (m *MockAdvertisement) TxPowerLevel() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockAdvertisement) Connectable() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockAdvertisement) RSSI() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockAdvertisement) Addr() ble.Addr {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(ble.Addr)
	}
	return nil
}

// MockRadio is a mock goble.Radio
type MockRadio struct {
	mock.Mock
}

func (m *MockRadio) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	args := m.Called(ctx, allowDup, h)
	return args.Error(0)
}

func (m *MockRadio) Dial(ctx context.Context, address string) (goble.GATTClient, error) {
	args := m.Called(ctx, address)
	if v := args.Get(0); v != nil {
		return v.(goble.GATTClient), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRadio) Stop() error {
	args := m.Called()
	return args.Error(0)
}

// MockGATTClient is a mock goble.GATTClient
type MockGATTClient struct {
	mock.Mock
}

func (m *MockGATTClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	if v := args.Get(0); v != nil {
		return v.(*ble.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGATTClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	args := m.Called(c, value, noRsp)
	return args.Error(0)
}

func (m *MockGATTClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	args := m.Called(c, ind, h)
	return args.Error(0)
}

func (m *MockGATTClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	args := m.Called(c, ind)
	return args.Error(0)
}

func (m *MockGATTClient) CancelConnection() error {
	args := m.Called()
	return args.Error(0)
}

// MockDisconnectingClient is a MockGATTClient that also reports link loss
type MockDisconnectingClient struct {
	MockGATTClient
	Done chan struct{}
}

func (m *MockDisconnectingClient) Disconnected() <-chan struct{} {
	return m.Done
}
