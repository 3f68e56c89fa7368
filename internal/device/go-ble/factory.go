package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// Radio is the part of ble.Device the transport drives
type Radio interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, address string) (GATTClient, error)
	Stop() error
}

// GATTClient is the part of ble.Client a Link drives
type GATTClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// DeviceFactory creates the platform radio (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (Radio, error) {
	dev, err := newPlatformDevice()
	if err != nil {
		return nil, err
	}
	return &bleRadio{dev: dev}, nil
}

// bleRadio adapts a ble.Device to Radio
type bleRadio struct {
	dev ble.Device
}

func (r *bleRadio) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return r.dev.Scan(ctx, allowDup, h)
}

func (r *bleRadio) Dial(ctx context.Context, address string) (GATTClient, error) {
	client, err := r.dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *bleRadio) Stop() error {
	return r.dev.Stop()
}
