package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/plugmini/internal/device"
)

// Transport implements device.Transport on a go-ble radio.
// The radio is created lazily on first use and shared by scans and dials.
type Transport struct {
	logger *logrus.Logger

	mu    sync.Mutex
	radio Radio
}

// NewTransport creates a go-ble backed transport
func NewTransport(logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{logger: logger}
}

func (t *Transport) getRadio() (Radio, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.radio != nil {
		return t.radio, nil
	}

	radio, err := DeviceFactory()
	if err != nil {
		t.logger.WithError(err).Error("Failed to create BLE device")
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	t.radio = radio
	return radio, nil
}

// Scan runs a discovery scan until ctx is done, converting reports to device.Advertisement.
// Context cancellation and deadline are returned as-is; other errors are normalized.
func (t *Transport) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	radio, err := t.getRadio()
	if err != nil {
		return err
	}

	t.logger.WithField("allow_dup", allowDup).Debug("Starting BLE scan...")

	err = radio.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return NormalizeError(err)
	}
	return nil
}

// Dial connects to the peripheral and discovers its GATT profile
func (t *Transport) Dial(ctx context.Context, address string) (device.Link, error) {
	if strings.TrimSpace(address) == "" {
		t.logger.Error("Connection attempt with empty address")
		return nil, fmt.Errorf("device address is empty")
	}

	radio, err := t.getRadio()
	if err != nil {
		return nil, err
	}

	t.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := radio.Dial(ctx, address)
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	t.logger.WithField("address", address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to discover profile")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			t.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	t.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(profile.Services),
	}).Debug("Profile discovered successfully")

	return newLink(address, client, profile, t.logger), nil
}

// Close stops the radio if it was created
func (t *Transport) Close() error {
	t.mu.Lock()
	radio := t.radio
	t.radio = nil
	t.mu.Unlock()

	if radio == nil {
		return nil
	}
	return NormalizeError(radio.Stop())
}
