package goble

import (
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/plugmini/internal/device"
)

// Link is a live go-ble connection with a discovered profile
type Link struct {
	address string
	client  GATTClient
	profile *ble.Profile
	logger  *logrus.Logger

	writeMutex sync.Mutex
	closeOnce  sync.Once
	closeErr   error
}

func newLink(address string, client GATTClient, profile *ble.Profile, logger *logrus.Logger) *Link {
	return &Link{
		address: address,
		client:  client,
		profile: profile,
		logger:  logger,
	}
}

func (l *Link) Address() string {
	return l.address
}

// Service looks up a discovered service by UUID.
// Returns a NotFoundError if the profile does not contain it.
func (l *Link) Service(uuid string) (device.RemoteService, error) {
	want, err := ble.Parse(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", uuid, err)
	}
	if l.profile != nil {
		for _, svc := range l.profile.Services {
			if svc.UUID.Equal(want) {
				return &remoteService{svc: svc, link: l}, nil
			}
		}
	}
	return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
}

// Disconnected returns the client's disconnect channel when the platform exposes one
func (l *Link) Disconnected() <-chan struct{} {
	if dc, ok := l.client.(interface{ Disconnected() <-chan struct{} }); ok {
		return dc.Disconnected()
	}
	l.logger.Debug("Client does not support Disconnected() channel")
	return nil
}

// Close cancels the connection. Safe to call more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = NormalizeError(l.client.CancelConnection())
		if l.closeErr != nil {
			l.logger.WithFields(logrus.Fields{
				"address": l.address,
				"error":   l.closeErr,
			}).Warn("BLE link closed with errors")
		} else {
			l.logger.WithField("address", l.address).Debug("BLE link closed")
		}
	})
	return l.closeErr
}

type remoteService struct {
	svc  *ble.Service
	link *Link
}

func (s *remoteService) UUID() string {
	return device.NormalizeUUID(s.svc.UUID.String())
}

func (s *remoteService) Characteristic(uuid string) (device.RemoteCharacteristic, error) {
	want, err := ble.Parse(uuid)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", uuid, err)
	}
	for _, c := range s.svc.Characteristics {
		if c.UUID.Equal(want) {
			return &remoteCharacteristic{char: c, link: s.link}, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{s.UUID(), uuid}}
}

type remoteCharacteristic struct {
	char *ble.Characteristic
	link *Link

	mu         sync.Mutex
	subscribed bool
	indicate   bool
}

func (c *remoteCharacteristic) UUID() string {
	return device.NormalizeUUID(c.char.UUID.String())
}

func (c *remoteCharacteristic) Properties() device.Property {
	return NewProperties(c.char.Property)
}

func (c *remoteCharacteristic) CanNotify() bool {
	return c.char.Property&(ble.CharNotify|ble.CharIndicate) != 0
}

// Write sends data to the characteristic; withResponse=false issues a write command
func (c *remoteCharacteristic) Write(data []byte, withResponse bool) error {
	c.link.writeMutex.Lock()
	defer c.link.writeMutex.Unlock()

	if err := c.link.client.WriteCharacteristic(c.char, data, !withResponse); err != nil {
		return fmt.Errorf("failed to write to characteristic %s: %w", c.UUID(), NormalizeError(err))
	}
	return nil
}

// Subscribe enables notifications, falling back to indications when notify is absent
func (c *remoteCharacteristic) Subscribe(handler func(data []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ind := c.char.Property&ble.CharNotify == 0 && c.char.Property&ble.CharIndicate != 0
	err := NormalizeError(c.link.client.Subscribe(c.char, ind, func(data []byte) {
		handler(data)
	}))
	if err != nil {
		c.link.logger.WithFields(logrus.Fields{
			"charUUID": c.UUID(),
			"error":    err,
		}).Error("Failed to subscribe to characteristic notifications")
		return fmt.Errorf("failed to subscribe to characteristic %s: %w", c.UUID(), err)
	}

	c.subscribed = true
	c.indicate = ind
	c.link.logger.WithFields(logrus.Fields{
		"charUUID": c.UUID(),
		"indicate": ind,
	}).Debug("Subscribed to characteristic notifications")
	return nil
}

func (c *remoteCharacteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.subscribed {
		return nil
	}
	c.subscribed = false
	if err := NormalizeError(c.link.client.Unsubscribe(c.char, c.indicate)); err != nil {
		return fmt.Errorf("failed to unsubscribe from characteristic %s: %w", c.UUID(), err)
	}
	return nil
}
