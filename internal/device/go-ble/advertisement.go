package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/plugmini/internal/device"
)

// BLEAdvertisement wraps ble.Advertisement to implement device.Advertisement interface
type BLEAdvertisement struct {
	adv ble.Advertisement
}

// NewBLEAdvertisement creates a new BLEAdvertisement wrapper
func NewBLEAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &BLEAdvertisement{adv: adv}
}

func (a *BLEAdvertisement) LocalName() string        { return a.adv.LocalName() }
func (a *BLEAdvertisement) ManufacturerData() []byte { return a.adv.ManufacturerData() }
func (a *BLEAdvertisement) Connectable() bool        { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int                { return a.adv.RSSI() }

func (a *BLEAdvertisement) Addr() string {
	addr := a.adv.Addr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

// ServiceData returns service-data elements in advertising order
func (a *BLEAdvertisement) ServiceData() []device.ServiceData {
	bleServiceData := a.adv.ServiceData()
	result := make([]device.ServiceData, len(bleServiceData))
	for i, sd := range bleServiceData {
		result[i] = device.ServiceData{
			UUID: device.NormalizeUUID(sd.UUID.String()),
			Data: sd.Data,
		}
	}
	return result
}

// Unwrap returns the underlying ble.Advertisement
func (a *BLEAdvertisement) Unwrap() ble.Advertisement {
	return a.adv
}
