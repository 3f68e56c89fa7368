package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/plugmini/internal/device"
)

// propertyMap pairs go-ble characteristic property flags with their device.Property bit
var propertyMap = []struct {
	ble ble.Property
	dev device.Property
}{
	{ble.CharBroadcast, device.PropBroadcast},
	{ble.CharRead, device.PropRead},
	{ble.CharWriteNR, device.PropWriteWithoutResponse},
	{ble.CharWrite, device.PropWrite},
	{ble.CharNotify, device.PropNotify},
	{ble.CharIndicate, device.PropIndicate},
}

// NewProperties converts ble.Property bit flags to a device.Property set.
// Flags without a device counterpart (signed writes, extended) are dropped.
func NewProperties(p ble.Property) device.Property {
	var props device.Property
	for _, m := range propertyMap {
		if p&m.ble != 0 {
			props |= m.dev
		}
	}
	return props
}
