package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/plugmini/internal/device"
	"github.com/srg/plugmini/internal/testutils/mocks"
)

// Plug advertisement signature
var (
	PlugVendorID   = []byte{0x69, 0x09}
	PlugModelByte  = byte('j')
	PlugServiceID  = "fd3d"
	PlugPayloadLen = 14
)

// Advertisement is a static device.Advertisement
type Advertisement struct {
	Name        string
	Address     string
	Rssi        int
	Manufacture []byte
	Services    []device.ServiceData
	Connect     bool
}

func (a *Advertisement) LocalName() string                 { return a.Name }
func (a *Advertisement) ManufacturerData() []byte          { return a.Manufacture }
func (a *Advertisement) ServiceData() []device.ServiceData { return a.Services }
func (a *Advertisement) Connectable() bool                 { return a.Connect }
func (a *Advertisement) RSSI() int                         { return a.Rssi }
func (a *Advertisement) Addr() string                      { return a.Address }

// AdvertisementBuilder builds advertisements for scans.
// It provides a fluent API; Build returns a static device.Advertisement and
// BuildBLE returns a mocked ble.Advertisement for the go-ble adapter.
type AdvertisementBuilder struct {
	name        string
	address     string
	rssi        int
	manufData   []byte
	serviceData []device.ServiceData
	connectable bool
}

// NewAdvertisementBuilder creates a builder for a connectable advertisement with RSSI -60
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{
		rssi:        -60,
		connectable: true,
	}
}

// NewPlugAdvertisement starts from an advertisement that passes every plug filter
func NewPlugAdvertisement(address string) *AdvertisementBuilder {
	payload := make([]byte, PlugPayloadLen)
	copy(payload, PlugVendorID)
	for i := len(PlugVendorID); i < PlugPayloadLen; i++ {
		payload[i] = byte(i)
	}

	return NewAdvertisementBuilder().
		WithAddress(address).
		WithManufacturerData(payload).
		WithServiceData(PlugServiceID, []byte{PlugModelByte, 0x00, 0x80})
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	return b
}

// WithManufacturerData sets the manufacturer-specific data.
func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.manufData = data
	return b
}

// WithServiceData appends a service-data entry; entries keep insertion order.
func (b *AdvertisementBuilder) WithServiceData(uuid string, data []byte) *AdvertisementBuilder {
	b.serviceData = append(b.serviceData, device.ServiceData{UUID: device.NormalizeUUID(uuid), Data: data})
	return b
}

// WithNoServiceData removes all service-data entries.
func (b *AdvertisementBuilder) WithNoServiceData() *AdvertisementBuilder {
	b.serviceData = nil
	return b
}

// WithConnectable sets whether the device accepts connections.
func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.connectable = c
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Panics on invalid JSON as this is intended for test data setup.
//
//	{"name": "...", "address": "...", "rssi": -50, "manufacturerData": [105, 9],
//	 "serviceData": [{"uuid": "fd3d", "data": [106]}]}
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	var data struct {
		Name             *string `json:"name"`
		Address          *string `json:"address"`
		RSSI             *int    `json:"rssi"`
		ManufacturerData []int   `json:"manufacturerData"`
		ServiceData      []struct {
			UUID string `json:"uuid"`
			Data []int  `json:"data"`
		} `json:"serviceData"`
		Connectable *bool `json:"connectable"`
	}

	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}

	if data.Name != nil {
		b.name = *data.Name
	}
	if data.Address != nil {
		b.address = *data.Address
	}
	if data.RSSI != nil {
		b.rssi = *data.RSSI
	}
	if data.ManufacturerData != nil {
		b.manufData = toBytes(data.ManufacturerData)
	}
	for _, sd := range data.ServiceData {
		b.WithServiceData(sd.UUID, toBytes(sd.Data))
	}
	if data.Connectable != nil {
		b.connectable = *data.Connectable
	}
	return b
}

func toBytes(values []int) []byte {
	out := make([]byte, len(values))
	for i, v := range values {
		out[i] = byte(v)
	}
	return out
}

// Build creates a static device.Advertisement
func (b *AdvertisementBuilder) Build() *Advertisement {
	services := make([]device.ServiceData, len(b.serviceData))
	copy(services, b.serviceData)
	return &Advertisement{
		Name:        b.name,
		Address:     b.address,
		Rssi:        b.rssi,
		Manufacture: b.manufData,
		Services:    services,
		Connect:     b.connectable,
	}
}

// BuildBLE creates a MockAdvertisement implementing ble.Advertisement.
// Expectations are optional so tests only pay for what the code reads.
func (b *AdvertisementBuilder) BuildBLE() *mocks.MockAdvertisement {
	var bleServiceData []ble.ServiceData
	for _, sd := range b.serviceData {
		bleServiceData = append(bleServiceData, ble.ServiceData{
			UUID: ble.MustParse(sd.UUID),
			Data: sd.Data,
		})
	}

	addr := &mocks.MockAddr{}
	addr.On("String").Return(b.address).Maybe()

	adv := &mocks.MockAdvertisement{}
	adv.On("Addr").Return(addr).Maybe()
	adv.On("LocalName").Return(b.name).Maybe()
	adv.On("RSSI").Return(b.rssi).Maybe()
	adv.On("ManufacturerData").Return(b.manufData).Maybe()
	adv.On("ServiceData").Return(bleServiceData).Maybe()
	adv.On("Connectable").Return(b.connectable).Maybe()
	return adv
}
