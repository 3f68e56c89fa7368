package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		// 16-bit UUID formats
		{name: "16-bit UUID lowercase", input: "fd3d", expected: "fd3d"},
		{name: "16-bit UUID uppercase", input: "FD3D", expected: "fd3d"},
		{name: "16-bit UUID with 0x prefix", input: "0x2902", expected: "2902"},
		{name: "16-bit UUID with 0X prefix", input: "0X2902", expected: "2902"},
		{name: "16-bit UUID with spaces", input: "  180f ", expected: "180f"},

		// Bluetooth SIG base UUIDs shorten to the 16-bit form
		{name: "SIG UUID with dashes", input: "0000180f-0000-1000-8000-00805f9b34fb", expected: "180f"},
		{name: "SIG UUID without dashes", input: "0000290200001000800000805f9b34fb", expected: "2902"},
		{name: "SIG UUID uppercase", input: "0000FD3D-0000-1000-8000-00805F9B34FB", expected: "fd3d"},

		// Custom 128-bit UUIDs are kept whole
		{name: "plug service", input: "cba20d00-224d-11e6-9fb8-0002a5d5c51b", expected: "cba20d00224d11e69fb80002a5d5c51b"},
		{name: "plug notify endpoint uppercase", input: "CBA20003-224D-11E6-9FB8-0002A5D5C51B", expected: "cba20003224d11e69fb80002a5d5c51b"},

		// 32-bit UUIDs
		{name: "32-bit UUID", input: "0000180F", expected: "0000180f"},

		// Invalid input
		{name: "empty", input: "", expected: ""},
		{name: "wrong length", input: "12345", expected: ""},
		{name: "non hex", input: "zzzz", expected: ""},
		{name: "non hex 128-bit", input: "cba20d00-224d-11e6-9fb8-0002a5d5c5zz", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestSameUUID(t *testing.T) {
	assert.True(t, SameUUID("180f", "0000180F-0000-1000-8000-00805f9b34fb"))
	assert.True(t, SameUUID("cba20002-224d-11e6-9fb8-0002a5d5c51b", "CBA20002224D11E69FB80002A5D5C51B"))
	assert.False(t, SameUUID("cba20002-224d-11e6-9fb8-0002a5d5c51b", "cba20003-224d-11e6-9fb8-0002a5d5c51b"))
	assert.False(t, SameUUID("", ""), "invalid UUIDs MUST never match")
	assert.False(t, SameUUID("xyz", "xyz"))
}

func TestShortenUUID(t *testing.T) {
	assert.Equal(t, "cba20d00", ShortenUUID("cba20d00224d11e69fb80002a5d5c51b"))
	assert.Equal(t, "180f", ShortenUUID("180f"))
}
