package maple

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceInfoRoundTrip(t *testing.T) {
	info := DeviceInfo{
		Functions:      FnController,
		FunctionData:   [3]uint32{0x000f06fe, 0, 0},
		AreaCode:       0xff,
		ConnectorDir:   0,
		Product:        "Dreamcast Controller",
		License:        "Produced By or Under License From SEGA ENTERPRISES,LTD.",
		StandbyCurrent: 430,
		MaxCurrent:     500,
	}
	payload := info.Build()
	require.Len(t, payload, DeviceInfoWords)
	require.Equal(t, FnController, payload[0])
	require.Equal(t, uint32(0x000f06fe), payload[1])

	parsed, ok := ParseDeviceInfo(payload)
	require.True(t, ok)
	require.Equal(t, info, parsed)
}

func TestDeviceInfoTooShort(t *testing.T) {
	_, ok := ParseDeviceInfo(make([]uint32, DeviceInfoWords-1))
	require.False(t, ok)
}

func TestDeviceInfoIgnoresExtraWords(t *testing.T) {
	info := DeviceInfo{Functions: FnScreen, Product: "VMU"}
	payload := append(info.Build(), 0xdeadbeef)
	parsed, ok := ParseDeviceInfo(payload)
	require.True(t, ok)
	require.Equal(t, FnScreen, parsed.Functions)
	require.Equal(t, "VMU", parsed.Product)
}
