package maple

import "strings"

// DeviceInfoWords is the payload size of a device info reply.
const DeviceInfoWords = 28

// DeviceInfo is the decoded payload of a CmdRespDeviceInfo reply.
// Bytes are packed most significant first into the payload words:
// functions (4), function data (12), area code (1), connector
// direction (1), product name (30), license (60), standby current (2)
// and maximum current (2), both in tenths of a milliampere.
type DeviceInfo struct {
	Functions    uint32
	FunctionData [3]uint32
	AreaCode     byte
	ConnectorDir byte
	Product      string
	License      string
	// Currents are in units of 0.1 mA.
	StandbyCurrent uint16
	MaxCurrent     uint16
}

const (
	infoOffFunctionData = 4
	infoOffAreaCode     = 16
	infoOffConnectorDir = 17
	infoOffProduct      = 18
	infoOffLicense      = 48
	infoOffStandby      = 108
	infoOffMax          = 110

	infoProductLen = 30
	infoLicenseLen = 60
)

// ParseDeviceInfo decodes a device info payload. Returns false when
// the payload is too short to hold the block.
func ParseDeviceInfo(payload []uint32) (DeviceInfo, bool) {
	var info DeviceInfo
	if len(payload) < DeviceInfoWords {
		return info, false
	}
	b := WordsToBytes(payload[:DeviceInfoWords])
	info.Functions = payload[0]
	for i := range info.FunctionData {
		info.FunctionData[i] = payload[1+i]
	}
	info.AreaCode = b[infoOffAreaCode]
	info.ConnectorDir = b[infoOffConnectorDir]
	info.Product = trimPadding(b[infoOffProduct : infoOffProduct+infoProductLen])
	info.License = trimPadding(b[infoOffLicense : infoOffLicense+infoLicenseLen])
	info.StandbyCurrent = uint16(b[infoOffStandby])<<8 | uint16(b[infoOffStandby+1])
	info.MaxCurrent = uint16(b[infoOffMax])<<8 | uint16(b[infoOffMax+1])
	return info, true
}

// Build encodes the block back into a device info payload. Strings
// longer than their fields are truncated, shorter ones space padded.
func (info *DeviceInfo) Build() []uint32 {
	b := make([]byte, DeviceInfoWords*4)
	putWord(b[0:], info.Functions)
	for i, fd := range info.FunctionData {
		putWord(b[infoOffFunctionData+4*i:], fd)
	}
	b[infoOffAreaCode] = info.AreaCode
	b[infoOffConnectorDir] = info.ConnectorDir
	putPadded(b[infoOffProduct:infoOffProduct+infoProductLen], info.Product)
	putPadded(b[infoOffLicense:infoOffLicense+infoLicenseLen], info.License)
	b[infoOffStandby] = byte(info.StandbyCurrent >> 8)
	b[infoOffStandby+1] = byte(info.StandbyCurrent)
	b[infoOffMax] = byte(info.MaxCurrent >> 8)
	b[infoOffMax+1] = byte(info.MaxCurrent)
	return BytesToWords(b)
}

// VersionWords is the free form version area an extended device info
// reply appends to the block.
const VersionWords = 20

// ExtDeviceInfoWords is the payload size of an extended info reply.
const ExtDeviceInfoWords = DeviceInfoWords + VersionWords

// BuildExt encodes the block followed by the space padded version
// string, the payload of a CmdRespExtDeviceInfo reply.
func (info *DeviceInfo) BuildExt(version string) []uint32 {
	b := make([]byte, VersionWords*4)
	putPadded(b, version)
	return append(info.Build(), BytesToWords(b)...)
}

// WordsToBytes flattens words most significant byte first, the order
// block payloads are packed in.
func WordsToBytes(words []uint32) []byte {
	b := make([]byte, 0, len(words)*4)
	for _, w := range words {
		b = append(b, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	}
	return b
}

// BytesToWords packs bytes most significant first into words. Trailing
// bytes short of a whole word are dropped.
func BytesToWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[4*i])<<24 | uint32(b[4*i+1])<<16 |
			uint32(b[4*i+2])<<8 | uint32(b[4*i+3])
	}
	return words
}

func putWord(b []byte, w uint32) {
	b[0], b[1], b[2], b[3] = byte(w>>24), byte(w>>16), byte(w>>8), byte(w)
}

func putPadded(dst []byte, s string) {
	n := copy(dst, s)
	for ; n < len(dst); n++ {
		dst[n] = ' '
	}
}

func trimPadding(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}
