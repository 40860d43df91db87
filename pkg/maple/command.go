package maple

// Command codes.
const (
	CmdDeviceInfoRequest    byte = 0x01
	CmdExtDeviceInfoRequest byte = 0x02
	CmdReset                byte = 0x03
	CmdShutdown             byte = 0x04
	CmdRespDeviceInfo       byte = 0x05
	CmdRespExtDeviceInfo    byte = 0x06
	CmdRespAck              byte = 0x07
	CmdRespDataXfer         byte = 0x08
	CmdGetCondition         byte = 0x09
	CmdGetMemoryInfo        byte = 0x0a
	CmdBlockRead            byte = 0x0b
	CmdBlockWrite           byte = 0x0c
	CmdGetLastError         byte = 0x0d
	CmdSetCondition         byte = 0x0e
	CmdRespRequestResend    byte = 0xfc
	CmdRespUnknownCommand   byte = 0xfd
	CmdRespFnUnsupported    byte = 0xfe
)

// Function codes advertise peripheral capabilities in device info
// replies and select the target function of storage/screen commands.
const (
	FnController uint32 = 0x00000001
	FnStorage    uint32 = 0x00000002
	FnScreen     uint32 = 0x00000004
	FnTimer      uint32 = 0x00000008
	FnMic        uint32 = 0x00000010
	FnARGun      uint32 = 0x00000020
	FnKeyboard   uint32 = 0x00000040
	FnGun        uint32 = 0x00000080
	FnVibration  uint32 = 0x00000100
	FnMouse      uint32 = 0x00000200
	FnExMedia    uint32 = 0x00000400
	FnCamera     uint32 = 0x00000800
)
