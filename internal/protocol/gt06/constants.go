// Package gt06 implements framing, decoding and command encoding for the GT06 GPS protocol
package gt06

import "fmt"

// Frame markers
const (
	HeaderBasic    uint16 = 0x7878
	HeaderExtended uint16 = 0x7979
	Footer         uint16 = 0x0D0A

	basicOverhead    = 5
	extendedOverhead = 6
)

// Message types
const (
	MsgLogin          byte = 0x01
	MsgGPS            byte = 0x10
	MsgGPSLBS6        byte = 0x11
	MsgGPSLBS1        byte = 0x12
	MsgStatus         byte = 0x13
	MsgString         byte = 0x15
	MsgGPSLBSStatus1  byte = 0x16
	MsgWifi           byte = 0x17
	MsgLBSExtend      byte = 0x18
	MsgLBSStatus      byte = 0x19
	MsgGPSLBS2        byte = 0x22
	MsgHeartbeat      byte = 0x23
	MsgLBSMultiple3   byte = 0x24
	MsgGPSLBSStatus2  byte = 0x26
	MsgGPSLBSStatus3  byte = 0x27
	MsgLBSMultiple1   byte = 0x28
	MsgAddressRequest byte = 0x2A
	MsgLBSWifi        byte = 0x2C
	MsgGPSLBS4        byte = 0x2D
	MsgLBSMultiple2   byte = 0x2E
	MsgGPSLBSStatus4  byte = 0x32
	MsgGPSLBS5        byte = 0x34
	MsgGPSLBS3        byte = 0x37
	MsgWifi2          byte = 0x69
	MsgCommand0       byte = 0x80
	MsgCommand1       byte = 0x81
	MsgCommand2       byte = 0x82
	MsgTimeRequest    byte = 0x8A
	MsgInfo           byte = 0x94
	MsgAlarm          byte = 0x95
	MsgAddressReply   byte = 0x97
	MsgGPSLBSStatus5  byte = 0xA2
	MsgWifi3          byte = 0xA2
	MsgWifi4          byte = 0xF3
)

// addressPlaceholder is returned for address requests; geocoding happens elsewhere.
const addressPlaceholder = "NA&&NA&&0##"

func isGPSType(t byte) bool {
	switch t {
	case MsgGPS, MsgGPSLBS1, MsgGPSLBS2, MsgGPSLBS3, MsgGPSLBS4, MsgGPSLBS5, MsgGPSLBS6,
		MsgGPSLBSStatus1, MsgGPSLBSStatus2, MsgGPSLBSStatus3, MsgGPSLBSStatus4, MsgGPSLBSStatus5:
		return true
	}
	return false
}

func hasLBS(t byte) bool {
	switch t {
	case MsgGPSLBS1, MsgGPSLBS2, MsgGPSLBS3, MsgGPSLBS4, MsgGPSLBS5, MsgGPSLBS6,
		MsgGPSLBSStatus1, MsgGPSLBSStatus2, MsgGPSLBSStatus3, MsgGPSLBSStatus4, MsgGPSLBSStatus5,
		MsgLBSStatus, MsgLBSMultiple1, MsgLBSMultiple2, MsgLBSMultiple3:
		return true
	}
	return false
}

func hasStatus(t byte) bool {
	switch t {
	case MsgStatus, MsgGPSLBSStatus1, MsgGPSLBSStatus2, MsgGPSLBSStatus3, MsgGPSLBSStatus4,
		MsgGPSLBSStatus5, MsgLBSStatus:
		return true
	}
	return false
}

func hasLBSLength(t byte) bool {
	return t == MsgGPSLBSStatus1 || t == MsgGPSLBSStatus2 || t == MsgGPSLBSStatus3
}

// hasGPSLength reports message types whose GPS block carries a separate sub-length byte
func hasGPSLength(t byte) bool {
	return t == MsgGPSLBS2
}

// hasIgnitionTrailer reports message types ending with the ignition, event and archive bytes
func hasIgnitionTrailer(t byte) bool {
	return t == MsgGPSLBS2 || t == MsgGPSLBS3 || t == MsgGPSLBS4 || t == MsgGPSLBS5
}

func isWifiType(t byte) bool {
	return t == MsgWifi || t == MsgWifi2 || t == MsgWifi3 || t == MsgWifi4
}

func isLBSType(t byte) bool {
	switch t {
	case MsgLBSMultiple1, MsgLBSMultiple2, MsgLBSMultiple3, MsgLBSWifi, MsgLBSExtend, MsgLBSStatus:
		return true
	}
	return false
}

// GetMessageTypeName returns a human-readable name for message types
func GetMessageTypeName(msgType byte) string {
	switch {
	case msgType == MsgLogin:
		return "login"
	case msgType == MsgHeartbeat:
		return "heartbeat"
	case msgType == MsgStatus:
		return "status"
	case isGPSType(msgType):
		return "gps"
	case isWifiType(msgType):
		return "wifi"
	case isLBSType(msgType):
		return "lbs"
	case msgType == MsgString:
		return "string"
	case msgType == MsgInfo:
		return "info"
	case msgType == MsgAlarm:
		return "alarm"
	case msgType == MsgTimeRequest:
		return "time_request"
	case msgType == MsgAddressRequest:
		return "address_request"
	case msgType == MsgCommand0 || msgType == MsgCommand1 || msgType == MsgCommand2:
		return "command"
	default:
		return fmt.Sprintf("unknown_0x%02x", msgType)
	}
}
