package gt06

import (
	"context"
	"errors"

	"gt06gateway/internal/core/model"
)

// Common errors
var (
	ErrFrameSync          = errors.New("no GT06 header at buffer start")
	ErrIncompleteFrame    = errors.New("incomplete GT06 frame")
	ErrMalformedFrame     = errors.New("malformed GT06 frame")
	ErrChecksumMismatch   = errors.New("invalid checksum")
	ErrUnknownMessageType = errors.New("unsupported message type")
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrNotLoggedIn        = errors.New("message before login")
	ErrInvalidTimestamp   = errors.New("invalid timestamp values")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrInvalidParameter   = errors.New("invalid parameter")
)

// Frame is one delimited protocol message
type Frame struct {
	Header   uint16
	Length   int
	Type     byte
	Payload  []byte
	Index    uint16
	Checksum uint16
}

// Extended reports whether the frame uses the 0x7979 header
func (f *Frame) Extended() bool {
	return f.Header == HeaderExtended
}

// Kind identifies the semantic event carried by a decoded message
type Kind int

const (
	KindNone Kind = iota
	KindLogin
	KindHeartbeat
	KindPosition
	KindStatus
	KindWifi
	KindLBS
	KindStringInfo
	KindAlarm
	KindTimeRequest
	KindAddressRequest
)

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindHeartbeat:
		return "heartbeat"
	case KindPosition:
		return "position"
	case KindStatus:
		return "status"
	case KindWifi:
		return "wifi"
	case KindLBS:
		return "lbs"
	case KindStringInfo:
		return "string"
	case KindAlarm:
		return "alarm"
	case KindTimeRequest:
		return "time_request"
	case KindAddressRequest:
		return "address_request"
	default:
		return "none"
	}
}

// Message is the outcome of decoding one frame. Response, when set, must be
// written back to the originating connection.
type Message struct {
	Kind     Kind
	Type     byte
	Index    uint16
	Variant  Variant
	IMEI     string
	Position *model.Position
	Response []byte
}

// PositionLookup provides the last known position of a device
type PositionLookup interface {
	GetLastPosition(ctx context.Context, deviceID string) (*model.Position, error)
}
