package gt06

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gt06gateway/internal/core/model"
)

// Protocol is the label stamped on every decoded position
const Protocol = "gt06"

// Decoder turns validated frames into semantic messages.
// It is safe for concurrent use.
type Decoder struct {
	lookup PositionLookup
	log    zerolog.Logger
	now    func() time.Time
}

// NewDecoder creates a decoder. lookup may be nil, in which case reports
// without a fix of their own are not backfilled.
func NewDecoder(lookup PositionLookup, logger zerolog.Logger) *Decoder {
	return &Decoder{
		lookup: lookup,
		log:    logger.With().Str("component", "gt06_decoder").Logger(),
		now:    time.Now,
	}
}

// Decode parses and decodes one complete frame for the device bound to the
// connection (empty before login).
//
// A nil message with an error means the frame must be dropped without a reply
// (integrity failure). A non-nil message with an error carries a best-effort
// acknowledgement but no event.
func (d *Decoder) Decode(ctx context.Context, raw []byte, deviceID string) (*Message, error) {
	frame, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Type:    frame.Type,
		Index:   frame.Index,
		Variant: Classify(frame.Header, frame.Type, frame.Length, frame.Payload),
	}

	switch frame.Type {
	case MsgLogin:
		err = d.decodeLogin(frame, msg)
		msg.Response = d.respond(frame, frame.Type, nil)
		return msg, err
	case MsgTimeRequest:
		msg.Kind = KindTimeRequest
		msg.Response = d.respond(frame, frame.Type, EncodeDateTime(d.now()))
		return msg, nil
	case MsgAddressRequest:
		msg.Kind = KindAddressRequest
		msg.Response = d.respond(frame, MsgAddressReply, []byte(addressPlaceholder))
		return msg, nil
	}

	msg.Response = d.respond(frame, frame.Type, nil)
	if deviceID == "" {
		return msg, fmt.Errorf("%w: %s", ErrNotLoggedIn, GetMessageTypeName(frame.Type))
	}

	switch t := frame.Type; {
	case t == MsgHeartbeat:
		err = d.decodeHeartbeat(frame, msg, deviceID)
	case t == MsgStatus:
		err = d.decodeStatusMessage(frame, msg, deviceID)
	case isGPSType(t):
		err = d.decodeLocation(frame, msg, deviceID)
	case isWifiType(t):
		err = d.decodeWifi(frame, msg, deviceID)
	case isLBSType(t):
		d.decodeLBSMessage(frame, msg, deviceID)
	case t == MsgString:
		err = d.decodeString(frame, msg, deviceID)
	case t == MsgInfo:
		err = d.decodeInfo(frame, msg, deviceID)
	case t == MsgAlarm:
		err = d.decodeAlarm(frame, msg, deviceID)
	default:
		err = fmt.Errorf("%w: 0x%02x", ErrUnknownMessageType, t)
	}

	if err != nil {
		msg.Kind = KindNone
		msg.Position = nil
		return msg, err
	}
	if msg.Position != nil && !msg.Position.HasCoordinates() {
		d.backfill(ctx, msg.Position)
	}
	return msg, nil
}

func (d *Decoder) respond(f *Frame, msgType byte, content []byte) []byte {
	out, err := EncodeResponse(f, msgType, content)
	if err != nil {
		d.log.Error().Err(err).Uint8("msg_type", msgType).Msg("Failed to build response")
		return nil
	}
	return out
}

func (d *Decoder) newPosition(deviceID string) *model.Position {
	pos := model.NewPosition(deviceID, Protocol)
	pos.Timestamp = d.now().UTC()
	return pos
}

func (d *Decoder) decodeLogin(f *Frame, msg *Message) error {
	if len(f.Payload) < 8 {
		return fmt.Errorf("%w: login needs 8 bytes, got %d", ErrMalformedPayload, len(f.Payload))
	}
	msg.Kind = KindLogin
	msg.IMEI = DecodeIMEI(f.Payload[:8])
	return nil
}

// DecodeIMEI converts the 8-byte identity block into the 15-digit IMEI
func DecodeIMEI(b []byte) string {
	return hex.EncodeToString(b)[1:]
}

// EncodeIMEI packs a 15-digit IMEI into the 8-byte identity block
func EncodeIMEI(imei string) ([]byte, error) {
	if len(imei) != 15 {
		return nil, fmt.Errorf("%w: imei must have 15 digits", ErrInvalidParameter)
	}
	b, err := hex.DecodeString("0" + imei)
	if err != nil {
		return nil, fmt.Errorf("%w: imei: %v", ErrInvalidParameter, err)
	}
	return b, nil
}

func (d *Decoder) decodeHeartbeat(f *Frame, msg *Message, deviceID string) error {
	c := newCursor(f.Payload)
	if !c.has(1) {
		return fmt.Errorf("%w: empty heartbeat", ErrMalformedPayload)
	}

	pos := d.newPosition(deviceID)
	applyStatusByte(c.u8(), msg.Variant, pos)
	if c.has(2) {
		pos.Battery = float64(c.u16()) * 0.01
	}
	if c.has(1) {
		pos.RSSI = int(c.u8())
	}

	msg.Kind = KindHeartbeat
	msg.Position = pos
	return nil
}

func (d *Decoder) decodeStatusMessage(f *Frame, msg *Message, deviceID string) error {
	c := newCursor(f.Payload)
	if !c.has(1) {
		return fmt.Errorf("%w: empty status", ErrMalformedPayload)
	}

	pos := d.newPosition(deviceID)
	decodeStatus(c, msg.Variant, pos)

	msg.Kind = KindStatus
	msg.Position = pos
	return nil
}

// backfill copies the last known coordinates onto a position that carries no fix
func (d *Decoder) backfill(ctx context.Context, pos *model.Position) {
	if d.lookup == nil {
		return
	}
	last, err := d.lookup.GetLastPosition(ctx, pos.DeviceID)
	if err != nil {
		d.log.Debug().Err(err).Str("device_id", pos.DeviceID).Msg("Last position unavailable")
		return
	}
	if last == nil {
		return
	}
	pos.Latitude = last.Latitude
	pos.Longitude = last.Longitude
	pos.Valid = last.Valid
}

func (d *Decoder) decodeLocation(f *Frame, msg *Message, deviceID string) error {
	c := newCursor(f.Payload)
	pos := d.newPosition(deviceID)

	ok, err := decodeGPS(c, f.Type, msg.Variant, pos)
	if err != nil {
		return err
	}
	if !ok {
		// no fix in this report; acknowledged without an event
		return nil
	}

	if f.Type == MsgGPSLBS2 && msg.Variant == VariantSeeworld {
		decodeSeeworld(c, pos)
	}
	if hasLBS(f.Type) && c.remaining() > 0 {
		decodeLBS(c, f.Type, msg.Variant, pos)
	}
	if hasStatus(f.Type) && c.remaining() > 0 {
		decodeStatus(c, msg.Variant, pos)
	}

	switch {
	case f.Type == MsgGPSLBS1 && msg.Variant == VariantS5:
		decodeS5(c, msg.Variant, pos)
	case f.Type == MsgGPSLBS1 && msg.Variant == VariantGT06ECard:
		decodeCard(c, pos)
	}

	if hasIgnitionTrailer(f.Type) && msg.Variant != VariantSeeworld {
		decodeIgnitionTrailer(c, msg.Variant, pos)
	}

	msg.Kind = KindPosition
	msg.Position = pos
	return nil
}

func (d *Decoder) decodeWifi(f *Frame, msg *Message, deviceID string) error {
	c := newCursor(f.Payload)
	pos := d.newPosition(deviceID)

	if msg.Variant == VariantRFID {
		ok, err := decodeGPS(c, f.Type, msg.Variant, pos)
		if err != nil {
			return err
		}
		if ok {
			decodeLBS(c, f.Type, msg.Variant, pos)
			decodeRFID(c, pos)
		}
	} else {
		decodeAccessPoints(c, pos)
	}

	msg.Kind = KindWifi
	msg.Position = pos
	return nil
}

func (d *Decoder) decodeLBSMessage(f *Frame, msg *Message, deviceID string) {
	c := newCursor(f.Payload)
	pos := d.newPosition(deviceID)

	if f.Type == MsgLBSStatus {
		decodeLBS(c, f.Type, msg.Variant, pos)
		decodeStatus(c, msg.Variant, pos)
	} else {
		decodeCellList(c, pos)
	}
	pos.Set(model.AttrApproximate, true)

	msg.Kind = KindLBS
	msg.Position = pos
}

func (d *Decoder) decodeString(f *Frame, msg *Message, deviceID string) error {
	c := newCursor(f.Payload)
	if !c.has(1) {
		return fmt.Errorf("%w: empty string message", ErrMalformedPayload)
	}

	pos := d.newPosition(deviceID)
	n := int(c.u8())
	// 4-byte server flag precedes the text
	if n >= 4 && c.has(n) {
		c.skip(4)
		text := string(c.bytes(n - 4))
		if strings.HasPrefix(text, "<ICCID:") {
			iccid := text[7:]
			if len(iccid) > 20 {
				iccid = iccid[:20]
			}
			pos.Set(model.AttrICCID, iccid)
		} else {
			pos.Set(model.AttrResult, text)
		}
	}

	msg.Kind = KindStringInfo
	msg.Position = pos
	return nil
}

// Information sub-types carried by MsgInfo
const (
	infoPower = 0x00
	infoText  = 0x04
	infoDoor  = 0x05
	infoICCID = 0x0A
)

func (d *Decoder) decodeInfo(f *Frame, msg *Message, deviceID string) error {
	c := newCursor(f.Payload)
	if !c.has(1) {
		return fmt.Errorf("%w: empty info message", ErrMalformedPayload)
	}

	pos := d.newPosition(deviceID)
	switch sub := c.u8(); sub {
	case infoPower:
		if c.has(2) {
			pos.Power = float64(c.u16()) * 0.01
		}
	case infoText:
		pos.Set(model.AttrResult, string(c.rest()))
	case infoDoor:
		if c.has(1) {
			pos.Set(model.AttrDoor, c.u8()&0x01 != 0)
		}
	case infoICCID:
		// imei(8) imsi(8) iccid(10)
		if c.has(26) {
			c.skip(16)
			pos.Set(model.AttrICCID, hex.EncodeToString(c.bytes(10)))
		}
	default:
		pos.Set(model.AttrInfo, fmt.Sprintf("%02x:%s", sub, hex.EncodeToString(c.rest())))
	}

	msg.Kind = KindStringInfo
	msg.Position = pos
	return nil
}

func (d *Decoder) decodeAlarm(f *Frame, msg *Message, deviceID string) error {
	c := newCursor(f.Payload)
	if !c.has(3) {
		return fmt.Errorf("%w: alarm needs 3 bytes, got %d", ErrMalformedPayload, c.remaining())
	}

	pos := d.newPosition(deviceID)
	if c.remaining() > 3 {
		ok, err := decodeGPS(c, f.Type, msg.Variant, pos)
		if err != nil || !ok {
			c.pos = 0
		}
	}

	if c.has(3) {
		event := c.u8()
		pos.Set(model.AttrEvent, int(event))
		pos.Set(model.AttrEventData, int(c.u16()))
		pos.AddAlarm(decodeAlarmCode(event))
	}

	msg.Kind = KindAlarm
	msg.Position = pos
	return nil
}
