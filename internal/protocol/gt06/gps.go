package gt06

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"gt06gateway/internal/core/model"
)

// Course/status word flags
const (
	flagSouth       = 0x0400
	flagEast        = 0x0800
	flagValid       = 0x1000
	flagIgnitionSet = 0x4000
	flagIgnition    = 0x8000
	courseMask      = 0x03FF
)

// lbsBlockSize is the nominal single cell block: mcc(2) mnc(1) lac(2) cid(3)
const lbsBlockSize = 8

const maxNeighbourCells = 7

// ParseDateTime decodes the 6-byte year/month/day/hour/minute/second block
func ParseDateTime(b []byte) (time.Time, error) {
	if len(b) < 6 {
		return time.Time{}, fmt.Errorf("%w: got %d bytes", ErrInvalidTimestamp, len(b))
	}

	year := 2000 + int(b[0])
	month, day := int(b[1]), int(b[2])
	hour, minute, second := int(b[3]), int(b[4]), int(b[5])

	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, ErrInvalidTimestamp
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

// EncodeDateTime packs t (in UTC) into the 6-byte date/time block
func EncodeDateTime(t time.Time) []byte {
	t = t.UTC()
	return []byte{
		byte(t.Year() - 2000),
		byte(t.Month()),
		byte(t.Day()),
		byte(t.Hour()),
		byte(t.Minute()),
		byte(t.Second()),
	}
}

// CoordinateToRaw converts degrees to the wire representation used in GPS blocks
func CoordinateToRaw(degrees float64) uint32 {
	if degrees < 0 {
		degrees = -degrees
	}
	return uint32(degrees*60*30000 + 0.5)
}

// decodeGPS reads the fixed GPS block into pos. It reports false when the
// block announces no fix data.
func decodeGPS(c *cursor, msgType byte, variant Variant, pos *model.Position) (bool, error) {
	need := 6 + 1 + 4 + 4 + 1 + 2
	if hasGPSLength(msgType) {
		need++
	}
	if variant == VariantJC400 {
		need++
	}
	if !c.has(need) {
		return false, fmt.Errorf("%w: gps block needs %d bytes, got %d", ErrMalformedPayload, need, c.remaining())
	}

	if ts, err := ParseDateTime(c.bytes(6)); err == nil {
		pos.Timestamp = ts
	}

	if hasGPSLength(msgType) && c.u8() == 0 {
		return false, nil
	}

	if variant == VariantOBD6 {
		pos.Satellites = int(c.u8())
	} else {
		pos.Satellites = int(c.u8() & 0x0F)
	}

	lat := float64(c.u32()) / 60.0 / 30000.0
	lon := float64(c.u32()) / 60.0 / 30000.0

	if variant == VariantJC400 {
		pos.Speed = float64(c.u16())
	} else {
		pos.Speed = float64(c.u8())
	}

	flags := c.u16()
	pos.Course = float64(flags & courseMask)
	pos.Valid = flags&flagValid != 0
	if flags&flagSouth != 0 {
		lat = -lat
	}
	// TODO: confirm the east flag polarity against a real device fix; kept as devices report it today
	if flags&flagEast != 0 {
		lon = -lon
	}
	if flags&flagIgnitionSet != 0 {
		pos.SetIgnition(flags&flagIgnition != 0)
	}

	pos.Latitude = lat
	pos.Longitude = lon
	return true, nil
}

// decodeLBS reads a single serving cell. Missing or truncated blocks are skipped.
func decodeLBS(c *cursor, msgType byte, variant Variant, pos *model.Position) {
	start := c.pos
	length := 0

	if hasLBSLength(msgType) {
		if !c.has(1) {
			return
		}
		length = int(c.u8())
		if length == 0 {
			if c.has(lbsBlockSize) && allZero(c.peek(lbsBlockSize)) {
				c.skip(lbsBlockSize)
			}
			return
		}
	}

	if !c.has(2) {
		return
	}

	mncLen := 1
	if msgType == MsgGPSLBS6 || variant == VariantSL4X || c.peek(2)[0]&0x80 != 0 {
		mncLen = 2
	}
	lacLen, cidLen := 2, 3
	switch {
	case msgType == MsgGPSLBSStatus5:
		lacLen, cidLen = 4, 8
	case msgType == MsgGPSLBS6 || variant == VariantSL4X:
		cidLen = 4
	}

	if !c.has(2 + mncLen + lacLen + cidLen) {
		return
	}

	tower := model.CellTower{MCC: int(c.u16() & 0x7FFF)}
	tower.MNC = int(c.uint(mncLen))
	tower.LAC = int64(c.uint(lacLen))
	tower.CID = c.uint(cidLen)

	if length > 0 {
		// the length prefix counts itself; anything left over is signal strength
		switch extra := length - (c.pos - start); {
		case extra >= 2 && c.has(2):
			tower.RSSI = int(c.u16())
			c.skip(min(extra-2, c.remaining()))
		case extra == 1 && c.has(1):
			tower.RSSI = int(c.u8())
		}
	}

	pos.CellTowers = append(pos.CellTowers, tower)
}

// decodeCellList reads a date/time stamped list of neighbouring cells
func decodeCellList(c *cursor, pos *model.Position) {
	if c.has(6) {
		if ts, err := ParseDateTime(c.bytes(6)); err == nil {
			pos.Timestamp = ts
		}
	}
	if !c.has(3) {
		return
	}

	mccRaw := c.u16()
	mnc := 0
	if mccRaw&0x8000 != 0 {
		if !c.has(2) {
			return
		}
		mnc = int(c.u16())
	} else {
		mnc = int(c.u8())
	}

	for i := 0; i < maxNeighbourCells && c.has(6); i++ {
		lac := c.u16()
		cid := c.uint(3)
		rssi := c.u8()
		if lac == 0 && cid == 0 {
			continue
		}
		pos.CellTowers = append(pos.CellTowers, model.CellTower{
			MCC:  int(mccRaw & 0x7FFF),
			MNC:  mnc,
			LAC:  int64(lac),
			CID:  cid,
			RSSI: -int(rssi),
		})
	}
}

// applyStatusByte decodes the terminal information byte
func applyStatusByte(status byte, variant Variant, pos *model.Position) {
	pos.SetIgnition(status&0x02 != 0)
	pos.Set(model.AttrArmed, status&0x01 != 0)
	pos.Set(model.AttrCharge, status&0x04 != 0)
	pos.Set(model.AttrBlocked, status&0x80 != 0)
	pos.Set(model.AttrStatus, int(status))
	pos.AddAlarm(statusAlarm((status>>3)&0x07, variant))
}

// decodeStatus reads the status byte and the battery, signal and alarm bytes that follow it
func decodeStatus(c *cursor, variant Variant, pos *model.Position) {
	if !c.has(1) {
		return
	}
	applyStatusByte(c.u8(), variant, pos)

	switch {
	case variant == VariantOBD6 && c.has(8):
		signal := c.u16()
		pos.Satellites = int((signal>>10)&0x1F) + int((signal>>5)&0x1F)
		pos.RSSI = int(signal & 0x1F)
		pos.AddAlarm(decodeAlarmCode(c.u8()))
		pos.Set(model.AttrLanguage, int(c.u8()))
		pos.Set(model.AttrBatteryLevel, int(c.u8()))
		pos.Set(model.AttrMode, int(c.u8()))
		pos.Power = float64(c.u16()) / 100.0
	case c.has(2):
		pos.Set(model.AttrBatteryLevel, int(c.u8()))
		pos.RSSI = int(c.u8())
		if c.has(1) {
			pos.AddAlarm(decodeAlarmCode(c.u8()))
		}
	}
}

func decodeSeeworld(c *cursor, pos *model.Position) {
	if !c.has(15) {
		return
	}
	pos.SetIgnition(c.u8() > 0)
	c.skip(2) // reporting mode, supplementary transmission
	pos.Set(model.AttrOdometer, int64(c.u32()))
	pos.Set(model.AttrDriveTime, int64(c.u32()))
	pos.Set(model.AttrTemperature, float64(signMagnitude16(c.u16()))*0.01)
	pos.Set(model.AttrHumidity, float64(c.u16())*0.01)
}

func decodeS5(c *cursor, variant Variant, pos *model.Position) {
	if !c.has(1) {
		return
	}
	applyStatusByte(c.u8(), variant, pos)
	if !c.has(11) {
		return
	}
	pos.Power = float64(c.u16()) * 0.01
	pos.RSSI = int(c.u8())
	pos.AddAlarm(decodeAlarmCode(c.u8()))
	pos.Set(model.AttrFuel, int(c.u16()))
	pos.Set(model.AttrTemperature, signMagnitude8(c.u8()))
	pos.Set(model.AttrOdometer, int64(c.u32())*10)
}

func decodeCard(c *cursor, pos *model.Position) {
	if !c.has(5) {
		return
	}
	pos.Set(model.AttrOdometer, int64(c.u32()))
	n := int(c.u8())
	if n > 0 && c.has(n) {
		pos.Set(model.AttrCard, strings.TrimSpace(string(c.bytes(n))))
	}
}

func decodeIgnitionTrailer(c *cursor, variant Variant, pos *model.Position) {
	if !c.has(3) {
		return
	}
	pos.SetIgnition(c.u8() > 0)
	pos.Set(model.AttrEvent, int(c.u8()))
	pos.Set(model.AttrArchive, c.u8() > 0)

	if variant != VariantSL4X {
		return
	}
	if c.has(6) {
		pos.Set(model.AttrOdometer, int64(c.u32()))
	}
	if c.has(2) {
		pos.Altitude = float64(c.i16())
	}
}

func decodeRFID(c *cursor, pos *model.Position) {
	if !c.has(5) {
		return
	}
	c.skip(1)
	pos.Set(model.AttrRFID, strings.ToUpper(hex.EncodeToString(c.bytes(4))))
}

func decodeAccessPoints(c *cursor, pos *model.Position) {
	if c.has(6) {
		if ts, err := ParseDateTime(c.bytes(6)); err == nil {
			pos.Timestamp = ts
		}
	}
	if !c.has(1) {
		return
	}
	n := int(c.u8())
	var points []model.WifiAccessPoint
	for i := 0; i < n && c.has(7); i++ {
		mac := net.HardwareAddr(c.bytes(6)).String()
		points = append(points, model.WifiAccessPoint{MAC: mac, RSSI: -int(c.u8())})
	}
	if len(points) > 0 {
		pos.Set(model.AttrWifi, points)
	}
}

func signMagnitude16(v uint16) int {
	if v&0x8000 != 0 {
		return -int(v & 0x7FFF)
	}
	return int(v)
}

func signMagnitude8(v byte) int {
	if v&0x80 != 0 {
		return -int(v & 0x7F)
	}
	return int(v)
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
