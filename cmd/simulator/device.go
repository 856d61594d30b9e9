package main

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"gt06gateway/internal/protocol/gt06"
)

type waypoint struct {
	lat, lon float64
}

// route is a loop of road waypoints the simulated vehicle drives around
var route = []waypoint{
	{28.6139, 77.2090},
	{28.4595, 77.0266},
	{27.1767, 78.0081},
	{26.2389, 78.1677},
	{27.1767, 78.0081},
	{28.4595, 77.0266},
}

const (
	kmPerDegree = 111.0
	cruiseSpeed = 60.0 // km/h
)

// Device is one simulated GT06 tracker
type Device struct {
	IMEI string

	mutex    sync.Mutex
	index    uint16
	lat      float64
	lon      float64
	course   float64
	speed    float64
	ignition bool
	target   int
}

func NewDevice(imei string, start int) *Device {
	start %= len(route)
	return &Device{
		IMEI:   imei,
		index:  1,
		lat:    route[start].lat,
		lon:    route[start].lon,
		target: (start + 1) % len(route),
	}
}

func (d *Device) nextIndex() uint16 {
	i := d.index
	d.index++
	if d.index == 0 {
		d.index = 1
	}
	return i
}

// SetIgnition switches the engine; the vehicle only moves with ignition on
func (d *Device) SetIgnition(on bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.ignition = on
	if on {
		d.speed = cruiseSpeed
	} else {
		d.speed = 0
	}
}

// Step advances the vehicle toward the next waypoint
func (d *Device) Step(elapsed time.Duration) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.speed == 0 {
		return
	}

	dist := d.speed * elapsed.Hours() / kmPerDegree
	for dist > 0 {
		wp := route[d.target]
		dLat, dLon := wp.lat-d.lat, wp.lon-d.lon
		left := math.Hypot(dLat, dLon)
		d.course = math.Mod(math.Atan2(dLon, dLat)*180/math.Pi+360, 360)
		if left > dist {
			d.lat += dLat / left * dist
			d.lon += dLon / left * dist
			return
		}
		d.lat, d.lon = wp.lat, wp.lon
		d.target = (d.target + 1) % len(route)
		dist -= left
	}
}

func (d *Device) LoginFrame() ([]byte, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	id, err := gt06.EncodeIMEI(d.IMEI)
	if err != nil {
		return nil, err
	}
	return gt06.BuildFrame(gt06.HeaderBasic, gt06.MsgLogin, id, d.nextIndex())
}

// LocationFrame reports the current fix with a serving cell (type 0x12)
func (d *Device) LocationFrame(now time.Time) ([]byte, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	b := gt06.EncodeDateTime(now)
	b = append(b, 0xC8) // gps info length nibble, 8 satellites
	b = binary.BigEndian.AppendUint32(b, gt06.CoordinateToRaw(d.lat))
	b = binary.BigEndian.AppendUint32(b, gt06.CoordinateToRaw(d.lon))
	b = append(b, byte(math.Round(d.speed)))
	b = binary.BigEndian.AppendUint16(b, d.courseWord())
	// mcc 404, mnc 10, lac 0x1A2B, cid 0x00C0DE
	b = append(b, 0x01, 0x94, 0x0A, 0x1A, 0x2B, 0x00, 0xC0, 0xDE)
	return gt06.BuildFrame(gt06.HeaderBasic, gt06.MsgGPSLBS1, b, d.nextIndex())
}

func (d *Device) courseWord() uint16 {
	w := uint16(d.course) & 0x03FF
	w |= 0x1000 // fix valid
	if d.lat < 0 {
		w |= 0x0400
	}
	// the gateway negates longitude when this bit is set
	if d.lon < 0 {
		w |= 0x0800
	}
	w |= 0x4000
	if d.ignition {
		w |= 0x8000
	}
	return w
}

// HeartbeatFrame reports terminal status, battery and signal (type 0x23)
func (d *Device) HeartbeatFrame() ([]byte, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	status := byte(0x04) // charging
	if d.ignition {
		status |= 0x02
	}
	b := []byte{status}
	b = binary.BigEndian.AppendUint16(b, 412) // 4.12 V
	b = append(b, 0x04)
	return gt06.BuildFrame(gt06.HeaderBasic, gt06.MsgHeartbeat, b, d.nextIndex())
}

// CommandReply answers a text command with a string message (type 0x15),
// echoing the server flag. Relay commands also switch the ignition.
func (d *Device) CommandReply(cmd *gt06.Frame) ([]byte, string, error) {
	if len(cmd.Payload) < 5 {
		return nil, "", gt06.ErrMalformedPayload
	}
	n := int(cmd.Payload[0])
	if n < 4 || len(cmd.Payload) < 1+n {
		return nil, "", gt06.ErrMalformedPayload
	}
	flag := cmd.Payload[1:5]
	text := string(cmd.Payload[5 : 1+n])

	reply := "OK"
	switch text {
	case "Relay,1#", "DYD#":
		d.SetIgnition(false)
		reply = "Cut off the fuel supply: Success!"
	case "Relay,0#", "HFYD#":
		d.SetIgnition(true)
		reply = "Restore fuel supply: Success!"
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	b := []byte{byte(4 + len(reply))}
	b = append(b, flag...)
	b = append(b, reply...)
	out, err := gt06.BuildFrame(gt06.HeaderBasic, gt06.MsgString, b, d.nextIndex())
	return out, text, err
}
