package model

import (
	"time"

	"gt06gateway/internal/core/util"
)

// CellTower is one serving or neighbouring cell reported in an LBS block
type CellTower struct {
	MCC  int    `json:"mcc"`
	MNC  int    `json:"mnc"`
	LAC  int64  `json:"lac"`
	CID  uint64 `json:"cid"`
	RSSI int    `json:"rssi,omitempty"`
}

// WifiAccessPoint is one access point observed by the device
type WifiAccessPoint struct {
	MAC  string `json:"mac"`
	RSSI int    `json:"rssi"`
}

// Position is the telemetry record produced for one decoded frame.
// Variant specific values live in Attributes; see attributes.go for the known keys.
type Position struct {
	ID            string                 `json:"id"`
	DeviceID      string                 `json:"deviceId"`
	Protocol      string                 `json:"protocol"`
	Timestamp     time.Time              `json:"timestamp"`
	Latitude      float64                `json:"latitude"`
	Longitude     float64                `json:"longitude"`
	Altitude      float64                `json:"altitude"`
	Speed         float64                `json:"speed"`
	Course        float64                `json:"course"`
	Valid         bool                   `json:"valid"`
	Satellites    int                    `json:"satellites"`
	Ignition      bool                   `json:"ignition"`
	EngineOn      bool                   `json:"engineOn"`
	// IgnitionKnown is false when the report carried no ignition state
	IgnitionKnown bool                   `json:"ignitionKnown,omitempty"`
	Battery       float64                `json:"battery,omitempty"`
	Power         float64                `json:"power,omitempty"`
	RSSI          int                    `json:"rssi,omitempty"`
	Alarms        []string               `json:"alarms,omitempty"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
	CellTowers    []CellTower            `json:"cellTowers,omitempty"`
}

func NewPosition(deviceID, protocol string) *Position {
	return &Position{
		ID:         util.GenerateID(),
		DeviceID:   deviceID,
		Protocol:   protocol,
		Timestamp:  time.Now().UTC(),
		Attributes: make(map[string]interface{}),
	}
}

// AddAlarm records an alarm kind once; repeated kinds are ignored.
func (p *Position) AddAlarm(kind string) {
	if kind == "" {
		return
	}
	for _, a := range p.Alarms {
		if a == kind {
			return
		}
	}
	p.Alarms = append(p.Alarms, kind)
}

func (p *Position) HasAlarms() bool {
	return len(p.Alarms) > 0
}

// SetIgnition records a reported ignition state
func (p *Position) SetIgnition(on bool) {
	p.Ignition = on
	p.EngineOn = on
	p.IgnitionKnown = true
}

// Set stores a variant specific attribute
func (p *Position) Set(key string, value interface{}) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]interface{})
	}
	p.Attributes[key] = value
}

// HasCoordinates reports whether the position carries a location, either
// decoded from the report or copied from the last known fix
func (p *Position) HasCoordinates() bool {
	return p.Latitude != 0 || p.Longitude != 0
}
