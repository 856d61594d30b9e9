package model

import (
	"time"

	"gt06gateway/internal/core/util"
)

// Live status field names accepted by DeviceRepository.UpdateLiveStatus
const (
	LiveOnline     = "online"
	LiveLastSeen   = "lastseen"
	LiveLatitude   = "latitude"
	LiveLongitude  = "longitude"
	LiveSpeed      = "speed"
	LiveCourse     = "course"
	LiveAltitude   = "altitude"
	LiveIgnition   = "ignition"
	LiveSatellites = "satellites"
)

type Device struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	UniqueID   string     `json:"uniqueId"`
	Status     string     `json:"status"`
	Model      string     `json:"model,omitempty"`
	LastUpdate time.Time  `json:"lastUpdate"`
	CreatedAt  time.Time  `json:"createdAt"`
	Protocol   string     `json:"protocol"`
	Live       LiveStatus `json:"live"`
}

// LiveStatus is the part of the device record refreshed by the gateway
type LiveStatus struct {
	Online     bool      `json:"online" bson:"online"`
	LastSeen   time.Time `json:"lastSeen" bson:"lastseen"`
	Latitude   float64   `json:"latitude" bson:"latitude"`
	Longitude  float64   `json:"longitude" bson:"longitude"`
	Speed      float64   `json:"speed" bson:"speed"`
	Course     float64   `json:"course" bson:"course"`
	Altitude   float64   `json:"altitude" bson:"altitude"`
	Ignition   bool      `json:"ignition" bson:"ignition"`
	Satellites int       `json:"satellites" bson:"satellites"`
}

func NewDevice(name, uniqueID string) *Device {
	return &Device{
		ID:         util.GenerateID(),
		Name:       name,
		UniqueID:   uniqueID,
		Status:     "active",
		LastUpdate: time.Now(),
		CreatedAt:  time.Now(),
		Protocol:   "gt06",
	}
}

// Apply copies the given live status fields onto the record.
// Unknown keys are ignored.
func (l *LiveStatus) Apply(fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case LiveOnline:
			l.Online, _ = v.(bool)
		case LiveLastSeen:
			l.LastSeen, _ = v.(time.Time)
		case LiveLatitude:
			l.Latitude, _ = v.(float64)
		case LiveLongitude:
			l.Longitude, _ = v.(float64)
		case LiveSpeed:
			l.Speed, _ = v.(float64)
		case LiveCourse:
			l.Course, _ = v.(float64)
		case LiveAltitude:
			l.Altitude, _ = v.(float64)
		case LiveIgnition:
			l.Ignition, _ = v.(bool)
		case LiveSatellites:
			l.Satellites, _ = v.(int)
		}
	}
}
