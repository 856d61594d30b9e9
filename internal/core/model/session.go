package model

import "time"

// DeviceSession binds a device identity to its current live connection
type DeviceSession struct {
	DeviceID     string    `json:"deviceId"`
	ConnectionID string    `json:"connectionId"`
	RemoteAddr   string    `json:"remoteAddr"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
}
