package model

import (
	"time"

	"gt06gateway/internal/core/util"
)

// Command types understood by the GT06 encoder
const (
	CommandEngineStop   = "engineStop"
	CommandEngineResume = "engineResume"
	CommandReboot       = "reboot"
	CommandFactoryReset = "reset"
	CommandSetTimezone  = "setTimezone"
	CommandSetAPN       = "setAPN"
	CommandSetServer    = "setServer"
	CommandSetInterval  = "setInterval"
	CommandGetVersion   = "getVersion"
	CommandGetStatus    = "getStatus"
	CommandCustom       = "custom"
)

// Command delivery states
const (
	CommandStatusPending = "pending"
	CommandStatusSent    = "sent"
	CommandStatusQueued  = "queued"
	CommandStatusError   = "error"
)

type Command struct {
	ID         string                 `json:"id"`
	DeviceID   string                 `json:"deviceId"`
	Type       string                 `json:"command"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Status     string                 `json:"status"`
}

func NewCommand(deviceID, commandType string, params map[string]interface{}) *Command {
	if params == nil {
		params = make(map[string]interface{})
	}
	return &Command{
		ID:         util.GenerateID(),
		DeviceID:   deviceID,
		Type:       commandType,
		Parameters: params,
		Timestamp:  time.Now().UTC(),
		Status:     CommandStatusPending,
	}
}
