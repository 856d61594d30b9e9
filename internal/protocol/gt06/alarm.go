package gt06

import (
	"fmt"

	"gt06gateway/internal/core/model"
)

// alarmCodes maps device event codes to alarm kinds. Codes not listed carry no alarm.
var alarmCodes = map[byte]string{
	0x01: model.AlarmSOS,
	0x02: model.AlarmPowerCut,
	0x03: model.AlarmVibration,
	0x04: model.AlarmGeofenceEnter,
	0x05: model.AlarmGeofenceExit,
	0x06: model.AlarmOverspeed,
	0x09: model.AlarmVibration,
	0x0C: model.AlarmTampering,
	0x0E: model.AlarmLowBattery,
	0x0F: model.AlarmLowBattery,
	0x11: model.AlarmPowerOff,
	0x13: model.AlarmTampering,
	0x14: model.AlarmDoor,
	0x18: model.AlarmAccident,
	0x19: model.AlarmAcceleration,
	0x1A: model.AlarmBraking,
	0x1B: model.AlarmCornering,
	0x23: model.AlarmFallDown,
	0x25: model.AlarmTampering,
	0x26: model.AlarmAcceleration,
	0x27: model.AlarmBraking,
	0x2A: model.AlarmCornering,
	0x2B: model.AlarmCornering,
	0x2C: model.AlarmAccident,
	0x2E: model.AlarmCornering,
	0x30: model.AlarmJamming,
}

// decodeAlarmCode returns the alarm kind for an event code, or "" when unmapped
func decodeAlarmCode(code byte) string {
	return alarmCodes[code]
}

// statusAlarm maps the 3-bit alarm field of a terminal status byte
func statusAlarm(bits byte, variant Variant) string {
	switch bits {
	case 1:
		return model.AlarmVibration
	case 2:
		return model.AlarmPowerCut
	case 3:
		return model.AlarmLowBattery
	case 4:
		return model.AlarmSOS
	case 6:
		return model.AlarmGeofenceEnter
	case 7:
		if variant == VariantVXT01 {
			return model.AlarmOverspeed
		}
		return model.AlarmRemoving
	}
	return ""
}

// GetAlarmName returns a human-readable name for alarm event codes
func GetAlarmName(code byte) string {
	if name := decodeAlarmCode(code); name != "" {
		return name
	}
	return fmt.Sprintf("unknown_%02x", code)
}
