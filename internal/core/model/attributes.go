package model

// Known Position attribute keys
const (
	AttrArmed        = "armed"
	AttrCharge       = "charge"
	AttrBlocked      = "blocked"
	AttrStatus       = "status"
	AttrBatteryLevel = "batteryLevel"
	AttrOdometer     = "odometer"
	AttrDriveTime    = "driveTime"
	AttrTemperature  = "temperature"
	AttrHumidity     = "humidity"
	AttrFuel         = "fuel"
	AttrEvent        = "event"
	AttrEventData    = "eventData"
	AttrArchive      = "archive"
	AttrMode         = "mode"
	AttrLanguage     = "language"
	AttrICCID        = "iccid"
	AttrResult       = "result"
	AttrCard         = "card"
	AttrRFID         = "rfid"
	AttrDoor         = "door"
	AttrWifi         = "wifi"
	AttrInfo         = "info"
	AttrGeofence     = "geofence"
	AttrApproximate  = "approximate"
	AttrVariant      = "variant"
)

// Alarm kinds
const (
	AlarmSOS           = "sos"
	AlarmPowerCut      = "powerCut"
	AlarmVibration     = "vibration"
	AlarmGeofenceEnter = "geofenceEnter"
	AlarmGeofenceExit  = "geofenceExit"
	AlarmOverspeed     = "overspeed"
	AlarmLowBattery    = "lowBattery"
	AlarmPowerOff      = "powerOff"
	AlarmTampering     = "tampering"
	AlarmDoor          = "door"
	AlarmAccident      = "accident"
	AlarmBraking       = "braking"
	AlarmCornering     = "cornering"
	AlarmAcceleration  = "acceleration"
	AlarmFallDown      = "fallDown"
	AlarmJamming       = "jamming"
	AlarmTow           = "tow"
	AlarmRemoving      = "removing"
)
