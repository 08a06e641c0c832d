// protocol/kinds.go
package protocol

import "fmt"

// DomainKind is the coarse protocol namespace carried in the first header byte.
type DomainKind uint8

const (
	DomainConfig       DomainKind = 0
	DomainBulkTransfer DomainKind = 1
)

func (d DomainKind) String() string {
	switch d {
	case DomainConfig:
		return "config"
	case DomainBulkTransfer:
		return "bulk-transfer"
	}
	return fmt.Sprintf("domain(%d)", uint8(d))
}

// Valid reports whether the domain tag is one the device defines.
func (d DomainKind) Valid() bool {
	return d == DomainConfig || d == DomainBulkTransfer
}

// MessageKind is the operation tag carried in the second header byte.
// The numbering is device-defined and closed. GetSensors=5 and
// SetTempUnits=6 are anchored to traffic observed from real hardware.
type MessageKind uint8

const (
	KindHandshake            MessageKind = 0
	KindSetTempSetpoint      MessageKind = 1
	KindGetTempSetpoint      MessageKind = 2
	KindStartCooking         MessageKind = 3
	KindStopCooking          MessageKind = 4
	KindGetSensors           MessageKind = 5
	KindSetTempUnits         MessageKind = 6
	KindGetTempUnits         MessageKind = 7
	KindSetCookingTimer      MessageKind = 8
	KindGetCookingTimer      MessageKind = 9
	KindStopCookingTimer     MessageKind = 10
	KindCancelCookingTimer   MessageKind = 11
	KindSetPowerLevel        MessageKind = 12
	KindGetPowerLevel        MessageKind = 13
	KindSetSoundLevel        MessageKind = 14
	KindGetSoundLevel        MessageKind = 15
	KindSetDisplayBrightness MessageKind = 16
	KindGetDisplayBrightness MessageKind = 17
	KindSetChangePoint       MessageKind = 18
	KindChangePointNotify    MessageKind = 19
	KindSetLinkParams        MessageKind = 20
	KindLinkParamsNotify     MessageKind = 21
	KindGetDeviceInfo        MessageKind = 22
	KindGetFirmwareInfo      MessageKind = 23
	KindGetSystemAlerts      MessageKind = 24
	KindReserved             MessageKind = 25
	KindEcho                 MessageKind = 26
)

var kindNames = map[MessageKind]string{
	KindHandshake:            "handshake",
	KindSetTempSetpoint:      "set-temp-setpoint",
	KindGetTempSetpoint:      "get-temp-setpoint",
	KindStartCooking:         "start-cooking",
	KindStopCooking:          "stop-cooking",
	KindGetSensors:           "get-sensors",
	KindSetTempUnits:         "set-temp-units",
	KindGetTempUnits:         "get-temp-units",
	KindSetCookingTimer:      "set-cooking-timer",
	KindGetCookingTimer:      "get-cooking-timer",
	KindStopCookingTimer:     "stop-cooking-timer",
	KindCancelCookingTimer:   "cancel-cooking-timer",
	KindSetPowerLevel:        "set-power-level",
	KindGetPowerLevel:        "get-power-level",
	KindSetSoundLevel:        "set-sound-level",
	KindGetSoundLevel:        "get-sound-level",
	KindSetDisplayBrightness: "set-display-brightness",
	KindGetDisplayBrightness: "get-display-brightness",
	KindSetChangePoint:       "set-change-point",
	KindChangePointNotify:    "change-point-notify",
	KindSetLinkParams:        "set-link-params",
	KindLinkParamsNotify:     "link-params-notify",
	KindGetDeviceInfo:        "get-device-info",
	KindGetFirmwareInfo:      "get-firmware-info",
	KindGetSystemAlerts:      "get-system-alerts",
	KindReserved:             "reserved",
	KindEcho:                 "echo",
}

func (k MessageKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether the kind is part of the closed enumeration.
func (k MessageKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// SensorKind tags one entry of a sensor report.
// Values follow the device reporting order.
type SensorKind uint8

const (
	SensorWaterTemp    SensorKind = 0
	SensorHeaterTemp   SensorKind = 1
	SensorTriacTemp    SensorKind = 2
	SensorUnusedTemp   SensorKind = 3
	SensorInternalTemp SensorKind = 4
	SensorWaterLow     SensorKind = 5
	SensorWaterLeak    SensorKind = 6
	SensorMotorSpeed   SensorKind = 7
)

func (s SensorKind) String() string {
	switch s {
	case SensorWaterTemp:
		return "water-temp"
	case SensorHeaterTemp:
		return "heater-temp"
	case SensorTriacTemp:
		return "triac-temp"
	case SensorUnusedTemp:
		return "unused-temp"
	case SensorInternalTemp:
		return "internal-temp"
	case SensorWaterLow:
		return "water-low"
	case SensorWaterLeak:
		return "water-leak"
	case SensorMotorSpeed:
		return "motor-speed"
	}
	return fmt.Sprintf("sensor(%d)", uint8(s))
}

// UnitKind tags the scale of a sensor integer.
// The tag alone decides the integer-to-physical conversion.
type UnitKind uint8

const (
	UnitPoint1C        UnitKind = 0 // 0.1 degC per count
	UnitPoint1F        UnitKind = 1 // 0.1 degF per count
	UnitMotorSpeedUnit UnitKind = 2
	UnitBoolean        UnitKind = 3
	UnitPoint01C       UnitKind = 4 // 0.01 degC per count
	UnitPoint01F       UnitKind = 5 // 0.01 degF per count
	UnitDegreesC       UnitKind = 6
	UnitDegreesF       UnitKind = 7
)

func (u UnitKind) String() string {
	switch u {
	case UnitPoint1C:
		return "0.1C"
	case UnitPoint1F:
		return "0.1F"
	case UnitMotorSpeedUnit:
		return "motor-speed"
	case UnitBoolean:
		return "bool"
	case UnitPoint01C:
		return "0.01C"
	case UnitPoint01F:
		return "0.01F"
	case UnitDegreesC:
		return "C"
	case UnitDegreesF:
		return "F"
	}
	return fmt.Sprintf("unit(%d)", uint8(u))
}
