// status.go
package nanolink

import (
	"fmt"

	"github.com/ovenlabs/nanolink/protocol"
)

// SensorValues is one scaled status snapshot.
// It contains no logic and no memory of the past beyond current state.
type SensorValues struct {
	WaterTemp      float64
	WaterTempUnits string

	HeaterTemp      float64
	HeaterTempUnits string

	TriacTemp      float64
	TriacTempUnits string

	InternalTemp      float64
	InternalTempUnits string

	WaterLow  bool
	WaterLeak bool

	MotorSpeed int64
}

// SensorValuesFromList converts a raw device report into a scaled snapshot.
// Entries arrive in device reporting order; conversion keys on the sensor
// tag, not the position.
func SensorValuesFromList(list protocol.SensorValueList) (SensorValues, error) {
	var sv SensorValues

	for _, v := range list {
		switch v.Sensor {
		case protocol.SensorWaterTemp:
			t, u, err := scaleTemp(v)
			if err != nil {
				return SensorValues{}, err
			}
			sv.WaterTemp, sv.WaterTempUnits = t, u

		case protocol.SensorHeaterTemp:
			t, u, err := scaleTemp(v)
			if err != nil {
				return SensorValues{}, err
			}
			sv.HeaterTemp, sv.HeaterTempUnits = t, u

		case protocol.SensorTriacTemp:
			t, u, err := scaleTemp(v)
			if err != nil {
				return SensorValues{}, err
			}
			sv.TriacTemp, sv.TriacTempUnits = t, u

		case protocol.SensorInternalTemp:
			t, u, err := scaleTemp(v)
			if err != nil {
				return SensorValues{}, err
			}
			sv.InternalTemp, sv.InternalTempUnits = t, u

		case protocol.SensorUnusedTemp:
			// Reported by the device, carries nothing.

		case protocol.SensorWaterLow:
			sv.WaterLow = v.Value != 0

		case protocol.SensorWaterLeak:
			sv.WaterLeak = v.Value != 0

		case protocol.SensorMotorSpeed:
			sv.MotorSpeed = v.Value
		}
	}

	return sv, nil
}

// Running reports whether the circulator motor is turning.
func (sv SensorValues) Running() bool { return sv.MotorSpeed != 0 }

// scaleTemp applies the unit tag's scale factor to a temperature reading.
func scaleTemp(v protocol.SensorValue) (float64, string, error) {
	label, factor, err := unitScale(v.Units)
	if err != nil {
		return 0, "", fmt.Errorf("nanolink: %s: %w", v.Sensor, err)
	}
	return float64(v.Value) / factor, label, nil
}

// unitScale maps a temperature unit tag to its label and counts-per-degree.
func unitScale(u protocol.UnitKind) (string, float64, error) {
	switch u {
	case protocol.UnitDegreesC:
		return "C", 1, nil
	case protocol.UnitPoint1C:
		return "C", 10, nil
	case protocol.UnitPoint01C:
		return "C", 100, nil
	case protocol.UnitDegreesF:
		return "F", 1, nil
	case protocol.UnitPoint1F:
		return "F", 10, nil
	case protocol.UnitPoint01F:
		return "F", 100, nil
	}
	return "", 0, fmt.Errorf("not a temperature unit: %s", u)
}
