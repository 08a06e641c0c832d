// protocol/payload.go
package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Payload bodies are protobuf wire format, built and parsed directly with
// protowire. The device defines three message shapes:
//
//	IntegerValue    { int64 value = 1; }
//	SensorValue     { int64 value = 1; UnitKind units = 2; SensorKind sensorType = 3; }
//	SensorValueList { repeated SensorValue values = 1; }
//	FirmwareInfo    { string commitId = 1; string tagId = 2; int64 dateCode = 3; }

const (
	fieldValue  = 1
	fieldUnits  = 2
	fieldSensor = 3
)

const (
	fieldCommitID = 1
	fieldTagID    = 2
	fieldDateCode = 3
)

// SensorValue is one raw sensor reading. Value is unscaled; Units decides
// the scale factor.
type SensorValue struct {
	Value  int64
	Units  UnitKind
	Sensor SensorKind
}

// SensorValueList is a device sensor report in reporting order.
// The order is the device's, not sorted by sensor kind.
type SensorValueList []SensorValue

// FirmwareInfo identifies the firmware build on the device.
type FirmwareInfo struct {
	CommitID string
	TagID    string
	DateCode int64
}

// EncodeIntegerValue serializes the generic scalar wrapper.
func EncodeIntegerValue(v int64) []byte {
	b := protowire.AppendTag(nil, fieldValue, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// DecodeIntegerValue parses an IntegerValue payload. A missing value field
// decodes as zero, matching proto semantics.
func DecodeIntegerValue(b []byte) (int64, error) {
	var v int64
	err := eachField(b, func(num protowire.Number, val uint64) {
		if num == fieldValue {
			v = int64(val)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("protocol: integer value: %w", err)
	}
	return v, nil
}

// EncodeSensorValue serializes one reading as an embedded message body.
func EncodeSensorValue(sv SensorValue) []byte {
	b := protowire.AppendTag(nil, fieldValue, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(sv.Value))
	b = protowire.AppendTag(b, fieldUnits, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(sv.Units))
	b = protowire.AppendTag(b, fieldSensor, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(sv.Sensor))
}

// DecodeSensorValue parses one embedded SensorValue body.
func DecodeSensorValue(b []byte) (SensorValue, error) {
	var sv SensorValue
	err := eachField(b, func(num protowire.Number, val uint64) {
		switch num {
		case fieldValue:
			sv.Value = int64(val)
		case fieldUnits:
			sv.Units = UnitKind(val)
		case fieldSensor:
			sv.Sensor = SensorKind(val)
		}
	})
	if err != nil {
		return SensorValue{}, err
	}
	return sv, nil
}

// EncodeSensorValueList serializes a sensor report.
func EncodeSensorValueList(list SensorValueList) []byte {
	var b []byte
	for _, sv := range list {
		b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
		b = protowire.AppendBytes(b, EncodeSensorValue(sv))
	}
	return b
}

// DecodeSensorValueList parses a sensor report payload.
func DecodeSensorValueList(b []byte) (SensorValueList, error) {
	var list SensorValueList
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("protocol: sensor list: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num != fieldValue || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("protocol: sensor list: %w", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		body, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("protocol: sensor list: %w", protowire.ParseError(n))
		}
		b = b[n:]

		sv, err := DecodeSensorValue(body)
		if err != nil {
			return nil, fmt.Errorf("protocol: sensor list entry %d: %w", len(list), err)
		}
		list = append(list, sv)
	}
	return list, nil
}

// EncodeFirmwareInfo serializes a firmware info payload.
func EncodeFirmwareInfo(fi FirmwareInfo) []byte {
	b := protowire.AppendTag(nil, fieldCommitID, protowire.BytesType)
	b = protowire.AppendString(b, fi.CommitID)
	b = protowire.AppendTag(b, fieldTagID, protowire.BytesType)
	b = protowire.AppendString(b, fi.TagID)
	b = protowire.AppendTag(b, fieldDateCode, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(fi.DateCode))
}

// DecodeFirmwareInfo parses a firmware info payload.
func DecodeFirmwareInfo(b []byte) (FirmwareInfo, error) {
	var fi FirmwareInfo
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return FirmwareInfo{}, fmt.Errorf("protocol: firmware info: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldCommitID && typ == protowire.BytesType:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return FirmwareInfo{}, fmt.Errorf("protocol: firmware info: %w", protowire.ParseError(m))
			}
			fi.CommitID = s
			b = b[m:]
		case num == fieldTagID && typ == protowire.BytesType:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return FirmwareInfo{}, fmt.Errorf("protocol: firmware info: %w", protowire.ParseError(m))
			}
			fi.TagID = s
			b = b[m:]
		case num == fieldDateCode && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return FirmwareInfo{}, fmt.Errorf("protocol: firmware info: %w", protowire.ParseError(m))
			}
			fi.DateCode = int64(v)
			b = b[m:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return FirmwareInfo{}, fmt.Errorf("protocol: firmware info: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return fi, nil
}

// eachField walks a message of varint-only fields, skipping anything else.
func eachField(b []byte, fn func(num protowire.Number, val uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		fn(num, v)
		b = b[n:]
	}
	return nil
}
