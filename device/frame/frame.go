package frame

import (
  "encoding/binary"
  "time"

  "github.com/pkg/errors"
  "github.com/robertof/go-vitals-collector/device"
)

const (
  TemperatureFrameLength = 14
  VitalsFrameLength = 16

  temperatureValidFlags = 0x02
  vitalsValidFlags = 0x1e

  // offsets of the device clock, which is decoded but not used as reading timestamp.
  temperatureDeviceTimestampOffset = 9
  vitalsDeviceTimestampOffset = 10
)

func checkLength(data []byte, want int) error {
  if len(data) < want {
    return errors.Wrapf(device.ErrMalformedFrame,
      "unexpected frame length (%d), want >= %d", len(data), want)
  }

  return nil
}

// DecodeTemperature parses a temperature measurement indication:
//
//   [0] flags, [1:3] temperature, [3:9] reserved, [9:13] device timestamp
//
// A frame with unexpected flags is returned with Valid=false rather than rejected.
func DecodeTemperature(data []byte, capturedAt time.Time) (r device.TemperatureReading, err error) {
  if err := checkLength(data, TemperatureFrameLength); err != nil {
    return r, err
  }

  bo := binary.LittleEndian

  r.Valid = data[0] == temperatureValidFlags
  r.Temperature = bo.Uint16(data[1:])
  r.Timestamp = capturedAt

  return r, nil
}

// DecodeVitals parses a blood pressure measurement indication:
//
//   [0] flags, [1:3] systolic, [3:5] diastolic, [5:10] reserved, [10:14] device timestamp,
//   [14:16] pulse
func DecodeVitals(data []byte, capturedAt time.Time) (r device.VitalsReading, err error) {
  if err := checkLength(data, VitalsFrameLength); err != nil {
    return r, err
  }

  bo := binary.LittleEndian

  r.Valid = data[0] == vitalsValidFlags
  r.Systolic = bo.Uint16(data[1:])
  r.Diastolic = bo.Uint16(data[3:])
  r.Pulse = bo.Uint16(data[14:])
  r.Timestamp = capturedAt

  return r, nil
}

// DeviceTimestamp returns the timestamp embedded by the device into a frame of the given kind.
func DeviceTimestamp(kind device.Kind, data []byte) (uint32, error) {
  var offset int

  switch kind {
  case device.KindTemperature:
    if err := checkLength(data, TemperatureFrameLength); err != nil {
      return 0, err
    }
    offset = temperatureDeviceTimestampOffset
  case device.KindVitals:
    if err := checkLength(data, VitalsFrameLength); err != nil {
      return 0, err
    }
    offset = vitalsDeviceTimestampOffset
  default:
    return 0, errors.Errorf("frame: unknown reading kind %v", kind)
  }

  return binary.LittleEndian.Uint32(data[offset:]), nil
}
