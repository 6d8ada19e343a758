package frame

import (
  "time"

  "github.com/robertof/go-vitals-collector/device"
)

const (
  // Temperature Measurement (0x2a1c)
  TemperatureCharacteristicUUID = "00002a1c-0000-1000-8000-00805f9b34fb"
  // Blood Pressure Measurement (0x2a35)
  VitalsCharacteristicUUID = "00002a35-0000-1000-8000-00805f9b34fb"
)

var Thermometer = device.Descriptor{
  Type: "thermometer",
  Section: "TEMP",
  CharacteristicUUID: TemperatureCharacteristicUUID,
  Decode: func(data []byte, capturedAt time.Time) (device.Reading, error) {
    r, err := DecodeTemperature(data, capturedAt)
    if err != nil {
      return nil, err
    }

    return r, nil
  },
}

var BloodPressureMonitor = device.Descriptor{
  Type: "bpm",
  Section: "BPM",
  CharacteristicUUID: VitalsCharacteristicUUID,
  Decode: func(data []byte, capturedAt time.Time) (device.Reading, error) {
    r, err := DecodeVitals(data, capturedAt)
    if err != nil {
      return nil, err
    }

    return r, nil
  },
}
