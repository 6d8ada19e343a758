package frame_test

import (
  "errors"
  "reflect"
  "testing"
  "time"

  "github.com/robertof/go-vitals-collector/device"
  "github.com/robertof/go-vitals-collector/device/frame"
)

var capturedAt = time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

func TestDecodeTemperature_Valid(t *testing.T) {
  data := []byte{
    0x02,                               // flags
    0x71, 0x01,                         // temperature = 369
    0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // reserved
    0x10, 0x20, 0x30, 0x40,             // device timestamp
    0xff,                               // unused
  }

  got, err := frame.DecodeTemperature(data, capturedAt)

  if err != nil {
    t.Fatalf("DecodeTemperature(%x) got error: %v", data, err)
  }

  want := device.TemperatureReading{
    Valid:       true,
    Timestamp:   capturedAt,
    Temperature: 369,
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("DecodeTemperature(%x): got %+#v, wanted %+#v", data, got, want)
  }
}

func TestDecodeTemperature_InvalidFlags(t *testing.T) {
  data := []byte{
    0x03, 0x64, 0x00,
    0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
    0x00, 0x00, 0x00, 0x00,
    0x00,
  }

  got, err := frame.DecodeTemperature(data, capturedAt)

  if err != nil {
    t.Fatalf("DecodeTemperature(%x) got error: %v", data, err)
  }

  want := device.TemperatureReading{
    Valid:       false,
    Timestamp:   capturedAt,
    Temperature: 100,
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("DecodeTemperature(%x): got %+#v, wanted %+#v", data, got, want)
  }
}

func TestDecodeTemperature_AllValues(t *testing.T) {
  data := make([]byte, frame.TemperatureFrameLength)
  data[0] = 0x02

  for v := 0; v <= 0xffff; v += 257 {
    data[1], data[2] = byte(v), byte(v >> 8)

    got, err := frame.DecodeTemperature(data, capturedAt)

    if err != nil {
      t.Fatalf("DecodeTemperature(%x) got error: %v", data, err)
    }

    if !got.Valid || got.Temperature != uint16(v) {
      t.Fatalf("DecodeTemperature(%x): got %+#v, wanted temperature %d", data, got, v)
    }
  }
}

func TestDecodeVitals_Valid(t *testing.T) {
  data := []byte{
    0x1e,                         // flags
    0x7a, 0x00,                   // systolic = 122
    0x50, 0x00,                   // diastolic = 80
    0x00, 0x00, 0x00, 0x00, 0x00, // reserved
    0x01, 0x02, 0x03, 0x04,       // device timestamp
    0x48, 0x00,                   // pulse = 72
  }

  got, err := frame.DecodeVitals(data, capturedAt)

  if err != nil {
    t.Fatalf("DecodeVitals(%x) got error: %v", data, err)
  }

  want := device.VitalsReading{
    Valid:     true,
    Timestamp: capturedAt,
    Systolic:  122,
    Diastolic: 80,
    Pulse:     72,
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("DecodeVitals(%x): got %+#v, wanted %+#v", data, got, want)
  }
}

func TestDecodeVitals_InvalidFlags(t *testing.T) {
  data := []byte{
    0x02,
    0x01, 0x01,
    0x02, 0x02,
    0x00, 0x00, 0x00, 0x00, 0x00,
    0x00, 0x00, 0x00, 0x00,
    0x03, 0x03,
  }

  got, err := frame.DecodeVitals(data, capturedAt)

  if err != nil {
    t.Fatalf("DecodeVitals(%x) got error: %v", data, err)
  }

  want := device.VitalsReading{
    Valid:     false,
    Timestamp: capturedAt,
    Systolic:  0x0101,
    Diastolic: 0x0202,
    Pulse:     0x0303,
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("DecodeVitals(%x): got %+#v, wanted %+#v", data, got, want)
  }
}

func TestDecode_ShortFrames(t *testing.T) {
  for n := 0; n < frame.TemperatureFrameLength; n += 1 {
    got, err := frame.DecodeTemperature(make([]byte, n), capturedAt)

    if !errors.Is(err, device.ErrMalformedFrame) {
      t.Fatalf("DecodeTemperature(len=%d): got error %v, wanted ErrMalformedFrame", n, err)
    }

    if !reflect.DeepEqual(got, device.TemperatureReading{}) {
      t.Fatalf("DecodeTemperature(len=%d): got partial reading %+#v", n, got)
    }
  }

  for n := 0; n < frame.VitalsFrameLength; n += 1 {
    got, err := frame.DecodeVitals(make([]byte, n), capturedAt)

    if !errors.Is(err, device.ErrMalformedFrame) {
      t.Fatalf("DecodeVitals(len=%d): got error %v, wanted ErrMalformedFrame", n, err)
    }

    if !reflect.DeepEqual(got, device.VitalsReading{}) {
      t.Fatalf("DecodeVitals(len=%d): got partial reading %+#v", n, got)
    }
  }
}

func TestDeviceTimestamp(t *testing.T) {
  temp := make([]byte, frame.TemperatureFrameLength)
  copy(temp[9:], []byte{0x78, 0x56, 0x34, 0x12})

  if ts, err := frame.DeviceTimestamp(device.KindTemperature, temp); err != nil || ts != 0x12345678 {
    t.Fatalf("DeviceTimestamp(temperature): got %x, %v", ts, err)
  }

  vitals := make([]byte, frame.VitalsFrameLength)
  copy(vitals[10:], []byte{0x04, 0x03, 0x02, 0x01})

  if ts, err := frame.DeviceTimestamp(device.KindVitals, vitals); err != nil || ts != 0x01020304 {
    t.Fatalf("DeviceTimestamp(vitals): got %x, %v", ts, err)
  }

  if _, err := frame.DeviceTimestamp(device.KindVitals, temp); !errors.Is(err, device.ErrMalformedFrame) {
    t.Fatalf("DeviceTimestamp(vitals, short): got error %v, wanted ErrMalformedFrame", err)
  }
}

func TestDescriptors(t *testing.T) {
  data := make([]byte, frame.VitalsFrameLength)
  data[0] = 0x1e

  r, err := frame.BloodPressureMonitor.Decode(data, capturedAt)

  if err != nil {
    t.Fatalf("BloodPressureMonitor.Decode got error: %v", err)
  }

  if r.Kind() != device.KindVitals || !r.IsValid() {
    t.Fatalf("BloodPressureMonitor.Decode: got %v", r)
  }

  if _, err := frame.Thermometer.Decode(data[:4], capturedAt); !errors.Is(err, device.ErrMalformedFrame) {
    t.Fatalf("Thermometer.Decode(short): got error %v, wanted ErrMalformedFrame", err)
  }
}
