package consumer

import (
  "strconv"
  "time"

  "github.com/robertof/go-vitals-collector/device"
)

type readingPayload struct {
  Kind string `json:"kind"`
  Valid bool `json:"valid"`
  Timestamp time.Time `json:"timestamp"`
  Temperature *uint16 `json:"temperature,omitempty"`
  Systolic *uint16 `json:"systolic,omitempty"`
  Diastolic *uint16 `json:"diastolic,omitempty"`
  Pulse *uint16 `json:"pulse,omitempty"`
}

type sessionPayload struct {
  Device string `json:"device"`
  Type string `json:"type"`
  Model string `json:"model,omitempty"`
  Address string `json:"address"`
  Readings []readingPayload `json:"readings"`
}

func newReadingPayload(r device.Reading) readingPayload {
  p := readingPayload{
    Kind: r.Kind().String(),
    Valid: r.IsValid(),
    Timestamp: r.CapturedAt(),
  }

  switch reading := r.(type) {
  case device.TemperatureReading:
    p.Temperature = &reading.Temperature
  case device.VitalsReading:
    p.Systolic = &reading.Systolic
    p.Diastolic = &reading.Diastolic
    p.Pulse = &reading.Pulse
  }

  return p
}

func newSessionPayload(cfg device.Config, readings device.ReadingSet) sessionPayload {
  p := sessionPayload{
    Device: cfg.Name,
    Type: cfg.Type,
    Model: cfg.Model,
    Address: cfg.Address.String(),
    Readings: make([]readingPayload, len(readings)),
  }

  for i, r := range readings {
    p.Readings[i] = newReadingPayload(r)
  }

  return p
}

// fields flattens a reading into string values, e.g. for stream entries.
func (p readingPayload) fields() map[string]interface{} {
  out := map[string]interface{}{
    "kind": p.Kind,
    "valid": strconv.FormatBool(p.Valid),
    "timestamp": p.Timestamp.UTC().Format(time.RFC3339Nano),
  }

  for name, v := range map[string]*uint16{
    "temperature": p.Temperature,
    "systolic": p.Systolic,
    "diastolic": p.Diastolic,
    "pulse": p.Pulse,
  } {
    if v != nil {
      out[name] = strconv.Itoa(int(*v))
    }
  }

  return out
}
