package device

import (
  "fmt"
  "strings"
  "time"

  "github.com/rs/zerolog"
)

type Kind uint8

const (
  KindTemperature Kind = iota
  KindVitals
)

func (k Kind) String() string {
  switch k {
  case KindTemperature:
    return "temperature"
  case KindVitals:
    return "vitals"
  default:
    return fmt.Sprintf("unknown(%d)", uint8(k))
  }
}

// Reading is a single decoded frame. Two readings are equal when they have the same kind and
// every field matches.
type Reading interface {
  zerolog.LogObjectMarshaler
  fmt.Stringer

  Kind() Kind
  IsValid() bool
  CapturedAt() time.Time
  Equal(other Reading) bool
}

type TemperatureReading struct {
  Valid bool
  Timestamp time.Time
  Temperature uint16
}

func (r TemperatureReading) Kind() Kind {
  return KindTemperature
}

func (r TemperatureReading) IsValid() bool {
  return r.Valid
}

func (r TemperatureReading) CapturedAt() time.Time {
  return r.Timestamp
}

func (r TemperatureReading) Equal(other Reading) bool {
  o, ok := other.(TemperatureReading)

  return ok &&
    r.Valid == o.Valid &&
    r.Temperature == o.Temperature &&
    r.Timestamp.Equal(o.Timestamp)
}

func (r TemperatureReading) String() string {
  return fmt.Sprintf("TemperatureReading[Valid=%v,Temperature=%d,Timestamp=%v]",
    r.Valid, r.Temperature, r.Timestamp.Format(time.RFC3339Nano))
}

func (r TemperatureReading) MarshalZerologObject(e *zerolog.Event) {
  e.Bool("Valid", r.Valid).
    Uint16("Temperature", r.Temperature).
    Time("Timestamp", r.Timestamp)
}

type VitalsReading struct {
  Valid bool
  Timestamp time.Time
  Systolic uint16
  Diastolic uint16
  Pulse uint16
}

func (r VitalsReading) Kind() Kind {
  return KindVitals
}

func (r VitalsReading) IsValid() bool {
  return r.Valid
}

func (r VitalsReading) CapturedAt() time.Time {
  return r.Timestamp
}

func (r VitalsReading) Equal(other Reading) bool {
  o, ok := other.(VitalsReading)

  return ok &&
    r.Valid == o.Valid &&
    r.Systolic == o.Systolic &&
    r.Diastolic == o.Diastolic &&
    r.Pulse == o.Pulse &&
    r.Timestamp.Equal(o.Timestamp)
}

func (r VitalsReading) String() string {
  return fmt.Sprintf("VitalsReading[Valid=%v,Systolic=%d,Diastolic=%d,Pulse=%d,Timestamp=%v]",
    r.Valid, r.Systolic, r.Diastolic, r.Pulse, r.Timestamp.Format(time.RFC3339Nano))
}

func (r VitalsReading) MarshalZerologObject(e *zerolog.Event) {
  e.Bool("Valid", r.Valid).
    Uint16("Systolic", r.Systolic).
    Uint16("Diastolic", r.Diastolic).
    Uint16("Pulse", r.Pulse).
    Time("Timestamp", r.Timestamp)
}

// ReadingSet is the outcome of one observation window, newest reading first.
type ReadingSet []Reading

func (s ReadingSet) String() string {
  parts := make([]string, len(s))

  for i, r := range s {
    parts[i] = r.String()
  }

  return "[" + strings.Join(parts, ",") + "]"
}

func (s ReadingSet) MarshalZerologArray(a *zerolog.Array) {
  for _, r := range s {
    a.Object(r)
  }
}
