package metrics

import (
  "sync"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-vitals-collector/device"
)

var (
  descTemperature = prometheus.NewDesc(
    "sensor_temperature_raw",
    "Raw temperature value reported by the thermometer.",
    []string{"name"},
    nil,
  )

  descSystolic = prometheus.NewDesc(
    "sensor_blood_pressure_systolic_mmhg",
    "Systolic blood pressure reported by the monitor.",
    []string{"name"},
    nil,
  )

  descDiastolic = prometheus.NewDesc(
    "sensor_blood_pressure_diastolic_mmhg",
    "Diastolic blood pressure reported by the monitor.",
    []string{"name"},
    nil,
  )

  descPulse = prometheus.NewDesc(
    "sensor_pulse_bpm",
    "Pulse rate reported by the monitor.",
    []string{"name"},
    nil,
  )

  descSessionReadings = prometheus.NewDesc(
    "sensor_session_readings",
    "Number of distinct readings received during the last successful session.",
    []string{"name"},
    nil,
  )

  descSessionValidReadings = prometheus.NewDesc(
    "sensor_session_valid_readings",
    "Number of readings with valid flags received during the last successful session.",
    []string{"name"},
    nil,
  )
)

// Snapshot is the last reading set delivered for one device.
type Snapshot struct {
  Readings device.ReadingSet
  UpdatedAt time.Time
}

type CollectFunc func() map[string]Snapshot

// Store keeps the latest delivered reading set per device name.
type Store struct {
  mu sync.Mutex
  latest map[string]Snapshot
}

func NewStore() *Store {
  return &Store{latest: make(map[string]Snapshot)}
}

func (s *Store) Update(name string, readings device.ReadingSet) {
  s.mu.Lock()
  defer s.mu.Unlock()

  // safe to hand out as we replace the snapshot on every update.
  s.latest[name] = Snapshot{
    Readings: readings,
    UpdatedAt: time.Now(),
  }
}

func (s *Store) Snapshot() map[string]Snapshot {
  s.mu.Lock()
  defer s.mu.Unlock()

  out := make(map[string]Snapshot, len(s.latest))

  for name, snap := range s.latest {
    out[name] = snap
  }

  return out
}

type collector struct {
  CollectFunc
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
  prometheus.DescribeByCollect(c, ch)
}

func gauge(ts time.Time, desc *prometheus.Desc, v float64, labels ...string) prometheus.Metric {
  m := prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)

  return prometheus.NewMetricWithTimestamp(ts, m)
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
  for name, snap := range c.CollectFunc() {
    valid := 0
    seen := make(map[device.Kind]bool)

    // readings are sorted newest first: only the first valid one of each kind is exported.
    for _, r := range snap.Readings {
      if !r.IsValid() {
        continue
      }

      valid += 1

      if seen[r.Kind()] {
        continue
      }

      seen[r.Kind()] = true
      ts := r.CapturedAt()

      switch reading := r.(type) {
      case device.TemperatureReading:
        ch <- gauge(ts, descTemperature, float64(reading.Temperature), name)
      case device.VitalsReading:
        ch <- gauge(ts, descSystolic, float64(reading.Systolic), name)
        ch <- gauge(ts, descDiastolic, float64(reading.Diastolic), name)
        ch <- gauge(ts, descPulse, float64(reading.Pulse), name)
      }
    }

    ch <- gauge(snap.UpdatedAt, descSessionReadings, float64(len(snap.Readings)), name)
    ch <- gauge(snap.UpdatedAt, descSessionValidReadings, float64(valid), name)
  }
}

func RegisterCollector(f CollectFunc, reg prometheus.Registerer) {
  c := &collector{f}

  reg.MustRegister(c)
}
