package metrics_test

import (
  "testing"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/prometheus/client_golang/prometheus/testutil"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/robertof/go-vitals-collector/device"
  "github.com/robertof/go-vitals-collector/metrics"
)

func TestCollector(t *testing.T) {
  store := metrics.NewStore()
  reg := prometheus.NewRegistry()
  metrics.RegisterCollector(store.Snapshot, reg)

  count, err := testutil.GatherAndCount(reg)
  require.NoError(t, err)
  assert.Equal(t, 0, count)

  now := time.Now()

  store.Update("FT95", device.ReadingSet{
    device.TemperatureReading{Valid: false, Timestamp: now, Temperature: 1},
    device.TemperatureReading{Valid: true, Timestamp: now.Add(-time.Second), Temperature: 369},
    device.TemperatureReading{Valid: true, Timestamp: now.Add(-2 * time.Second), Temperature: 368},
  })

  store.Update("MBP70", device.ReadingSet{
    device.VitalsReading{Valid: true, Timestamp: now, Systolic: 120, Diastolic: 80, Pulse: 64},
  })

  // FT95: temperature + 2 session gauges, MBP70: 3 vitals + 2 session gauges.
  count, err = testutil.GatherAndCount(reg)
  require.NoError(t, err)
  assert.Equal(t, 8, count)

  families, err := reg.Gather()
  require.NoError(t, err)

  valid := map[string]float64{}

  for _, mf := range families {
    if mf.GetName() != "sensor_session_valid_readings" {
      continue
    }

    for _, m := range mf.GetMetric() {
      valid[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
    }
  }

  assert.Equal(t, map[string]float64{"FT95": 2, "MBP70": 1}, valid)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
  store := metrics.NewStore()
  store.Update("FT95", device.ReadingSet{})

  snap := store.Snapshot()
  delete(snap, "FT95")

  assert.Len(t, store.Snapshot(), 1)
}
