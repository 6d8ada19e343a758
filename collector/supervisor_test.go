package collector

import (
  "context"
  "fmt"
  "sync/atomic"
  "testing"
  "time"

  "github.com/robertof/go-vitals-collector/device"
  "github.com/rs/zerolog"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

func TestSupervisor_FailingUnitIsIsolated(t *testing.T) {
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()

  var ticks atomic.Int32
  sup := NewSupervisor(zerolog.Nop())

  sup.Add("misconfigured", func(ctx context.Context) error {
    return fmt.Errorf("loading settings: %w", device.ErrConfiguration)
  })

  sup.Add("crashing", func(ctx context.Context) error {
    panic("boom")
  })

  sup.Add("healthy", func(ctx context.Context) error {
    for {
      if ticks.Add(1) == 5 {
        cancel()
      }

      select {
      case <-ctx.Done():
        return ctx.Err()
      case <-time.After(time.Millisecond):
      }
    }
  })

  require.Equal(t, 3, sup.Len())

  err := sup.Run(ctx)

  require.Error(t, err)
  assert.GreaterOrEqual(t, ticks.Load(), int32(5))
}

func TestSupervisor_ReturnsConfigurationError(t *testing.T) {
  sup := NewSupervisor(zerolog.Nop())

  sup.Add("misconfigured", func(ctx context.Context) error {
    return device.ErrConfiguration
  })

  err := sup.Run(context.Background())

  require.ErrorIs(t, err, device.ErrConfiguration)
  assert.Contains(t, err.Error(), "misconfigured")
}

func TestSupervisor_CancelledUnitsAreNotErrors(t *testing.T) {
  ctx, cancel := context.WithCancel(context.Background())
  cancel()

  sup := NewSupervisor(zerolog.Nop())

  for i := 0; i < 3; i += 1 {
    sup.Add(fmt.Sprintf("unit-%d", i), func(ctx context.Context) error {
      <-ctx.Done()
      return ctx.Err()
    })
  }

  require.NoError(t, sup.Run(ctx))
}

func TestSupervisor_RunsSessions(t *testing.T) {
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()

  dispatcher := &fakeDispatcher{}
  transport := &fakeTransport{
    peripheral: &fakePeripheral{frames: [][]byte{temperatureFrame(0x02, 360)}},
  }

  s := newTestSession(t, transport, dispatcher)
  s.OnTransition = func(from, to State) {
    if from == StateReporting {
      cancel()
    }
  }

  sup := NewSupervisor(zerolog.Nop())
  sup.Add("thermometer", s.Run)

  require.NoError(t, sup.Run(ctx))
  assert.Len(t, dispatcher.calls, 1)
}
