package collector

import (
  "context"
  "errors"
  "fmt"
  "sync/atomic"
  "time"

  "github.com/robertof/go-vitals-collector/ble"
  "github.com/robertof/go-vitals-collector/device"
  "github.com/robertof/go-vitals-collector/device/frame"
  "github.com/rs/zerolog"
)

const (
  ObservationWindow = 30 * time.Second
  ConnectAttempts = 3
  ConnectTimeout = 8 * time.Second
)

var errConnectAttemptsExhausted = errors.New("connect attempts exhausted")

// Dispatcher hands the readings of a successful session over to consumers.
type Dispatcher interface {
  Dispatch(ctx context.Context, cfg device.Config, readings device.ReadingSet) (failed int)
}

// SessionContext is everything a session works with. It is built once per device and owned by
// the session.
type SessionContext struct {
  Config device.Config
  Descriptor device.Descriptor
  Transport ble.Transport
  Dispatcher Dispatcher
  Logger zerolog.Logger
}

// Session drives one device through discover, connect, subscribe, observe, disconnect and
// report, over and over.
type Session struct {
  SessionContext

  ObservationWindow time.Duration
  ConnectAttempts int
  ConnectTimeout time.Duration
  MTU int
  Backoff Backoff

  // Called on every state change, from the session goroutine.
  OnTransition func(from, to State)

  now func() time.Time
  state atomic.Uint32
}

func NewSession(sc SessionContext) (*Session, error) {
  if sc.Transport == nil {
    return nil, fmt.Errorf("%w: no transport for %v", device.ErrConfiguration, sc.Config)
  }

  if sc.Descriptor.Decode == nil || sc.Descriptor.CharacteristicUUID == "" {
    return nil, fmt.Errorf("%w: incomplete device descriptor %v", device.ErrConfiguration, sc.Descriptor)
  }

  if sc.Config.Name == "" {
    return nil, fmt.Errorf("%w: device name is required", device.ErrConfiguration)
  }

  if len(sc.Config.Address) != 6 {
    return nil, fmt.Errorf("%w: invalid device address %v", device.ErrConfiguration, sc.Config.Address)
  }

  return &Session{
    SessionContext: sc,
    ObservationWindow: ObservationWindow,
    ConnectAttempts: ConnectAttempts,
    ConnectTimeout: ConnectTimeout,
    Backoff: Backoff{
      Factor: DefaultBackoffFactor,
      Max: DefaultMaxBackoff,
    },
    now: time.Now,
  }, nil
}

func (s *Session) State() State {
  return State(s.state.Load())
}

func (s *Session) setState(to State) {
  from := State(s.state.Swap(uint32(to)))

  if from == to {
    return
  }

  s.Logger.Trace().
    Stringer("From", from).
    Stringer("To", to).
    Msg("Session state transition")

  if s.OnTransition != nil {
    s.OnTransition(from, to)
  }
}

// Run loops over sessions until the context is cancelled. Failures of a single session never
// end the loop.
func (s *Session) Run(ctx context.Context) error {
  s.Logger.Info().
    Stringer("Device", s.Config).
    Str("ObservationWindow", s.ObservationWindow.String()).
    Int("ConnectAttempts", s.ConnectAttempts).
    Msg("Session started")

  for iteration := 0; ; iteration += 1 {
    outcome, err := s.runIteration(ctx)

    s.setState(StateIdle)

    if ctx.Err() != nil {
      s.Logger.Info().Msg("Session stopped")
      return ctx.Err()
    }

    if err != nil {
      s.Logger.Error().Err(err).Int("Iteration", iteration).Msg("Session iteration crashed, restarting")

      if err := sleep(ctx, s.Backoff.Delay(0)); err != nil {
        return err
      }

      continue
    }

    sessionOutcomesCounter.WithLabelValues(s.Config.Name, outcome.Kind.String()).Inc()

    s.Logger.Debug().
      Int("Iteration", iteration).
      Stringer("Outcome", outcome).
      Msg("Session finished")
  }
}

func (s *Session) runIteration(ctx context.Context) (outcome Outcome, err error) {
  defer func() {
    if r := recover(); r != nil {
      err = fmt.Errorf("panic during session: %v", r)
    }
  }()

  return s.RunOnce(ctx)
}

// RunOnce performs a single session. The error is only set when the context is cancelled.
func (s *Session) RunOnce(ctx context.Context) (Outcome, error) {
  // link still to be released, if any.
  var linked ble.Peripheral

  defer func() {
    if r := recover(); r != nil {
      if linked != nil {
        s.disconnect(linked)
      }

      panic(r)
    }
  }()

  s.setState(StateDiscovering)

  if err := s.discover(ctx); err != nil {
    return Outcome{}, err
  }

  s.setState(StateConnecting)

  peripheral, err := s.connect(ctx)

  if err != nil {
    if ctx.Err() != nil {
      return Outcome{}, ctx.Err()
    }

    s.setState(StateReporting)
    s.Logger.Warn().
      Int("Attempts", s.ConnectAttempts).
      Msg("Could not connect to device")

    return Outcome{Kind: OutcomeConnectFailed}, nil
  }

  linked = peripheral
  s.setState(StateSubscribed)

  buf := NewBuffer(s.Logger)

  err = peripheral.Subscribe(s.Descriptor.CharacteristicUUID, true, func(data []byte) {
    s.handleFrame(buf, data)
  })

  if err != nil {
    s.setState(StateReporting)
    s.Logger.Warn().Err(err).Msg("Subscription to device failed")

    // drop the link so that the next session starts from scratch.
    linked = nil

    if err := peripheral.Disconnect(); err != nil {
      s.Logger.Debug().Err(err).Msg("Disconnect after failed subscription failed, ignoring")
    }

    return Outcome{Kind: OutcomeSubscribeFailed}, nil
  }

  s.setState(StateObserving)
  s.Logger.Info().
    Str("Window", s.ObservationWindow.String()).
    Msg("Waiting for notifications")

  waitErr := sleep(ctx, s.ObservationWindow)

  s.setState(StateDisconnecting)
  linked = nil
  s.disconnect(peripheral)

  if waitErr != nil {
    s.Logger.Info().
      Int("Discarded", buf.Len()).
      Msg("Observation aborted")

    return Outcome{}, waitErr
  }

  s.setState(StateReporting)

  return s.report(ctx, buf), nil
}

func (s *Session) discover(ctx context.Context) error {
  resets := 0

  for {
    found, err := s.Transport.FilteredScan(ctx, s.Config.Name)

    if ctx.Err() != nil {
      return ctx.Err()
    }

    if found {
      s.Logger.Debug().Str("Name", s.Config.Name).Msg("Device found")
      return nil
    }

    if err == nil {
      s.Logger.Trace().Str("Name", s.Config.Name).Msg("Device not seen yet, scanning again")
      resets = 0
      continue
    }

    s.Logger.Warn().Err(err).Int("Resets", resets).Msg("Scan failed, resetting adapter")

    if err := s.Transport.Reset(); errors.Is(err, ble.ErrAdapterBusy) {
      s.Logger.Info().Err(err).Msg("Adapter in use by another session, postponing reset")
    } else if err != nil {
      s.Logger.Error().Err(err).Msg("Adapter reset failed")
    }

    if err := sleep(ctx, s.Backoff.Delay(resets)); err != nil {
      return err
    }

    resets += 1
  }
}

func (s *Session) connect(ctx context.Context) (ble.Peripheral, error) {
  opts := ble.ConnectOptions{
    Timeout: s.ConnectTimeout,
    MTU: s.MTU,
    AddressType: s.Config.AddressType,
  }

  for attempt := 0; attempt < s.ConnectAttempts; attempt += 1 {
    peripheral, err := s.Transport.Connect(ctx, s.Config.Address, opts)

    if err == nil {
      s.Logger.Info().Int("Attempt", attempt + 1).Msg("Connected to device")
      return peripheral, nil
    }

    if ctx.Err() != nil {
      return nil, ctx.Err()
    }

    retriesLeft := s.ConnectAttempts - attempt - 1

    s.Logger.Debug().
      Err(err).
      Int("RetriesLeft", retriesLeft).
      Msg("Connection attempt failed")

    if retriesLeft > 0 {
      if err := sleep(ctx, s.Backoff.Delay(attempt)); err != nil {
        return nil, err
      }
    }
  }

  return nil, errConnectAttemptsExhausted
}

func (s *Session) disconnect(peripheral ble.Peripheral) {
  err := peripheral.Disconnect()

  switch {
  case err == nil:
  case errors.Is(err, ble.ErrNotConnected):
    s.Logger.Info().Err(err).Msg("Could not disconnect, device already gone")
  default:
    s.Logger.Warn().Err(err).Msg("Disconnect failed, ignoring")
  }
}

func (s *Session) handleFrame(buf *Buffer, data []byte) {
  defer func() {
    if r := recover(); r != nil {
      s.Logger.Error().
        Hex("Frame", data).
        Str("Panic", fmt.Sprint(r)).
        Msg("Notification handler panicked, dropping frame")
    }
  }()

  reading, err := s.Descriptor.Decode(data, s.now())

  if err != nil {
    malformedFramesCounter.WithLabelValues(s.Config.Name).Inc()
    s.Logger.Error().Err(err).Hex("Frame", data).Msg("Dropping malformed frame")
    return
  }

  if ts, err := frame.DeviceTimestamp(reading.Kind(), data); err == nil {
    s.Logger.Trace().Uint32("DeviceTimestamp", ts).Msg("Ignoring device timestamp")
  }

  if !reading.IsValid() {
    s.Logger.Debug().Object("Reading", reading).Msg("Received reading with unexpected flags")
  }

  if buf.TryAdd(reading) {
    s.Logger.Info().Object("Reading", reading).Msg("Received reading")
  }
}

func (s *Session) report(ctx context.Context, buf *Buffer) Outcome {
  readings := buf.Finalize()

  if len(readings) == 0 {
    s.Logger.Error().Err(ErrEmptySession).Msg("Done receiving data from device")
    return Outcome{Kind: OutcomeEmptySession}
  }

  s.Logger.Info().
    Int("Readings", len(readings)).
    Msg("Done receiving data from device")

  if s.Dispatcher != nil {
    if failed := s.Dispatcher.Dispatch(ctx, s.Config, readings); failed > 0 {
      s.Logger.Warn().Int("FailedConsumers", failed).Msg("Some consumers failed")
    }
  }

  return Outcome{Kind: OutcomeDelivered, Readings: readings}
}
