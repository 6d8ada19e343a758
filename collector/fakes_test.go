package collector

import (
  "context"
  "net"
  "sync"
  "time"

  "github.com/robertof/go-vitals-collector/ble"
  "github.com/robertof/go-vitals-collector/device"
  "github.com/robertof/go-vitals-collector/device/frame"
  "github.com/rs/zerolog"
)

type scanResult struct {
  found bool
  err error
}

type fakeTransport struct {
  mu sync.Mutex

  // consumed in order, the device is found once they run out.
  scanResults []scanResult
  // one entry per connection attempt, nil means success. Attempts past the end succeed.
  connectErrs []error
  peripheral *fakePeripheral

  scans, resets, connects int
  lastConnect ble.ConnectOptions
}

func (f *fakeTransport) FilteredScan(ctx context.Context, name string) (bool, error) {
  f.mu.Lock()
  defer f.mu.Unlock()

  f.scans += 1

  if len(f.scanResults) == 0 {
    return true, nil
  }

  res := f.scanResults[0]
  f.scanResults = f.scanResults[1:]

  return res.found, res.err
}

func (f *fakeTransport) Reset() error {
  f.mu.Lock()
  defer f.mu.Unlock()

  f.resets += 1

  return nil
}

func (f *fakeTransport) Connect(ctx context.Context, addr net.HardwareAddr, opts ble.ConnectOptions) (ble.Peripheral, error) {
  f.mu.Lock()
  defer f.mu.Unlock()

  attempt := f.connects
  f.connects += 1
  f.lastConnect = opts

  if attempt < len(f.connectErrs) && f.connectErrs[attempt] != nil {
    return nil, f.connectErrs[attempt]
  }

  if f.peripheral == nil {
    f.peripheral = &fakePeripheral{}
  }

  return f.peripheral, nil
}

type fakePeripheral struct {
  mu sync.Mutex

  frames [][]byte
  subscribeErr error
  disconnectErr error

  subscribedUUID string
  indication bool
  disconnects int
}

// Subscribe delivers every queued frame right away.
func (p *fakePeripheral) Subscribe(uuid string, indication bool, h ble.NotificationHandler) error {
  p.mu.Lock()
  p.subscribedUUID = uuid
  p.indication = indication
  err := p.subscribeErr
  frames := p.frames
  p.mu.Unlock()

  if err != nil {
    return err
  }

  for _, f := range frames {
    h(f)
  }

  return nil
}

func (p *fakePeripheral) Disconnect() error {
  p.mu.Lock()
  defer p.mu.Unlock()

  p.disconnects += 1

  return p.disconnectErr
}

type dispatchCall struct {
  cfg device.Config
  readings device.ReadingSet
}

type fakeDispatcher struct {
  mu sync.Mutex
  calls []dispatchCall
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, cfg device.Config, readings device.ReadingSet) int {
  d.mu.Lock()
  defer d.mu.Unlock()

  d.calls = append(d.calls, dispatchCall{cfg: cfg, readings: readings})

  return 0
}

// sequenceClock returns the given instants in order, then keeps returning the last one.
func sequenceClock(times ...time.Time) func() time.Time {
  var mu sync.Mutex
  i := 0

  return func() time.Time {
    mu.Lock()
    defer mu.Unlock()

    t := times[i]
    if i < len(times) - 1 {
      i += 1
    }

    return t
  }
}

func temperatureFrame(flags byte, value uint16) []byte {
  data := make([]byte, frame.TemperatureFrameLength)
  data[0] = flags
  data[1], data[2] = byte(value), byte(value >> 8)

  return data
}

func testConfig() device.Config {
  addr, _ := net.ParseMAC("a4:c1:38:00:00:01")

  return device.Config{
    Type: "thermometer",
    Name: "FT95",
    Address: addr,
    Model: "FT95",
    AddressType: device.AddressTypeRandom,
  }
}

func newTestSession(t interface{ Fatalf(string, ...any) }, transport ble.Transport, dispatcher Dispatcher) *Session {
  s, err := NewSession(SessionContext{
    Config: testConfig(),
    Descriptor: frame.Thermometer,
    Transport: transport,
    Dispatcher: dispatcher,
    Logger: zerolog.Nop(),
  })

  if err != nil {
    t.Fatalf("NewSession failed: %v", err)
  }

  s.ObservationWindow = 10 * time.Millisecond
  s.Backoff = Backoff{}

  return s
}
