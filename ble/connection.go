package ble

import (
  "context"
  "fmt"
  "net"
  "strings"
  "time"

  "github.com/go-ble/ble"
  "github.com/go-ble/ble/linux/hci"
  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-vitals-collector/device"
  "github.com/rs/zerolog/log"
)

var (
  successfulConnectionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "vitals_collector_ble_successful_connections_total",
  })
  failedConnectionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "vitals_collector_ble_failed_connections_total",
  })
  disconnectsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "vitals_collector_ble_disconnections_total",
  })
  adapterResetsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "vitals_collector_ble_adapter_resets_total",
  })
)

type NotificationHandler = func(data []byte)

type ConnectOptions struct {
  // Timeout of a single connection attempt.
  Timeout time.Duration
  // MTU to negotiate after connecting. Zero keeps the default.
  MTU int
  AddressType device.AddressType
}

// Peripheral is a connected device.
type Peripheral interface {
  Subscribe(characteristicUUID string, indication bool, h NotificationHandler) error
  Disconnect() error
}

// Transport is the part of the Bluetooth stack a device session needs.
type Transport interface {
  FilteredScan(ctx context.Context, name string) (bool, error)
  Reset() error
  Connect(ctx context.Context, addr net.HardwareAddr, opts ConnectOptions) (Peripheral, error)
}

var _ Transport = (*Handle)(nil)

type peripheral struct {
  h *Handle
  addr net.HardwareAddr
  client ble.Client
}

func dialAddr(addr net.HardwareAddr, addrType device.AddressType) ble.Addr {
  a := ble.NewAddr(strings.ToLower(addr.String()))

  if addrType == device.AddressTypeRandom {
    return hci.RandomAddress{Addr: a}
  }

  return a
}

// Connect dials the device. Any failure is reported as ErrNotConnected.
func (h *Handle) Connect(ctx context.Context, addr net.HardwareAddr, opts ConnectOptions) (Peripheral, error) {
  h.mu.Lock()
  defer h.mu.Unlock()

  if h.dev == nil {
    return nil, fmt.Errorf("%w: adapter is not initialized", ErrNotConnected)
  }

  dialCtx := ctx

  if opts.Timeout > 0 {
    var cancel func()
    dialCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
    defer cancel()
  }

  client, err := h.dev.Dial(dialCtx, dialAddr(addr, opts.AddressType))

  if err != nil {
    failedConnectionsCounter.Inc()
    return nil, fmt.Errorf("%w: failed to connect to %v: %v", ErrNotConnected, addr, err)
  }

  successfulConnectionsCounter.Inc()
  h.links.Add(1)

  log.Debug().
    Stringer("Addr", addr).
    Stringer("AddressType", opts.AddressType).
    Msg("ble: successfully opened new connection to device")

  if opts.MTU > 0 {
    if txMTU, err := client.ExchangeMTU(opts.MTU); err != nil {
      log.Warn().Err(err).Int("MTU", opts.MTU).Msg("ble: MTU exchange failed, keeping default")
    } else {
      log.Trace().Int("MTU", txMTU).Msg("ble: negotiated MTU")
    }
  }

  go func() {
    <-client.Disconnected()

    h.links.Add(-1)
    disconnectsCounter.Inc()
    log.Debug().Stringer("Addr", addr).Msg("ble: connection with device closed")
  }()

  return &peripheral{
    h: h,
    addr: addr,
    client: client,
  }, nil
}

func (p *peripheral) connected() bool {
  select {
  case <-p.client.Disconnected():
    return false
  default:
    return true
  }
}

func (p *peripheral) characteristic(uuid ble.UUID) (*ble.Characteristic, error) {
  profile, err := p.client.DiscoverProfile(true)

  if err != nil {
    return nil, fmt.Errorf("cannot discover profile for device: %w", err)
  }

  for _, svc := range profile.Services {
    for _, char := range svc.Characteristics {
      if char.UUID.Equal(uuid) {
        return char, nil
      }
    }
  }

  return nil, fmt.Errorf("failed to find characteristic with UUID '%v'", uuid)
}

func (p *peripheral) Subscribe(characteristicUUID string, indication bool, h NotificationHandler) error {
  uuid, err := ble.Parse(characteristicUUID)

  if err != nil {
    return fmt.Errorf("invalid characteristic UUID %q: %w", characteristicUUID, err)
  }

  p.h.mu.Lock()
  defer p.h.mu.Unlock()

  if !p.connected() {
    return fmt.Errorf("%w: %v went away before subscribing", ErrNotConnected, p.addr)
  }

  char, err := p.characteristic(uuid)

  if err != nil {
    return err
  }

  if err := p.client.Subscribe(char, indication, h); err != nil {
    if !p.connected() {
      return fmt.Errorf("%w: %v", ErrNotConnected, err)
    }

    return fmt.Errorf("failed to subscribe to '%v': %w", uuid, err)
  }

  log.Debug().
    Stringer("Addr", p.addr).
    Stringer("Characteristic", uuid).
    Bool("Indication", indication).
    Msg("ble: subscribed to characteristic")

  return nil
}

func (p *peripheral) Disconnect() error {
  p.h.mu.Lock()
  defer p.h.mu.Unlock()

  if !p.connected() {
    return fmt.Errorf("%w: %v", ErrNotConnected, p.addr)
  }

  if err := p.client.CancelConnection(); err != nil {
    return fmt.Errorf("failed to disconnect from %v: %w", p.addr, err)
  }

  return nil
}
