package ble

import (
  "errors"
  "fmt"
  "net"
  "sync"
  "sync/atomic"

  "github.com/go-ble/ble"
  "github.com/go-ble/ble/linux"
  "github.com/go-ble/ble/linux/hci/cmd"
  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-vitals-collector/device"
  "github.com/robertof/go-vitals-collector/utils"
  "github.com/rs/zerolog/log"
)

var (
  ErrNotConnected = errors.New("not connected")
  ErrScan = errors.New("scan failed")
  // Reset refused because other sessions still have live links on the adapter.
  ErrAdapterBusy = errors.New("adapter has live connections")
)

type Advertisement = ble.Advertisement

// AllowListEntry is a device accepted by the controller when FlagEnableDeviceAllowList is set.
type AllowListEntry struct {
  Addr net.HardwareAddr
  AddressType device.AddressType
}

func (e AllowListEntry) String() string {
  return fmt.Sprintf("%v(%v)", e.Addr, e.AddressType)
}

// Handle owns one HCI device. Every operation touching the radio is serialized, since sessions
// for different devices share the same adapter.
type Handle struct {
  mu sync.Mutex

  dev *linux.Device
  deviceId int
  connParams ConnParams
  flags Flags
  allowList []AllowListEntry

  // connections opened by Connect and not closed yet.
  links atomic.Int32
}

func RegisterMetrics(reg prometheus.Registerer) {
  reg.MustRegister(
    successfulConnectionsCounter,
    failedConnectionsCounter,
    disconnectsCounter,
    adapterResetsCounter,
  )
}

func Init(deviceId int, flags Flags) (*Handle, error) {
  return InitWithConnParams(deviceId, ConnParamsDefault, flags)
}

func InitWithConnParams(deviceId int, connParams ConnParams, flags Flags) (*Handle, error) {
  h := &Handle{
    deviceId: deviceId,
    connParams: connParams,
    flags: flags,
  }

  if err := h.open(); err != nil {
    return nil, err
  }

  return h, nil
}

func (h *Handle) open() error {
  var scanType scanType = scanTypePassive
  var filterPolicy filterPolicy = filterPolicyAcceptAll

  if h.flags & FlagScanTypeActive == FlagScanTypeActive {
    scanType = scanTypeActive
  }

  if h.flags & FlagEnableDeviceAllowList == FlagEnableDeviceAllowList {
    filterPolicy = filterPolicyAllowListedOnly
  }

  log.Debug().
    Stringer("ScanType", scanType).
    Stringer("FilterPolicy", filterPolicy).
    Stringer("ConnParams", &h.connParams).
    Stringer("Flags", h.flags).
    Int("DeviceID", h.deviceId).
    Msg("Initializing Bluetooth device")

  dev, err := linux.NewDevice(
    ble.OptDeviceID(h.deviceId),
    ble.OptScanParams(cmd.LESetScanParameters{
      LEScanType:           uint8(scanType),     // 0x00: passive, 0x01: active
      LEScanInterval:       0x0010,              // 0x0004 - 0x4000; N * 0.625msec
      LEScanWindow:         0x0010,              // 0x0004 - 0x4000; N * 0.625msec
      OwnAddressType:       0x00,                // 0x00: public, 0x01: random
      ScanningFilterPolicy: uint8(filterPolicy), // 0x00: accept all, 0x01: ignore non-allow-listed.
    }),
    ble.OptConnParams(h.connParams.AdapterOptions()),
  )

  if err != nil {
    return fmt.Errorf("failed to init bluetooth device: %w", err)
  }

  h.dev = dev

  if len(h.allowList) > 0 {
    return h.applyAllowList()
  }

  return nil
}

// Reset tears down the HCI device and opens it again, restoring the allow-list if any. Stopping
// the device drops every connection on it, so the reset is refused with ErrAdapterBusy while any
// link is alive.
func (h *Handle) Reset() error {
  h.mu.Lock()
  defer h.mu.Unlock()

  if n := h.links.Load(); n > 0 {
    return fmt.Errorf("%w: %d links open", ErrAdapterBusy, n)
  }

  adapterResetsCounter.Inc()
  log.Warn().Int("DeviceID", h.deviceId).Msg("ble: resetting Bluetooth adapter")

  if h.dev != nil {
    if err := h.dev.Stop(); err != nil {
      log.Debug().Err(err).Msg("ble: error while stopping Bluetooth device, ignoring")
    }

    h.dev = nil
  }

  return h.open()
}

func (h *Handle) SetAllowListedAddresses(entries []AllowListEntry) error {
  h.mu.Lock()
  defer h.mu.Unlock()

  h.allowList = entries

  return h.applyAllowList()
}

func (h *Handle) applyAllowList() error {
  log.Debug().
    Array("Devices", utils.ToZeroLogArray(h.allowList)).
    Msg("Allow-listing the requested Bluetooth devices")

  // clear the white list to make sure we're starting from an empty slate.
  var res cmd.LEClearWhiteListRP

  err := h.dev.HCI.Send(&cmd.LEClearWhiteList{}, &res)

  if err != nil {
    return fmt.Errorf("failed to clear allow-list: %w", err)
  }

  if res.Status != 0 {
    return fmt.Errorf("failed to clear allow-list: got status: %v", res.Status)
  }

  for _, entry := range h.allowList {
    if len(entry.Addr) != 6 {
      return fmt.Errorf("%w: got non-6 byte device MAC address %v", device.ErrConfiguration, entry.Addr)
    }

    var addr [6]byte
    // HCI wants the address in little endian order.
    copy(addr[:], utils.Reverse([]byte(entry.Addr)))

    var res cmd.LEAddDeviceToWhiteListRP

    err := h.dev.HCI.Send(&cmd.LEAddDeviceToWhiteList{
      AddressType: uint8(entry.AddressType), // 0x00: public, 0x01: random
      Address:     addr,
    }, &res)

    if err != nil {
      return fmt.Errorf("failed to allow-list device %q: %w", entry, err)
    }

    if res.Status != 0 {
      return fmt.Errorf("failed to allow-list device %q: got status: %v", entry, res.Status)
    }
  }

  return nil
}

func (h *Handle) Stop() {
  h.mu.Lock()
  defer h.mu.Unlock()

  if h.dev != nil {
    h.dev.Stop()
    h.dev = nil
  }
}
