package ble

import (
  "fmt"
  "slices"

  "github.com/go-ble/ble/linux/hci/cmd"
)

type ConnParams string

const (
  ConnParamsDefault     ConnParams = "default"
  ConnParamsPowerSaving ConnParams = "power-saving"
)

var allConnParams = []ConnParams{ConnParamsDefault, ConnParamsPowerSaving}

// *flag.Value
func (c *ConnParams) String() string {
  if c == nil || *c == "" {
    return string(ConnParamsDefault)
  }

  return string(*c)
}

func (c *ConnParams) Set(v string) error {
  if v == "" {
    *c = ConnParamsDefault
    return nil
  }

  p := ConnParams(v)

  if !slices.Contains(allConnParams, p) {
    return fmt.Errorf("unknown connection param %v (must be one of %v)", p, allConnParams)
  }

  *c = p
  return nil
}

func (c ConnParams) AdapterOptions() cmd.LECreateConnection {
  // thermometers and blood pressure monitors only stay awake for a short while after a
  // measurement: connect fast and with a generous supervision timeout.
  p := cmd.LECreateConnection{
    LEScanInterval:        0x0010,    // 0x0004 - 0x4000; N * 0.625 msec
    LEScanWindow:          0x0010,    // 0x0004 - 0x4000; N * 0.625 msec
    InitiatorFilterPolicy: 0x00,      // White list is not used
    PeerAddressType:       0x00,      // Public Device Address, Dial() switches it for random ones
    PeerAddress:           [6]byte{}, //
    OwnAddressType:        0x00,      // Public Device Address
    ConnIntervalMin:       0x0018,    // 0x0006 - 0x0C80; N * 1.25 msec
    ConnIntervalMax:       0x0028,    // 0x0006 - 0x0C80; N * 1.25 msec
    ConnLatency:           0x0000,    // 0x0000 - 0x01F3; N * 1.25 msec
    SupervisionTimeout:    0x0190,    // 0x000A - 0x0C80; N * 10 msec
    MinimumCELength:       0x0000,    // 0x0000 - 0xFFFF; N * 0.625 msec
    MaximumCELength:       0x0000,    // 0x0000 - 0xFFFF; N * 0.625 msec
  }

  switch c {
  case ConnParamsDefault, "":
  case ConnParamsPowerSaving:
    // - interval max * (latency + 1) <= 1/2 supervision timeout
    p.ConnIntervalMin    = 0x00f0 // 300ms
    p.ConnIntervalMax    = 0x00f0 // 300ms
    p.ConnLatency        = 0x0004 // indications are acknowledged, keep latency low
    p.SupervisionTimeout = 0x0708 // 18s
  default:
    panic("unknown Bluetooth connection param: " + c)
  }

  return p
}
