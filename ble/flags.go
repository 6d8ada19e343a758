package ble

import (
  "fmt"
  "strings"
)

type Flags int

const (
  // Request scan responses from peripherals. Needed to see the local name of most devices.
  FlagScanTypeActive Flags = 1 << iota
  // Only report devices added with `SetAllowListedAddresses()`.
  FlagEnableDeviceAllowList
)

var flagNames = []struct {
  flag Flags
  name string
}{
  {FlagScanTypeActive, "active scan"},
  {FlagEnableDeviceAllowList, "device allow-list"},
}

func (f Flags) String() string {
  var names []string

  for _, fn := range flagNames {
    if f & fn.flag == fn.flag {
      names = append(names, fn.name)
    }
  }

  if len(names) == 0 {
    return "none"
  }

  return strings.Join(names, ", ")
}

type scanType uint8

const (
  scanTypePassive scanType = iota
  scanTypeActive
)

func (s scanType) String() string {
  switch s {
  case scanTypeActive:
    return "Active"
  case scanTypePassive:
    return "Passive"
  default:
    return fmt.Sprintf("scanType(%d)", uint8(s))
  }
}

type filterPolicy uint8

const (
  filterPolicyAcceptAll filterPolicy = iota
  filterPolicyAllowListedOnly
)

func (f filterPolicy) String() string {
  switch f {
  case filterPolicyAcceptAll:
    return "Accept All"
  case filterPolicyAllowListedOnly:
    return "Allow-listed Only"
  default:
    return fmt.Sprintf("filterPolicy(%d)", uint8(f))
  }
}
