package device

import (
  "errors"
  "fmt"
  "strings"
  "time"
)

var (
  ErrMalformedFrame = errors.New("malformed frame")
  ErrConfiguration = errors.New("invalid configuration")
)

type AddressType uint8

const (
  AddressTypePublic AddressType = iota
  AddressTypeRandom
)

// modelWithPublicAddress is the only model known to advertise with a public address.
const modelWithPublicAddress = "MBP70"

func (a AddressType) String() string {
  switch a {
  case AddressTypePublic:
    return "public"
  case AddressTypeRandom:
    return "random"
  default:
    return fmt.Sprintf("unknown(%d)", uint8(a))
  }
}

func ParseAddressType(s string) (AddressType, error) {
  switch strings.ToLower(strings.TrimSpace(s)) {
  case "public":
    return AddressTypePublic, nil
  case "random":
    return AddressTypeRandom, nil
  default:
    return 0, fmt.Errorf("%w: unknown address type %q (must be one of public, random)",
      ErrConfiguration, s)
  }
}

func AddressTypeForModel(model string) AddressType {
  if strings.EqualFold(model, modelWithPublicAddress) {
    return AddressTypePublic
  }

  return AddressTypeRandom
}

type DecodeFunc func(data []byte, capturedAt time.Time) (Reading, error)

// Descriptor is everything a session needs to know about one kind of device.
type Descriptor struct {
  // Name of the device type, used for flags and logging.
  Type string
  // Section of the settings file holding the device parameters.
  Section string
  CharacteristicUUID string
  Decode DecodeFunc
}

func (d Descriptor) String() string {
  return fmt.Sprintf("%s[section=%s, characteristic=%s]", d.Type, d.Section, d.CharacteristicUUID)
}
