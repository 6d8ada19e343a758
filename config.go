package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/robertof/go-vitals-collector/ble"
	"github.com/robertof/go-vitals-collector/device"
	"github.com/robertof/go-vitals-collector/device/frame"
	"github.com/robertof/go-vitals-collector/rfid"
	"golang.org/x/exp/maps"
)

type rfidConfig struct {
  Enabled bool
  RecordPath string
  Delay time.Duration
  SPIPort string
  ResetPin, IRQPin string
}

type config struct {
  Debug, Trace bool
  BindAddress string
  DiscoverDevices bool
  BluetoothDeviceId int
  BluetoothConnParams ble.ConnParams
  // settings file per device type.
  SettingsFiles map[string]string
  RFID rfidConfig
}

var deviceDescriptors = map[string]device.Descriptor {
  frame.Thermometer.Type: frame.Thermometer,
  frame.BloodPressureMonitor.Type: frame.BloodPressureMonitor,
}

type boundSettingsFile struct {
  device.Descriptor
  files map[string]string
}

func (b *boundSettingsFile) String() string {
  if b.files == nil {
    return ""
  }

  return b.files[b.Type]
}

func (b *boundSettingsFile) Set(v string) error {
  if _, ok := b.files[b.Type]; ok {
    return fmt.Errorf("only one settings file per device type is supported")
  }

  if v == "" {
    return fmt.Errorf("empty settings file path")
  }

  b.files[b.Type] = v

  return nil
}

// DeviceTypes returns the configured device types in a stable order.
func (c config) DeviceTypes() []string {
  types := maps.Keys(c.SettingsFiles)
  sort.Strings(types)

  return types
}

func ParseArgs() config {
  return parseArgs(flag.CommandLine, os.Args[1:])
}

func parseArgs(fs *flag.FlagSet, args []string) config {
  var cfg config

  cfg.BluetoothConnParams = ble.ConnParamsDefault
  cfg.SettingsFiles = make(map[string]string)

  fs.StringVar(&cfg.BindAddress,"bind", "localhost:9102", "Where the metrics endpoint will bind to")
  fs.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID")
  fs.Var(&cfg.BluetoothConnParams, "bluetooth-connection-params", "Bluetooth connection parameters (one of 'default' or 'power-saving')")
  fs.BoolVar(&cfg.DiscoverDevices, "discover", false, "Discover available BLE devices and quit")
  fs.BoolVar(&cfg.RFID.Enabled, "rfid", false, "Run the RFID tag scan loop")
  fs.StringVar(&cfg.RFID.RecordPath, "rfid-record", "rfid.txt", "File holding the id of the last tag read")
  fs.DurationVar(&cfg.RFID.Delay, "rfid-delay", rfid.DefaultDelay, "Pause between two tag reads")
  fs.StringVar(&cfg.RFID.SPIPort, "rfid-spi", "", "SPI port of the RFID reader, empty for the first available one")
  fs.StringVar(&cfg.RFID.ResetPin, "rfid-reset-pin", "GPIO25", "GPIO pin wired to the RFID reader reset line")
  fs.StringVar(&cfg.RFID.IRQPin, "rfid-irq-pin", "GPIO24", "GPIO pin wired to the RFID reader IRQ line")
  fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
  fs.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")

  for typ, descriptor := range deviceDescriptors {
    bound := boundSettingsFile{
      Descriptor: descriptor,
      files: cfg.SettingsFiles,
    }

    help := fmt.Sprintf(
      "Settings file (INI) of the %s device. The device is read from the [%s] section.",
      typ,
      descriptor.Section,
    )

    fs.Var(&bound, typ, help)
  }

  if err := fs.Parse(args); err != nil {
    // the flag set already reported the error.
    os.Exit(2)
  }

  if !cfg.DiscoverDevices && len(cfg.SettingsFiles) == 0 && !cfg.RFID.Enabled {
    fmt.Fprintln(fs.Output(), "Error: at least one device settings file or -rfid is required!")
    fs.Usage()
    os.Exit(1)
  }

  return cfg
}
