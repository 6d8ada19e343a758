package main

import (
	"context"
	"time"

	gble "github.com/go-ble/ble"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"

	"github.com/robertof/go-vitals-collector/ble"
	"github.com/robertof/go-vitals-collector/device/frame"
	"github.com/robertof/go-vitals-collector/utils"
)

// advertised GATT services of the devices a session can talk to.
var knownServices = map[string]string {
  gble.UUID16(0x1809).String(): frame.Thermometer.Type,          // Health Thermometer
  gble.UUID16(0x1810).String(): frame.BloodPressureMonitor.Type, // Blood Pressure
}

type discoveredDevice struct {
  name string
  connectable bool
  services map[string]bool
}

func (d discoveredDevice) serviceList() []string {
  return maps.Keys(d.services)
}

func doDeviceDiscovery(cfg config) {
  log.Info().Msg("Starting in device discovery mode - collecting devices for 5 seconds...")

  handle, err := ble.InitWithConnParams(cfg.BluetoothDeviceId, cfg.BluetoothConnParams, ble.FlagScanTypeActive)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  defer handle.Stop()

  ctx := ble.WrapContextWithSigHandler(
    context.WithTimeout(
      context.Background(),
      5 * time.Second,
    ),
  )

  devices := make(map[string]*discoveredDevice)

  err = handle.ScanAll(ctx, func(a ble.Advertisement) {
    addr := a.Addr().String()
    info, ok := devices[addr]

    if !ok {
      info = &discoveredDevice{services: make(map[string]bool)}
      devices[addr] = info
    }

    // merge advertisements and scan responses.
    if info.name == "" {
      info.name = a.LocalName()
    }

    info.connectable = a.Connectable()

    for _, uuid := range a.Services() {
      info.services[uuid.String()] = true
    }

    log.Debug().
      Str("Addr", addr).
      Str("Name", a.LocalName()).
      Bool("Connectable", a.Connectable()).
      Strs("Services", info.serviceList()).
      Hex("ManufacturerData", a.ManufacturerData()).
      Msg("Received device advertisement")
  })

  if err != nil && !utils.ErrorIsAnyOf(err, context.Canceled, context.DeadlineExceeded) {
    log.Fatal().Err(err).Msg("Failed to initiate scan")
  }

  log.Info().Int("Found", len(devices)).Msg("Finished device discovery")

  for addr, data := range devices {
    event := log.Info().
      Str("Addr", addr).
      Str("Name", data.name).
      Bool("Connectable", data.connectable).
      Strs("Services", data.serviceList())

    for uuid, typ := range knownServices {
      if data.services[uuid] {
        event = event.Str("DeviceType", typ)
      }
    }

    event.Msg("Found device")
  }
}
