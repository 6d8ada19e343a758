package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertof/go-vitals-collector/ble"
	"github.com/robertof/go-vitals-collector/collector"
	"github.com/robertof/go-vitals-collector/consumer"
	"github.com/robertof/go-vitals-collector/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
  os.Exit(run())
}

func run() int {
  zerolog.DurationFieldUnit = time.Second
  zerolog.TimeFieldFormat = time.RFC3339Nano

  log.Logger = log.Output(zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  })

  cfg := ParseArgs()
  floor := logLevelFloor(cfg)

  // units pick their own level, the process logger follows the flags.
  zerolog.SetGlobalLevel(zerolog.TraceLevel)
  log.Logger = log.Logger.Level(floor)

  if cfg.DiscoverDevices {
    doDeviceDiscovery(cfg)
    return 0
  }

  ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
  defer stop()

  log.Info().
    Str("BindAddr", cfg.BindAddress).
    Strs("DeviceTypes", cfg.DeviceTypes()).
    Bool("RFID", cfg.RFID.Enabled).
    Int("BluetoothDeviceID", cfg.BluetoothDeviceId).
    Msg("Starting with the specified configuration")

  registry := prometheus.NewRegistry()
  store := metrics.NewStore()

  ble.RegisterMetrics(registry)
  collector.RegisterMetrics(registry)
  metrics.RegisterCollector(store.Snapshot, registry)

  consumers := consumer.DefaultRegistry(store)
  supervisor := collector.NewSupervisor(log.Logger)
  devices := loadDeviceSettings(cfg)

  var tagScan collector.Unit

  if cfg.RFID.Enabled {
    tagScan = rfidUnit(cfg.RFID, floor)
  }

  release := addUnits(supervisor, devices, bleOpener(cfg), consumers, floor, tagScan)
  defer release()

  go serveMetrics(cfg.BindAddress, registry)

  if err := supervisor.Run(ctx); err != nil {
    log.Error().Err(err).Msg("At least one unit terminated with an error")
    return 1
  }

  log.Info().Msg("Program terminated")

  return 0
}

func logLevelFloor(cfg config) zerolog.Level {
  switch {
  case cfg.Trace || os.Getenv("TRACE") != "":
    return zerolog.TraceLevel
  case cfg.Debug || os.Getenv("DEBUG") != "":
    return zerolog.DebugLevel
  default:
    return zerolog.InfoLevel
  }
}

// serveMetrics blocks serving /metrics. A bind failure only loses the endpoint, units keep
// running.
func serveMetrics(bindAddress string, registry *prometheus.Registry) {
  log.Info().
      Str("ListenAddress", bindAddress).
      Msg("Starting Prometheus server")

  mux := http.NewServeMux()
  mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

  if err := http.ListenAndServe(bindAddress, mux); err != nil {
      log.Error().Err(err).Msg("Unable to bind on requested address, metrics are not served")
  }
}

func bleOpener(cfg config) transportOpener {
  return func(devices []*deviceSettings) (ble.Transport, func(), error) {
    handle, err := initBle(cfg, devices)

    if err != nil {
      return nil, nil, err
    }

    return handle, handle.Stop, nil
  }
}

func initBle(cfg config, devices []*deviceSettings) (*ble.Handle, error) {
  var bleFlags ble.Flags = ble.FlagScanTypeActive
  var allowList []ble.AllowListEntry

  for _, d := range devices {
    if d.err == nil {
      allowList = append(allowList, ble.AllowListEntry{
        Addr: d.cfg.Address,
        AddressType: d.cfg.AddressType,
      })
    }
  }

  if len(allowList) > 0 {
    bleFlags |= ble.FlagEnableDeviceAllowList
  }

  bleHandle, err := ble.InitWithConnParams(cfg.BluetoothDeviceId, cfg.BluetoothConnParams, bleFlags)

  if err != nil {
    return nil, err
  }

  if len(allowList) == 0 {
    return bleHandle, nil
  }

  if err := bleHandle.SetAllowListedAddresses(allowList); err != nil {
    log.Error().Err(err).Msg("Failed to set device allow list")
  }

  return bleHandle, nil
}
