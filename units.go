package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/robertof/go-vitals-collector/ble"
	"github.com/robertof/go-vitals-collector/collector"
	"github.com/robertof/go-vitals-collector/consumer"
	"github.com/robertof/go-vitals-collector/device"
	"github.com/robertof/go-vitals-collector/rfid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var errBluetoothUnavailable = errors.New("bluetooth adapter unavailable")

// transportOpener opens the transport shared by the device units. The returned func releases it.
type transportOpener func(devices []*deviceSettings) (ble.Transport, func(), error)

// addUnits registers one unit per device plus the tag scan unit, when not nil. The transport is
// only opened when devices are configured; failing to open it ends the device units and
// nothing else.
func addUnits(
  sup *collector.Supervisor,
  devices []*deviceSettings,
  open transportOpener,
  consumers *consumer.Registry,
  floor zerolog.Level,
  tagScan collector.Unit,
) (release func()) {
  release = func() {}

  if len(devices) > 0 {
    transport, stop, err := open(devices)

    if err != nil {
      err = fmt.Errorf("%w: %v", errBluetoothUnavailable, err)

      for _, d := range devices {
        sup.Add(d.descriptor.Type, d.failedUnit(err))
      }
    } else {
      release = stop

      for _, d := range devices {
        sup.Add(d.descriptor.Type, d.unit(transport, consumers, floor))
      }
    }
  }

  if tagScan != nil {
    sup.Add("rfid", tagScan)
  }

  return release
}

// deviceSettings is a device settings file, loaded before any unit starts so that the adapter
// allow-list can be set up. A loading error is kept and only ends the unit of that device.
type deviceSettings struct {
  descriptor device.Descriptor
  path string
  cfg device.Config
  err error
}

func loadDeviceSettings(cfg config) []*deviceSettings {
  var out []*deviceSettings

  for _, typ := range cfg.DeviceTypes() {
    d := &deviceSettings{
      descriptor: deviceDescriptors[typ],
      path: cfg.SettingsFiles[typ],
    }

    d.cfg, d.err = device.LoadConfig(d.path, d.descriptor)

    if d.err != nil {
      log.Error().
        Err(d.err).
        Str("Type", typ).
        Str("Path", d.path).
        Msg("Failed to load device settings")
    } else {
      log.Debug().Stringer("Device", d.cfg).Msg("Loaded device settings")
    }

    out = append(out, d)
  }

  return out
}

// failedUnit ends right away with the settings error, or err when the settings are fine.
func (d *deviceSettings) failedUnit(err error) collector.Unit {
  return func(ctx context.Context) error {
    if d.err != nil {
      return d.err
    }

    return err
  }
}

func (d *deviceSettings) unit(transport ble.Transport, consumers *consumer.Registry, floor zerolog.Level) collector.Unit {
  return func(ctx context.Context) error {
    if d.err != nil {
      return d.err
    }

    logger, closer := newUnitLogger(d.cfg.Type, d.cfg.LogLevel, d.cfg.LogFile, floor)
    defer closer.Close()

    logger = logger.With().Str("Device", d.cfg.Name).Logger()

    dispatcher, err := consumers.Load(d.cfg, logger)

    if err != nil {
      return err
    }

    defer func() {
      if err := dispatcher.Close(); err != nil {
        logger.Warn().Err(err).Msg("Failed to close consumers")
      }
    }()

    session, err := collector.NewSession(collector.SessionContext{
      Config: d.cfg,
      Descriptor: d.descriptor,
      Transport: transport,
      Dispatcher: dispatcher,
      Logger: logger,
    })

    if err != nil {
      return err
    }

    return session.Run(ctx)
  }
}

func rfidUnit(cfg rfidConfig, floor zerolog.Level) collector.Unit {
  return func(ctx context.Context) error {
    logger, closer := newUnitLogger("rfid", zerolog.InfoLevel, "", floor)
    defer closer.Close()

    loop := &rfid.Loop{
      Open: rfid.MFRC522Opener(rfid.MFRC522Options{
        SPIPort: cfg.SPIPort,
        ResetPin: cfg.ResetPin,
        IRQPin: cfg.IRQPin,
        Logger: logger,
      }),
      Record: &rfid.Record{Path: cfg.RecordPath},
      Delay: cfg.Delay,
      Logger: logger,
    }

    return loop.Run(ctx)
  }
}

type nopCloser struct{}

func (nopCloser) Close() error {
  return nil
}

// newUnitLogger builds the logger of a unit. The level is the most verbose between the
// configured one and the process floor; logFile, when set, receives a copy of every line.
func newUnitLogger(unit string, level zerolog.Level, logFile string, floor zerolog.Level) (zerolog.Logger, io.Closer) {
  var out io.Writer = zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  }
  var closer io.Closer = nopCloser{}

  if logFile != "" {
    file := &lumberjack.Logger{
      Filename: logFile,
      MaxSize: 10, // megabytes
      MaxBackups: 3,
      MaxAge: 28, // days
    }

    out = zerolog.MultiLevelWriter(out, file)
    closer = file
  }

  if floor < level {
    level = floor
  }

  logger := zerolog.New(out).
    Level(level).
    With().
    Timestamp().
    Str("Unit", unit).
    Logger()

  return logger, closer
}
