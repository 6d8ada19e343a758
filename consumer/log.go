package consumer

import (
  "context"

  "github.com/robertof/go-vitals-collector/device"
  "github.com/rs/zerolog"
)

// Log writes every reading to the unit log.
type Log struct {
  logger zerolog.Logger
}

func NewLog(cfg device.Config, logger zerolog.Logger) (Consumer, error) {
  return &Log{logger: logger}, nil
}

func (l *Log) Execute(ctx context.Context, cfg device.Config, readings device.ReadingSet) error {
  for i, r := range readings {
    l.logger.Info().
      Str("Device", cfg.Name).
      Int("Index", i).
      Object("Reading", r).
      Msg("Reading")
  }

  return nil
}
