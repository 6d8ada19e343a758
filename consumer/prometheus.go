package consumer

import (
  "context"

  "github.com/robertof/go-vitals-collector/device"
  "github.com/robertof/go-vitals-collector/metrics"
  "github.com/rs/zerolog"
)

// Prometheus publishes the latest readings of every device through a shared metrics store.
type Prometheus struct {
  store *metrics.Store
}

func NewPrometheusFactory(store *metrics.Store) Factory {
  return func(cfg device.Config, logger zerolog.Logger) (Consumer, error) {
    return &Prometheus{store: store}, nil
  }
}

func (p *Prometheus) Execute(ctx context.Context, cfg device.Config, readings device.ReadingSet) error {
  p.store.Update(cfg.Name, readings)

  return nil
}
