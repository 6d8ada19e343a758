package consumer

import (
  "context"
  "errors"
  "fmt"
  "io"
  "slices"

  "github.com/robertof/go-vitals-collector/device"
  "github.com/rs/zerolog"
  "golang.org/x/exp/maps"
)

var ErrUnknownConsumer = errors.New("unknown consumer")

// Consumer receives the sorted readings of every successful session.
type Consumer interface {
  Execute(ctx context.Context, cfg device.Config, readings device.ReadingSet) error
}

type Factory func(cfg device.Config, logger zerolog.Logger) (Consumer, error)

// Registry maps the consumer names accepted in settings files to their implementation.
type Registry struct {
  factories map[string]Factory
}

func NewRegistry() *Registry {
  return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
  if _, ok := r.factories[name]; ok {
    panic("consumer registered twice: " + name)
  }

  r.factories[name] = f
}

func (r *Registry) Names() []string {
  names := maps.Keys(r.factories)
  slices.Sort(names)

  return names
}

// Load builds the consumers listed in the configuration, in order. Any unknown name fails the
// whole load.
func (r *Registry) Load(cfg device.Config, logger zerolog.Logger) (*Dispatcher, error) {
  d := &Dispatcher{logger: logger}

  if len(cfg.Consumers) == 0 {
    logger.Info().Msg("No consumers configured")
    return d, nil
  }

  logger.Info().Strs("Consumers", cfg.Consumers).Msg("Configured consumers")

  for _, name := range cfg.Consumers {
    f, ok := r.factories[name]

    if !ok {
      d.Close()
      return nil, fmt.Errorf("%w: %q (must be one of %v)", ErrUnknownConsumer, name, r.Names())
    }

    logger.Info().Str("Consumer", name).Msg("Loading consumer")

    c, err := f(cfg, logger.With().Str("Consumer", name).Logger())

    if err != nil {
      d.Close()
      return nil, fmt.Errorf("failed to load consumer %q: %w", name, err)
    }

    d.consumers = append(d.consumers, namedConsumer{name: name, Consumer: c})
  }

  logger.Info().Msg("All consumers loaded")

  return d, nil
}

type namedConsumer struct {
  Consumer
  name string
}

// Dispatcher runs consumers one after the other. A failing consumer never prevents the next one
// from running.
type Dispatcher struct {
  logger zerolog.Logger
  consumers []namedConsumer
}

func NewDispatcher(logger zerolog.Logger) *Dispatcher {
  return &Dispatcher{logger: logger}
}

func (d *Dispatcher) Add(name string, c Consumer) {
  d.consumers = append(d.consumers, namedConsumer{name: name, Consumer: c})
}

func (d *Dispatcher) Len() int {
  return len(d.consumers)
}

func (d *Dispatcher) Dispatch(ctx context.Context, cfg device.Config, readings device.ReadingSet) (failed int) {
  for _, c := range d.consumers {
    if err := d.execute(ctx, c, cfg, readings); err != nil {
      failed += 1

      d.logger.Error().
        Err(err).
        Str("Consumer", c.name).
        Msg("Consumer failed")
    }
  }

  return failed
}

func (d *Dispatcher) execute(
  ctx context.Context,
  c namedConsumer,
  cfg device.Config,
  readings device.ReadingSet,
) (err error) {
  defer func() {
    if r := recover(); r != nil {
      err = fmt.Errorf("consumer panicked: %v", r)
    }
  }()

  d.logger.Trace().
    Str("Consumer", c.name).
    Int("Readings", len(readings)).
    Msg("Running consumer")

  return c.Execute(ctx, cfg, readings)
}

// Close releases consumers holding connections.
func (d *Dispatcher) Close() error {
  var errs []error

  for _, c := range d.consumers {
    if closer, ok := c.Consumer.(io.Closer); ok {
      if err := closer.Close(); err != nil {
        errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
      }
    }
  }

  return errors.Join(errs...)
}
