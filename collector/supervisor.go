package collector

import (
  "context"
  "errors"
  "fmt"

  "github.com/rs/zerolog"
  "golang.org/x/sync/errgroup"
)

// Unit is an independent, long running piece of work, e.g. a device session loop. Units build
// their own resources, so a construction failure only ends the unit it belongs to.
type Unit func(ctx context.Context) error

type namedUnit struct {
  name string
  run Unit
}

type Supervisor struct {
  logger zerolog.Logger
  units []namedUnit
}

func NewSupervisor(logger zerolog.Logger) *Supervisor {
  return &Supervisor{logger: logger}
}

func (s *Supervisor) Add(name string, unit Unit) {
  s.units = append(s.units, namedUnit{name: name, run: unit})
}

func (s *Supervisor) Len() int {
  return len(s.units)
}

// Run starts every unit and blocks until all of them are done. A failing unit never stops the
// others; the first failure is returned once everything has terminated.
func (s *Supervisor) Run(ctx context.Context) error {
  var eg errgroup.Group

  s.logger.Info().Int("Units", len(s.units)).Msg("Starting units")

  for _, unit := range s.units {
    unit := unit

    eg.Go(func() error {
      return s.runUnit(ctx, unit)
    })
  }

  return eg.Wait()
}

func (s *Supervisor) runUnit(ctx context.Context, unit namedUnit) (err error) {
  logger := s.logger.With().Str("Unit", unit.name).Logger()

  defer func() {
    if r := recover(); r != nil {
      err = fmt.Errorf("%s: panic: %v", unit.name, r)
      logger.Error().Err(err).Msg("Unit crashed")
    }
  }()

  logger.Debug().Msg("Unit started")

  err = unit.run(ctx)

  if err == nil || errors.Is(err, context.Canceled) {
    logger.Info().Msg("Unit stopped")
    return nil
  }

  logger.Error().Err(err).Msg("Unit terminated with a fatal error")

  return fmt.Errorf("%s: %w", unit.name, err)
}
