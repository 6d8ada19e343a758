package rfid

import (
  "context"
  "errors"
  "fmt"
  "time"

  "github.com/rs/zerolog"
)

const DefaultDelay = 5 * time.Second

var ErrReaderUnavailable = errors.New("rfid reader unavailable")

type Tag struct {
  ID uint64
  Text string
}

// Reader is an RFID reader. Read blocks until a tag is presented or the context is done.
type Reader interface {
  Read(ctx context.Context) (Tag, error)
  Close() error
}

type Opener func() (Reader, error)

// Loop persists the id of every tag presented to the reader.
type Loop struct {
  Open Opener
  Record *Record
  // Pause between two reads, so that a tag left on the reader is not read continuously.
  Delay time.Duration
  Logger zerolog.Logger
}

// Run acquires the reader and scans until the context is cancelled. The reader is always
// released on the way out.
func (l *Loop) Run(ctx context.Context) (err error) {
  reader, err := l.Open()

  if err != nil {
    return fmt.Errorf("%w: %v", ErrReaderUnavailable, err)
  }

  defer func() {
    if cerr := reader.Close(); cerr != nil {
      l.Logger.Warn().Err(cerr).Msg("Failed to release RFID reader")
    } else {
      l.Logger.Debug().Msg("Released RFID reader")
    }
  }()

  delay := l.Delay
  if delay <= 0 {
    delay = DefaultDelay
  }

  l.Logger.Info().
    Str("Record", l.Record.Path).
    Str("Delay", delay.String()).
    Msg("RFID scan loop started")

  for {
    l.Logger.Info().Msg("Hold a tag near the reader")

    tag, err := reader.Read(ctx)

    if ctx.Err() != nil {
      l.Logger.Info().Msg("RFID scan loop terminated")
      return nil
    }

    if err != nil {
      l.Logger.Warn().Err(err).Msg("Failed to read tag")
    } else {
      l.Logger.Info().
        Uint64("ID", tag.ID).
        Str("Text", tag.Text).
        Msg("Read tag")

      if err := l.Record.Save(tag.ID); err != nil {
        l.Logger.Error().Err(err).Uint64("ID", tag.ID).Msg("Failed to persist tag")
      }
    }

    select {
    case <-ctx.Done():
      l.Logger.Info().Msg("RFID scan loop terminated")
      return nil
    case <-time.After(delay):
    }
  }
}
