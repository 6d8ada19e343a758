package collector

import (
  "slices"
  "sync"

  "github.com/robertof/go-vitals-collector/device"
  "github.com/rs/zerolog"
)

// Buffer accumulates the readings of one observation window. Notifications are delivered on the
// transport's goroutine, so all methods are safe for concurrent use.
type Buffer struct {
  mu sync.Mutex
  readings device.ReadingSet
  logger zerolog.Logger
}

func NewBuffer(logger zerolog.Logger) *Buffer {
  return &Buffer{logger: logger}
}

// TryAdd appends r unless an equal reading is already buffered.
func (b *Buffer) TryAdd(r device.Reading) bool {
  b.mu.Lock()
  defer b.mu.Unlock()

  for _, existing := range b.readings {
    if existing.Equal(r) {
      b.logger.Info().Object("Reading", r).Msg("Duplicate reading, ignoring")
      return false
    }
  }

  b.readings = append(b.readings, r)

  return true
}

func (b *Buffer) Len() int {
  b.mu.Lock()
  defer b.mu.Unlock()

  return len(b.readings)
}

// Finalize returns a copy of the buffered readings, newest first. Readings captured at the same
// instant keep their arrival order.
func (b *Buffer) Finalize() device.ReadingSet {
  b.mu.Lock()
  defer b.mu.Unlock()

  out := slices.Clone(b.readings)

  slices.SortStableFunc(out, func(x, y device.Reading) int {
    return y.CapturedAt().Compare(x.CapturedAt())
  })

  if out == nil {
    out = device.ReadingSet{}
  }

  return out
}
