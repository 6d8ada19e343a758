package collector

import (
  "context"
  "time"
)

const (
  DefaultBackoffFactor = 500 * time.Millisecond
  DefaultMaxBackoff = 30 * time.Second
)

// Backoff is an exponential backoff: Factor << attempt, capped at Max.
type Backoff struct {
  Factor time.Duration
  Max time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
  if b.Factor <= 0 {
    return 0
  }

  max := b.Max
  if max <= 0 {
    max = DefaultMaxBackoff
  }

  if attempt > 30 {
    return max
  }

  backoff := b.Factor << int64(attempt)

  if backoff <= 0 || backoff > max {
    backoff = max
  }

  return backoff
}

// sleep waits for d or until the context is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
  if d <= 0 {
    return ctx.Err()
  }

  t := time.NewTimer(d)
  defer t.Stop()

  select {
  case <-ctx.Done():
    return ctx.Err()
  case <-t.C:
    return nil
  }
}
