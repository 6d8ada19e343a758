package ble

import (
  "context"
  "fmt"
  "sync/atomic"
  "time"

  "github.com/go-ble/ble"
  "github.com/robertof/go-vitals-collector/utils"
  "github.com/rs/zerolog/log"
)

// ScanTimeout bounds a single FilteredScan so that other sessions get their turn on the radio.
const ScanTimeout = 10 * time.Second

func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
  return ble.WithSigHandler(ctx, cancel)
}

// Perform an active or passive scan and return every advertisement found.
func (h *Handle) ScanAll(ctx context.Context, onDevice func(Advertisement)) error {
  h.mu.Lock()
  defer h.mu.Unlock()

  err := h.dev.Scan(ctx, true, onDevice)

  if err != nil && !isContextError(err) {
    return fmt.Errorf("%w: %v", ErrScan, err)
  }

  return err
}

// FilteredScan scans for at most ScanTimeout and reports whether a device advertising the given
// local name was seen. Running out of time is not an error.
func (h *Handle) FilteredScan(ctx context.Context, name string) (bool, error) {
  h.mu.Lock()
  defer h.mu.Unlock()

  if h.dev == nil {
    return false, fmt.Errorf("%w: adapter is not initialized", ErrScan)
  }

  scanCtx, cancel := context.WithTimeout(ctx, ScanTimeout)
  defer cancel()

  var found atomic.Bool

  err := h.dev.Scan(scanCtx, false, func(a Advertisement) {
    if found.Load() || a.LocalName() != name {
      return
    }

    log.Trace().
      Str("Name", name).
      Str("Addr", a.Addr().String()).
      Int("RSSI", a.RSSI()).
      Msg("ble: found device while scanning")

    found.Store(true)
    cancel()
  })

  if found.Load() {
    return true, nil
  }

  // the parent context going away is reported as is, our own timeout is not an error.
  if ctx.Err() != nil {
    return false, ctx.Err()
  }

  if err != nil && !isContextError(err) {
    return false, fmt.Errorf("%w: %v", ErrScan, err)
  }

  return false, nil
}

func isContextError(err error) bool {
  return utils.ErrorIsAnyOf(err, context.Canceled, context.DeadlineExceeded)
}
