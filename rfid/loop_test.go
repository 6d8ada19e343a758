package rfid

import (
  "context"
  "errors"
  "path/filepath"
  "sync"
  "testing"
  "time"

  "github.com/rs/zerolog"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

type readResult struct {
  tag Tag
  err error
}

// fakeReader hands out the queued results, then blocks until the context is done.
type fakeReader struct {
  mu sync.Mutex
  results []readResult
  reads int
  closed int
  closeErr error
  onDrained func()
}

func (r *fakeReader) Read(ctx context.Context) (Tag, error) {
  r.mu.Lock()

  r.reads += 1

  if len(r.results) > 0 {
    res := r.results[0]
    r.results = r.results[1:]
    r.mu.Unlock()

    return res.tag, res.err
  }

  drained := r.onDrained
  r.mu.Unlock()

  if drained != nil {
    drained()
  }

  <-ctx.Done()

  return Tag{}, ctx.Err()
}

func (r *fakeReader) Close() error {
  r.mu.Lock()
  defer r.mu.Unlock()

  r.closed += 1

  return r.closeErr
}

func newTestLoop(t *testing.T, reader *fakeReader) *Loop {
  t.Helper()

  return &Loop{
    Open: func() (Reader, error) { return reader, nil },
    Record: &Record{Path: filepath.Join(t.TempDir(), "rfid.txt")},
    Delay: time.Millisecond,
    Logger: zerolog.Nop(),
  }
}

func TestLoop_PersistsLastTag(t *testing.T) {
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()

  reader := &fakeReader{
    results: []readResult{
      {tag: Tag{ID: 123456789, Text: "alice"}},
      {tag: Tag{ID: 42, Text: "bob"}},
    },
    onDrained: cancel,
  }

  loop := newTestLoop(t, reader)

  require.NoError(t, loop.Run(ctx))

  id, err := loop.Record.Load()
  require.NoError(t, err)

  assert.Equal(t, uint64(42), id)
  assert.Equal(t, 1, reader.closed)
  assert.Equal(t, 3, reader.reads)
}

func TestLoop_ReadErrorsAreRetried(t *testing.T) {
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()

  reader := &fakeReader{
    results: []readResult{
      {err: errors.New("crc mismatch")},
      {tag: Tag{ID: 7}},
    },
    onDrained: cancel,
  }

  loop := newTestLoop(t, reader)

  require.NoError(t, loop.Run(ctx))

  id, err := loop.Record.Load()
  require.NoError(t, err)
  assert.Equal(t, uint64(7), id)
}

func TestLoop_ReleasesReaderOnCancel(t *testing.T) {
  ctx, cancel := context.WithCancel(context.Background())

  reader := &fakeReader{
    closeErr: errors.New("gpio busy"),
  }

  loop := newTestLoop(t, reader)
  loop.Delay = time.Hour

  done := make(chan error, 1)

  go func() {
    done <- loop.Run(ctx)
  }()

  cancel()

  select {
  case err := <-done:
    require.NoError(t, err)
  case <-time.After(5 * time.Second):
    t.Fatal("loop did not stop after cancellation")
  }

  assert.Equal(t, 1, reader.closed)

  _, err := loop.Record.Load()
  assert.Error(t, err, "no tag was read, record must not exist")
}

func TestLoop_OpenFailure(t *testing.T) {
  loop := &Loop{
    Open: func() (Reader, error) { return nil, errors.New("no such device") },
    Record: &Record{Path: filepath.Join(t.TempDir(), "rfid.txt")},
    Logger: zerolog.Nop(),
  }

  err := loop.Run(context.Background())

  require.ErrorIs(t, err, ErrReaderUnavailable)
}

func TestUIDToID(t *testing.T) {
  assert.Equal(t, uint64(0), uidToID(nil))
  assert.Equal(t, uint64(0x0102030405), uidToID([]byte{0x01, 0x02, 0x03, 0x04, 0x05}))
  assert.Equal(t, uint64(0xffffffffffffffff), uidToID([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}))
}
