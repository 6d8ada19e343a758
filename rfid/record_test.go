package rfid

import (
  "os"
  "path/filepath"
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

func TestRecord_Overwrites(t *testing.T) {
  dir := t.TempDir()
  r := &Record{Path: filepath.Join(dir, "rfid.txt")}

  require.NoError(t, r.Save(584190876543))
  require.NoError(t, r.Save(12))

  data, err := os.ReadFile(r.Path)
  require.NoError(t, err)
  assert.Equal(t, "12\n", string(data))

  id, err := r.Load()
  require.NoError(t, err)
  assert.Equal(t, uint64(12), id)

  entries, err := os.ReadDir(dir)
  require.NoError(t, err)
  assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestRecord_LoadErrors(t *testing.T) {
  r := &Record{Path: filepath.Join(t.TempDir(), "rfid.txt")}

  _, err := r.Load()
  assert.ErrorIs(t, err, os.ErrNotExist)

  require.NoError(t, os.WriteFile(r.Path, []byte("not a number\n"), 0o644))

  _, err = r.Load()
  assert.Error(t, err)
}

func TestRecord_MissingDirectory(t *testing.T) {
  r := &Record{Path: filepath.Join(t.TempDir(), "missing", "rfid.txt")}

  assert.Error(t, r.Save(1))
}
