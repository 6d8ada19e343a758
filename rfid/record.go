package rfid

import (
  "fmt"
  "os"
  "path/filepath"
  "strconv"
  "strings"
)

// Record is a file holding the id of the last tag read, as a single decimal line.
type Record struct {
  Path string
}

// Save replaces the record with id. Readers never observe a partially written file.
func (r *Record) Save(id uint64) error {
  dir, base := filepath.Split(r.Path)
  if dir == "" {
    dir = "."
  }

  tmp, err := os.CreateTemp(dir, "." + base + ".tmp*")
  if err != nil {
    return fmt.Errorf("failed to create temporary record: %w", err)
  }

  defer os.Remove(tmp.Name())

  if _, err := tmp.WriteString(strconv.FormatUint(id, 10) + "\n"); err != nil {
    tmp.Close()
    return fmt.Errorf("failed to write record: %w", err)
  }

  if err := tmp.Chmod(0o644); err != nil {
    tmp.Close()
    return fmt.Errorf("failed to write record: %w", err)
  }

  if err := tmp.Close(); err != nil {
    return fmt.Errorf("failed to write record: %w", err)
  }

  if err := os.Rename(tmp.Name(), r.Path); err != nil {
    return fmt.Errorf("failed to replace record %s: %w", r.Path, err)
  }

  return nil
}

func (r *Record) Load() (uint64, error) {
  data, err := os.ReadFile(r.Path)
  if err != nil {
    return 0, err
  }

  id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
  if err != nil {
    return 0, fmt.Errorf("corrupted record %s: %w", r.Path, err)
  }

  return id, nil
}
