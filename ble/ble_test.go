package ble

import (
  "testing"

  "github.com/prometheus/client_golang/prometheus/testutil"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
)

func TestHandle_ResetRefusedWithLiveLinks(t *testing.T) {
  h := &Handle{}
  h.links.Add(1)

  resets := testutil.ToFloat64(adapterResetsCounter)

  err := h.Reset()

  require.ErrorIs(t, err, ErrAdapterBusy)
  assert.Equal(t, resets, testutil.ToFloat64(adapterResetsCounter))
  assert.Nil(t, h.dev)
}
