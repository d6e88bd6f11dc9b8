package mmarena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	data, release, err := Map(4096)
	require.NoError(t, err)
	require.Len(t, data, 4096)

	for i := range data {
		require.Zero(t, data[i], "mapped arena must start zeroed")
	}
	data[0], data[4095] = 0xAA, 0x55
	assert.Equal(t, byte(0xAA), data[0])

	require.NoError(t, release())
	require.NoError(t, release(), "second release is a no-op")
}

func TestMapRejectsBadSize(t *testing.T) {
	_, _, err := Map(0)
	assert.Error(t, err)
	_, _, err = Map(-8)
	assert.Error(t, err)
}
