package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics(map[HostFunctionID]uint64{3: 2, 1: 5}, 1, 2, 65536)
	assert.Equal(t, uint64(7), m.HostCalls)
	assert.Equal(t, uint64(1), m.HostCallFailures)
	assert.Equal(t, []HostCallMetrics{{ID: 1, Calls: 5}, {ID: 3, Calls: 2}}, m.PerHostFunction)
	assert.Equal(t, uint64(5), m.CallsOf(1))
	assert.Zero(t, m.CallsOf(2))
}

func TestMetricsEncoding(t *testing.T) {
	m := NewMetrics(map[HostFunctionID]uint64{1: 4, 5: 1}, 0, 1, 131072)
	data, err := EncodeMetrics(m)
	require.NoError(t, err)

	got, err := DecodeMetrics(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = DecodeMetrics([]byte{0xc1})
	require.ErrorContains(t, err, "decode metrics")
}
