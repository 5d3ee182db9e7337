package types

import (
	"fmt"
	"sort"

	"github.com/shamaton/msgpack/v2"
)

// Metrics are counters collected by a VM instance over its lifetime.
type Metrics struct {
	HostCalls        uint64            `msgpack:"host_calls"`
	HostCallFailures uint64            `msgpack:"host_call_failures"`
	PerHostFunction  []HostCallMetrics `msgpack:"per_host_function"`
	VMErrors         uint32            `msgpack:"vm_errors"`
	MemoryBytes      uint32            `msgpack:"memory_bytes"`
}

type HostCallMetrics struct {
	ID    HostFunctionID `msgpack:"id"`
	Calls uint64         `msgpack:"calls"`
}

// CallsOf returns the number of calls recorded for id.
func (m Metrics) CallsOf(id HostFunctionID) uint64 {
	for _, e := range m.PerHostFunction {
		if e.ID == id {
			return e.Calls
		}
	}
	return 0
}

// NewMetrics builds Metrics from a per-function call map, ordering the
// per-function entries by ID.
func NewMetrics(calls map[HostFunctionID]uint64, failures uint64, vmErrors uint32, memoryBytes uint32) Metrics {
	m := Metrics{
		HostCallFailures: failures,
		VMErrors:         vmErrors,
		MemoryBytes:      memoryBytes,
		PerHostFunction:  make([]HostCallMetrics, 0, len(calls)),
	}
	for id, n := range calls {
		m.HostCalls += n
		m.PerHostFunction = append(m.PerHostFunction, HostCallMetrics{ID: id, Calls: n})
	}
	sort.Slice(m.PerHostFunction, func(i, j int) bool {
		return m.PerHostFunction[i].ID < m.PerHostFunction[j].ID
	})
	return m
}

// EncodeMetrics serializes m as msgpack.
func EncodeMetrics(m Metrics) ([]byte, error) {
	return msgpack.Marshal(m)
}

// DecodeMetrics parses msgpack produced by EncodeMetrics.
func DecodeMetrics(data []byte) (Metrics, error) {
	var m Metrics
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Metrics{}, fmt.Errorf("decode metrics: %w", err)
	}
	return m, nil
}
