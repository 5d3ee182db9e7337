package memory

import (
	"encoding/binary"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/mvmhost/mvmhost/types"
)

// WasmMemory is an alias for the wazero Memory interface.
type WasmMemory = api.Memory

const (
	valueSize        = 8
	stringHeaderSize = 4
)

// Manager reads and writes host-import ABI structures in guest memory. All
// accesses are bounds checked and fail with types.ErrInvalidAddress.
type Manager struct {
	Memory WasmMemory
}

// NewManager wraps mem. A module without memory yields a Manager whose every
// access fails.
func NewManager(mem WasmMemory) *Manager {
	return &Manager{Memory: mem}
}

// Size returns the current memory size in bytes.
func (m *Manager) Size() uint32 {
	if m.Memory == nil {
		return 0
	}
	return m.Memory.Size()
}

// Read copies length bytes at offset into a new slice.
func (m *Manager) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	data, ok := m.Memory.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read %d bytes at %#x: %w", length, offset, types.ErrInvalidAddress)
	}
	return append([]byte(nil), data...), nil
}

// ReadValues decodes count Values starting at offset.
func (m *Manager) ReadValues(offset, count uint32) ([]types.Value, error) {
	if count == 0 {
		return nil, nil
	}
	raw, err := m.Read(offset, count*valueSize)
	if err != nil {
		return nil, err
	}
	values := make([]types.Value, count)
	for i := range values {
		values[i] = types.Value(binary.LittleEndian.Uint64(raw[i*valueSize:]))
	}
	return values, nil
}

// WriteValue stores v at offset.
func (m *Manager) WriteValue(offset uint32, v types.Value) error {
	if err := m.check(offset, valueSize); err != nil {
		return err
	}
	if !m.Memory.WriteUint64Le(offset, uint64(v)) {
		return fmt.Errorf("write value at %#x: %w", offset, types.ErrInvalidAddress)
	}
	return nil
}

// StringSize returns the byte length stored in the string header at offset.
// The string body must lie inside memory.
func (m *Manager) StringSize(offset uint32) (uint32, error) {
	if err := m.check(offset, stringHeaderSize); err != nil {
		return 0, err
	}
	n, ok := m.Memory.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read string header at %#x: %w", offset, types.ErrInvalidAddress)
	}
	if err := m.check(offset+stringHeaderSize, n); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadString returns a copy of the string body at offset.
func (m *Manager) ReadString(offset uint32) ([]byte, error) {
	n, err := m.StringSize(offset)
	if err != nil {
		return nil, err
	}
	return m.Read(offset+stringHeaderSize, n)
}

func (m *Manager) check(offset, length uint32) error {
	size := uint64(m.Size())
	if uint64(offset)+uint64(length) > size {
		return fmt.Errorf("access of %d bytes at %#x beyond memory size %d: %w", length, offset, size, types.ErrInvalidAddress)
	}
	return nil
}
