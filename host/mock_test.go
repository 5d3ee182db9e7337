package host

import (
	"context"
	"fmt"

	"github.com/mvmhost/mvmhost/types"
)

/*** Mock VM ****/
// Strings live in a map keyed by a fake guest offset.

type mockVM struct {
	ctx     any
	strs    map[uint32]string
	next    uint32
	heap    uint32
	gcRuns  int
	gcErr   error
	readErr error
}

var _ types.VM = (*mockVM)(nil)

func newMockVM(ctx any) *mockVM {
	return &mockVM{ctx: ctx, strs: make(map[uint32]string), next: 16, heap: 4096}
}

// str places s in fake guest memory and returns a String value for it.
func (m *mockVM) str(s string) types.Value {
	off := m.next
	m.strs[off] = s
	m.next += 4 + uint32(len(s))
	return types.NewStringRef(off)
}

func (m *mockVM) Context() any {
	return m.ctx
}

func (m *mockVM) TypeOf(v types.Value) types.TypeCode {
	return v.Type()
}

func (m *mockVM) lookup(v types.Value) (string, error) {
	if v.Type() != types.TypeString {
		return "", types.ErrTypeError
	}
	s, ok := m.strs[v.Payload()]
	if !ok {
		return "", fmt.Errorf("no string at %#x: %w", v.Payload(), types.ErrInvalidAddress)
	}
	return s, nil
}

func (m *mockVM) StringSizeUTF8(v types.Value) (int, error) {
	s, err := m.lookup(v)
	return len(s), err
}

func (m *mockVM) StringReadUTF8(dst []byte, v types.Value) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	s, err := m.lookup(v)
	if err != nil {
		return 0, err
	}
	if len(dst) < len(s) {
		return 0, types.ErrInvalidArguments
	}
	return copy(dst, s), nil
}

func (m *mockVM) HeapUsed() uint32 {
	return m.heap
}

func (m *mockVM) RunGC(context.Context) error {
	m.gcRuns++
	return m.gcErr
}
