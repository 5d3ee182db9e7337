// Package types provides the values, codes and contracts shared by the VM
// engine and the host functions it calls.
package types

import "context"

// HostFunctionID is the numeric import slot a bytecode image uses to name a
// host function.
type HostFunctionID uint16

// ExportID is the numeric identifier of a function exported by a bytecode
// image.
type ExportID uint16

// MaxArgs is the largest argument count the VM passes to a host function.
const MaxArgs = 255

// VM is the handle host functions receive. It exposes the host context and
// the primitives for inspecting guest values.
type VM interface {
	// Context returns the host context the VM was created with.
	Context() any
	// TypeOf reports the runtime type of v.
	TypeOf(v Value) TypeCode
	// StringSizeUTF8 returns the UTF-8 byte length of a String value.
	StringSizeUTF8(v Value) (int, error)
	// StringReadUTF8 copies the bytes of a String value into dst and returns
	// the number of bytes written. dst shorter than the string is an error.
	StringReadUTF8(dst []byte, v Value) (int, error)
	// HeapUsed returns the number of bytes of guest memory in use.
	HeapUsed() uint32
	// RunGC asks the guest to collect garbage.
	RunGC(ctx context.Context) error
}

// HostFunction is a Go function the guest calls through an import. The
// returned Value is written to the guest's result slot; a non-nil error is
// reported to the guest as an ErrorCode.
type HostFunction func(ctx context.Context, vm VM, args []Value) (Value, error)

// Resolver maps host function IDs to implementations while an image is being
// linked. Resolve returns ErrUnresolvedImport for unknown IDs.
type Resolver interface {
	Resolve(id HostFunctionID) (HostFunction, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(id HostFunctionID) (HostFunction, error)

func (f ResolverFunc) Resolve(id HostFunctionID) (HostFunction, error) {
	return f(id)
}

// ErrorHandler observes unrecoverable VM errors. It must not call back into
// the VM.
type ErrorHandler func(vm VM, code ErrorCode)
