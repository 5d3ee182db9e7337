// Package mvmhost embeds a bytecode VM in a Go program: it loads bytecode
// images, links their numeric imports to Go host functions and drives the
// VM's lifecycle.
package mvmhost

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/mvmhost/mvmhost/internal/runtime"
	"github.com/mvmhost/mvmhost/types"
)

// Bytecode is the raw content of a bytecode image.
type Bytecode = types.Bytecode

// Value is a VM value.
type Value = types.Value

// ErrorCode is a VM status code.
type ErrorCode = types.ErrorCode

// VM is the main entry point to this library. Create one per bytecode image
// and Free it when done.
type VM struct {
	rt *runtime.VM
}

// Option customizes Create.
type Option func(*runtime.Options)

// WithConfig sets memory limits and the compilation cache.
func WithConfig(cfg types.VMConfig) Option {
	return func(o *runtime.Options) { o.Config = cfg }
}

// WithErrorHandler installs the observer for unrecoverable VM errors. A nil
// handler silences them.
func WithErrorHandler(h types.ErrorHandler) Option {
	return func(o *runtime.Options) { o.ErrorHandler = h }
}

// WithLogger sets the logger the VM writes diagnostics to.
func WithLogger(l zerolog.Logger) Option {
	return func(o *runtime.Options) { o.Logger = l }
}

// DefaultErrorHandler prints "VM ERROR <code>" to standard output.
func DefaultErrorHandler(_ types.VM, code types.ErrorCode) {
	printVMError(os.Stdout, code)
}

func printVMError(w io.Writer, code types.ErrorCode) {
	fmt.Fprintf(w, "VM ERROR %d\n", int32(code))
}

// Create instantiates bytecode and runs its start logic. hostCtx is passed
// through to host functions, which resolver supplies by host function ID.
//
// Unless overridden, the VM uses types.DefaultVMConfig, DefaultErrorHandler
// and a disabled logger. A failure carries a types.ErrorCode; use
// types.CodeOf to get it.
func Create(ctx context.Context, bytecode Bytecode, hostCtx any, resolver types.Resolver, opts ...Option) (*VM, error) {
	o := runtime.Options{
		Config:       types.DefaultVMConfig(),
		ErrorHandler: DefaultErrorHandler,
		Logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	rt, err := runtime.Create(ctx, bytecode, hostCtx, resolver, o)
	if err != nil {
		return nil, err
	}
	return &VM{rt: rt}, nil
}

// Free releases the VM. It is safe to call more than once.
func (vm *VM) Free(ctx context.Context) error {
	return vm.rt.Free(ctx)
}

// Handle returns the interface host functions see.
func (vm *VM) Handle() types.VM {
	return vm.rt
}

// Context returns the host context given to Create.
func (vm *VM) Context() any {
	return vm.rt.Context()
}

// Checksum identifies the image.
func (vm *VM) Checksum() types.Checksum {
	return vm.rt.Checksum()
}

// TypeOf reports the runtime type of v.
func (vm *VM) TypeOf(v Value) types.TypeCode {
	return vm.rt.TypeOf(v)
}

// StringSizeUTF8 returns the UTF-8 byte length of a String value.
func (vm *VM) StringSizeUTF8(v Value) (int, error) {
	return vm.rt.StringSizeUTF8(v)
}

// StringReadUTF8 copies a String value into dst.
func (vm *VM) StringReadUTF8(dst []byte, v Value) (int, error) {
	return vm.rt.StringReadUTF8(dst, v)
}

// RunGC asks the guest to collect garbage.
func (vm *VM) RunGC(ctx context.Context) error {
	return vm.rt.RunGC(ctx)
}

// Call runs the function exported under id.
func (vm *VM) Call(ctx context.Context, id types.ExportID) (Value, error) {
	return vm.rt.Call(ctx, id)
}

// Metrics returns the VM's counters.
func (vm *VM) Metrics() types.Metrics {
	return vm.rt.Metrics()
}

// ReadBytecodeFile reads a whole bytecode image into memory.
func ReadBytecodeFile(path string) (Bytecode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bytecode: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read bytecode %s: empty file: %w", path, types.ErrInvalidBytecode)
	}
	return data, nil
}
