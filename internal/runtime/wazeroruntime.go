// Package runtime runs bytecode images on wazero and bridges their imports to
// Go host functions.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mvmhost/mvmhost/internal/runtime/memory"
	"github.com/mvmhost/mvmhost/types"
)

// Options configure a VM.
type Options struct {
	Config       types.VMConfig
	ErrorHandler types.ErrorHandler
	Logger       zerolog.Logger
}

// VM is one bytecode image instantiated on its own wazero runtime.
//
// A VM is not safe for concurrent use. Host functions run on the goroutine
// that entered the guest.
type VM struct {
	runtime  wazero.Runtime
	cache    *Cache
	guest    api.Module
	checksum types.Checksum

	// caller is the module currently calling a host function, if any.
	caller api.Module

	hostCtx      any
	errorHandler types.ErrorHandler
	logger       zerolog.Logger

	calls    map[types.HostFunctionID]uint64
	failures uint64
	vmErrors uint32
	freed    bool
}

var _ types.VM = (*VM)(nil)

// Create compiles bytecode, links its imports through resolver and
// instantiates it, running the image's start logic. hostCtx is handed back
// to host functions through Context.
//
// On failure everything acquired so far is released. The returned error
// carries a types.ErrorCode (see types.CodeOf).
func Create(ctx context.Context, bytecode types.Bytecode, hostCtx any, resolver types.Resolver, opts Options) (*VM, error) {
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("empty image: %w", types.ErrInvalidBytecode)
	}
	if resolver == nil {
		return nil, fmt.Errorf("no import resolver: %w", types.ErrInvalidArguments)
	}

	vm := &VM{
		checksum:     bytecode.Checksum(),
		hostCtx:      hostCtx,
		errorHandler: opts.ErrorHandler,
		calls:        make(map[types.HostFunctionID]uint64),
	}
	vm.logger = opts.Logger.With().Str("image", vm.checksum.Short()).Logger()

	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if opts.Config.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(opts.Config.MemoryLimitPages)
	}
	if opts.Config.CacheDir != "" {
		cache, err := OpenCache(opts.Config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open compilation cache: %v: %w", err, types.ErrUnexpected)
		}
		vm.cache = cache
		rc = rc.WithCompilationCache(cache.Compilation())
	}
	vm.runtime = wazero.NewRuntimeWithConfig(ctx, rc)

	if err := vm.instantiate(ctx, bytecode, resolver); err != nil {
		vm.release(ctx)
		return nil, err
	}
	vm.logger.Info().
		Uint32("memory_bytes", vm.HeapUsed()).
		Uint64("memory_limit_bytes", opts.Config.MemoryLimitBytes()).
		Msg("vm created")
	return vm, nil
}

func (vm *VM) instantiate(ctx context.Context, bytecode types.Bytecode, resolver types.Resolver) error {
	compiled, err := vm.runtime.CompileModule(ctx, bytecode)
	if err != nil {
		return fmt.Errorf("compile image: %v: %w", err, types.ErrInvalidBytecode)
	}
	if err := validate(compiled); err != nil {
		return err
	}
	if err := vm.link(ctx, compiled, resolver); err != nil {
		return err
	}
	guest, err := vm.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(guestModuleName))
	if err != nil {
		return vm.trap("instantiate image", err)
	}
	vm.guest = guest
	return nil
}

// Free releases the runtime, the guest and the compilation cache lock.
// Calling Free more than once is a no-op.
func (vm *VM) Free(ctx context.Context) error {
	if vm.freed {
		return nil
	}
	err := vm.release(ctx)
	vm.logger.Info().Msg("vm freed")
	return err
}

func (vm *VM) release(ctx context.Context) error {
	vm.freed = true
	var errs []error
	if vm.runtime != nil {
		errs = append(errs, vm.runtime.Close(ctx))
	}
	if vm.cache != nil {
		errs = append(errs, vm.cache.Close(ctx))
	}
	vm.guest = nil
	return errors.Join(errs...)
}

// Context returns the host context given to Create.
func (vm *VM) Context() any {
	return vm.hostCtx
}

// Checksum identifies the image this VM runs.
func (vm *VM) Checksum() types.Checksum {
	return vm.checksum
}

// TypeOf reports the type tag of v.
func (vm *VM) TypeOf(v types.Value) types.TypeCode {
	return v.Type()
}

// StringSizeUTF8 returns the byte length of a String value.
func (vm *VM) StringSizeUTF8(v types.Value) (int, error) {
	if v.Type() != types.TypeString {
		return 0, fmt.Errorf("value is %s, not string: %w", v.Type(), types.ErrTypeError)
	}
	n, err := vm.memory().StringSize(v.Payload())
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// StringReadUTF8 copies the bytes of a String value into dst.
func (vm *VM) StringReadUTF8(dst []byte, v types.Value) (int, error) {
	if v.Type() != types.TypeString {
		return 0, fmt.Errorf("value is %s, not string: %w", v.Type(), types.ErrTypeError)
	}
	body, err := vm.memory().ReadString(v.Payload())
	if err != nil {
		return 0, err
	}
	if len(dst) < len(body) {
		return 0, fmt.Errorf("buffer of %d bytes for %d byte string: %w", len(dst), len(body), types.ErrInvalidArguments)
	}
	return copy(dst, body), nil
}

// HeapUsed returns the size of the guest's linear memory.
func (vm *VM) HeapUsed() uint32 {
	return vm.memory().Size()
}

// RunGC calls the guest's collector export. Images without one manage
// their memory themselves and RunGC does nothing.
func (vm *VM) RunGC(ctx context.Context) error {
	mod := vm.module()
	if mod == nil {
		return fmt.Errorf("run gc: %w", types.ErrInvalidHandle)
	}
	fn := mod.ExportedFunction(GCExportName)
	if fn == nil {
		return nil
	}
	if _, err := fn.Call(ctx); err != nil {
		return vm.trap("run gc", err)
	}
	vm.logger.Debug().Uint32("memory_bytes", vm.HeapUsed()).Msg("gc finished")
	return nil
}

// Call runs the function the image exports under id. Exports take no
// parameters and return nothing or a single Value.
func (vm *VM) Call(ctx context.Context, id types.ExportID) (types.Value, error) {
	mod := vm.module()
	if mod == nil {
		return types.Undefined, fmt.Errorf("call export %d: %w", id, types.ErrInvalidHandle)
	}
	fn := mod.ExportedFunction(strconv.FormatUint(uint64(id), 10))
	if fn == nil {
		return types.Undefined, fmt.Errorf("export %d: %w", id, types.ErrFunctionNotFound)
	}
	def := fn.Definition()
	if len(def.ParamTypes()) != 0 || (len(def.ResultTypes()) != 0 && !sameTypes(def.ResultTypes(), exportResult)) {
		return types.Undefined, fmt.Errorf("export %d has signature %v -> %v: %w", id, def.ParamTypes(), def.ResultTypes(), types.ErrTargetNotCallable)
	}
	results, err := fn.Call(ctx)
	if err != nil {
		return types.Undefined, vm.trap(fmt.Sprintf("call export %d", id), err)
	}
	if len(results) == 0 {
		return types.Undefined, nil
	}
	return types.Value(results[0]), nil
}

// Metrics returns the counters collected so far.
func (vm *VM) Metrics() types.Metrics {
	return types.NewMetrics(vm.calls, vm.failures, vm.vmErrors, vm.HeapUsed())
}

// module returns the module host functions are being called from, falling
// back to the instantiated guest.
func (vm *VM) module() api.Module {
	if vm.caller != nil {
		return vm.caller
	}
	return vm.guest
}

func (vm *VM) memory() *memory.Manager {
	mod := vm.module()
	if mod == nil {
		return memory.NewManager(nil)
	}
	return memory.NewManager(mod.Memory())
}

// trap wraps a guest execution failure and reports it to the error handler.
func (vm *VM) trap(op string, err error) error {
	te := &types.TrapError{Op: op, Err: err}
	vm.reportError(te.Code())
	return te
}

func (vm *VM) reportError(code types.ErrorCode) {
	vm.vmErrors++
	vm.logger.Warn().Int32("code", int32(code)).Str("error", code.Error()).Msg("vm error")
	if vm.errorHandler != nil {
		vm.errorHandler(vm, code)
	}
}
