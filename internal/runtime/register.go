package runtime

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mvmhost/mvmhost/types"
)

// link resolves every function the image imports and instantiates the host
// modules that provide them. It fails before any guest code runs if an
// import is unknown or has the wrong signature.
func (vm *VM) link(ctx context.Context, compiled wazero.CompiledModule, resolver types.Resolver) error {
	var hostBuilder, systemBuilder wazero.HostModuleBuilder
	seen := make(map[string]bool)

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		key := module + "." + name
		if seen[key] {
			continue
		}
		seen[key] = true

		switch module {
		case HostModuleName:
			id, err := parseHostFunctionID(name)
			if err != nil {
				return err
			}
			if !sameTypes(def.ParamTypes(), hostParams) || !sameTypes(def.ResultTypes(), hostResults) {
				return fmt.Errorf("import %s: signature %v -> %v: %w", key, def.ParamTypes(), def.ResultTypes(), types.ErrInvalidBytecode)
			}
			fn, err := resolve(resolver, id)
			if err != nil {
				return fmt.Errorf("import %s: %w", key, err)
			}
			if hostBuilder == nil {
				hostBuilder = vm.runtime.NewHostModuleBuilder(HostModuleName)
			}
			hostBuilder.NewFunctionBuilder().
				WithGoModuleFunction(vm.trampoline(id, fn), hostParams, hostResults).
				WithName("host_" + name).
				Export(name)
			vm.logger.Debug().Uint16("host_function", uint16(id)).Msg("import resolved")

		case SystemModuleName:
			if name != ErrorImportName {
				return fmt.Errorf("import %s: %w", key, types.ErrUnresolvedImport)
			}
			if !sameTypes(def.ParamTypes(), errorParams) || len(def.ResultTypes()) != 0 {
				return fmt.Errorf("import %s: signature %v -> %v: %w", key, def.ParamTypes(), def.ResultTypes(), types.ErrInvalidBytecode)
			}
			systemBuilder = vm.runtime.NewHostModuleBuilder(SystemModuleName)
			systemBuilder.NewFunctionBuilder().
				WithGoModuleFunction(api.GoModuleFunc(vm.guestError), errorParams, nil).
				Export(ErrorImportName)

		default:
			return fmt.Errorf("import %s: unknown module: %w", key, types.ErrUnresolvedImport)
		}
	}

	for _, b := range []wazero.HostModuleBuilder{hostBuilder, systemBuilder} {
		if b == nil {
			continue
		}
		if _, err := b.Instantiate(ctx); err != nil {
			return fmt.Errorf("instantiate host module: %v: %w", err, types.ErrUnexpected)
		}
	}
	return nil
}

// resolve asks resolver for id and makes sure a failure carries an error
// code.
func resolve(resolver types.Resolver, id types.HostFunctionID) (types.HostFunction, error) {
	fn, err := resolver.Resolve(id)
	switch {
	case err != nil && types.CodeOf(err, types.ErrSuccess) == types.ErrSuccess:
		return nil, fmt.Errorf("%v: %w", err, types.ErrUnresolvedImport)
	case err != nil:
		return nil, err
	case fn == nil:
		return nil, fmt.Errorf("host function %d: %w", id, types.ErrUnresolvedImport)
	}
	return fn, nil
}

func parseHostFunctionID(name string) (types.HostFunctionID, error) {
	n, err := strconv.ParseUint(name, 10, 16)
	if err != nil || strconv.FormatUint(n, 10) != name {
		return 0, fmt.Errorf("import %s.%s: not a host function id: %w", HostModuleName, name, types.ErrUnresolvedImport)
	}
	return types.HostFunctionID(n), nil
}

// trampoline adapts fn to the host-import ABI:
// (result i32, argv i32, argc i32) -> status i32.
func (vm *VM) trampoline(id types.HostFunctionID, fn types.HostFunction) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		resultPtr := api.DecodeU32(stack[0])
		argv := api.DecodeU32(stack[1])
		argc := api.DecodeU32(stack[2])
		code := vm.callHost(ctx, mod, id, fn, resultPtr, argv, argc)
		stack[0] = api.EncodeI32(int32(code))
	}
}

func (vm *VM) callHost(ctx context.Context, mod api.Module, id types.HostFunctionID, fn types.HostFunction, resultPtr, argv, argc uint32) types.ErrorCode {
	prev := vm.caller
	vm.caller = mod
	defer func() { vm.caller = prev }()

	vm.calls[id]++
	if err := vm.invoke(ctx, fn, resultPtr, argv, argc); err != nil {
		vm.failures++
		herr := &types.HostCallError{ID: id, Err: err}
		vm.logger.Debug().Err(herr).Msg("host call failed")
		return herr.Code()
	}
	return types.ErrSuccess
}

func (vm *VM) invoke(ctx context.Context, fn types.HostFunction, resultPtr, argv, argc uint32) error {
	if argc > types.MaxArgs {
		return fmt.Errorf("%d arguments: %w", argc, types.ErrInvalidArguments)
	}
	mem := vm.memory()
	args, err := mem.ReadValues(argv, argc)
	if err != nil {
		return err
	}
	result, err := fn(ctx, vm, args)
	if err != nil {
		return err
	}
	if resultPtr == 0 {
		return nil
	}
	return mem.WriteValue(resultPtr, result)
}

// guestError implements mvm.error: the guest reports an unrecoverable error.
func (vm *VM) guestError(_ context.Context, mod api.Module, stack []uint64) {
	prev := vm.caller
	vm.caller = mod
	defer func() { vm.caller = prev }()
	vm.reportError(types.ErrorCode(api.DecodeI32(stack[0])))
}

func sameTypes(a, b []api.ValueType) bool {
	return slices.Equal(a, b)
}
