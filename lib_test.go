package mvmhost

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvmhost/mvmhost/host"
	"github.com/mvmhost/mvmhost/internal/testwasm"
	"github.com/mvmhost/mvmhost/types"
)

func helloWorldImage(t *testing.T) Bytecode {
	return testwasm.Read(t, testwasm.Hello)
}

func TestCreateAndFree(t *testing.T) {
	ctx := context.Background()
	hostCtx := host.NewContext()
	defer hostCtx.Release()

	image := helloWorldImage(t)
	vm, err := Create(ctx, image, hostCtx, host.DefaultTable())
	require.NoError(t, err)

	assert.Equal(t, []string{testwasm.HelloMessage}, hostCtx.LogEntries())
	assert.Equal(t, image.Checksum(), vm.Checksum())
	assert.Same(t, hostCtx, vm.Context())
	assert.Same(t, hostCtx, vm.Handle().Context())

	v, err := vm.Call(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, types.NewNumber(3), v)
	assert.Equal(t, types.TypeNumber, vm.TypeOf(v))
	require.NoError(t, vm.RunGC(ctx))
	assert.Equal(t, uint64(1), vm.Metrics().CallsOf(host.PrintID))

	require.NoError(t, vm.Free(ctx))
	require.NoError(t, vm.Free(ctx))
}

func TestCreateFailureCarriesCode(t *testing.T) {
	var codes []ErrorCode
	_, err := Create(context.Background(), testwasm.Read(t, testwasm.Unresolved), host.NewContext(), host.DefaultTable(),
		WithErrorHandler(func(_ types.VM, code types.ErrorCode) { codes = append(codes, code) }))
	require.Error(t, err)
	assert.Equal(t, types.ErrUnresolvedImport, types.CodeOf(err, types.ErrUnexpected))
	assert.Empty(t, codes)
}

func TestWithConfigMemoryLimit(t *testing.T) {
	_, err := Create(context.Background(), testwasm.Read(t, testwasm.BigMemory), nil, host.DefaultTable(),
		WithConfig(types.VMConfig{MemoryLimitPages: 2}))
	require.ErrorIs(t, err, types.ErrInvalidBytecode)
}

func TestPrintVMError(t *testing.T) {
	var buf bytes.Buffer
	printVMError(&buf, types.ErrStackOverflow)
	assert.Equal(t, "VM ERROR 7\n", buf.String())
}

func TestReadBytecodeFile(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadBytecodeFile(filepath.Join(dir, "missing.mvm-bc"))
	require.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.mvm-bc")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ReadBytecodeFile(empty)
	require.ErrorIs(t, err, types.ErrInvalidBytecode)

	image := helloWorldImage(t)
	path := filepath.Join(dir, "image.mvm-bc")
	require.NoError(t, os.WriteFile(path, image, 0o644))
	got, err := ReadBytecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, image, got)
}
