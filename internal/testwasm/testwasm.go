// Package testwasm loads the bytecode images under testdata/ for tests.
// Each image has its text source in testdata/src/<name>.wat.
package testwasm

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// Guest memory layout shared by the images.
const (
	ResultSlot = 16
	ArgvAddr   = 64
	StrAddr    = 256
)

// Image names.
const (
	Hello       = "hello"
	Unresolved  = "unresolved"
	PrintTwice  = "print_twice"
	Status      = "status"
	HostResult  = "host_result"
	HostError   = "host_error"
	GuestError  = "guest_error"
	TrapStart   = "trap_start"
	Exports     = "exports"
	Loop        = "loop"
	GC          = "gc"
	GCFromStart = "gc_from_start"
	BadGC       = "bad_gc"
	Memory      = "memory"
	BigMemory   = "big_memory"
	AssertTrue  = "assert_true"
	AssertFalse = "assert_false"
	AssertStart = "assert_start"
)

// HelloMessage is what the hello image prints from its start function.
const HelloMessage = "Hello, World!"

// Dir returns the absolute path of the testdata directory.
func Dir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "testdata")
}

// Path returns the path of image name.
func Path(name string) string {
	return filepath.Join(Dir(), name+".wasm")
}

// Read returns the bytes of image name.
func Read(t testing.TB, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(Path(name))
	require.NoError(t, err)
	return data
}

// Copy writes image name to dst.
func Copy(t testing.TB, name, dst string) {
	t.Helper()
	require.NoError(t, os.WriteFile(dst, Read(t, name), 0o644))
}
