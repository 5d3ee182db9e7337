package testcase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvmhost/mvmhost"
	"github.com/mvmhost/mvmhost/host"
	"github.com/mvmhost/mvmhost/internal/testwasm"
	"github.com/mvmhost/mvmhost/types"
)

// writeCase lays out a case directory. image names a testdata image; an
// empty name leaves the case without one.
func writeCase(t *testing.T, root, name, meta, image string) Case {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetaFile), []byte(meta), 0o644))
	if image != "" {
		testwasm.Copy(t, image, filepath.Join(dir, ImageFile))
	}
	m, err := ReadMeta(filepath.Join(dir, MetaFile))
	require.NoError(t, err)
	return Case{Name: name, Dir: dir, Meta: m}
}

func run(t *testing.T, c Case) *Result {
	t.Helper()
	res, err := Run(context.Background(), c, mvmhost.WithErrorHandler(nil))
	require.NoError(t, err)
	return res
}

func TestRunHelloWorld(t *testing.T) {
	c := writeCase(t, t.TempDir(), "hello-world", "description: prints\nexpectedPrintout: |\n  Hello, World!\n", testwasm.Hello)

	res := run(t, c)
	require.True(t, res.Passed(), res.Failures)
	assert.Equal(t, []string{"Hello, World!"}, res.Printout)

	printout, err := os.ReadFile(filepath.Join(c.Dir, PrintoutFile))
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", string(printout))

	metrics, err := ReadMetrics(c.Dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), metrics.CallsOf(host.PrintID))
}

func TestRunPrintoutMismatch(t *testing.T) {
	c := writeCase(t, t.TempDir(), "mismatch", "expectedPrintout: Goodbye\n", testwasm.Hello)

	res := run(t, c)
	assert.False(t, res.Passed())
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "printout mismatch")
}

func TestRunExportedFunction(t *testing.T) {
	root := t.TempDir()

	ok := writeCase(t, root, "asserts", "runExportedFunction: 1\nassertionCount: 2\n", testwasm.AssertTrue)
	res := run(t, ok)
	require.True(t, res.Passed(), res.Failures)
	assert.Equal(t, uint64(2), res.Metrics.CallsOf(host.AssertID))

	wrongCount := writeCase(t, root, "count", "runExportedFunction: 1\nassertionCount: 3\n", testwasm.AssertTrue)
	res = run(t, wrongCount)
	assert.Equal(t, []string{"expected 3 assertions, got 2"}, res.Failures)

	failing := writeCase(t, root, "failing", "runExportedFunction: 1\n", testwasm.AssertFalse)
	res = run(t, failing)
	assert.Equal(t, []string{"assertion failed: Failed assertion", "assertion failed: Failed assertion"}, res.Failures)

	// the start logic asserts once, only the exported function's assertions count
	started := writeCase(t, root, "start-asserts", "runExportedFunction: 1\nassertionCount: 2\n", testwasm.AssertStart)
	res = run(t, started)
	require.True(t, res.Passed(), res.Failures)
	assert.Equal(t, uint64(3), res.Metrics.CallsOf(host.AssertID))

	startOnly := writeCase(t, root, "start-only", "assertionCount: 1\n", testwasm.AssertStart)
	res = run(t, startOnly)
	require.True(t, res.Passed(), res.Failures)

	missing := writeCase(t, root, "missing", "runExportedFunction: 9\n", testwasm.AssertTrue)
	res = run(t, missing)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "function not found")
}

func TestRunExpectException(t *testing.T) {
	root := t.TempDir()

	c := writeCase(t, root, "trap", "expectException: unreachable\n", testwasm.TrapStart)
	res := run(t, c)
	require.True(t, res.Passed(), res.Failures)

	for _, partial := range []string{"unreach", "wasm error", "instantiate image"} {
		c = writeCase(t, root, "partial", "expectException: "+partial+"\n", testwasm.TrapStart)
		res = run(t, c)
		require.Len(t, res.Failures, 1, partial)
		assert.Contains(t, res.Failures[0], `got "unreachable"`)
	}

	c = writeCase(t, root, "other", "expectException: stack overflow\n", testwasm.TrapStart)
	res = run(t, c)
	assert.False(t, res.Passed())

	c = writeCase(t, root, "none", "expectException: unreachable\n", testwasm.Hello)
	res = run(t, c)
	assert.Equal(t, []string{`expected exception "unreachable", got none`}, res.Failures)

	c = writeCase(t, root, "coded", "runExportedFunction: 9\nexpectException: function not found\n", testwasm.Hello)
	res = run(t, c)
	require.True(t, res.Passed(), res.Failures)

	c = writeCase(t, root, "unexpected", "", testwasm.TrapStart)
	res = run(t, c)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "unexpected error")
}

func TestExceptionMessage(t *testing.T) {
	inner := errors.New("unreachable\nwasm stack trace:\n\t.1()")
	err := &types.TrapError{Op: "call export 1", Err: fmt.Errorf("wasm error: %w", inner)}
	assert.Equal(t, "unreachable", exceptionMessage(err))
	assert.Equal(t, "function not found", exceptionMessage(fmt.Errorf("export 9: %w", types.ErrFunctionNotFound)))
	assert.Equal(t, "plain", exceptionMessage(errors.New("plain")))
}

func TestRunSkipped(t *testing.T) {
	root := t.TempDir()
	for _, meta := range []string{"skip: true\n", "skipNative: true\n"} {
		c := writeCase(t, root, "skipped", meta, "")
		res := run(t, c)
		assert.True(t, res.Skipped)
		assert.False(t, res.Passed())
		assert.NoFileExists(t, filepath.Join(c.Dir, PrintoutFile))
	}
}

func TestRunMissingImage(t *testing.T) {
	c := writeCase(t, t.TempDir(), "no-image", "", "")
	_, err := Run(context.Background(), c)
	require.Error(t, err)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeCase(t, root, "b-case", "description: second\n", "")
	writeCase(t, root, "a-case", "description: first\n", "")
	writeCase(t, root, "group/nested", "skip: true\n", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-case"), 0o755))

	cases, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, "a-case", cases[0].Name)
	assert.Equal(t, "first", cases[0].Meta.Description)
	assert.Equal(t, "b-case", cases[1].Name)
	assert.Equal(t, "group/nested", cases[2].Name)
	assert.True(t, cases[2].Meta.Skip)

	_, err = Discover(filepath.Join(root, "nope"))
	require.Error(t, err)
}

func TestReadMetaRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), MetaFile)
	require.NoError(t, os.WriteFile(path, []byte("assertionCount: [oops"), 0o644))
	_, err := ReadMeta(path)
	require.ErrorContains(t, err, "parse")
}
