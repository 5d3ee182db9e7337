// Package testcase runs end-to-end cases: directories holding a compiled
// bytecode image and a 0.meta.yaml describing the expected outcome.
package testcase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mvmhost/mvmhost"
	"github.com/mvmhost/mvmhost/host"
	"github.com/mvmhost/mvmhost/types"
)

// Files inside a case directory.
const (
	MetaFile     = "0.meta.yaml"
	ImageFile    = "2.post-gc.mvm-bc"
	PrintoutFile = "3.printout.txt"
	MetricsFile  = "4.metrics.msgpack"
)

// Meta is the content of 0.meta.yaml.
type Meta struct {
	Description         string          `yaml:"description"`
	RunExportedFunction *types.ExportID `yaml:"runExportedFunction"`
	ExpectedPrintout    *string         `yaml:"expectedPrintout"`
	ExpectException     string          `yaml:"expectException"`
	AssertionCount      *int            `yaml:"assertionCount"`
	Skip                bool            `yaml:"skip"`
	SkipNative          bool            `yaml:"skipNative"`
}

// Case is one discovered case directory.
type Case struct {
	Name string
	Dir  string
	Meta Meta
}

// Result is the outcome of running a Case. Failures lists every expectation
// that did not hold.
type Result struct {
	Case     Case
	Skipped  bool
	Printout []string
	Metrics  types.Metrics
	Failures []string
}

// Passed reports whether the case ran and met every expectation.
func (r *Result) Passed() bool {
	return !r.Skipped && len(r.Failures) == 0
}

func (r *Result) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Discover finds every directory under root that contains a MetaFile. Cases
// are named by their path relative to root and returned sorted by name.
func Discover(root string) ([]Case, error) {
	var cases []Case
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != MetaFile {
			return nil
		}
		dir := filepath.Dir(path)
		meta, err := ReadMeta(path)
		if err != nil {
			return err
		}
		name, err := filepath.Rel(root, dir)
		if err != nil {
			return err
		}
		cases = append(cases, Case{Name: filepath.ToSlash(name), Dir: dir, Meta: meta})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover cases in %s: %w", root, err)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Name < cases[j].Name })
	return cases, nil
}

// ReadMeta parses a meta file. An empty file is a case with no expectations.
func ReadMeta(path string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// Run executes c with the default host function table. The returned error
// is reserved for problems with the case itself (unreadable image, artifact
// write failures); unmet expectations are reported in Result.Failures.
func Run(ctx context.Context, c Case, opts ...mvmhost.Option) (*Result, error) {
	res := &Result{Case: c}
	if c.Meta.Skip || c.Meta.SkipNative {
		res.Skipped = true
		return res, nil
	}

	bytecode, err := mvmhost.ReadBytecodeFile(filepath.Join(c.Dir, ImageFile))
	if err != nil {
		return nil, err
	}

	hostCtx := host.NewContext()
	defer hostCtx.Release()

	assertions, runErr := execute(ctx, bytecode, hostCtx, c.Meta, res, opts)
	res.Printout = hostCtx.LogEntries()

	checkException(res, c.Meta.ExpectException, runErr)
	if c.Meta.ExpectedPrintout != nil {
		want := strings.TrimRight(*c.Meta.ExpectedPrintout, "\n")
		if got := strings.Join(res.Printout, "\n"); got != want {
			res.failf("printout mismatch:\n got: %q\nwant: %q", got, want)
		}
	}
	if c.Meta.AssertionCount != nil && assertions != *c.Meta.AssertionCount {
		res.failf("expected %d assertions, got %d", *c.Meta.AssertionCount, assertions)
	}
	if c.Meta.ExpectException == "" {
		for _, f := range hostCtx.Failures() {
			res.failf("assertion failed: %s", f)
		}
	}

	if err := writeArtifacts(c.Dir, res); err != nil {
		return nil, err
	}
	return res, nil
}

// execute creates the VM and runs the exported function named by meta. It
// returns the number of assertions made by the exported function, or by the
// start logic when meta names no export.
func execute(ctx context.Context, bytecode mvmhost.Bytecode, hostCtx *host.Context, meta Meta, res *Result, opts []mvmhost.Option) (int, error) {
	vm, err := mvmhost.Create(ctx, bytecode, hostCtx, host.DefaultTable(), opts...)
	if err != nil {
		return hostCtx.AssertionCount(), err
	}
	defer vm.Free(ctx)

	if meta.RunExportedFunction == nil {
		res.Metrics = vm.Metrics()
		return hostCtx.AssertionCount(), nil
	}
	before := hostCtx.AssertionCount()
	_, err = vm.Call(ctx, *meta.RunExportedFunction)
	res.Metrics = vm.Metrics()
	return hostCtx.AssertionCount() - before, err
}

func checkException(res *Result, expect string, err error) {
	switch {
	case expect == "" && err != nil:
		res.failf("unexpected error: %v", err)
	case expect != "" && err == nil:
		res.failf("expected exception %q, got none", expect)
	case expect != "" && exceptionMessage(err) != expect:
		res.failf("expected exception %q, got %q (%v)", expect, exceptionMessage(err), err)
	}
}

// exceptionMessage is the message the guest would see for err: the innermost
// wrapped error, without the engine's stack trace.
func exceptionMessage(err error) string {
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(err) {
		err = next
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}

func writeArtifacts(dir string, res *Result) error {
	printout := strings.Join(res.Printout, "\n")
	if err := os.WriteFile(filepath.Join(dir, PrintoutFile), []byte(printout), 0o644); err != nil {
		return fmt.Errorf("write printout: %w", err)
	}
	metrics, err := types.EncodeMetrics(res.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetricsFile), metrics, 0o644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// ReadMetrics loads the metrics artifact a previous Run wrote to dir.
func ReadMetrics(dir string) (types.Metrics, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return types.Metrics{}, fmt.Errorf("no metrics in %s: %w", dir, err)
	}
	if err != nil {
		return types.Metrics{}, err
	}
	return types.DecodeMetrics(data)
}
