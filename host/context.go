package host

import (
	"fmt"

	"github.com/mvmhost/mvmhost/types"
)

// Context is the host state a VM carries for its host functions. It
// accumulates print output and assertion results.
//
// A Context is owned by the host and is not safe for concurrent use; host
// functions only touch it from the goroutine running the guest.
type Context struct {
	logEntries []string
	assertions int
	failures   []string
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{}
}

// LogEntries returns a copy of the print log, oldest first.
func (c *Context) LogEntries() []string {
	return append([]string(nil), c.logEntries...)
}

// Log appends one entry to the print log.
func (c *Context) Log(entry string) {
	c.logEntries = append(c.logEntries, entry)
}

// AssertionCount returns how many assert and assertEqual calls ran.
func (c *Context) AssertionCount() int {
	return c.assertions
}

// Failures returns the messages of failed assertions.
func (c *Context) Failures() []string {
	return append([]string(nil), c.failures...)
}

func (c *Context) recordAssertion(ok bool, message string) {
	c.assertions++
	if !ok {
		c.failures = append(c.failures, message)
	}
}

// Release drops everything the context accumulated. The context may be
// reused afterwards.
func (c *Context) Release() {
	c.logEntries = nil
	c.failures = nil
	c.assertions = 0
}

// ContextOf returns the *Context the VM was created with.
func ContextOf(vm types.VM) (*Context, error) {
	c, ok := vm.Context().(*Context)
	if !ok || c == nil {
		return nil, fmt.Errorf("vm context is %T, not *host.Context: %w", vm.Context(), types.ErrHostError)
	}
	return c, nil
}
