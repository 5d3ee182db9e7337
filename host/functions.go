package host

import (
	"context"
	"fmt"
	"math"

	"github.com/mvmhost/mvmhost/types"
)

// Print appends its single string argument to the context log.
//
// Anything other than exactly one String argument fails with
// types.ErrInvalidArguments and leaves the log untouched.
func Print(_ context.Context, vm types.VM, args []types.Value) (types.Value, error) {
	c, err := ContextOf(vm)
	if err != nil {
		return types.Undefined, err
	}
	if len(args) != 1 {
		return types.Undefined, fmt.Errorf("print: got %d arguments: %w", len(args), types.ErrInvalidArguments)
	}
	if t := vm.TypeOf(args[0]); t != types.TypeString {
		return types.Undefined, fmt.Errorf("print: argument is %s: %w", t, types.ErrInvalidArguments)
	}
	message, err := readString(vm, args[0])
	if err != nil {
		return types.Undefined, err
	}
	c.Log(message)
	return types.Undefined, nil
}

// Assert counts an assertion and fails with types.ErrAssertionFailed when
// the boolean predicate is false. An optional second argument is the
// failure message.
func Assert(_ context.Context, vm types.VM, args []types.Value) (types.Value, error) {
	c, err := ContextOf(vm)
	if err != nil {
		return types.Undefined, err
	}
	if len(args) < 1 || len(args) > 2 {
		return types.Undefined, fmt.Errorf("assert: got %d arguments: %w", len(args), types.ErrInvalidArguments)
	}
	if t := vm.TypeOf(args[0]); t != types.TypeBoolean {
		return types.Undefined, fmt.Errorf("assert: predicate is %s: %w", t, types.ErrInvalidArguments)
	}
	message := "Failed assertion"
	if len(args) == 2 {
		if t := vm.TypeOf(args[1]); t != types.TypeString {
			return types.Undefined, fmt.Errorf("assert: message is %s: %w", t, types.ErrInvalidArguments)
		}
		detail, err := readString(vm, args[1])
		if err != nil {
			return types.Undefined, err
		}
		if detail != "" {
			message += " " + detail
		}
	}
	ok := args[0].Bool()
	c.recordAssertion(ok, message)
	if !ok {
		return types.Undefined, fmt.Errorf("assert: %s: %w", message, types.ErrAssertionFailed)
	}
	return types.Undefined, nil
}

// AssertEqual counts an assertion and fails with types.ErrAssertionFailed
// unless both arguments have the same type and value. Strings compare by
// content.
func AssertEqual(_ context.Context, vm types.VM, args []types.Value) (types.Value, error) {
	c, err := ContextOf(vm)
	if err != nil {
		return types.Undefined, err
	}
	if len(args) != 2 {
		return types.Undefined, fmt.Errorf("assertEqual: got %d arguments: %w", len(args), types.ErrInvalidArguments)
	}
	equal, err := sameValue(vm, args[0], args[1])
	if err != nil {
		return types.Undefined, err
	}
	message := fmt.Sprintf("Expected %s to equal %s", describe(vm, args[0]), describe(vm, args[1]))
	c.recordAssertion(equal, message)
	if !equal {
		return types.Undefined, fmt.Errorf("assertEqual: %s: %w", message, types.ErrAssertionFailed)
	}
	return types.Undefined, nil
}

// GetHeapUsed returns the number of guest heap bytes in use.
func GetHeapUsed(_ context.Context, vm types.VM, args []types.Value) (types.Value, error) {
	if len(args) != 0 {
		return types.Undefined, fmt.Errorf("getHeapUsed: got %d arguments: %w", len(args), types.ErrInvalidArguments)
	}
	used := vm.HeapUsed()
	if used > math.MaxInt32 {
		used = math.MaxInt32
	}
	return types.NewNumber(int32(used)), nil
}

// RunGC asks the VM to collect garbage.
func RunGC(ctx context.Context, vm types.VM, args []types.Value) (types.Value, error) {
	if len(args) != 0 {
		return types.Undefined, fmt.Errorf("runGC: got %d arguments: %w", len(args), types.ErrInvalidArguments)
	}
	if err := vm.RunGC(ctx); err != nil {
		return types.Undefined, err
	}
	return types.Undefined, nil
}

func readString(vm types.VM, v types.Value) (string, error) {
	size, err := vm.StringSizeUTF8(v)
	if err != nil {
		return "", err
	}
	buf := make([]byte, size)
	n, err := vm.StringReadUTF8(buf, v)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func sameValue(vm types.VM, a, b types.Value) (bool, error) {
	ta, tb := vm.TypeOf(a), vm.TypeOf(b)
	if ta != tb {
		return false, nil
	}
	if ta != types.TypeString {
		return a.Payload() == b.Payload(), nil
	}
	sa, err := readString(vm, a)
	if err != nil {
		return false, err
	}
	sb, err := readString(vm, b)
	if err != nil {
		return false, err
	}
	return sa == sb, nil
}

func describe(vm types.VM, v types.Value) string {
	if vm.TypeOf(v) == types.TypeString {
		if s, err := readString(vm, v); err == nil {
			return s
		}
	}
	return v.String()
}
