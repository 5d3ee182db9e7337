package types

import (
	"errors"
	"fmt"
)

// ErrorCode is the status code exchanged with the VM. It is also the exit
// status of the host process when VM creation fails.
type ErrorCode int32

const (
	ErrSuccess ErrorCode = iota
	ErrUnexpected
	ErrMallocFail
	ErrAllocationTooLarge
	ErrInvalidAddress
	ErrFunctionNotFound
	ErrInvalidHandle
	ErrStackOverflow
	ErrUnresolvedImport
	ErrInvalidArguments
	ErrTypeError
	ErrTargetNotCallable
	ErrHostError
	ErrNotImplemented
	ErrHostReturnedInvalidValue
	ErrAssertionFailed
	ErrInvalidBytecode
)

var _ error = ErrorCode(0)

var errorNames = [...]string{
	ErrSuccess:                  "success",
	ErrUnexpected:               "unexpected",
	ErrMallocFail:               "malloc fail",
	ErrAllocationTooLarge:       "allocation too large",
	ErrInvalidAddress:           "invalid address",
	ErrFunctionNotFound:         "function not found",
	ErrInvalidHandle:            "invalid handle",
	ErrStackOverflow:            "stack overflow",
	ErrUnresolvedImport:         "unresolved import",
	ErrInvalidArguments:         "invalid arguments",
	ErrTypeError:                "type error",
	ErrTargetNotCallable:        "target not callable",
	ErrHostError:                "host error",
	ErrNotImplemented:           "not implemented",
	ErrHostReturnedInvalidValue: "host returned invalid value",
	ErrAssertionFailed:          "assertion failed",
	ErrInvalidBytecode:          "invalid bytecode",
}

func (e ErrorCode) Error() string {
	if e >= 0 && int(e) < len(errorNames) {
		return errorNames[e]
	}
	return fmt.Sprintf("vm error %d", int32(e))
}

// Code returns e itself, so ErrorCode satisfies Coder.
func (e ErrorCode) Code() ErrorCode {
	return e
}

// Coder is implemented by errors that carry a VM error code.
type Coder interface {
	Code() ErrorCode
}

// CodeOf extracts the VM error code carried by err. nil maps to ErrSuccess,
// errors without a code map to fallback.
func CodeOf(err error, fallback ErrorCode) ErrorCode {
	if err == nil {
		return ErrSuccess
	}
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return fallback
}

// HostCallError reports a host function that failed while the guest was
// calling it.
type HostCallError struct {
	ID  HostFunctionID
	Err error
}

func (e *HostCallError) Error() string {
	return fmt.Sprintf("host function %d: %v", e.ID, e.Err)
}

func (e *HostCallError) Unwrap() error {
	return e.Err
}

// Code maps failures that do not carry their own code to ErrHostError.
func (e *HostCallError) Code() ErrorCode {
	return CodeOf(e.Err, ErrHostError)
}

// TrapError reports guest execution that aborted, either by a wasm trap or
// by context cancellation.
type TrapError struct {
	Op  string
	Err error
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TrapError) Unwrap() error {
	return e.Err
}

func (e *TrapError) Code() ErrorCode {
	return CodeOf(e.Err, ErrUnexpected)
}
