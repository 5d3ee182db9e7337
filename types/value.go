package types

import "fmt"

// TypeCode is the runtime type tag of a Value, as reported by VM.TypeOf.
type TypeCode uint8

const (
	TypeUndefined TypeCode = iota
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString
	TypeFunction
	TypeObject
	TypeArray
)

var typeNames = [...]string{
	TypeUndefined: "undefined",
	TypeNull:      "null",
	TypeBoolean:   "boolean",
	TypeNumber:    "number",
	TypeString:    "string",
	TypeFunction:  "function",
	TypeObject:    "object",
	TypeArray:     "array",
}

func (t TypeCode) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Value is a VM value as it crosses the host-import boundary.
//
// The type code lives in bits 32-39 and the payload in bits 0-31. For strings
// the payload is the guest memory offset of a string header: a little-endian
// uint32 byte length followed by that many UTF-8 bytes. Numbers carry an int32
// payload, booleans 0 or 1.
type Value uint64

const (
	Undefined Value = Value(uint64(TypeUndefined) << 32)
	Null      Value = Value(uint64(TypeNull) << 32)
	True      Value = Value(uint64(TypeBoolean)<<32 | 1)
	False     Value = Value(uint64(TypeBoolean) << 32)
)

// MakeValue packs a type code and a payload.
func MakeValue(t TypeCode, payload uint32) Value {
	return Value(uint64(t)<<32 | uint64(payload))
}

// NewNumber returns a Number value holding n.
func NewNumber(n int32) Value {
	return MakeValue(TypeNumber, uint32(n))
}

// NewBoolean returns True or False.
func NewBoolean(b bool) Value {
	if b {
		return True
	}
	return False
}

// NewStringRef returns a String value pointing at the string header at offset.
func NewStringRef(offset uint32) Value {
	return MakeValue(TypeString, offset)
}

// Type returns the raw type tag. Unknown tags are passed through unchanged
// so the VM can reject them.
func (v Value) Type() TypeCode {
	return TypeCode(uint64(v) >> 32)
}

// Payload returns the low 32 bits.
func (v Value) Payload() uint32 {
	return uint32(v)
}

// Int returns the payload of a Number value as a signed integer.
func (v Value) Int() int32 {
	return int32(uint32(v))
}

// Bool reports whether a Boolean value is true.
func (v Value) Bool() bool {
	return v.Type() == TypeBoolean && v.Payload() != 0
}

func (v Value) String() string {
	switch v.Type() {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		if v.Bool() {
			return "true"
		}
		return "false"
	case TypeNumber:
		return fmt.Sprintf("%d", v.Int())
	default:
		return fmt.Sprintf("%s@%#x", v.Type(), v.Payload())
	}
}
