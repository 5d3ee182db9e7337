package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// Bytecode is the raw content of a bytecode image.
type Bytecode []byte

// Checksum returns the SHA-256 checksum of the image.
func (b Bytecode) Checksum() Checksum {
	return sha256.Sum256(b)
}

// Checksum identifies a bytecode image. It is the SHA-256 hash of the image.
type Checksum [ChecksumLen]byte

// ChecksumLen is the length of a checksum in bytes.
const ChecksumLen = 32

func (cs Checksum) String() string {
	return hex.EncodeToString(cs[:])
}

// Short returns the first 8 hex characters, for log lines.
func (cs Checksum) Short() string {
	return hex.EncodeToString(cs[:4])
}
