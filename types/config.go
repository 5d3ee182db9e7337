package types

// WasmPageSize is the size of one page of guest memory.
const WasmPageSize = 65536

// VMConfig defines the configuration for a VM instance.
type VMConfig struct {
	// MemoryLimitPages caps guest memory. Zero keeps the engine default.
	MemoryLimitPages uint32 `json:"memory_limit_pages" toml:"memory_limit_pages"`
	// CacheDir enables an on-disk compilation cache. The directory is locked
	// exclusively while a VM uses it.
	CacheDir string `json:"cache_dir" toml:"cache_dir"`
}

// DefaultVMConfig returns the configuration used when none is given.
func DefaultVMConfig() VMConfig {
	return VMConfig{MemoryLimitPages: 256}
}

// MemoryLimitBytes returns the memory cap in bytes.
func (c VMConfig) MemoryLimitBytes() uint64 {
	return uint64(c.MemoryLimitPages) * WasmPageSize
}
