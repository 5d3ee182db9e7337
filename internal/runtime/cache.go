package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
)

// Cache is an on-disk compilation cache rooted at a directory the process
// holds an exclusive lock on.
type Cache struct {
	baseDir     string
	lockfile    *os.File
	compilation wazero.CompilationCache
}

// OpenCache creates dir if needed, locks it and opens the wazero compilation
// cache inside it. It fails if another VM holds the lock.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create cache directory: %w", err)
	}
	lockPath := filepath.Join(dir, "exclusive.lock")
	lf, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not open exclusive.lock: %w", err)
	}
	if err := lockFile(lf); err != nil {
		lf.Close()
		return nil, fmt.Errorf("could not lock exclusive.lock; is another VM running? %w", err)
	}
	if _, err := lf.WriteString("exclusive lock for mvmhost VM\n"); err != nil {
		unlockFile(lf)
		lf.Close()
		return nil, fmt.Errorf("error writing to exclusive.lock: %w", err)
	}
	cc, err := wazero.NewCompilationCacheWithDir(filepath.Join(dir, "compiled"))
	if err != nil {
		unlockFile(lf)
		lf.Close()
		return nil, fmt.Errorf("could not open compilation cache: %w", err)
	}
	return &Cache{baseDir: dir, lockfile: lf, compilation: cc}, nil
}

// Compilation returns the wazero cache to configure a runtime with.
func (c *Cache) Compilation() wazero.CompilationCache {
	return c.compilation
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.baseDir
}

// Close releases the compilation cache and the directory lock.
func (c *Cache) Close(ctx context.Context) error {
	var errs []error
	if c.compilation != nil {
		errs = append(errs, c.compilation.Close(ctx))
	}
	if c.lockfile != nil {
		errs = append(errs, unlockFile(c.lockfile), c.lockfile.Close())
		c.lockfile = nil
	}
	return errors.Join(errs...)
}
