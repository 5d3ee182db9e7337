// Package config handles mvmhost.toml host configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/mvmhost/mvmhost/types"
)

// FileName is the configuration file looked up by Load.
const FileName = "mvmhost.toml"

// DefaultBytecodePath is the image the host runs when none is configured.
const DefaultBytecodePath = "../../test/end-to-end/artifacts/hello-world/2.post-gc.mvm-bc"

// Config represents an mvmhost.toml file.
type Config struct {
	Bytecode string         `toml:"bytecode"`
	Runtime  types.VMConfig `toml:"runtime"`
	Log      Log            `toml:"log"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// Log configures host logging.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Bytecode: DefaultBytecodePath,
		Runtime:  types.DefaultVMConfig(),
		Log:      Log{Level: "info"},
	}
}

// Load reads mvmhost.toml from dir. A missing file yields Default.
// Relative paths in the file are resolved against dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Path = path

	if c.Bytecode == "" {
		return nil, fmt.Errorf("%s: bytecode must not be empty", path)
	}
	if !filepath.IsAbs(c.Bytecode) {
		c.Bytecode = filepath.Join(dir, c.Bytecode)
	}
	if c.Runtime.CacheDir != "" && !filepath.IsAbs(c.Runtime.CacheDir) {
		c.Runtime.CacheDir = filepath.Join(dir, c.Runtime.CacheDir)
	}
	if _, err := c.Level(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Level parses the configured log level.
func (c *Config) Level() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return lvl, nil
}

// NewLogger returns a console logger on stderr at the configured level.
func (c *Config) NewLogger() zerolog.Logger {
	lvl, err := c.Level()
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}
