package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvmhost/mvmhost/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, DefaultBytecodePath, c.Bytecode)
	assert.Empty(t, c.Path)
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `
bytecode = "images/app.mvm-bc"

[runtime]
memory_limit_pages = 32
cache_dir = "cache"

[log]
level = "debug"
`)
	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "images/app.mvm-bc"), c.Bytecode)
	assert.Equal(t, types.VMConfig{MemoryLimitPages: 32, CacheDir: filepath.Join(dir, "cache")}, c.Runtime)
	assert.Equal(t, filepath.Join(dir, FileName), c.Path)

	lvl, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)
}

func TestLoadKeepsDefaults(t *testing.T) {
	dir := writeConfig(t, `bytecode = "/abs/image.mvm-bc"`)
	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/abs/image.mvm-bc", c.Bytecode)
	assert.Equal(t, types.DefaultVMConfig(), c.Runtime)
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":         `bytecode = `,
		"empty bytecode": `bytecode = ""`,
		"log level":      "[log]\nlevel = \"loud\"",
		"wrong type":     "[runtime]\nmemory_limit_pages = \"many\"",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), FileName)
		})
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	c := Default()
	c.Log.Level = "loud"
	assert.Equal(t, zerolog.InfoLevel, c.NewLogger().GetLevel())

	c.Log.Level = "warn"
	assert.Equal(t, zerolog.WarnLevel, c.NewLogger().GetLevel())
}
