package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devserve-run/devserve/pkg/types"
)

// isolateEnv points every config source at empty temp locations so a
// developer's real config never leaks into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("DEVSERVE_CONFIG_DIR", "")
	t.Setenv("DEVSERVE_CONFIG", "")
	t.Setenv("DEVSERVE_CONFIG_CONTENT", "")
	t.Setenv("DEVSERVE_MANAGER", "")
	t.Setenv("DEVSERVE_PORTS", "")
	t.Setenv("DEVSERVE_DISCOVERY_TIMEOUT", "")
}

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadEmpty(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Manager)
	assert.Nil(t, cfg.Discovery)
}

func TestLoadProjectConfig(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	writeConfig(t, dir, "devserve.json", `{"manager": "pnpm", "ports": [5173, 3000]}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "pnpm", cfg.Manager)
	assert.Equal(t, []int{5173, 3000}, cfg.Ports)
}

func TestLoadJSONCComments(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	writeConfig(t, dir, "devserve.jsonc", `{
  // force yarn for this project
  "manager": "yarn",
  "discovery": {
    "timeout": 15000, // ms
  },
}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "yarn", cfg.Manager)
	require.NotNil(t, cfg.Discovery)
	assert.Equal(t, 15000, cfg.Discovery.TimeoutMs)
}

func TestLoadYAML(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	writeConfig(t, dir, "devserve.yaml", "manager: bun\nreach:\n  timeout: 5000\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "bun", cfg.Manager)
	require.NotNil(t, cfg.Reach)
	assert.Equal(t, 5000, cfg.Reach.TimeoutMs)
}

func TestLoadProjectOverridesGlobal(t *testing.T) {
	isolateEnv(t)

	home := os.Getenv("HOME")
	writeConfig(t, filepath.Join(home, ".devserve"), "devserve.json",
		`{"manager": "npm", "readyPatterns": ["global (\\S+)"]}`)

	dir := t.TempDir()
	writeConfig(t, dir, "devserve.json", `{"manager": "pnpm"}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "pnpm", cfg.Manager)
	// Non-conflicting global settings survive.
	assert.Equal(t, []string{`global (\S+)`}, cfg.ReadyPatterns)
}

func TestLoadDotDirectoryConfig(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, ".devserve"), "devserve.json", `{"manager": "yarn"}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "yarn", cfg.Manager)
}

func TestLoadEnvInterpolation(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TEST_DEVSERVE_MANAGER", "bun")

	dir := t.TempDir()
	writeConfig(t, dir, "devserve.json", `{"manager": "{env:TEST_DEVSERVE_MANAGER}"}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "bun", cfg.Manager)
}

func TestLoadFileInterpolation(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manager.txt"), []byte("pnpm"), 0644))
	writeConfig(t, dir, "devserve.json", `{"manager": "{file:manager.txt}"}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "pnpm", cfg.Manager)
}

func TestLoadInlineConfigContent(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DEVSERVE_CONFIG_CONTENT", `{"install": {"skip": true}}`)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, cfg.Install)
	assert.True(t, cfg.Install.Skip)
}

func TestLoadEnvOverridesBeatFiles(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DEVSERVE_MANAGER", "bun")
	t.Setenv("DEVSERVE_PORTS", "4000, 4001")
	t.Setenv("DEVSERVE_DISCOVERY_TIMEOUT", "12000")

	dir := t.TempDir()
	writeConfig(t, dir, "devserve.json", `{"manager": "npm", "ports": [3000]}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "bun", cfg.Manager)
	assert.Equal(t, []int{4000, 4001}, cfg.Ports)
	require.NotNil(t, cfg.Discovery)
	assert.Equal(t, 12000, cfg.Discovery.TimeoutMs)
}

func TestLoadMalformedPortsIgnored(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DEVSERVE_PORTS", "abc,-1")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Ports)
}

func TestSaveRoundTrip(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "devserve.json")
	original := &types.Config{
		Manager: "pnpm",
		Ports:   []int{5173},
		Install: &types.InstallConfig{TimeoutMs: 60000},
	}
	require.NoError(t, Save(original, path))

	cfg, err := Load(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, "pnpm", cfg.Manager)
	assert.Equal(t, []int{5173}, cfg.Ports)
	require.NotNil(t, cfg.Install)
	assert.Equal(t, 60000, cfg.Install.TimeoutMs)
}
