package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilfs/vigil/internal/config"
)

func TestInitCmd_CreatesProjectConfig(t *testing.T) {
	// Given: a directory without a config
	dir := t.TempDir()

	// When: running init
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", dir})

	err := cmd.Execute()

	// Then: .vigil.yaml should exist and the output should guide the user
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ".vigil.yaml"))
	assert.Contains(t, buf.String(), "Created")
	assert.Contains(t, buf.String(), "Next steps:")
}

func TestInitCmd_RefusesToOverwrite(t *testing.T) {
	// Given: a directory that already has a config
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".vigil.yaml"), []byte("watch:\n"), 0o644))

	// When: running init again without --force
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", dir})

	err := cmd.Execute()

	// Then: it should refuse and point at --force
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Contains(t, err.Error(), "--force")
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	// Given: a directory with a stale config
	dir := t.TempDir()
	path := filepath.Join(dir, ".vigil.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stale: true\n"), 0o644))

	// When: running init --force
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", dir, "--force"})

	err := cmd.Execute()

	// Then: the file should be replaced with the defaults
	require.NoError(t, err)
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.NotContains(t, string(data), "stale")
	assert.Contains(t, string(data), "watch:")
}

func TestInitCmd_MissingDirectoryFails(t *testing.T) {
	// Given: a directory that does not exist
	missing := filepath.Join(t.TempDir(), "nope")

	// When: running init against it
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"init", missing})

	err := cmd.Execute()

	// Then: it should fail up front
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to access path")
}

func TestInitCmd_UserConfig(t *testing.T) {
	// Given: an isolated user config location
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// When: writing the user config
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", "--user"})

	err := cmd.Execute()

	// Then: the file should land at the XDG path
	require.NoError(t, err)
	assert.FileExists(t, config.GetUserConfigPath())
	assert.Contains(t, buf.String(), "Created")
}

func TestInitCmd_UserConfigRefusesToOverwrite(t *testing.T) {
	// Given: an existing user config
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.MkdirAll(config.GetUserConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(config.GetUserConfigPath(), []byte("watch:\n"), 0o644))

	// When: running init --user without --force
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"init", "--user"})

	err := cmd.Execute()

	// Then: it should refuse
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitCmd_UserConfigForceBacksUp(t *testing.T) {
	// Given: an existing user config
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	require.NoError(t, os.MkdirAll(config.GetUserConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(config.GetUserConfigPath(), []byte("watch:\n"), 0o644))

	// When: forcing a rewrite
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", "--user", "--force"})

	err := cmd.Execute()

	// Then: the old file should be backed up first
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Backed up existing config to")

	backups, listErr := config.ListUserConfigBackups()
	require.NoError(t, listErr)
	assert.Len(t, backups, 1)
}
